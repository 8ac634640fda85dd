// Package walker enumerates media directory trees for the scanner.
//
// A walk visits one root at a time, sequentially, and hands back one DirGroup
// per directory that contains classified files. Groups are emitted as each
// directory is read, so callers can start scanning before the whole tree has
// been enumerated. Subdirectories whose name contains an ignore substring are
// never entered, and unreadable directories are logged and skipped.
package walker
