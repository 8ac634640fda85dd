// Package store persists which files have been scanned.
//
// A Store is a small SQLite database holding one row per delivered result:
// path, media type, size, modification time, MIME type and profile. The
// scanner consults it to skip files whose size and modification time are
// unchanged since the last scan, and clears it when a scan asks to forget
// prior state. It also records the last scan run.
//
// The database runs in WAL mode with a busy timeout, like any other
// SQLite file shared between a scanner and readers.
package store
