// Package watcher reports new and changed media files under watched
// directories.
//
// A Notifier supplies raw filesystem events; FSNotifier is the fsnotify
// implementation and watches directory trees recursively, following
// directories created after the watch started. A Watcher consumes those
// events on its own goroutine, filters them, waits for a quiet period so a
// file being copied is reported once, and hands each settled path to a
// sink. The sink is the only point where the watcher touches shared state.
package watcher
