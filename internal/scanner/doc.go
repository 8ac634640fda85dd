// Package scanner runs scan sessions: it walks registered paths, scans each
// classified file and delivers exactly one outcome per file to the
// caller's callbacks.
//
// # Lifecycle
//
// For every file the session allocates a result, hands it to the scanner
// for its media type, then fires exactly one of: the result callback, the
// error callback, or a log line when no error callback is registered or
// the scanner failed without an error (audio-only streams, media types
// without a scanner). The result and every handle it owns are released
// after the callback returns, on every path.
//
// # Async mode
//
// With SetAsync(true), Scan and ScanFile return immediately and run the
// synchronous scan on a worker goroutine. Results are queued with their
// handles already released. The caller waits on Ready and calls Pump,
// which fires the queued callbacks on the caller's goroutine. Pump calls
// are serialized.
//
// # Watch mode
//
// Watch starts a background watcher on a directory. Settled new or
// changed files are queued; Pump scans them and reports them through
// OnBackground, or OnResult when no background callback is set. Close
// stops watchers and the async worker and waits for both before
// returning.
package scanner
