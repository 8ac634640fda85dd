// Command mediascan scans media directories, extracts metadata and
// thumbnail frames from video files, and optionally keeps watching for
// changes.
//
// Usage:
//
//	mediascan [-config mediascan.yaml] [-dump] [path ...]
//
// Paths given as arguments replace the configured ones. Configuration is
// described in package startup.
//
// # Lifecycle
//
//  1. Configuration: YAML file, .env and environment variables
//  2. State database: remembers scanned files so unchanged ones are skipped
//  3. Backend: ffprobe and ffmpeg located and their decoders registered
//  4. Thumbnails: libvips initialized when enabled, imaging otherwise
//  5. Status server: /healthz, /progress and /metrics when an address is set
//  6. Scan: synchronous, or async with results pumped on the main goroutine
//  7. Watch: changed files are scanned until SIGINT or SIGTERM
package main
