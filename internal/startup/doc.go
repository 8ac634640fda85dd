// Package startup handles configuration loading and startup/shutdown
// logging for the mediascan command.
//
// # Configuration
//
// [LoadConfig] reads an optional YAML file, loads a .env file from the
// working directory if present, then applies environment overrides:
//
//   - MEDIASCAN_PATHS: comma-separated root paths to scan
//   - MEDIASCAN_IGNORE_EXTENSIONS: comma-separated extensions or AUDIO/VIDEO/IMAGE
//   - MEDIASCAN_IGNORE_DIRS: comma-separated directory name substrings
//   - MEDIASCAN_THUMBNAILS: comma-separated thumbnail specs (format:WxH[:q=Q][:crop][:stretch])
//   - MEDIASCAN_THUMB_DIR: where rendered thumbnails are written
//   - MEDIASCAN_RESCAN: rescan files already in the state database (default: false)
//   - MEDIASCAN_CLEAR: empty the state database before scanning (default: false)
//   - MEDIASCAN_USE_EXTENSION: hint container formats from extensions (default: false)
//   - MEDIASCAN_ASYNC: run scans on a worker and pump results (default: false)
//   - MEDIASCAN_WATCH: keep watching the paths after the scan (default: false)
//   - MEDIASCAN_PROGRESS_INTERVAL: minimum time between progress reports (default: 1s)
//   - MEDIASCAN_DB: state database path, empty to disable (default: mediascan.db)
//   - MEDIASCAN_METRICS_ADDR: status and metrics listen address, empty to disable
//   - MEDIASCAN_VIPS: render thumbnails with libvips when available (default: true)
//   - FFPROBE_PATH, FFMPEG_PATH: tool locations (default: looked up in PATH)
//   - LOG_LEVEL: memory, debug, info, warn, error (default: info)
//   - LOG_FILE: also write logs to this file with rotation
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
