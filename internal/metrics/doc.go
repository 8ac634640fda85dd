// Package metrics provides Prometheus instrumentation for the media scanner.
//
// All metrics are prefixed with "mediascan_" and registered on the default
// registry through promauto, so they are exported by promhttp.Handler without
// further wiring.
//
// # Metric Categories
//
// ## Scan Runs
//   - ScanRunsTotal: Counter of scan runs by mode (sync/async)
//   - ScanLastRunTimestamp, ScanLastRunDuration: Gauges for the last completed run
//   - ScanIsRunning: Gauge indicating whether a scan is active
//
// ## Per-file Outcomes
//   - ScanFilesTotal: Counter by media type and outcome (result/error/dropped/unchanged)
//   - ScanFileDuration: Histogram of single-file scan time by type
//   - ScanErrorsTotal: Counter of per-file errors by kind
//   - ResultHandlesOpen: Gauge of container and file handles held by live results
//
// ## Walker
//   - WalkerDirectoriesTotal, WalkerDirectoriesSkipped, WalkerFilesClassified
//
// ## Frame Selection
//   - FrameSelectionsTotal: Counter by status (keyframe/fallback/failed)
//   - FrameSelectionSkippedPackets: Histogram of packets skipped before a frame was chosen
//   - FrameSelectionFallbacks: Counter of zero-seek fallbacks
//
// ## Backend, Thumbnails, Pump, Watcher, Store, Filesystem
//
// See metrics.go for the full list. Filesystem metrics are recorded through the
// filesystem.Observer returned by NewFilesystemObserver.
//
// # Initialization
//
// Call InitializeMetrics once at startup so every labelled series exists from the
// first scrape. Collector periodically copies store statistics into MediaFilesTotal.
package metrics
