package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan run metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_scan_runs_total",
			Help: "Total number of scan runs",
		},
		[]string{"mode"}, // "sync" or "async"
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediascan_scan_last_run_timestamp",
			Help: "Timestamp of the last completed scan run",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediascan_scan_last_run_duration_seconds",
			Help: "Duration of the last scan run in seconds",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediascan_scan_running",
			Help: "Whether a scan is currently running (1 = running, 0 = idle)",
		},
	)
)

// Per-file metrics
var (
	ScanFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_files_total",
			Help: "Total number of files handled by outcome",
		},
		[]string{"type", "outcome"}, // outcome: "result", "error", "dropped", "unchanged"
	)

	ScanFileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediascan_file_scan_duration_seconds",
			Help:    "Time spent scanning a single file",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	ScanErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_file_errors_total",
			Help: "Total number of per-file scan errors by kind",
		},
		[]string{"kind"},
	)

	ResultHandlesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediascan_result_handles_open",
			Help: "Number of container and file handles currently held by scan results",
		},
	)
)

// Walker metrics
var (
	WalkerDirectoriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediascan_walker_directories_total",
			Help: "Total number of directories enumerated",
		},
	)

	WalkerDirectoriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_walker_directories_skipped_total",
			Help: "Total number of directories skipped",
		},
		[]string{"reason"}, // "ignored", "unreadable", "symlink"
	)

	WalkerFilesClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_walker_files_classified_total",
			Help: "Total number of files classified during walks",
		},
		[]string{"type"},
	)
)

// Frame selection metrics
var (
	FrameSelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_frame_selections_total",
			Help: "Total number of thumbnail frame selections",
		},
		[]string{"status"},
	)

	FrameSelectionSkippedPackets = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediascan_frame_selection_skipped_packets",
			Help:    "Packets skipped before a frame was selected",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 150, 200},
		},
	)

	FrameSelectionFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediascan_frame_selection_fallbacks_total",
			Help: "Total number of keyframe searches that fell back to the first frame",
		},
	)
)

// Backend metrics
var (
	BackendCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_backend_commands_total",
			Help: "Total number of external media tool invocations",
		},
		[]string{"tool", "status"},
	)

	BackendCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediascan_backend_command_duration_seconds",
			Help:    "External media tool invocation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)
)

// Thumbnail metrics
var (
	ThumbnailRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_thumbnail_renders_total",
			Help: "Total number of thumbnail renders",
		},
		[]string{"format", "status"},
	)

	ThumbnailRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediascan_thumbnail_render_duration_seconds",
			Help:    "Thumbnail resize and encode duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"format"},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediascan_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)
)

// Pump and watcher metrics
var (
	PumpQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediascan_pump_queue_depth",
			Help: "Number of deferred events waiting for a pump",
		},
	)

	PumpDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_pump_delivered_total",
			Help: "Total number of deferred events delivered by pumps",
		},
		[]string{"kind"}, // "result", "error", "progress", "file"
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediascan_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediascan_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)
)

// Store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_store_queries_total",
			Help: "Total number of scan state database queries",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediascan_store_query_duration_seconds",
			Help:    "Scan state database query duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"operation"},
	)

	MediaFilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediascan_known_files",
			Help: "Number of files recorded in the scan state database by type",
		},
		[]string{"type"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediascan_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds, including retries",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after ESTALE",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors seen",
		},
		[]string{"operation"},
	)
)

// Status server metrics
var (
	StatusRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascan_status_requests_total",
			Help: "Total number of status server requests",
		},
		[]string{"method", "path", "status"},
	)

	StatusRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediascan_status_request_duration_seconds",
			Help:    "Status server request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediascan_memory_usage_ratio",
			Help: "Heap usage as a fraction of the heap limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediascan_memory_paused",
			Help: "Whether scanning is paused for memory (1 = paused, 0 = running)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediascan_memory_pauses_total",
			Help: "Total number of times scanning paused for memory",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediascan_app_info",
			Help: "Application information",
		},
		[]string{"version", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}
