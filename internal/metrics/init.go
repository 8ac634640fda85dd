package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, mode := range []string{"sync", "async"} {
		ScanRunsTotal.WithLabelValues(mode)
	}

	types := []string{"video", "audio", "image", "unknown"}
	for _, typ := range types {
		for _, outcome := range []string{"result", "error", "dropped", "unchanged"} {
			ScanFilesTotal.WithLabelValues(typ, outcome)
		}
		ScanFileDuration.WithLabelValues(typ)
		WalkerFilesClassified.WithLabelValues(typ)
		MediaFilesTotal.WithLabelValues(typ)
	}

	for _, kind := range []string{
		"unrecognized_extension", "file_open_failed", "stream_probe_failed",
		"decode_failed", "invalid_parameters", "out_of_memory", "limit_exceeded",
	} {
		ScanErrorsTotal.WithLabelValues(kind)
	}

	for _, reason := range []string{"ignored", "unreadable", "symlink"} {
		WalkerDirectoriesSkipped.WithLabelValues(reason)
	}

	for _, status := range []string{"keyframe", "fallback", "failed"} {
		FrameSelectionsTotal.WithLabelValues(status)
	}

	for _, tool := range []string{"ffprobe", "ffmpeg"} {
		for _, status := range []string{"success", "error"} {
			BackendCommandsTotal.WithLabelValues(tool, status)
		}
		BackendCommandDuration.WithLabelValues(tool)
	}

	for _, format := range []string{"jpeg", "png", "bmp"} {
		for _, status := range []string{"success", "error"} {
			ThumbnailRendersTotal.WithLabelValues(format, status)
		}
		ThumbnailRenderDuration.WithLabelValues(format)
	}

	for _, kind := range []string{"result", "error", "progress", "file"} {
		PumpDeliveredTotal.WithLabelValues(kind)
	}

	for _, event := range []string{"create", "write", "remove", "rename", "chmod"} {
		WatcherEventsTotal.WithLabelValues(event)
	}

	for _, op := range []string{"lookup", "record", "clear", "stats", "metadata"} {
		for _, status := range []string{"success", "error"} {
			StoreQueryTotal.WithLabelValues(op, status)
		}
		StoreQueryDuration.WithLabelValues(op)
	}

	for _, op := range []string{"stat", "open", "readdir"} {
		FilesystemOperationDuration.WithLabelValues(op)
		FilesystemOperationErrors.WithLabelValues(op)
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}
