// Package memory sizes the Go heap limit from the container limit and
// pauses scanning while heap usage is critical.
//
// ConfigureFromEnv runs once at startup:
//
//   - GOMEMLIMIT, when set, wins and is only reported.
//   - MEDIASCAN_MEMORY_LIMIT is the container limit in bytes, usually from
//     the Kubernetes Downward API. The heap limit is set to
//     MEDIASCAN_MEMORY_RATIO of it (default 0.85), leaving the rest for
//     ffmpeg child processes and thumbnail buffers.
//
// A Monitor samples heap usage on an interval. Above the critical mark it
// forces a GC and holds Wait callers until usage drops under the high mark.
// The scanner calls Wait before each file, so a paused monitor stalls the
// walk without losing files.
package memory
