/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

Media libraries are often mounted over NFS. A directory listing or stat that races a
server-side change can fail with ESTALE; the walker and the scan lifecycle go through
this package so such failures are retried instead of skipping a subtree.

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())

# Retry Behavior

The defaults are:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only ESTALE triggers retries. All other errors fail immediately.

# Metrics

The package does not import the metrics package. Call SetObserver at startup with
metrics.NewFilesystemObserver() to record operation durations and retry counts.
*/
package filesystem
