// Package result holds the per-file scan artifact and its error type.
//
// A Result owns the backend handles opened while scanning its file and
// releases them exactly once, on Release or Destroy. Its Payload is a sealed
// variant: *Video, *Audio or *Image, selected by type switch or the typed
// accessors, and is set only when the scan succeeded. Err is set only when
// it failed.
package result
