// Package backend defines the demux and decode contract the scanner consumes.
//
// A Backend opens a Container, which probes streams, seeks, reads packets and
// opens per-stream Decoders. Implementations live in subpackages: ffmpeg drives
// the ffprobe and ffmpeg command line tools, and backendtest provides a
// deterministic in-memory container for tests.
//
// Failures carry a numeric code through *Error; Code extracts it from any
// wrapped error so it can be attached to a scan error.
package backend
