// Package video scans video files: it probes the container, matches a
// delivery profile, and selects a representative frame for each thumbnail.
//
// # Frame selection
//
// SelectFrame seeks to 10% of the duration and reads forward for a keyframe
// of the video stream, skipping at most MaxSkippedPackets packets. If the
// search hits the end of the file or the cap, it seeks back to zero once and
// decodes the first frame it finds, keyframe or not. Anything that fails
// after that is a decode failure. The selected frame is converted to RGBA at
// its native size; resizing belongs to the thumbnail package.
//
// Decoding has no timeout beyond the context passed in: a backend call that
// hangs stalls the scan of that file.
package video
