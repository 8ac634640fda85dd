// Package ffmpeg implements backend.Backend on top of the ffprobe and
// ffmpeg command line tools.
//
// Probing runs ffprobe once per file and decodes its JSON report. Packets
// are streamed from a long-running "ffprobe -show_packets" process that is
// restarted on every seek. Decoding a packet runs ffmpeg with an input seek
// to the packet's timestamp and reads a single raw RGB frame from its
// standard output.
//
// Tool failures are mapped to backend error codes from the exit status and
// the diagnostic text ffmpeg writes to standard error.
package ffmpeg
