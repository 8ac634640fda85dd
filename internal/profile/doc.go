// Package profile matches probed video files against delivery profiles.
//
// The scanner depends only on the Matcher interface. DefaultTable provides a
// small table of DLNA-style profiles keyed on container kind, video codec,
// picture size and frame rate; applications can supply their own Matcher.
package profile
