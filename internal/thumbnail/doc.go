// Package thumbnail turns decoded frames into thumbnail files.
//
// A Spec describes one requested thumbnail: output format, bounding box,
// aspect handling and quality. Specs are written as strings such as
// "jpeg:300x300:q=85" or "png:160x120:crop" and parsed with ParseSpec.
//
// Frames attached to scan results are kept at native resolution. Render
// resizes and encodes them with imaging, or with libvips when InitVips has
// been called and the format is one libvips can export. Writer stores the
// output under a content-addressed cache directory so unchanged files are
// not re-rendered.
package thumbnail
