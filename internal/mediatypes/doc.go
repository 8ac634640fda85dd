// Package mediatypes classifies files by extension for the media scanner.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains the MediaType enum, the
// fixed extension sets and the ignore-aware Classifier.
//
// # Classification
//
// Classification looks only at the text after the last '.' in the path,
// lower-cased and truncated to MaxExtensionLength characters:
//
//	c := mediatypes.NewClassifier([]string{"wmv", mediatypes.IgnoreAllImage})
//	c.Classify("/media/clip.MP4")  // Video
//	c.Classify("/media/clip.wmv")  // Unknown, ignored
//	c.Classify("/media/photo.jpg") // Unknown, all images ignored
//
// The ignore list always wins over the media sets. Paths without a '.' are
// Unknown. Truncation is deliberate: an ignore token longer than
// MaxExtensionLength characters can never match.
package mediatypes
