package mediatypes

import "strings"

// MediaType represents the kind of media a file holds.
type MediaType string

const (
	// Unknown represents a file the scanner does not handle.
	Unknown MediaType = "unknown"
	// Video represents a video container.
	Video MediaType = "video"
	// Audio represents an audio file.
	Audio MediaType = "audio"
	// Image represents a still image.
	Image MediaType = "image"
)

// MaxExtensionLength is the number of characters of an extension that take
// part in classification. Longer extensions are truncated, so an ignore token
// longer than this never matches.
const MaxExtensionLength = 7

// Aggregate ignore tokens. They are matched exactly, in upper case.
const (
	IgnoreAllAudio = "AUDIO"
	IgnoreAllVideo = "VIDEO"
	IgnoreAllImage = "IMAGE"
)

// VideoExtensions lists the extensions classified as video.
var VideoExtensions = map[string]bool{
	"asf":  true,
	"avi":  true,
	"divx": true,
	"flv":  true,
	"m2t":  true,
	"m4v":  true,
	"mkv":  true,
	"mov":  true,
	"mpg":  true,
	"mpeg": true,
	"mp4":  true,
	"m2p":  true,
	"mts":  true,
	"m2ts": true,
	"ts":   true,
	"vob":  true,
	"webm": true,
	"wmv":  true,
	"xvid": true,
	"3gp":  true,
	"3g2":  true,
	"3gp2": true,
	"3gpp": true,
}

// AudioExtensions lists the extensions classified as audio.
var AudioExtensions = map[string]bool{
	"aif":  true,
	"aiff": true,
	"wav":  true,
}

// ImageExtensions lists the extensions classified as images.
var ImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
}

// Extension returns the lower-cased text after the last '.' in path,
// truncated to MaxExtensionLength. ok is false when path has no '.'.
func Extension(path string) (ext string, ok bool) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "", false
	}
	ext = path[i+1:]
	if len(ext) > MaxExtensionLength {
		ext = ext[:MaxExtensionLength]
	}
	return strings.ToLower(ext), true
}

// Classifier maps paths to media types, honoring an ignore list.
// A Classifier is immutable and safe for concurrent use.
type Classifier struct {
	ignored     map[string]bool
	ignoreAudio bool
	ignoreVideo bool
	ignoreImage bool
}

// NewClassifier builds a classifier from ignore tokens. A token is either
// an extension (case-insensitive, leading '.' optional) or one of the
// aggregate tokens IgnoreAllAudio, IgnoreAllVideo, IgnoreAllImage.
func NewClassifier(ignore []string) *Classifier {
	c := &Classifier{ignored: make(map[string]bool, len(ignore))}
	for _, tok := range ignore {
		switch tok {
		case IgnoreAllAudio:
			c.ignoreAudio = true
		case IgnoreAllVideo:
			c.ignoreVideo = true
		case IgnoreAllImage:
			c.ignoreImage = true
		default:
			if norm := NormalizeExtension(tok); norm != "" {
				c.ignored[norm] = true
			}
		}
	}
	return c
}

// NormalizeExtension lower-cases an extension token and strips a leading dot.
func NormalizeExtension(tok string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tok), "."))
}

// Classify returns the media type of path. The ignore list is checked
// before the media sets, so an ignored extension is always Unknown.
func (c *Classifier) Classify(path string) MediaType {
	ext, ok := Extension(path)
	if !ok || ext == "" {
		return Unknown
	}
	if c != nil && c.ignored[ext] {
		return Unknown
	}

	switch {
	case VideoExtensions[ext]:
		if c != nil && c.ignoreVideo {
			return Unknown
		}
		return Video
	case AudioExtensions[ext]:
		if c != nil && c.ignoreAudio {
			return Unknown
		}
		return Audio
	case ImageExtensions[ext]:
		if c != nil && c.ignoreImage {
			return Unknown
		}
		return Image
	}
	return Unknown
}

// IsMedia reports whether t is a handled media type.
func (t MediaType) IsMedia() bool {
	return t == Video || t == Audio || t == Image
}

// String returns the type name.
func (t MediaType) String() string {
	if t == "" {
		return string(Unknown)
	}
	return string(t)
}
