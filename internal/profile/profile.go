package profile

import (
	"strings"

	"mediascan/internal/backend"
	"mediascan/internal/mediatypes"
)

// ContainerKind groups container format names reported by a backend.
type ContainerKind string

const (
	ContainerUnknown  ContainerKind = "unknown"
	ContainerMPEGPS   ContainerKind = "mpeg-ps"
	ContainerMPEGES   ContainerKind = "mpeg-es"
	ContainerMPEGTS   ContainerKind = "mpeg-ts"
	ContainerMP4      ContainerKind = "mp4"
	ContainerASF      ContainerKind = "asf"
	ContainerAVI      ContainerKind = "avi"
	ContainerMatroska ContainerKind = "matroska"
	ContainerFLV      ContainerKind = "flv"
)

// KindOf maps a backend format name to a container kind.
func KindOf(formatName string) ContainerKind {
	names := strings.Split(formatName, ",")
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "mpeg", "vob", "mpegps":
			return ContainerMPEGPS
		case "mpegvideo", "mpeg1video", "mpeg2video", "h264", "m4v":
			return ContainerMPEGES
		case "mpegts", "mpegtsraw":
			return ContainerMPEGTS
		case "mov", "mp4", "m4a", "3gp", "3g2", "mj2":
			return ContainerMP4
		case "asf":
			return ContainerASF
		case "avi":
			return ContainerAVI
		case "matroska", "webm":
			return ContainerMatroska
		case "flv":
			return ContainerFLV
		}
	}
	return ContainerUnknown
}

// Input is what a matcher sees for one probed file.
type Input struct {
	Path string
	// UseExtension restricts candidates to profiles listing the path's extension.
	UseExtension bool
	Container    backend.ContainerInfo
	Kind         ContainerKind
	Codecs       *backend.Codecs
}

// Match identifies a delivery profile.
type Match struct {
	ID   string `json:"id"`
	MIME string `json:"mime"`
}

// Matcher finds the delivery profile a file conforms to.
type Matcher interface {
	Match(in Input) (Match, bool)
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(in Input) (Match, bool)

// Match calls f.
func (f MatcherFunc) Match(in Input) (Match, bool) {
	return f(in)
}

// Profile is one entry of a Table.
type Profile struct {
	ID         string
	MIME       string
	Kind       ContainerKind
	Extensions []string
	Probe      func(in Input) bool
}

// Table matches profiles in order; the first match wins.
type Table []Profile

// Match implements Matcher.
func (t Table) Match(in Input) (Match, bool) {
	if in.Codecs == nil || in.Codecs.Video == nil {
		return Match{}, false
	}
	ext, _ := mediatypes.Extension(in.Path)

	for _, p := range t {
		if p.Kind != in.Kind {
			continue
		}
		if in.UseExtension && len(p.Extensions) > 0 && !contains(p.Extensions, ext) {
			continue
		}
		if p.Probe == nil || p.Probe(in) {
			return Match{ID: p.ID, MIME: p.MIME}, true
		}
	}
	return Match{}, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
