package result

import (
	"image"
	"io"
	"io/fs"
	"sync/atomic"
	"time"

	"mediascan/internal/logging"
	"mediascan/internal/mediatypes"
	"mediascan/internal/metrics"
)

// Flags modify how a file is scanned.
type Flags uint32

const (
	// FlagRescanAll rescans files the state store already knows.
	FlagRescanAll Flags = 1 << iota
	// FlagClearPriorState empties the state store before a scan.
	FlagClearPriorState
	// FlagUseExtension hints the container format from the file extension.
	FlagUseExtension
)

// Has reports whether every flag in f2 is set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Payload is the type-specific part of a result. It is one of *Video,
// *Audio or *Image.
type Payload interface {
	MediaType() mediatypes.MediaType
	isPayload()
}

// Video is the payload of a scanned video file.
type Video struct {
	Codec      string       `json:"codec"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	FrameRate  float64      `json:"frameRate"`
	Thumbnails []*Thumbnail `json:"-"`
}

// Audio is the payload of a scanned audio file.
type Audio struct {
	Codec      string `json:"codec"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// Image is the payload of a scanned image file.
type Image struct {
	Codec  string `json:"codec"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (*Video) MediaType() mediatypes.MediaType { return mediatypes.Video }
func (*Audio) MediaType() mediatypes.MediaType { return mediatypes.Audio }
func (*Image) MediaType() mediatypes.MediaType { return mediatypes.Image }

func (*Video) isPayload() {}
func (*Audio) isPayload() {}
func (*Image) isPayload() {}

// MaxThumbnails bounds the thumbnails attached to one video result.
const MaxThumbnails = 8

// Thumbnail is a decoded frame at its native resolution. Spec is the index
// of the thumbnail spec it was produced for.
type Thumbnail struct {
	Width  int
	Height int
	Pix    *image.RGBA
	Source string
	Spec   int
}

var nextID atomic.Uint64

// Result is the outcome of scanning one file. It is valid only until the
// callback that receives it returns.
type Result struct {
	Path       string               `json:"path"`
	Type       mediatypes.MediaType `json:"type"`
	Flags      Flags                `json:"-"`
	MimeType   string               `json:"mimeType,omitempty"`
	ProfileID  string               `json:"profileId,omitempty"`
	Size       int64                `json:"size"`
	ModTime    time.Time            `json:"modTime"`
	Bitrate    int64                `json:"bitrate"`
	DurationMS int64                `json:"durationMs"`
	Payload    Payload              `json:"payload,omitempty"`
	Err        *Error               `json:"-"`

	id        uint64
	container io.Closer
	released  bool
}

// New allocates a result for path.
func New(path string, typ mediatypes.MediaType, flags Flags) *Result {
	r := &Result{Path: path, Type: typ, Flags: flags, id: nextID.Add(1)}
	logging.Memory("new result #%d for %s", r.id, path)
	return r
}

// AttachContainer hands ownership of an open container to r.
func (r *Result) AttachContainer(c io.Closer) {
	r.container = c
	metrics.ResultHandlesOpen.Inc()
	logging.Memory("result #%d holds container", r.id)
}

// HasOpenHandles reports whether r still owns a container.
func (r *Result) HasOpenHandles() bool {
	return r.container != nil
}

// SetFileMetadata copies size and modification time from info.
func (r *Result) SetFileMetadata(info fs.FileInfo) {
	r.Size = info.Size()
	r.ModTime = info.ModTime()
}

// Fail records err and clears any payload.
func (r *Result) Fail(err *Error) {
	r.Err = err
	r.Payload = nil
}

// Succeed sets the payload. It must not be called on a failed result.
func (r *Result) Succeed(p Payload) {
	r.Payload = p
	r.Err = nil
}

// Video returns the video payload, if r carries one.
func (r *Result) Video() (*Video, bool) {
	v, ok := r.Payload.(*Video)
	return v, ok
}

// Audio returns the audio payload, if r carries one.
func (r *Result) Audio() (*Audio, bool) {
	a, ok := r.Payload.(*Audio)
	return a, ok
}

// Image returns the image payload, if r carries one.
func (r *Result) Image() (*Image, bool) {
	i, ok := r.Payload.(*Image)
	return i, ok
}

// Release closes the container held by r. It is closed at most once;
// later calls do nothing.
func (r *Result) Release() {
	if r.released {
		return
	}
	r.released = true

	if r.container != nil {
		if err := r.container.Close(); err != nil {
			logging.Debug("closing container for %s: %v", r.Path, err)
		}
		r.container = nil
		metrics.ResultHandlesOpen.Dec()
		logging.Memory("result #%d released container", r.id)
	}
}

// Destroy releases handles and drops the payload and error.
func (r *Result) Destroy() {
	r.Release()
	r.Payload = nil
	r.Err = nil
	logging.Memory("destroyed result #%d", r.id)
}

// Dump logs r at info level.
func Dump(r *Result) {
	logging.Info("%s", r.Path)
	logging.Info("  MIME type: %s", orNone(r.MimeType))
	logging.Info("  DLNA profile: %s", orNone(r.ProfileID))
	logging.Info("  File size: %d", r.Size)
	logging.Info("  Modification time: %d", r.ModTime.Unix())
	logging.Info("  Bitrate: %d bps", r.Bitrate)
	logging.Info("  Duration: %d ms", r.DurationMS)

	switch p := r.Payload.(type) {
	case *Video:
		logging.Info("  Video: %s", p.Codec)
		logging.Info("    Dimensions: %dx%d", p.Width, p.Height)
		logging.Info("    Framerate: %.2f", p.FrameRate)
		logging.Info("    Thumbnails: %d", len(p.Thumbnails))
	case *Audio:
		logging.Info("  Audio: %s, %d Hz, %d channels", p.Codec, p.SampleRate, p.Channels)
	case *Image:
		logging.Info("  Image: %s, %dx%d", p.Codec, p.Width, p.Height)
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
