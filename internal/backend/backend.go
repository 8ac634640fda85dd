package backend

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"strconv"
	"strings"
)

// NoPTS marks a packet without a presentation timestamp.
const NoPTS int64 = math.MinInt64

// ErrAgain is returned by Decoder.Decode when the decoder needs more
// packets before it can produce a frame.
var ErrAgain = errors.New("decoder needs more input")

// Backend opens media containers for demuxing and decoding.
type Backend interface {
	// Open opens path for reading. formatHint names a container format to
	// try first, or is empty for autodetection.
	Open(ctx context.Context, path, formatHint string) (Container, error)

	// FormatForPath returns a container format hint derived from the
	// extension of path, or "" when none applies.
	FormatForPath(path string) string

	// FindDecoder returns the name of the decoder registered for codecID.
	FindDecoder(codecID string) (string, bool)
}

// Container is an open media file.
type Container interface {
	// FindStreamInfo probes the container. Info and Streams are valid only
	// after it succeeds.
	FindStreamInfo(ctx context.Context) error
	Info() ContainerInfo
	Streams() []Stream

	// Seek positions the packet reader near ts, expressed in the time base
	// of the stream at streamIndex.
	Seek(ctx context.Context, streamIndex int, ts int64) error

	// ReadPacket returns the next packet, or io.EOF at the end of the file.
	ReadPacket(ctx context.Context) (*Packet, error)

	OpenDecoder(ctx context.Context, stream Stream) (Decoder, error)

	// Stat describes the underlying file.
	Stat() (fs.FileInfo, error)

	Close() error
}

// Decoder turns packets of one stream into frames.
type Decoder interface {
	Decode(ctx context.Context, pkt *Packet) (*Frame, error)
	Close() error
}

// ContainerInfo holds container-level probe results.
type ContainerInfo struct {
	FormatName     string `json:"formatName"`
	FormatLongName string `json:"formatLongName,omitempty"`
	// DurationUS is the duration in microseconds, 0 when unknown.
	DurationUS  int64 `json:"durationUs"`
	StartTimeUS int64 `json:"startTimeUs"`
	BitRate     int64 `json:"bitRate"`
	Size        int64 `json:"size"`
}

// StreamKind is the media type carried by a stream.
type StreamKind string

const (
	KindVideo    StreamKind = "video"
	KindAudio    StreamKind = "audio"
	KindSubtitle StreamKind = "subtitle"
	KindData     StreamKind = "data"
	KindOther    StreamKind = "other"
)

// Stream describes one elementary stream of a container.
type Stream struct {
	Index         int        `json:"index"`
	Kind          StreamKind `json:"kind"`
	CodecID       string     `json:"codecId"`
	CodecLongName string     `json:"codecLongName,omitempty"`
	Profile       string     `json:"profile,omitempty"`
	Width         int        `json:"width,omitempty"`
	Height        int        `json:"height,omitempty"`
	PixFmt        string     `json:"pixFmt,omitempty"`
	TimeBase      Rational   `json:"timeBase"`
	FrameRate     Rational   `json:"frameRate"`
	BitRate       int64      `json:"bitRate,omitempty"`
	SampleRate    int        `json:"sampleRate,omitempty"`
	Channels      int        `json:"channels,omitempty"`
	AttachedPic   bool       `json:"attachedPic,omitempty"`
}

// Packet is one demuxed packet.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	Size        int
	// Pos is the byte offset in the file, negative when unknown.
	Pos      int64
	Keyframe bool
}

// Frame is one decoded picture.
type Frame struct {
	Width  int
	Height int
	PixFmt PixelFormat
	// Stride is the number of bytes per row; 0 means tightly packed.
	Stride int
	Data   []byte
	PTS    int64
}

// Rational is a fraction such as a time base or frame rate.
type Rational struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// Valid reports whether r has a non-zero numerator and denominator.
func (r Rational) Valid() bool {
	return r.Num != 0 && r.Den != 0
}

// Float64 returns r as a float, or 0 when r is not valid.
func (r Rational) Float64() float64 {
	if !r.Valid() {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return strconv.FormatInt(r.Num, 10) + "/" + strconv.FormatInt(r.Den, 10)
}

// ParseRational parses "num/den" or a plain integer. Malformed input yields
// the zero Rational.
func ParseRational(s string) Rational {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		den = "1"
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return Rational{}
	}
	d, err := strconv.ParseInt(den, 10, 64)
	if err != nil {
		return Rational{}
	}
	return Rational{Num: n, Den: d}
}

// Codecs is the probed codec set of a container: its first usable video
// and audio streams.
type Codecs struct {
	Video *Stream
	Audio *Stream
}

// ProbeCodecs picks the first video stream (cover art excluded) and the
// first audio stream. It returns nil when neither exists.
func ProbeCodecs(streams []Stream) *Codecs {
	c := &Codecs{}
	for i := range streams {
		s := &streams[i]
		switch s.Kind {
		case KindVideo:
			if c.Video == nil && !s.AttachedPic {
				c.Video = s
			}
		case KindAudio:
			if c.Audio == nil {
				c.Audio = s
			}
		}
	}
	if c.Video == nil && c.Audio == nil {
		return nil
	}
	return c
}

// AudioOnly reports whether the set has audio but no video.
func (c *Codecs) AudioOnly() bool {
	return c != nil && c.Video == nil && c.Audio != nil
}
