// Package backendtest provides an in-memory backend.Backend for tests.
//
// A File scripts everything a container reports: probe results, the packet
// sequence, and how decoding behaves. Containers record seeks, reads and
// closes so tests can assert on the exact access pattern.
package backendtest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"mediascan/internal/backend"
)

// File describes one synthetic media file.
type File struct {
	Info    backend.ContainerInfo
	Streams []backend.Stream
	Packets []backend.Packet

	Size    int64
	ModTime time.Time

	OpenErr  error
	ProbeErr error

	// DecodeFunc overrides decoding. The default decodes keyframes into a
	// gray frame of the stream's size and rejects other packets.
	DecodeFunc func(pkt *backend.Packet) (*backend.Frame, error)
}

// Backend serves Files by path.
type Backend struct {
	mu       sync.Mutex
	files    map[string]*File
	decoders map[string]string

	containers []*Container
	formatHint map[string]string
}

// New returns an empty backend with the given decoders registered
// (codec id to decoder name).
func New(decoders map[string]string) *Backend {
	if decoders == nil {
		decoders = map[string]string{}
	}
	return &Backend{
		files:      make(map[string]*File),
		decoders:   decoders,
		formatHint: make(map[string]string),
	}
}

// Add registers f under path.
func (b *Backend) Add(path string, f *File) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[path] = f
}

// SetFormatHint maps a file extension (without dot) to a format hint.
func (b *Backend) SetFormatHint(ext, format string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.formatHint[ext] = format
}

// Containers returns every container opened so far.
func (b *Backend) Containers() []*Container {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Container, len(b.containers))
	copy(out, b.containers)
	return out
}

// OpenCount returns the number of containers that are opened and not closed.
func (b *Backend) OpenCount() int {
	n := 0
	for _, c := range b.Containers() {
		if c.CloseCount() == 0 {
			n++
		}
	}
	return n
}

func (b *Backend) Open(_ context.Context, path, formatHint string) (backend.Container, error) {
	b.mu.Lock()
	f, ok := b.files[path]
	b.mu.Unlock()

	if !ok {
		return nil, &backend.Error{Op: "open", Code: backend.CodeNotFound, Err: fs.ErrNotExist}
	}
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}

	c := &Container{file: f, path: path, FormatHint: formatHint}
	b.mu.Lock()
	b.containers = append(b.containers, c)
	b.mu.Unlock()
	return c, nil
}

func (b *Backend) FormatForPath(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return b.formatHint[ext[1:]]
}

func (b *Backend) FindDecoder(codecID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.decoders[codecID]
	return name, ok
}

// Container is an open synthetic file.
type Container struct {
	file *File
	path string

	// FormatHint is the hint passed to Open.
	FormatHint string

	mu             sync.Mutex
	probed         bool
	cursor         int
	seeks          []int64
	reads          int
	closes         int
	decodersOpened int
	decodersClosed int
}

func (c *Container) FindStreamInfo(context.Context) error {
	if c.file.ProbeErr != nil {
		return c.file.ProbeErr
	}
	c.mu.Lock()
	c.probed = true
	c.mu.Unlock()
	return nil
}

func (c *Container) Info() backend.ContainerInfo { return c.file.Info }

func (c *Container) Streams() []backend.Stream { return c.file.Streams }

// Seek moves the cursor to the first packet of streamIndex whose PTS is at
// or after ts. Seeking to 0 always rewinds to the first packet.
func (c *Container) Seek(_ context.Context, streamIndex int, ts int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seeks = append(c.seeks, ts)
	if ts <= 0 {
		c.cursor = 0
		return nil
	}
	for i, p := range c.file.Packets {
		if p.StreamIndex == streamIndex && p.PTS >= ts {
			c.cursor = i
			return nil
		}
	}
	c.cursor = len(c.file.Packets)
	return nil
}

func (c *Container) ReadPacket(ctx context.Context) (*backend.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reads++
	if c.cursor >= len(c.file.Packets) {
		return nil, io.EOF
	}
	p := c.file.Packets[c.cursor]
	c.cursor++
	return &p, nil
}

func (c *Container) OpenDecoder(_ context.Context, stream backend.Stream) (backend.Decoder, error) {
	c.mu.Lock()
	c.decodersOpened++
	c.mu.Unlock()
	return &decoder{c: c, stream: stream}, nil
}

func (c *Container) Stat() (fs.FileInfo, error) {
	return fileInfo{name: filepath.Base(c.path), size: c.file.Size, modTime: c.file.ModTime}, nil
}

func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

// Seeks returns the seek targets requested so far.
func (c *Container) Seeks() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.seeks))
	copy(out, c.seeks)
	return out
}

// Reads returns the number of ReadPacket calls.
func (c *Container) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// CloseCount returns the number of Close calls.
func (c *Container) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// DecodersOpen returns the number of decoders opened and not closed.
func (c *Container) DecodersOpen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decodersOpened - c.decodersClosed
}

type decoder struct {
	c      *Container
	stream backend.Stream
	closed bool
}

func (d *decoder) Decode(_ context.Context, pkt *backend.Packet) (*backend.Frame, error) {
	if d.c.file.DecodeFunc != nil {
		return d.c.file.DecodeFunc(pkt)
	}
	if !pkt.Keyframe {
		return nil, &backend.Error{Op: "decode", Code: backend.CodeInvalidData,
			Err: fmt.Errorf("packet at pts %d references missing frames", pkt.PTS)}
	}
	return GrayFrame(d.stream.Width, d.stream.Height, byte(pkt.PTS)), nil
}

func (d *decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.c.mu.Lock()
	d.c.decodersClosed++
	d.c.mu.Unlock()
	return nil
}

// GrayFrame returns a uniform gray frame.
func GrayFrame(width, height int, value byte) *backend.Frame {
	data := make([]byte, width*height)
	for i := range data {
		data[i] = value
	}
	return &backend.Frame{Width: width, Height: height, PixFmt: backend.PixFmtGray, Data: data}
}

// VideoFile builds a single-stream video file with a 1/90000 time base.
// keyframes lists the 1-based packet numbers that are keyframes.
func VideoFile(width, height int, durationUS int64, packets int, keyframes ...int) *File {
	isKey := make(map[int]bool, len(keyframes))
	for _, k := range keyframes {
		isKey[k] = true
	}

	f := &File{
		Info: backend.ContainerInfo{FormatName: "mpeg", DurationUS: durationUS, BitRate: 1150000},
		Streams: []backend.Stream{{
			Index:     0,
			Kind:      backend.KindVideo,
			CodecID:   "mpeg1video",
			Width:     width,
			Height:    height,
			TimeBase:  backend.Rational{Num: 1, Den: 90000},
			FrameRate: backend.Rational{Num: 30000, Den: 1001},
		}},
		Size:    int64(packets) * 4096,
		ModTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	for i := 1; i <= packets; i++ {
		f.Packets = append(f.Packets, backend.Packet{
			StreamIndex: 0,
			PTS:         int64(i-1) * 3003,
			DTS:         int64(i-1) * 3003,
			Duration:    3003,
			Size:        4096,
			Pos:         int64(i-1) * 4096,
			Keyframe:    isKey[i],
		})
	}
	return f
}

type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return 0o644 }
func (fi fileInfo) ModTime() time.Time { return fi.modTime }
func (fi fileInfo) IsDir() bool        { return false }
func (fi fileInfo) Sys() any           { return nil }
