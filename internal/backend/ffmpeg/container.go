package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"mediascan/internal/backend"
	"mediascan/internal/logging"
	"mediascan/internal/metrics"
)

// Container is a file opened through the ffmpeg backend. The file handle
// is held for the container's lifetime; the tools read the path.
type Container struct {
	b      *Backend
	path   string
	format string
	file   *os.File

	mu      sync.Mutex
	probed  bool
	info    backend.ContainerInfo
	streams []backend.Stream

	startSeconds float64
	reader       *packetReader
	closed       bool
}

var _ backend.Container = (*Container)(nil)

func openError(err error) error {
	code := backend.CodeIO
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = backend.CodeNotFound
	case errors.Is(err, fs.ErrPermission):
		code = backend.CodePermission
	}
	return &backend.Error{Op: "open", Code: code, Err: err}
}

// FindStreamInfo runs ffprobe on the file.
func (c *Container) FindStreamInfo(ctx context.Context) error {
	out, err := c.b.run(ctx, "ffprobe", "probe", c.b.ffprobe, probeArgs(c.path, c.format)...)
	if err != nil {
		return err
	}
	info, streams, err := parseProbe(out)
	if err != nil {
		return err
	}
	if info.Size == 0 {
		if fi, err := c.file.Stat(); err == nil {
			info.Size = fi.Size()
		}
	}

	c.mu.Lock()
	c.info, c.streams, c.probed = info, streams, true
	c.mu.Unlock()
	return nil
}

func (c *Container) Info() backend.ContainerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *Container) Streams() []backend.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]backend.Stream, len(c.streams))
	copy(out, c.streams)
	return out
}

// Seek restarts packet reading at ts in the time base of the given stream.
// ffprobe seeks to the keyframe at or before the requested time.
func (c *Container) Seek(_ context.Context, streamIndex int, ts int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &backend.Error{Op: "seek", Code: backend.CodeInvalidArg, Err: os.ErrClosed}
	}
	if streamIndex < 0 || streamIndex >= len(c.streams) {
		return &backend.Error{Op: "seek", Code: backend.CodeInvalidArg,
			Err: fmt.Errorf("no stream %d", streamIndex)}
	}

	c.stopReaderLocked()
	c.startSeconds = 0
	if ts > 0 {
		c.startSeconds = float64(ts) * c.streams[streamIndex].TimeBase.Float64()
	}
	return nil
}

// ReadPacket returns the next packet from the running ffprobe process,
// starting one at the current seek position if needed.
func (c *Container) ReadPacket(ctx context.Context) (*backend.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &backend.Error{Op: "read", Code: backend.CodeInvalidArg, Err: os.ErrClosed}
	}
	if c.reader == nil {
		r, err := c.b.startPacketReader(c.path, c.format, c.startSeconds)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		c.reader = r
	}
	r := c.reader
	c.mu.Unlock()

	return r.next()
}

// OpenDecoder checks that ffmpeg can decode the stream.
func (c *Container) OpenDecoder(ctx context.Context, stream backend.Stream) (backend.Decoder, error) {
	if stream.Kind != backend.KindVideo {
		return nil, &backend.Error{Op: "open decoder", Code: backend.CodeInvalidArg,
			Err: fmt.Errorf("stream %d is %s, not video", stream.Index, stream.Kind)}
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, &backend.Error{Op: "open decoder", Code: backend.CodeInvalidData,
			Err: fmt.Errorf("stream %d has no dimensions", stream.Index)}
	}
	if err := c.b.Register(ctx); err == nil {
		if _, ok := c.b.decoders[stream.CodecID]; !ok {
			return nil, &backend.Error{Op: "open decoder", Code: backend.CodeNoDecoder,
				Err: fmt.Errorf("no decoder for %q", stream.CodecID)}
		}
	}
	return &Decoder{c: c, stream: stream, startUS: c.Info().StartTimeUS}, nil
}

func (c *Container) Stat() (fs.FileInfo, error) {
	return c.file.Stat()
}

// Close stops any packet reader and releases the file handle. Later calls
// do nothing.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.stopReaderLocked()
	return c.file.Close()
}

func (c *Container) stopReaderLocked() {
	if c.reader != nil {
		c.reader.stop()
		c.reader = nil
	}
}

// packetReader streams packet lines from an ffprobe process.
type packetReader struct {
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	scanner *bufio.Scanner
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	start   time.Time
	done    bool
	err     error
}

func (b *Backend) startPacketReader(path, format string, startSeconds float64) (*packetReader, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, b.ffprobe, packetArgs(path, format, startSeconds)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &backend.Error{Op: "read", Code: backend.CodeIO, Err: err}
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		metrics.BackendCommandsTotal.WithLabelValues("ffprobe", "error").Inc()
		return nil, &backend.Error{Op: "read", Code: backend.CodeIO, Err: err}
	}
	logging.Debug("packet reader started for %s at %.3fs", path, startSeconds)

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 4096), 64*1024)
	return &packetReader{
		cmd:     cmd,
		cancel:  cancel,
		scanner: sc,
		stdout:  stdout,
		stderr:  stderr,
		start:   time.Now(),
	}, nil
}

func (r *packetReader) next() (*backend.Packet, error) {
	if r.done {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}

	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		pkt, err := parsePacketLine(line)
		if err != nil {
			logging.Debug("skipping packet line: %v", err)
			continue
		}
		return &pkt, nil
	}

	r.finish(r.scanner.Err())
	if r.err != nil {
		return nil, r.err
	}
	return nil, io.EOF
}

// finish waits for the process and records how it ended.
func (r *packetReader) finish(scanErr error) {
	if r.done {
		return
	}
	r.done = true
	waitErr := r.cmd.Wait()
	r.cancel()

	metrics.BackendCommandDuration.WithLabelValues("ffprobe").Observe(time.Since(r.start).Seconds())
	switch {
	case scanErr != nil:
		r.err = &backend.Error{Op: "read", Code: backend.CodeIO, Err: scanErr}
	case waitErr != nil:
		r.err = toolError("read", waitErr, r.stderr.String())
	}
	if r.err != nil {
		metrics.BackendCommandsTotal.WithLabelValues("ffprobe", "error").Inc()
	} else {
		metrics.BackendCommandsTotal.WithLabelValues("ffprobe", "success").Inc()
	}
}

// stop kills a reader that has not reached the end of its output.
func (r *packetReader) stop() {
	if r.done {
		return
	}
	r.done = true
	r.cancel()
	// Unblock the process if it is writing into a full pipe.
	_ = r.stdout.Close()
	_ = r.cmd.Wait()
	metrics.BackendCommandDuration.WithLabelValues("ffprobe").Observe(time.Since(r.start).Seconds())
	metrics.BackendCommandsTotal.WithLabelValues("ffprobe", "stopped").Inc()
}
