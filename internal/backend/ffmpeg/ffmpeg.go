package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mediascan/internal/backend"
	"mediascan/internal/filesystem"
	"mediascan/internal/logging"
	"mediascan/internal/metrics"
)

// Config locates the tools. Empty paths are resolved through PATH.
type Config struct {
	FFprobePath string `yaml:"ffprobe"`
	FFmpegPath  string `yaml:"ffmpeg"`
}

// Backend runs ffprobe and ffmpeg.
type Backend struct {
	ffprobe string
	ffmpeg  string

	decodersOnce sync.Once
	decoders     map[string]string
	decodersErr  error
}

var _ backend.Backend = (*Backend)(nil)

// New resolves the tool paths. It fails when either tool is missing.
func New(cfg Config) (*Backend, error) {
	probe, err := lookTool(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}
	mpeg, err := lookTool(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	logging.Debug("Using ffprobe: %s", probe)
	logging.Debug("Using ffmpeg: %s", mpeg)
	return &Backend{ffprobe: probe, ffmpeg: mpeg}, nil
}

func lookTool(configured, name string) (string, error) {
	if configured == "" {
		configured = name
	}
	path, err := exec.LookPath(configured)
	if err != nil {
		return "", fmt.Errorf("%s not found: %w", name, err)
	}
	return path, nil
}

// Available reports whether both tools can be found on PATH.
func Available() bool {
	_, err := New(Config{})
	return err == nil
}

// Register loads the decoder list. It runs the tool once per Backend;
// later calls return the first result.
func (b *Backend) Register(ctx context.Context) error {
	b.decodersOnce.Do(func() {
		out, err := b.run(ctx, "ffmpeg", "decoders", b.ffmpeg, "-hide_banner", "-decoders")
		if err != nil {
			b.decodersErr = err
			return
		}
		b.decoders = parseDecoders(out)
		logging.Info("ffmpeg backend registered with %d decoders", len(b.decoders))
	})
	return b.decodersErr
}

// Open checks that path is readable and returns an unprobed container.
func (b *Backend) Open(ctx context.Context, path, formatHint string) (backend.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, openError(err)
	}
	return &Container{b: b, path: path, format: formatHint, file: f}, nil
}

// FindDecoder reports whether ffmpeg can decode codecID. The decoder list
// is loaded on first use.
func (b *Backend) FindDecoder(codecID string) (string, bool) {
	if err := b.Register(context.Background()); err != nil {
		logging.Debug("decoder list unavailable: %v", err)
		return "", false
	}
	name, ok := b.decoders[codecID]
	return name, ok
}

var formatHints = map[string]string{
	"mpg": "mpeg", "mpeg": "mpeg", "m2p": "mpeg", "vob": "mpeg",
	"ts": "mpegts", "m2t": "mpegts", "m2ts": "mpegts", "mts": "mpegts",
	"mp4": "mov", "m4v": "mov", "mov": "mov", "3gp": "mov", "3g2": "mov", "3gp2": "mov", "3gpp": "mov",
	"mkv": "matroska", "webm": "matroska",
	"avi": "avi", "divx": "avi", "xvid": "avi",
	"asf": "asf", "wmv": "asf",
	"flv": "flv",
}

// FormatForPath maps well-known extensions to ffmpeg demuxer names.
func (b *Backend) FormatForPath(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return formatHints[ext]
}

// run executes a tool to completion and returns its standard output.
func (b *Backend) run(ctx context.Context, tool, op, bin string, args ...string) ([]byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.BackendCommandDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendCommandsTotal.WithLabelValues(tool, "error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, toolError(op, err, stderr.String())
	}
	metrics.BackendCommandsTotal.WithLabelValues(tool, "success").Inc()
	return stdout.Bytes(), nil
}

// toolError maps a failed run to a backend error code using the
// diagnostic text.
func toolError(op string, err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	code := backend.CodeUnknown

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		code = backend.CodeIO
	}

	switch {
	case strings.Contains(msg, "No such file or directory"):
		code = backend.CodeNotFound
	case strings.Contains(msg, "Permission denied"):
		code = backend.CodePermission
	case strings.Contains(msg, "Cannot allocate memory"):
		code = backend.CodeNoMemory
	case strings.Contains(msg, "Invalid data found"),
		strings.Contains(msg, "moov atom not found"),
		strings.Contains(msg, "could not find codec parameters"):
		code = backend.CodeInvalidData
	case strings.Contains(msg, "Decoder not found"),
		strings.Contains(msg, "Failed to find decoder"):
		code = backend.CodeNoDecoder
	case strings.Contains(msg, "Invalid argument"):
		code = backend.CodeInvalidArg
	}

	if msg != "" {
		err = fmt.Errorf("%w: %s", err, firstLine(msg))
	}
	return &backend.Error{Op: op, Code: code, Err: err}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// parseDecoders reads the table printed by "ffmpeg -decoders". Video
// decoders are keyed by name.
func parseDecoders(out []byte) map[string]string {
	decoders := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !inTable {
			inTable = strings.HasPrefix(line, "---")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		if fields[0][0] != 'V' && fields[0][0] != 'A' {
			continue
		}
		decoders[fields[1]] = fields[1]
	}
	return decoders
}
