package ffmpeg

import (
	"context"
	"fmt"
	"strconv"

	"mediascan/internal/backend"
)

// Decoder extracts single frames of one video stream with ffmpeg.
type Decoder struct {
	c       *Container
	stream  backend.Stream
	startUS int64
}

var _ backend.Decoder = (*Decoder)(nil)

// Decode returns the frame presented at pkt's timestamp as packed RGB.
// Non-keyframes decode too since ffmpeg seeks accurately from the
// preceding keyframe.
func (d *Decoder) Decode(ctx context.Context, pkt *backend.Packet) (*backend.Frame, error) {
	ts := pkt.PTS
	if ts == backend.NoPTS {
		ts = pkt.DTS
	}
	if ts == backend.NoPTS {
		ts = 0
	}

	offset := float64(ts)*d.stream.TimeBase.Float64() - float64(d.startUS)/1e6
	if offset < 0 {
		offset = 0
	}

	out, err := d.c.b.run(ctx, "ffmpeg", "decode", d.c.b.ffmpeg, decodeArgs(d.c.path, d.c.format, d.stream.Index, offset)...)
	if err != nil {
		return nil, err
	}

	want := d.stream.Width * d.stream.Height * 3
	if len(out) == 0 {
		return nil, &backend.Error{Op: "decode", Code: backend.CodeInvalidData,
			Err: fmt.Errorf("no frame at %.3fs", offset)}
	}
	if len(out) < want {
		return nil, &backend.Error{Op: "decode", Code: backend.CodeInvalidData,
			Err: fmt.Errorf("short frame: got %d bytes, want %d", len(out), want)}
	}

	return &backend.Frame{
		Width:  d.stream.Width,
		Height: d.stream.Height,
		PixFmt: backend.PixFmtRGB24,
		Data:   out[:want],
		PTS:    ts,
	}, nil
}

// Close is a no-op; each Decode call runs its own process.
func (d *Decoder) Close() error {
	return nil
}

func decodeArgs(path, format string, streamIndex int, offset float64) []string {
	args := []string{"-v", "error", "-nostdin", "-noautorotate"}
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args,
		"-ss", strconv.FormatFloat(offset, 'f', 6, 64),
		"-i", path,
		"-map", "0:"+strconv.Itoa(streamIndex),
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	return args
}
