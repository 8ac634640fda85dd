package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"mediascan/internal/backend"
	"mediascan/internal/logging"
	"mediascan/internal/metrics"
)

const (
	// MaxSkippedPackets bounds the keyframe search. Reaching it triggers
	// the fallback to the first frame of the file.
	MaxSkippedPackets = 200

	// SeekFraction is where in the file the keyframe search starts.
	SeekFraction = 0.10
)

// ErrNoFrame is returned when neither the keyframe search nor the
// first-frame fallback yields a packet to decode.
var ErrNoFrame = errors.New("no usable video frame")

// Stats describes one frame selection.
type Stats struct {
	// Skipped counts packets passed over before the selected one.
	Skipped int
	// Seeks lists the seek targets issued, in stream time base units.
	Seeks []int64
	// Fallback is set when the search restarted from position zero.
	Fallback bool
}

// SeekTarget returns SeekFraction of durationUS expressed in tb units.
// Unknown durations or time bases give 0.
func SeekTarget(durationUS int64, tb backend.Rational) int64 {
	if durationUS <= 0 || !tb.Valid() {
		return 0
	}
	durationTB := float64(durationUS) / 1e6 / tb.Float64()
	return int64(durationTB * SeekFraction)
}

// SelectFrame picks and decodes the representative frame of stream vs.
//
// It seeks to SeekTarget and reads forward, skipping packets from other
// streams, packets with a negative byte offset, and non-keyframes. If the
// file ends or MaxSkippedPackets packets have been skipped first, it seeks
// back to zero once and takes the first packet of the stream whatever its
// type. The decoder and conversion state are released on every path.
func SelectFrame(ctx context.Context, c backend.Container, vs backend.Stream, durationUS int64) (*image.RGBA, Stats, error) {
	var st Stats

	dec, err := c.OpenDecoder(ctx, vs)
	if err != nil {
		metrics.FrameSelectionsTotal.WithLabelValues("failed").Inc()
		return nil, st, fmt.Errorf("open decoder for stream %d: %w", vs.Index, err)
	}
	defer dec.Close()

	img, err := selectFrame(ctx, c, dec, vs, durationUS, &st)

	switch {
	case err != nil:
		metrics.FrameSelectionsTotal.WithLabelValues("failed").Inc()
	case st.Fallback:
		metrics.FrameSelectionsTotal.WithLabelValues("fallback").Inc()
	default:
		metrics.FrameSelectionsTotal.WithLabelValues("keyframe").Inc()
	}
	if st.Fallback {
		metrics.FrameSelectionFallbacks.Inc()
	}
	metrics.FrameSelectionSkippedPackets.Observe(float64(st.Skipped))

	return img, st, err
}

func selectFrame(ctx context.Context, c backend.Container, dec backend.Decoder, vs backend.Stream, durationUS int64, st *Stats) (*image.RGBA, error) {
	target := SeekTarget(durationUS, vs.TimeBase)
	st.Seeks = append(st.Seeks, target)
	if err := c.Seek(ctx, vs.Index, target); err != nil {
		// Reading continues from wherever the demuxer is.
		logging.Debug("seek to %d on stream %d failed: %v", target, vs.Index, err)
	}

	fallback := func() error {
		st.Fallback = true
		st.Seeks = append(st.Seeks, 0)
		if err := c.Seek(ctx, vs.Index, 0); err != nil {
			return fmt.Errorf("seek to start: %w", err)
		}
		return nil
	}

	// wrongStream counts other-stream packets read after the fallback.
	wrongStream := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !st.Fallback && st.Skipped >= MaxSkippedPackets {
			logging.Debug("no keyframe within %d packets, using first frame", st.Skipped)
			if err := fallback(); err != nil {
				return nil, err
			}
			continue
		}

		pkt, err := c.ReadPacket(ctx)
		if err != nil {
			if st.Fallback {
				if errors.Is(err, io.EOF) {
					return nil, ErrNoFrame
				}
				return nil, fmt.Errorf("read first frame: %w", err)
			}
			if errors.Is(err, io.EOF) {
				logging.Debug("end of stream after %d skipped packets, using first frame", st.Skipped)
				if err := fallback(); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("read packet: %w", err)
		}

		if pkt.StreamIndex != vs.Index {
			if st.Fallback {
				wrongStream++
				if wrongStream >= MaxSkippedPackets {
					return nil, ErrNoFrame
				}
				continue
			}
			st.Skipped++
			continue
		}

		if pkt.Pos < 0 {
			if st.Fallback {
				return nil, fmt.Errorf("first frame has invalid position: %w", ErrNoFrame)
			}
			st.Skipped++
			continue
		}

		if !pkt.Keyframe && !st.Fallback {
			st.Skipped++
			continue
		}

		frame, err := dec.Decode(ctx, pkt)
		if err != nil {
			if errors.Is(err, backend.ErrAgain) && !st.Fallback {
				st.Skipped++
				continue
			}
			return nil, fmt.Errorf("decode packet at pts %d: %w", pkt.PTS, err)
		}

		return convert(frame)
	}
}

func convert(frame *backend.Frame) (*image.RGBA, error) {
	sc, err := backend.NewScaler(frame.Width, frame.Height, frame.PixFmt)
	if err != nil {
		return nil, fmt.Errorf("create scaler: %w", err)
	}
	defer sc.Close()

	img, err := sc.Scale(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}
