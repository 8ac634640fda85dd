package video

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"mediascan/internal/backend"
	"mediascan/internal/backend/backendtest"
)

func openFile(t *testing.T, f *backendtest.File) *backendtest.Container {
	t.Helper()
	b := backendtest.New(nil)
	b.Add("/m/clip.mpg", f)
	c, err := b.Open(context.Background(), "/m/clip.mpg", "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := c.FindStreamInfo(context.Background()); err != nil {
		t.Fatalf("FindStreamInfo() error = %v", err)
	}
	return c.(*backendtest.Container)
}

func TestSeekTarget(t *testing.T) {
	tests := []struct {
		name       string
		durationUS int64
		tb         backend.Rational
		want       int64
	}{
		{name: "90kHz ten seconds", durationUS: 10_000_000, tb: backend.Rational{Num: 1, Den: 90000}, want: 90000},
		{name: "millisecond base", durationUS: 300_000, tb: backend.Rational{Num: 1, Den: 1000}, want: 30},
		{name: "unknown duration", durationUS: 0, tb: backend.Rational{Num: 1, Den: 90000}, want: 0},
		{name: "invalid time base", durationUS: 10_000_000, tb: backend.Rational{}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeekTarget(tt.durationUS, tt.tb); got != tt.want {
				t.Errorf("SeekTarget() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSelectFrameKeyframeAtK(t *testing.T) {
	for _, k := range []int{1, 2, 17, 150, 200} {
		t.Run("", func(t *testing.T) {
			// Unknown duration keeps the search starting at packet 1.
			f := backendtest.VideoFile(64, 48, 0, 250, k)
			c := openFile(t, f)

			img, st, err := SelectFrame(context.Background(), c, f.Streams[0], 0)
			if err != nil {
				t.Fatalf("keyframe at %d: SelectFrame() error = %v", k, err)
			}
			if st.Skipped != k-1 {
				t.Errorf("keyframe at %d: Skipped = %d, want %d", k, st.Skipped, k-1)
			}
			if st.Fallback {
				t.Errorf("keyframe at %d: Fallback = true", k)
			}
			if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
				t.Errorf("image size = %v, want 64x48", img.Bounds())
			}
			if c.DecodersOpen() != 0 {
				t.Errorf("DecodersOpen() = %d, want 0", c.DecodersOpen())
			}
		})
	}
}

func TestSelectFrameSeeksToTenPercent(t *testing.T) {
	// 100 packets of 3003 ticks at 90kHz is about 3.34s.
	f := backendtest.VideoFile(32, 32, 3_336_666, 100, 1, 12, 40)
	c := openFile(t, f)

	_, st, err := SelectFrame(context.Background(), c, f.Streams[0], f.Info.DurationUS)
	if err != nil {
		t.Fatalf("SelectFrame() error = %v", err)
	}
	if len(st.Seeks) != 1 || st.Seeks[0] != 30029 {
		t.Errorf("Seeks = %v, want [30029]", st.Seeks)
	}
	// The seek lands on packet 11 (pts 30030); packet 12 is the keyframe.
	if st.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", st.Skipped)
	}
}

func TestSelectFrameNoKeyframeAnywhere(t *testing.T) {
	f := backendtest.VideoFile(32, 32, 3_336_666, 120)
	c := openFile(t, f)

	_, st, err := SelectFrame(context.Background(), c, f.Streams[0], f.Info.DurationUS)
	if err == nil {
		t.Fatal("SelectFrame() error = nil, want failure")
	}
	if backend.Code(err) != backend.CodeInvalidData {
		t.Errorf("Code(err) = %d, want %d", backend.Code(err), backend.CodeInvalidData)
	}
	if !st.Fallback {
		t.Error("Fallback = false, want true")
	}

	zeroSeeks := 0
	for _, s := range c.Seeks()[1:] {
		if s == 0 {
			zeroSeeks++
		}
	}
	if zeroSeeks != 1 || len(c.Seeks()) != 2 {
		t.Errorf("container seeks = %v, want the initial seek then exactly one seek to 0", c.Seeks())
	}
	if c.DecodersOpen() != 0 {
		t.Errorf("DecodersOpen() = %d, want 0", c.DecodersOpen())
	}
}

func TestSelectFrameSkipCapTriggersFallback(t *testing.T) {
	// The only keyframe is beyond the cap, so the search gives up and the
	// first frame is decoded instead.
	f := backendtest.VideoFile(16, 16, 0, 400, 300)
	f.DecodeFunc = func(pkt *backend.Packet) (*backend.Frame, error) {
		return backendtest.GrayFrame(16, 16, 7), nil
	}
	c := openFile(t, f)

	_, st, err := SelectFrame(context.Background(), c, f.Streams[0], 0)
	if err != nil {
		t.Fatalf("SelectFrame() error = %v", err)
	}
	if !st.Fallback {
		t.Error("Fallback = false, want true")
	}
	if st.Skipped != MaxSkippedPackets {
		t.Errorf("Skipped = %d, want %d", st.Skipped, MaxSkippedPackets)
	}
	if !reflect.DeepEqual(st.Seeks, []int64{0, 0}) {
		t.Errorf("Seeks = %v, want [0 0]", st.Seeks)
	}
	// 200 skipped reads plus the one first-frame read.
	if c.Reads() != MaxSkippedPackets+1 {
		t.Errorf("Reads() = %d, want %d", c.Reads(), MaxSkippedPackets+1)
	}
}

func TestSelectFrameSkipsOtherStreamsAndInvalidPositions(t *testing.T) {
	f := backendtest.VideoFile(16, 16, 0, 0)
	f.Streams = append(f.Streams, backend.Stream{Index: 1, Kind: backend.KindAudio, CodecID: "mp2"})
	f.Packets = []backend.Packet{
		{StreamIndex: 1, Pos: 0, Keyframe: true},
		{StreamIndex: 0, Pos: -1, Keyframe: true},
		{StreamIndex: 0, Pos: 100, Keyframe: false},
		{StreamIndex: 1, Pos: 200, Keyframe: true},
		{StreamIndex: 0, Pos: 300, Keyframe: true, PTS: 9},
	}
	c := openFile(t, f)

	img, st, err := SelectFrame(context.Background(), c, f.Streams[0], 0)
	if err != nil {
		t.Fatalf("SelectFrame() error = %v", err)
	}
	if st.Skipped != 4 {
		t.Errorf("Skipped = %d, want 4", st.Skipped)
	}
	if img.Pix[0] != 9 {
		t.Errorf("decoded pixel = %d, want 9 from packet pts 9", img.Pix[0])
	}
}

func TestSelectFrameDecoderNeedsMoreInput(t *testing.T) {
	f := backendtest.VideoFile(16, 16, 0, 10, 1, 2, 3)
	calls := 0
	f.DecodeFunc = func(pkt *backend.Packet) (*backend.Frame, error) {
		calls++
		if calls < 3 {
			return nil, backend.ErrAgain
		}
		return backendtest.GrayFrame(16, 16, 1), nil
	}
	c := openFile(t, f)

	_, st, err := SelectFrame(context.Background(), c, f.Streams[0], 0)
	if err != nil {
		t.Fatalf("SelectFrame() error = %v", err)
	}
	if st.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", st.Skipped)
	}
}

func TestSelectFrameEmptyStream(t *testing.T) {
	f := backendtest.VideoFile(16, 16, 0, 0)
	c := openFile(t, f)

	_, st, err := SelectFrame(context.Background(), c, f.Streams[0], 0)
	if !errors.Is(err, ErrNoFrame) {
		t.Errorf("SelectFrame() error = %v, want ErrNoFrame", err)
	}
	if !st.Fallback {
		t.Error("Fallback = false, want true")
	}
}

func TestSelectFrameCancelled(t *testing.T) {
	f := backendtest.VideoFile(16, 16, 0, 10, 5)
	c := openFile(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := SelectFrame(ctx, c, f.Streams[0], 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SelectFrame() error = %v, want context.Canceled", err)
	}
	if c.DecodersOpen() != 0 {
		t.Errorf("DecodersOpen() = %d, want 0", c.DecodersOpen())
	}
}
