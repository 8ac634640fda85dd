package profile

import (
	"testing"

	"mediascan/internal/backend"
)

func videoInput(path, format, codec string, w, h int, rate backend.Rational, audio string) Input {
	codecs := &backend.Codecs{Video: &backend.Stream{Kind: backend.KindVideo, CodecID: codec, Width: w, Height: h, FrameRate: rate}}
	if audio != "" {
		codecs.Audio = &backend.Stream{Kind: backend.KindAudio, CodecID: audio}
	}
	return Input{
		Path:         path,
		UseExtension: true,
		Container:    backend.ContainerInfo{FormatName: format},
		Kind:         KindOf(format),
		Codecs:       codecs,
	}
}

var (
	ntsc = backend.Rational{Num: 30000, Den: 1001}
	pal  = backend.Rational{Num: 25, Den: 1}
)

func TestDefaultTable(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		wantID   string
		wantMIME string
		wantOK   bool
	}{
		{
			name:   "MPEG1",
			in:     videoInput("/m/MPEG1.mpg", "mpeg", "mpeg1video", 352, 240, ntsc, "mp2"),
			wantID: "MPEG1", wantMIME: "video/mpeg", wantOK: true,
		},
		{
			name:   "MPEG PS NTSC",
			in:     videoInput("/m/MPEG_PS_NTSC.mpg", "mpeg", "mpeg2video", 720, 480, ntsc, "ac3"),
			wantID: "MPEG_PS_NTSC", wantMIME: "video/mpeg", wantOK: true,
		},
		{
			name:   "MPEG PS PAL",
			in:     videoInput("/m/MPEG_PS_PAL.mpg", "mpeg", "mpeg2video", 720, 576, pal, "mp2"),
			wantID: "MPEG_PS_PAL", wantMIME: "video/mpeg", wantOK: true,
		},
		{
			name:   "MPEG TS NA",
			in:     videoInput("/m/MPEG_TS_SD_NA_ISO.ts", "mpegts", "mpeg2video", 720, 480, ntsc, "ac3"),
			wantID: "MPEG_TS_SD_NA_ISO", wantMIME: "video/mpeg", wantOK: true,
		},
		{
			name:   "AVC MP4",
			in:     videoInput("/m/clip.mp4", "mov,mp4,m4a,3gp,3g2,mj2", "h264", 720, 480, ntsc, "aac"),
			wantID: "AVC_MP4_MP_SD_AAC_MULT5", wantMIME: "video/mp4", wantOK: true,
		},
		{
			name:   "WMV",
			in:     videoInput("/m/clip.wmv", "asf", "wmv3", 640, 480, ntsc, "wmav2"),
			wantID: "WMVMED_BASE", wantMIME: "video/x-ms-wmv", wantOK: true,
		},
		{
			name:   "extension filter rejects",
			in:     videoInput("/m/MPEG1.avi", "mpeg", "mpeg1video", 352, 240, ntsc, ""),
			wantOK: false,
		},
		{
			name:   "HD mpeg2 has no profile",
			in:     videoInput("/m/hd.mpg", "mpeg", "mpeg2video", 1920, 1080, ntsc, ""),
			wantOK: false,
		},
		{
			name:   "matroska has no profile",
			in:     videoInput("/m/clip.mkv", "matroska,webm", "h264", 720, 480, ntsc, "aac"),
			wantOK: false,
		},
	}

	table := DefaultTable()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.Match(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("Match() ok = %v, want %v (got %+v)", ok, tt.wantOK, got)
			}
			if got.ID != tt.wantID || got.MIME != tt.wantMIME {
				t.Errorf("Match() = %+v, want {%s %s}", got, tt.wantID, tt.wantMIME)
			}
		})
	}
}

func TestExtensionFilterDisabled(t *testing.T) {
	in := videoInput("/m/MPEG1.avi", "mpeg", "mpeg1video", 352, 240, ntsc, "")
	in.UseExtension = false
	got, ok := DefaultTable().Match(in)
	if !ok || got.ID != "MPEG1" {
		t.Errorf("Match() = %+v, %v, want MPEG1", got, ok)
	}
}

func TestMatchWithoutVideo(t *testing.T) {
	in := Input{Path: "/m/a.mpg", Kind: ContainerMPEGPS, Codecs: &backend.Codecs{Audio: &backend.Stream{CodecID: "mp2"}}}
	if _, ok := DefaultTable().Match(in); ok {
		t.Error("Match() ok for audio-only input")
	}
	if _, ok := DefaultTable().Match(Input{Path: "/m/a.mpg"}); ok {
		t.Error("Match() ok for nil codecs")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		format string
		want   ContainerKind
	}{
		{"mpeg", ContainerMPEGPS},
		{"mpegts", ContainerMPEGTS},
		{"mpegvideo", ContainerMPEGES},
		{"mov,mp4,m4a,3gp,3g2,mj2", ContainerMP4},
		{"asf", ContainerASF},
		{"avi", ContainerAVI},
		{"matroska,webm", ContainerMatroska},
		{"flv", ContainerFLV},
		{"wav", ContainerUnknown},
		{"", ContainerUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			if got := KindOf(tt.format); got != tt.want {
				t.Errorf("KindOf(%q) = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}

func TestMatcherFunc(t *testing.T) {
	m := MatcherFunc(func(Input) (Match, bool) { return Match{ID: "X", MIME: "video/x"}, true })
	got, ok := m.Match(Input{})
	if !ok || got.ID != "X" {
		t.Errorf("MatcherFunc.Match() = %+v, %v", got, ok)
	}
}
