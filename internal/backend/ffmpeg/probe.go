package ffmpeg

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"mediascan/internal/backend"
)

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name"`
	StartTime      string `json:"start_time"`
	Duration       string `json:"duration"`
	Size           string `json:"size"`
	BitRate        string `json:"bit_rate"`
}

type probeStream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecLongName string `json:"codec_long_name"`
	Profile       string `json:"profile"`
	CodecType     string `json:"codec_type"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	PixFmt        string `json:"pix_fmt"`
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	RFrameRate    string `json:"r_frame_rate"`
	AvgFrameRate  string `json:"avg_frame_rate"`
	TimeBase      string `json:"time_base"`
	BitRate       string `json:"bit_rate"`
	Disposition   struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

func probeArgs(path, format string) []string {
	args := []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams"}
	if format != "" {
		args = append(args, "-f", format)
	}
	return append(args, path)
}

// parseProbe decodes an ffprobe JSON report.
func parseProbe(data []byte) (backend.ContainerInfo, []backend.Stream, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return backend.ContainerInfo{}, nil, &backend.Error{Op: "probe", Code: backend.CodeInvalidData,
			Err: fmt.Errorf("parse ffprobe output: %w", err)}
	}
	if out.Format.FormatName == "" && len(out.Streams) == 0 {
		return backend.ContainerInfo{}, nil, &backend.Error{Op: "probe", Code: backend.CodeInvalidData,
			Err: fmt.Errorf("ffprobe reported no format and no streams")}
	}

	info := backend.ContainerInfo{
		FormatName:     out.Format.FormatName,
		FormatLongName: out.Format.FormatLongName,
		DurationUS:     secondsToUS(out.Format.Duration),
		StartTimeUS:    secondsToUS(out.Format.StartTime),
		BitRate:        parseInt(out.Format.BitRate),
		Size:           parseInt(out.Format.Size),
	}

	streams := make([]backend.Stream, 0, len(out.Streams))
	for _, s := range out.Streams {
		st := backend.Stream{
			Index:         s.Index,
			Kind:          streamKind(s.CodecType),
			CodecID:       s.CodecName,
			CodecLongName: s.CodecLongName,
			Profile:       s.Profile,
			Width:         s.Width,
			Height:        s.Height,
			PixFmt:        s.PixFmt,
			TimeBase:      backend.ParseRational(s.TimeBase),
			BitRate:       parseInt(s.BitRate),
			SampleRate:    int(parseInt(s.SampleRate)),
			Channels:      s.Channels,
			AttachedPic:   s.Disposition.AttachedPic != 0,
		}
		st.FrameRate = backend.ParseRational(s.AvgFrameRate)
		if !st.FrameRate.Valid() {
			st.FrameRate = backend.ParseRational(s.RFrameRate)
		}
		streams = append(streams, st)
	}
	return info, streams, nil
}

func streamKind(codecType string) backend.StreamKind {
	switch codecType {
	case "video":
		return backend.KindVideo
	case "audio":
		return backend.KindAudio
	case "subtitle":
		return backend.KindSubtitle
	case "data":
		return backend.KindData
	default:
		return backend.KindOther
	}
}

func secondsToUS(s string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Round(f * 1e6))
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

var packetEntries = "packet=stream_index,pts,dts,duration,size,pos,flags"

func packetArgs(path, format string, startSeconds float64) []string {
	args := []string{"-v", "error"}
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, "-show_packets", "-show_entries", packetEntries, "-of", "compact=p=0")
	if startSeconds > 0 {
		args = append(args, "-read_intervals", strconv.FormatFloat(startSeconds, 'f', 6, 64)+"%")
	}
	return append(args, path)
}

// parsePacketLine parses one line of "-of compact=p=0" packet output, for
// example "stream_index=0|pts=3003|dts=0|duration=3003|size=4096|pos=564|flags=K__".
func parsePacketLine(line string) (backend.Packet, error) {
	pkt := backend.Packet{PTS: backend.NoPTS, DTS: backend.NoPTS, Pos: -1}
	seenIndex := false

	for _, field := range strings.Split(strings.TrimSpace(line), "|") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		na := value == "N/A"
		switch key {
		case "stream_index":
			n, err := strconv.Atoi(value)
			if err != nil {
				return pkt, fmt.Errorf("bad stream_index %q", value)
			}
			pkt.StreamIndex = n
			seenIndex = true
		case "pts":
			if !na {
				pkt.PTS = parseInt(value)
			}
		case "dts":
			if !na {
				pkt.DTS = parseInt(value)
			}
		case "duration":
			if !na {
				pkt.Duration = parseInt(value)
			}
		case "size":
			pkt.Size = int(parseInt(value))
		case "pos":
			if !na {
				pkt.Pos = parseInt(value)
			}
		case "flags":
			pkt.Keyframe = strings.HasPrefix(value, "K")
		}
	}

	if !seenIndex {
		return pkt, fmt.Errorf("packet line without stream_index: %q", line)
	}
	return pkt, nil
}
