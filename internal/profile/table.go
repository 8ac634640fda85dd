package profile

import (
	"math"

	"mediascan/internal/backend"
)

type size struct{ w, h int }

var (
	ntscSizes = []size{{720, 480}, {704, 480}, {544, 480}, {480, 480}, {352, 480}, {352, 240}}
	palSizes  = []size{{720, 576}, {704, 576}, {544, 576}, {480, 576}, {352, 576}, {352, 288}}
	sdSizes   = []size{{720, 480}, {720, 576}, {640, 480}, {352, 288}, {352, 240}, {320, 240}}
)

var mpegExtensions = []string{"mpg", "mpeg", "mpe", "m2v", "m2p", "vob"}
var tsExtensions = []string{"ts", "m2t", "mts", "m2ts"}
var mp4Extensions = []string{"mp4", "m4v", "mov", "3gp", "3gpp"}
var asfExtensions = []string{"asf", "wmv"}

// DefaultTable returns the built-in delivery profiles.
func DefaultTable() Table {
	return Table{
		{
			ID: "MPEG1", MIME: "video/mpeg", Kind: ContainerMPEGPS, Extensions: mpegExtensions,
			Probe: func(in Input) bool {
				v := in.Codecs.Video
				return v.CodecID == "mpeg1video" && (hasSize(v, size{352, 240}) || hasSize(v, size{352, 288}))
			},
		},
		{
			ID: "MPEG_PS_NTSC", MIME: "video/mpeg", Kind: ContainerMPEGPS, Extensions: mpegExtensions,
			Probe: func(in Input) bool {
				v := in.Codecs.Video
				return v.CodecID == "mpeg2video" && inSizes(v, ntscSizes) && nearRate(v, 30000.0/1001.0)
			},
		},
		{
			ID: "MPEG_PS_PAL", MIME: "video/mpeg", Kind: ContainerMPEGPS, Extensions: mpegExtensions,
			Probe: func(in Input) bool {
				v := in.Codecs.Video
				return v.CodecID == "mpeg2video" && inSizes(v, palSizes) && nearRate(v, 25)
			},
		},
		{
			ID: "MPEG_TS_SD_NA_ISO", MIME: "video/mpeg", Kind: ContainerMPEGTS, Extensions: tsExtensions,
			Probe: func(in Input) bool {
				v := in.Codecs.Video
				return v.CodecID == "mpeg2video" && inSizes(v, ntscSizes) && nearRate(v, 30000.0/1001.0)
			},
		},
		{
			ID: "MPEG_TS_SD_EU_ISO", MIME: "video/mpeg", Kind: ContainerMPEGTS, Extensions: tsExtensions,
			Probe: func(in Input) bool {
				v := in.Codecs.Video
				return v.CodecID == "mpeg2video" && inSizes(v, palSizes) && nearRate(v, 25)
			},
		},
		{
			ID: "AVC_TS_MP_SD_AAC_MULT5_ISO", MIME: "video/mpeg", Kind: ContainerMPEGTS, Extensions: tsExtensions,
			Probe: func(in Input) bool {
				v, a := in.Codecs.Video, in.Codecs.Audio
				return v.CodecID == "h264" && inSizes(v, sdSizes) && a != nil && a.CodecID == "aac"
			},
		},
		{
			ID: "AVC_MP4_MP_SD_AAC_MULT5", MIME: "video/mp4", Kind: ContainerMP4, Extensions: mp4Extensions,
			Probe: func(in Input) bool {
				v, a := in.Codecs.Video, in.Codecs.Audio
				return v.CodecID == "h264" && inSizes(v, sdSizes) && a != nil && a.CodecID == "aac"
			},
		},
		{
			ID: "AVC_MP4_MP_HD_720p_AAC", MIME: "video/mp4", Kind: ContainerMP4, Extensions: mp4Extensions,
			Probe: func(in Input) bool {
				v, a := in.Codecs.Video, in.Codecs.Audio
				return v.CodecID == "h264" && hasSize(v, size{1280, 720}) && a != nil && a.CodecID == "aac"
			},
		},
		{
			ID: "WMVMED_BASE", MIME: "video/x-ms-wmv", Kind: ContainerASF, Extensions: asfExtensions,
			Probe: func(in Input) bool {
				v := in.Codecs.Video
				return (v.CodecID == "wmv3" || v.CodecID == "wmv2") && v.Width <= 720 && v.Height <= 576
			},
		},
		{
			ID: "WMVHIGH_FULL", MIME: "video/x-ms-wmv", Kind: ContainerASF, Extensions: asfExtensions,
			Probe: func(in Input) bool {
				v := in.Codecs.Video
				return v.CodecID == "wmv3" && v.Width <= 1920 && v.Height <= 1080
			},
		},
	}
}

func hasSize(s *backend.Stream, sz size) bool {
	return s.Width == sz.w && s.Height == sz.h
}

func inSizes(s *backend.Stream, sizes []size) bool {
	for _, sz := range sizes {
		if hasSize(s, sz) {
			return true
		}
	}
	return false
}

// nearRate accepts a frame rate, or its field rate, within 1%. Streams
// without a frame rate are accepted.
func nearRate(s *backend.Stream, want float64) bool {
	got := s.FrameRate.Float64()
	if got == 0 {
		return true
	}
	return math.Abs(got-want)/want < 0.01 || math.Abs(got-2*want)/(2*want) < 0.01
}
