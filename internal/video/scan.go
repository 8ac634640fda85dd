package video

import (
	"context"
	"fmt"

	"mediascan/internal/backend"
	"mediascan/internal/filesystem"
	"mediascan/internal/logging"
	"mediascan/internal/profile"
	"mediascan/internal/result"
)

// Scanner fills in results for video files.
type Scanner struct {
	Backend backend.Backend
	// Matcher may be nil, in which case no profile is reported.
	Matcher profile.Matcher
	// Thumbnails is the number of thumbnail passes to run per file, one per
	// configured thumbnail spec.
	Thumbnails int
}

// Scan opens r.Path, fills r with container and video metadata and
// extracts thumbnails. It reports whether the scan succeeded. On failure
// r.Err is set, except for audio-only files and files with no usable
// streams, which fail without an error so the caller can route them
// elsewhere.
//
// On success the open container is owned by r and released with it.
func (s *Scanner) Scan(ctx context.Context, r *result.Result) bool {
	hint := ""
	if r.Flags.Has(result.FlagUseExtension) {
		hint = s.Backend.FormatForPath(r.Path)
		if hint != "" {
			logging.Debug("Using format hint %s for %s", hint, r.Path)
		}
	}

	c, err := s.Backend.Open(ctx, r.Path, hint)
	if err != nil {
		r.Fail(result.NewError(r.Path, result.KindFileOpenFailed, "Unable to open file for reading", 0, err))
		return false
	}

	if err := c.FindStreamInfo(ctx); err != nil {
		r.Fail(result.NewError(r.Path, result.KindStreamProbeFailed, "Unable to find stream info", 0, err))
		if cerr := c.Close(); cerr != nil {
			logging.Debug("closing %s after failed probe: %v", r.Path, cerr)
		}
		return false
	}
	r.AttachContainer(c)

	codecs := backend.ProbeCodecs(c.Streams())
	if codecs == nil {
		logging.Debug("No audio or video streams in %s", r.Path)
		return false
	}
	if codecs.AudioOnly() {
		logging.Debug("%s is audio-only, not scanning as video", r.Path)
		return false
	}

	info := c.Info()
	if s.Matcher != nil {
		m, ok := s.Matcher.Match(profile.Input{
			Path:         r.Path,
			UseExtension: r.Flags.Has(result.FlagUseExtension),
			Container:    info,
			Kind:         profile.KindOf(info.FormatName),
			Codecs:       codecs,
		})
		if ok {
			r.MimeType = m.MIME
			r.ProfileID = m.ID
		} else {
			logging.Debug("No profile for %s (format %s)", r.Path, info.FormatName)
		}
	}

	setFileMetadata(r, c)
	r.Bitrate = info.BitRate
	r.DurationMS = info.DurationUS / 1000

	vs := *codecs.Video
	v := &result.Video{
		Codec:     s.codecName(vs),
		Width:     vs.Width,
		Height:    vs.Height,
		FrameRate: vs.FrameRate.Float64(),
	}

	passes := s.Thumbnails
	if passes > result.MaxThumbnails {
		passes = result.MaxThumbnails
	}
	for i := 0; i < passes; i++ {
		img, st, err := SelectFrame(ctx, c, vs, info.DurationUS)
		if err != nil {
			r.Fail(result.NewError(r.Path, result.KindDecodeFailed,
				fmt.Sprintf("Unable to decode thumbnail frame: %v", err), 0, err))
			return false
		}
		logging.Debug("Selected frame for %s after %d skipped packets (fallback: %v)", r.Path, st.Skipped, st.Fallback)
		v.Thumbnails = append(v.Thumbnails, &result.Thumbnail{
			Width:  img.Bounds().Dx(),
			Height: img.Bounds().Dy(),
			Pix:    img,
			Source: r.Path,
			Spec:   i,
		})
	}

	r.Succeed(v)
	return true
}

func (s *Scanner) codecName(vs backend.Stream) string {
	if name, ok := s.Backend.FindDecoder(vs.CodecID); ok {
		return name
	}
	if vs.CodecLongName != "" {
		return vs.CodecLongName
	}
	if vs.CodecID != "" {
		return vs.CodecID
	}
	return "Unknown"
}

// setFileMetadata takes size and mtime from the container, falling back to
// the filesystem.
func setFileMetadata(r *result.Result, c backend.Container) {
	info, err := c.Stat()
	if err != nil {
		info, err = filesystem.StatWithRetry(r.Path, filesystem.DefaultRetryConfig())
		if err != nil {
			logging.Warn("Unable to stat %s: %v", r.Path, err)
			return
		}
	}
	r.SetFileMetadata(info)
}
