package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"time"

	"mediascan/internal/logging"
	"mediascan/internal/metrics"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
)

// Resize scales img to the box described by s.
func Resize(img image.Image, s Spec) *image.NRGBA {
	switch {
	case s.Crop:
		return imaging.Fill(img, s.Width, s.Height, imaging.Center, imaging.Lanczos)
	case !s.KeepAspect:
		return imaging.Resize(img, s.Width, s.Height, imaging.Lanczos)
	default:
		return imaging.Fit(img, s.Width, s.Height, imaging.Lanczos)
	}
}

// Encode writes img in the format of s.
func Encode(w io.Writer, img image.Image, s Spec) error {
	switch s.Format {
	case FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(s.Quality))
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case FormatBMP:
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("unsupported thumbnail format %q", s.Format)
	}
}

// Render resizes and encodes img according to s.
func Render(img image.Image, s Spec) ([]byte, error) {
	start := time.Now()
	data, err := render(img, s)
	metrics.ThumbnailRenderDuration.WithLabelValues(string(s.Format)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailRendersTotal.WithLabelValues(string(s.Format), "error").Inc()
		return nil, err
	}
	metrics.ThumbnailRendersTotal.WithLabelValues(string(s.Format), "success").Inc()
	return data, nil
}

func render(img image.Image, s Spec) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if IsVipsAvailable() && s.Format != FormatBMP {
		data, err := renderVips(img, s)
		if err == nil {
			return data, nil
		}
		logging.Debug("vips render failed, using imaging: %v", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, Resize(img, s), s); err != nil {
		return nil, fmt.Errorf("encode %s thumbnail: %w", s.Format, err)
	}
	return buf.Bytes(), nil
}
