package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"mediascan/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips starts libvips. It should be called once at startup; further
// calls do nothing until ShutdownVips.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging before Startup so the app log level applies.
	var vipsLogLevel vips.LogLevel
	switch logging.GetLevel() {
	case logging.LevelMemory, logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
	case logging.LevelInfo:
		vipsLogLevel = vips.LogLevelWarning
	case logging.LevelWarn:
		vipsLogLevel = vips.LogLevelError
	default:
		vipsLogLevel = vips.LogLevelCritical
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	// Scanning is sequential, so one worker and a small cache are enough.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether libvips is initialized.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

func renderVips(img image.Image, s Spec) ([]byte, error) {
	// Frames are handed to vips as lossless PNG.
	var src bytes.Buffer
	if err := imaging.Encode(&src, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("stage frame for vips: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(src.Bytes())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load frame: %w", err)
	}
	defer ref.Close()

	switch {
	case s.Crop:
		err = ref.Thumbnail(s.Width, s.Height, vips.InterestingCentre)
	case !s.KeepAspect:
		err = ref.ThumbnailWithSize(s.Width, s.Height, vips.InterestingNone, vips.SizeForce)
	default:
		err = ref.Thumbnail(s.Width, s.Height, vips.InterestingNone)
	}
	if err != nil {
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	var out []byte
	switch s.Format {
	case FormatJPEG:
		out, _, err = ref.ExportJpeg(&vips.JpegExportParams{Quality: s.Quality, OptimizeCoding: true})
	case FormatPNG:
		out, _, err = ref.ExportPng(vips.NewPngExportParams())
	default:
		return nil, fmt.Errorf("vips cannot export %s", s.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	logging.Debug("vips rendered %dx%d %s thumbnail", ref.Width(), ref.Height(), s.Format)
	return out, nil
}
