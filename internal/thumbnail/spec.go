package thumbnail

import (
	"fmt"
	"strconv"
	"strings"
)

// Format is a thumbnail output encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatBMP  Format = "bmp"
)

// Ext returns the file extension for f, without a dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

const (
	DefaultQuality = 90
	MaxDimension   = 4096
)

// Spec describes one thumbnail to produce for every video.
type Spec struct {
	Format Format `yaml:"format" json:"format"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
	// KeepAspect fits the frame inside Width x Height. When false the frame
	// is stretched to exactly that size.
	KeepAspect bool `yaml:"keepAspect" json:"keepAspect"`
	// Crop fills Width x Height and crops the overflow around the center.
	// It implies KeepAspect.
	Crop    bool `yaml:"crop" json:"crop"`
	Quality int  `yaml:"quality" json:"quality"`
}

// ParseSpec parses "format:WxH[:q=Q][:crop][:stretch]".
func ParseSpec(s string) (Spec, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return Spec{}, fmt.Errorf("thumbnail spec %q: want format:WxH", s)
	}

	spec := Spec{
		Format:     Format(strings.ToLower(parts[0])),
		KeepAspect: true,
		Quality:    DefaultQuality,
	}
	if spec.Format == "jpg" {
		spec.Format = FormatJPEG
	}

	w, h, ok := strings.Cut(strings.ToLower(parts[1]), "x")
	if !ok {
		return Spec{}, fmt.Errorf("thumbnail spec %q: bad dimensions %q", s, parts[1])
	}
	var err error
	if spec.Width, err = strconv.Atoi(w); err != nil {
		return Spec{}, fmt.Errorf("thumbnail spec %q: bad width: %w", s, err)
	}
	if spec.Height, err = strconv.Atoi(h); err != nil {
		return Spec{}, fmt.Errorf("thumbnail spec %q: bad height: %w", s, err)
	}

	for _, opt := range parts[2:] {
		switch {
		case opt == "crop":
			spec.Crop = true
		case opt == "stretch":
			spec.KeepAspect = false
		case strings.HasPrefix(opt, "q="):
			if spec.Quality, err = strconv.Atoi(opt[2:]); err != nil {
				return Spec{}, fmt.Errorf("thumbnail spec %q: bad quality: %w", s, err)
			}
		default:
			return Spec{}, fmt.Errorf("thumbnail spec %q: unknown option %q", s, opt)
		}
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// Validate checks ranges and the format.
func (s Spec) Validate() error {
	switch s.Format {
	case FormatJPEG, FormatPNG, FormatBMP:
	default:
		return fmt.Errorf("unsupported thumbnail format %q", s.Format)
	}
	if s.Width <= 0 || s.Height <= 0 || s.Width > MaxDimension || s.Height > MaxDimension {
		return fmt.Errorf("thumbnail size %dx%d out of range", s.Width, s.Height)
	}
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("thumbnail quality %d out of range", s.Quality)
	}
	if s.Crop && !s.KeepAspect {
		return fmt.Errorf("thumbnail spec cannot both crop and stretch")
	}
	return nil
}

func (s Spec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%dx%d", s.Format, s.Width, s.Height)
	if s.Quality != DefaultQuality {
		fmt.Fprintf(&b, ":q=%d", s.Quality)
	}
	if s.Crop {
		b.WriteString(":crop")
	}
	if !s.KeepAspect {
		b.WriteString(":stretch")
	}
	return b.String()
}
