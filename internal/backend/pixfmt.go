package backend

import (
	"fmt"
	"image"
)

// PixelFormat names the layout of Frame.Data.
type PixelFormat string

const (
	PixFmtRGB24 PixelFormat = "rgb24"
	PixFmtRGBA  PixelFormat = "rgba"
	PixFmtGray  PixelFormat = "gray"
)

func (p PixelFormat) bytesPerPixel() int {
	switch p {
	case PixFmtRGB24:
		return 3
	case PixFmtRGBA:
		return 4
	case PixFmtGray:
		return 1
	}
	return 0
}

// Scaler converts decoded frames to 8-bit RGBA at their native size.
type Scaler struct {
	width  int
	height int
	src    PixelFormat
	dst    *image.RGBA
}

// NewScaler prepares a conversion for frames of the given size and format.
func NewScaler(width, height int, src PixelFormat) (*Scaler, error) {
	if width <= 0 || height <= 0 {
		return nil, &Error{Op: "scaler", Code: CodeInvalidArg, Err: fmt.Errorf("invalid frame size %dx%d", width, height)}
	}
	if src.bytesPerPixel() == 0 {
		return nil, &Error{Op: "scaler", Code: CodeInvalidArg, Err: fmt.Errorf("unsupported pixel format %q", src)}
	}
	return &Scaler{width: width, height: height, src: src}, nil
}

// Scale converts f into a newly allocated RGBA image owned by the caller.
func (s *Scaler) Scale(f *Frame) (*image.RGBA, error) {
	if f.Width != s.width || f.Height != s.height || f.PixFmt != s.src {
		return nil, &Error{Op: "scaler", Code: CodeInvalidArg,
			Err: fmt.Errorf("frame %dx%d %s does not match scaler %dx%d %s", f.Width, f.Height, f.PixFmt, s.width, s.height, s.src)}
	}

	bpp := s.src.bytesPerPixel()
	stride := f.Stride
	if stride == 0 {
		stride = s.width * bpp
	}
	if stride < s.width*bpp || len(f.Data) < stride*(s.height-1)+s.width*bpp {
		return nil, &Error{Op: "scaler", Code: CodeInvalidData,
			Err: fmt.Errorf("frame buffer of %d bytes too small for %dx%d %s", len(f.Data), s.width, s.height, s.src)}
	}

	dst := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		row := f.Data[y*stride : y*stride+s.width*bpp]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+s.width*4]
		for x := 0; x < s.width; x++ {
			o := out[x*4 : x*4+4]
			switch s.src {
			case PixFmtRGB24:
				o[0], o[1], o[2], o[3] = row[x*3], row[x*3+1], row[x*3+2], 0xff
			case PixFmtRGBA:
				copy(o, row[x*4:x*4+4])
			case PixFmtGray:
				v := row[x]
				o[0], o[1], o[2], o[3] = v, v, v, 0xff
			}
		}
	}
	s.dst = dst
	return dst, nil
}

// Close drops the scaler's reference to its last output.
func (s *Scaler) Close() {
	s.dst = nil
}
