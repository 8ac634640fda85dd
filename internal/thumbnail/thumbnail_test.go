package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediascan/internal/mediatypes"
	"mediascan/internal/result"

	"golang.org/x/image/bmp"
)

func testFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    Spec
		wantErr bool
	}{
		{in: "jpeg:300x300", want: Spec{Format: FormatJPEG, Width: 300, Height: 300, KeepAspect: true, Quality: 90}},
		{in: "JPG:160x120:q=70", want: Spec{Format: FormatJPEG, Width: 160, Height: 120, KeepAspect: true, Quality: 70}},
		{in: "png:64x64:crop", want: Spec{Format: FormatPNG, Width: 64, Height: 64, KeepAspect: true, Crop: true, Quality: 90}},
		{in: "bmp:100X50:stretch", want: Spec{Format: FormatBMP, Width: 100, Height: 50, Quality: 90}},
		{in: "gif:10x10", wantErr: true},
		{in: "jpeg", wantErr: true},
		{in: "jpeg:10", wantErr: true},
		{in: "jpeg:0x10", wantErr: true},
		{in: "jpeg:10x10:q=0", wantErr: true},
		{in: "jpeg:10x10:crop:stretch", wantErr: true},
		{in: "jpeg:10x10:sharpen", wantErr: true},
		{in: "jpeg:99999x10", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSpec(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSpec() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSpec() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSpecStringRoundTrip(t *testing.T) {
	for _, in := range []string{"jpeg:300x300", "png:64x64:crop", "bmp:100x50:stretch", "jpeg:160x120:q=70"} {
		s, err := ParseSpec(in)
		if err != nil {
			t.Fatalf("ParseSpec(%q) error = %v", in, err)
		}
		if s.String() != in {
			t.Errorf("String() = %q, want %q", s.String(), in)
		}
	}
}

func TestResize(t *testing.T) {
	src := testFrame(320, 240)
	tests := []struct {
		name  string
		spec  string
		wantW int
		wantH int
	}{
		{name: "fit keeps aspect", spec: "png:100x100", wantW: 100, wantH: 75},
		{name: "crop fills box", spec: "png:100x100:crop", wantW: 100, wantH: 100},
		{name: "stretch", spec: "png:50x100:stretch", wantW: 50, wantH: 100},
		{name: "fit never upscales", spec: "png:640x640", wantW: 320, wantH: 240},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSpec(tt.spec)
			if err != nil {
				t.Fatal(err)
			}
			got := Resize(src, s).Bounds()
			if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
				t.Errorf("Resize() = %dx%d, want %dx%d", got.Dx(), got.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestRenderFormats(t *testing.T) {
	src := testFrame(64, 48)
	tests := []struct {
		spec   string
		decode func([]byte) (image.Image, error)
	}{
		{"jpeg:32x32", func(b []byte) (image.Image, error) { return jpeg.Decode(bytes.NewReader(b)) }},
		{"png:32x32", func(b []byte) (image.Image, error) { return png.Decode(bytes.NewReader(b)) }},
		{"bmp:32x32", func(b []byte) (image.Image, error) { return bmp.Decode(bytes.NewReader(b)) }},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, _ := ParseSpec(tt.spec)
			data, err := Render(src, s)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			img, err := tt.decode(data)
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
				t.Errorf("output = %dx%d, want 32x24", b.Dx(), b.Dy())
			}
		})
	}
}

func TestRenderInvalidSpec(t *testing.T) {
	if _, err := Render(testFrame(4, 4), Spec{Format: "tiff", Width: 4, Height: 4, Quality: 90}); err == nil {
		t.Error("Render() error = nil for unsupported format")
	}
}

func TestCacheKey(t *testing.T) {
	mod := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s1, _ := ParseSpec("jpeg:300x300")
	s2, _ := ParseSpec("png:300x300")

	k := CacheKey("/m/a.mpg", mod, s1)
	if len(k) != 64 {
		t.Errorf("len(key) = %d, want 64", len(k))
	}
	if k != CacheKey("/m/a.mpg", mod, s1) {
		t.Error("CacheKey is not deterministic")
	}
	for name, other := range map[string]string{
		"path":  CacheKey("/m/b.mpg", mod, s1),
		"mtime": CacheKey("/m/a.mpg", mod.Add(time.Second), s1),
		"spec":  CacheKey("/m/a.mpg", mod, s2),
	} {
		if other == k {
			t.Errorf("changing %s did not change the key", name)
		}
	}
}

func videoResult(t *testing.T, specs int) *result.Result {
	t.Helper()
	r := result.New("/m/clip.mpg", mediatypes.Video, 0)
	r.ModTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	v := &result.Video{Codec: "mpeg1video", Width: 64, Height: 48}
	for i := 0; i < specs; i++ {
		v.Thumbnails = append(v.Thumbnails, &result.Thumbnail{Width: 64, Height: 48, Pix: testFrame(64, 48), Source: r.Path, Spec: i})
	}
	r.Succeed(v)
	return r
}

func TestWriter(t *testing.T) {
	dir := t.TempDir()
	jpegSpec, _ := ParseSpec("jpeg:32x32")
	pngSpec, _ := ParseSpec("png:16x16:crop")

	w, err := NewWriter(dir, []Spec{jpegSpec, pngSpec})
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	r := videoResult(t, 2)
	defer r.Destroy()

	paths, err := w.Write(r)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("len(paths) = %d, want 2", len(paths))
	}
	if !strings.HasSuffix(paths[0], ".jpg") || !strings.HasSuffix(paths[1], ".png") {
		t.Errorf("paths = %v, want .jpg then .png", paths)
	}
	for _, p := range paths {
		if !strings.HasPrefix(p, dir) {
			t.Errorf("%s is outside the cache dir", p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("thumbnail not written: %v", err)
		}
	}

	// A second write is served from the cache and leaves the file alone.
	before, _ := os.Stat(paths[0])
	again, err := w.Write(r)
	if err != nil {
		t.Fatalf("second Write() error = %v", err)
	}
	after, _ := os.Stat(again[0])
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("cached thumbnail was rewritten")
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*", ".thumb-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestWriterUnknownSpec(t *testing.T) {
	s, _ := ParseSpec("jpeg:32x32")
	w, err := NewWriter(t.TempDir(), []Spec{s})
	if err != nil {
		t.Fatal(err)
	}
	r := videoResult(t, 2)
	defer r.Destroy()

	if _, err := w.Write(r); err == nil {
		t.Error("Write() error = nil for a thumbnail with no matching spec")
	}
}

func TestWriterIgnoresNonVideo(t *testing.T) {
	w, err := NewWriter(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	r := result.New("/m/a.wav", mediatypes.Audio, 0)
	defer r.Destroy()
	paths, err := w.Write(r)
	if err != nil || paths != nil {
		t.Errorf("Write() = %v, %v; want nil, nil", paths, err)
	}
}

func TestNewWriterRejectsInvalidSpec(t *testing.T) {
	if _, err := NewWriter(t.TempDir(), []Spec{{Format: FormatPNG}}); err == nil {
		t.Error("NewWriter() error = nil for an invalid spec")
	}
}
