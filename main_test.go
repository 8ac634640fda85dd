package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediascan/internal/backend/backendtest"
	"mediascan/internal/mediatypes"
	"mediascan/internal/result"
	"mediascan/internal/scanner"
	"mediascan/internal/startup"
	"mediascan/internal/thumbnail"
)

func TestProgressLine(t *testing.T) {
	tests := []struct {
		name string
		p    scanner.Progress
		want string
	}{
		{
			name: "in progress",
			p:    scanner.Progress{Phase: "Discovering files in /media", CurrentItem: "/media/a.mp4", Done: 3, Rate: 1.5},
			want: "Discovering files in /media: /media/a.mp4 (3 files, 1.5/s)",
		},
		{
			name: "finished",
			p:    scanner.Progress{Phase: "Discovering files in /media", Done: 10, Rate: 2},
			want: "Discovering files in /media: done, 10 files (2.0/s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := progressLine(tt.p); got != tt.want {
				t.Errorf("progressLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScanFlags(t *testing.T) {
	tests := []struct {
		name   string
		config startup.Config
		want   result.Flags
	}{
		{"none", startup.Config{}, 0},
		{"rescan", startup.Config{Rescan: true}, result.FlagRescanAll},
		{"clear and extension", startup.Config{Clear: true, UseExtension: true}, result.FlagClearPriorState | result.FlagUseExtension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scanFlags(&tt.config); got != tt.want {
				t.Errorf("scanFlags() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigure(t *testing.T) {
	sess, err := scanner.New(backendtest.New(nil), scanner.Callbacks{OnResult: func(*scanner.Session, *result.Result) {}})
	if err != nil {
		t.Fatalf("scanner.New() error = %v", err)
	}
	defer sess.Close()

	spec := thumbnail.Spec{Format: thumbnail.FormatJPEG, Width: 64, Height: 64, KeepAspect: true, Quality: 90}
	config := &startup.Config{
		Paths:             []string{t.TempDir()},
		IgnoreExtensions:  []string{"txt"},
		IgnoreDirectories: []string{".git"},
		ThumbnailSpecs:    []thumbnail.Spec{spec},
		Async:             true,
		ProgressInterval:  time.Second,
	}
	if err := configure(sess, config); err != nil {
		t.Fatalf("configure() error = %v", err)
	}
	if got := sess.ThumbnailSpecs(); len(got) != 1 || got[0] != spec {
		t.Errorf("ThumbnailSpecs() = %v, want [%v]", got, spec)
	}

	config.Paths = []string{""}
	if err := configure(sess, config); err == nil {
		t.Error("configure() with empty path should fail")
	}
}

func TestDriveSyncScan(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.mp4"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var seen []string
	sess, err := scanner.New(backendtest.New(nil), scanner.Callbacks{
		OnResult: func(_ *scanner.Session, r *result.Result) { seen = append(seen, r.Path) },
		OnError:  func(_ *scanner.Session, e *result.Error) { seen = append(seen, e.Path) },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	config := &startup.Config{Paths: []string{dir}}
	if err := configure(sess, config); err != nil {
		t.Fatal(err)
	}
	if err := drive(context.Background(), sess, config); err != nil {
		t.Fatalf("drive() error = %v", err)
	}
	if len(seen) != 1 {
		t.Errorf("outcomes = %v, want exactly one", seen)
	}
}

func TestDriveCancelled(t *testing.T) {
	sess, err := scanner.New(backendtest.New(nil), scanner.Callbacks{OnResult: func(*scanner.Session, *result.Result) {}})
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	config := &startup.Config{Paths: []string{t.TempDir()}}
	if err := configure(sess, config); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := drive(ctx, sess, config); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("drive() error = %v, want nil or canceled", err)
	}
}

func TestAppWritesThumbnails(t *testing.T) {
	spec := thumbnail.Spec{Format: thumbnail.FormatPNG, Width: 32, Height: 32, KeepAspect: true, Quality: 90}
	w, err := thumbnail.NewWriter(t.TempDir(), []thumbnail.Spec{spec})
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	r := result.New("/media/clip.mp4", mediatypes.Video, 0)
	defer r.Destroy()
	r.Succeed(&result.Video{Width: 64, Height: 48, Thumbnails: []*result.Thumbnail{
		{Width: 64, Height: 48, Pix: image.NewRGBA(image.Rect(0, 0, 64, 48)), Source: r.Path},
	}})

	a := newApp(w, false, &bytes.Buffer{}, false)
	a.callbacks().OnResult(nil, r)

	if _, err := os.Stat(w.Path(r.Path, r.ModTime, spec)); err != nil {
		t.Errorf("thumbnail not written: %v", err)
	}
}

func TestAppProgressOnTerminal(t *testing.T) {
	var buf bytes.Buffer
	a := newApp(nil, false, &buf, true)

	a.onProgress(nil, scanner.Progress{Phase: "Discovering files in /m", CurrentItem: "/m/a.mp4", Done: 1})
	a.onProgress(nil, scanner.Progress{Phase: "Discovering files in /m", Done: 1})

	out := buf.String()
	if !strings.Contains(out, "/m/a.mp4") {
		t.Errorf("output %q missing current item", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("finished progress should end the line, got %q", out)
	}
}
