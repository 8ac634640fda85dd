package thumbnail

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"mediascan/internal/logging"
	"mediascan/internal/metrics"
	"mediascan/internal/result"

	"golang.org/x/crypto/blake2b"
)

// Writer renders the thumbnails of video results into a cache directory.
type Writer struct {
	dir   string
	specs []Spec
	mu    sync.Mutex
}

// NewWriter creates dir if needed. specs are indexed by Thumbnail.Spec.
func NewWriter(dir string, specs []Spec) (*Writer, error) {
	for i, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("thumbnail spec %d: %w", i, err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}
	logging.Debug("Thumbnail writer: cache dir %s, %d specs", dir, len(specs))
	return &Writer{dir: dir, specs: specs}, nil
}

// CacheKey identifies a rendered thumbnail of source as of modTime.
func CacheKey(source string, modTime time.Time, s Spec) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(modTime.UnixNano(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(s.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// Path returns where the thumbnail for source and s is stored.
func (w *Writer) Path(source string, modTime time.Time, s Spec) string {
	key := CacheKey(source, modTime, s)
	return filepath.Join(w.dir, key[:2], key+"."+s.Format.Ext())
}

// Write renders every thumbnail attached to r and returns the file paths.
// Thumbnails already present in the cache are not rendered again.
func (w *Writer) Write(r *result.Result) ([]string, error) {
	v, ok := r.Video()
	if !ok {
		return nil, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(v.Thumbnails))
	for _, t := range v.Thumbnails {
		if t.Spec < 0 || t.Spec >= len(w.specs) {
			return paths, fmt.Errorf("thumbnail for %s references spec %d of %d", r.Path, t.Spec, len(w.specs))
		}
		s := w.specs[t.Spec]
		path := w.Path(t.Source, r.ModTime, s)

		if _, err := os.Stat(path); err == nil {
			metrics.ThumbnailCacheHits.Inc()
			logging.Debug("Thumbnail cache hit: %s", r.Path)
			paths = append(paths, path)
			continue
		}

		data, err := Render(t.Pix, s)
		if err != nil {
			return paths, fmt.Errorf("render thumbnail for %s: %w", r.Path, err)
		}
		if err := writeFileAtomic(path, data); err != nil {
			return paths, err
		}
		logging.Debug("Thumbnail cached: %s", path)
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".thumb-*")
	if err != nil {
		return fmt.Errorf("create temp thumbnail: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store thumbnail: %w", err)
	}
	return nil
}
