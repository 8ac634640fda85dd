package walker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"mediascan/internal/filesystem"
	"mediascan/internal/logging"
	"mediascan/internal/mediatypes"
	"mediascan/internal/metrics"
)

// File is one classified file found by a walk.
type File struct {
	Path string
	Type mediatypes.MediaType
}

// DirGroup holds the classified files found directly under Dir, in name order.
type DirGroup struct {
	Dir   string
	Files []File
}

// Config controls what a walk visits.
type Config struct {
	// Classifier decides which files are kept. A nil classifier keeps every
	// file in the known media sets.
	Classifier *mediatypes.Classifier

	// IgnoreDirs skips any subdirectory whose name contains one of these substrings.
	IgnoreDirs []string

	Retry filesystem.RetryConfig
}

// Stats summarizes the work done by a walker.
type Stats struct {
	Directories int64 `json:"directories"`
	Skipped     int64 `json:"skipped"`
	Files       int64 `json:"files"`
}

// Walker enumerates directory trees sequentially. Depth is bounded only by the
// filesystem; very deep trees recurse accordingly.
type Walker struct {
	cfg Config

	directories atomic.Int64
	skipped     atomic.Int64
	files       atomic.Int64
}

// New creates a walker. A zero Retry config is replaced with the default.
func New(cfg Config) *Walker {
	if cfg.Retry == (filesystem.RetryConfig{}) {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}
	return &Walker{cfg: cfg}
}

// Stats returns counters accumulated over every walk made by w.
func (w *Walker) Stats() Stats {
	return Stats{
		Directories: w.directories.Load(),
		Skipped:     w.skipped.Load(),
		Files:       w.files.Load(),
	}
}

// IsIgnoredDir reports whether a directory name matches an ignore substring.
func (w *Walker) IsIgnoredDir(name string) bool {
	for _, sub := range w.cfg.IgnoreDirs {
		if sub != "" && strings.Contains(name, sub) {
			return true
		}
	}
	return false
}

// IsIgnoredPath reports whether any directory component of path below root
// matches an ignore substring.
func (w *Walker) IsIgnoredPath(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == ".." {
			return false
		}
		if w.IsIgnoredDir(part) {
			return true
		}
	}
	return false
}

// Classify applies the walker's classifier to path.
func (w *Walker) Classify(path string) mediatypes.MediaType {
	return w.cfg.Classifier.Classify(path)
}

// Walk enumerates root. onDir, if non-nil, is called as each directory is
// entered. emit is called once per directory that holds at least one
// classified file, before its subdirectories are visited. An error returned
// by emit, or cancellation of ctx, stops the walk and is returned.
//
// Unreadable directories are logged and skipped. A root that is a regular
// file is emitted as a single-file group.
func (w *Walker) Walk(ctx context.Context, root string, onDir func(dir string), emit func(DirGroup) error) error {
	info, err := filesystem.StatWithRetry(root, w.cfg.Retry)
	if err != nil {
		logging.Warn("Skipping unreadable path %s: %v", root, err)
		w.skipped.Add(1)
		metrics.WalkerDirectoriesSkipped.WithLabelValues("unreadable").Inc()
		return nil
	}

	if !info.IsDir() {
		typ := w.Classify(root)
		if typ == mediatypes.Unknown {
			return nil
		}
		w.files.Add(1)
		metrics.WalkerFilesClassified.WithLabelValues(string(typ)).Inc()
		return emit(DirGroup{Dir: filepath.Dir(root), Files: []File{{Path: root, Type: typ}}})
	}

	return w.walkDir(ctx, root, onDir, emit)
}

func (w *Walker) walkDir(ctx context.Context, dir string, onDir func(string), emit func(DirGroup) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if onDir != nil {
		onDir(dir)
	}

	entries, err := filesystem.ReadDirWithRetry(dir, w.cfg.Retry)
	if err != nil {
		logging.Warn("Skipping unreadable directory %s: %v", dir, err)
		w.skipped.Add(1)
		metrics.WalkerDirectoriesSkipped.WithLabelValues("unreadable").Inc()
		return nil
	}

	w.directories.Add(1)
	metrics.WalkerDirectoriesTotal.Inc()

	var (
		files   []File
		subdirs []string
	)

	for _, entry := range entries {
		name := entry.Name()

		path := filepath.Join(dir, name)
		isDir := entry.IsDir()

		if entry.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				logging.Debug("Skipping dangling symlink %s: %v", path, err)
				continue
			}
			if target.IsDir() {
				// Directory symlinks are not followed; they can form cycles.
				logging.Debug("Skipping directory symlink %s", path)
				metrics.WalkerDirectoriesSkipped.WithLabelValues("symlink").Inc()
				continue
			}
		}

		if isDir {
			if w.IsIgnoredDir(name) {
				logging.Debug("Skipping ignored directory %s", path)
				w.skipped.Add(1)
				metrics.WalkerDirectoriesSkipped.WithLabelValues("ignored").Inc()
				continue
			}
			subdirs = append(subdirs, path)
			continue
		}

		typ := w.Classify(path)
		if typ == mediatypes.Unknown {
			continue
		}
		files = append(files, File{Path: path, Type: typ})
		metrics.WalkerFilesClassified.WithLabelValues(string(typ)).Inc()
	}

	if len(files) > 0 {
		w.files.Add(int64(len(files)))
		if err := emit(DirGroup{Dir: dir, Files: files}); err != nil {
			return err
		}
	}

	for _, sub := range subdirs {
		if err := w.walkDir(ctx, sub, onDir, emit); err != nil {
			return err
		}
	}

	return nil
}
