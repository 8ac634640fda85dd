package watcher

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mediascan/internal/filesystem"
	"mediascan/internal/logging"
	"mediascan/internal/metrics"
)

// DefaultDebounce is how long a path must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// ErrStopped is returned by Add after Stop.
var ErrStopped = errors.New("watcher stopped")

// Config wires a Watcher.
type Config struct {
	Notifier Notifier
	Debounce time.Duration

	// Filter reports whether a file should be reported. Nil accepts all.
	Filter func(path string) bool
	// SkipDir reports whether the directory at path lies in an ignored
	// subtree. It is checked for new directories and for the parent of
	// every reported file, and handed to notifiers that implement DirSkipper.
	SkipDir func(path string) bool
	// Sink receives settled paths. It runs on the watcher goroutine.
	Sink func(path string)
	// OnRemove, if set, receives removed or renamed-away paths.
	OnRemove func(path string)
}

// Watcher debounces notifier events into per-file reports.
type Watcher struct {
	cfg Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool

	// Owned by the run goroutine. pending maps a path to when it last changed.
	pending map[string]time.Time
	order   []string
	now     func() time.Time
}

// DirSkipper is implemented by notifiers that can leave ignored
// subdirectories unwatched.
type DirSkipper interface {
	SetSkipDir(skip func(path string) bool)
}

// New returns a Watcher. Call Start to begin consuming events.
func New(cfg Config) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if ds, ok := cfg.Notifier.(DirSkipper); ok && cfg.SkipDir != nil {
		ds.SetSkipDir(cfg.SkipDir)
	}
	return &Watcher{cfg: cfg, pending: make(map[string]time.Time), now: time.Now}
}

// Add watches path through the notifier.
func (w *Watcher) Add(path string) error {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	return w.cfg.Notifier.Add(path)
}

// Start runs the event loop until ctx is cancelled or Stop is called.
// Calling Start on a running watcher does nothing.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil || w.stopped {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	logging.Debug("Watcher started (debounce %v)", w.cfg.Debounce)
}

// Stop ends the event loop, waits for it to exit and closes the notifier.
// No Sink call is in progress or will start once Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	if err := w.cfg.Notifier.Close(); err != nil {
		logging.Warn("failed to close file watcher: %v", err)
	}
	logging.Debug("Watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	// Armed while anything is pending, for the earliest path to settle.
	timer := time.NewTimer(w.cfg.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	armed := false

	events := w.cfg.Notifier.Events()
	errs := w.cfg.Notifier.Errors()

	for {
		select {
		case <-ctx.Done():
			if len(w.pending) > 0 {
				logging.Debug("Watcher dropping %d unsettled paths", len(w.pending))
			}
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if w.handle(ev) && !armed {
				timer.Reset(w.cfg.Debounce)
				armed = true
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()

		case <-timer.C:
			armed = false
			if next := w.flush(ctx); next > 0 {
				timer.Reset(next)
				armed = true
			}
		}
	}
}

// handle records ev and reports whether anything became pending.
func (w *Watcher) handle(ev Event) bool {
	metrics.WatcherEventsTotal.WithLabelValues(ev.Op.String()).Inc()

	if strings.Contains(ev.Path, string(filepath.Separator)+".") {
		return false
	}

	switch ev.Op {
	case OpRemove, OpRename:
		delete(w.pending, ev.Path)
		if w.cfg.OnRemove != nil {
			w.cfg.OnRemove(ev.Path)
		}
		return false
	case OpCreate, OpWrite:
	default:
		return false
	}

	info, err := filesystem.StatWithRetry(ev.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		return false
	}
	if info.IsDir() {
		if ev.Op != OpCreate {
			return false
		}
		return w.addTree(ev.Path)
	}
	return w.addFile(ev.Path)
}

// addTree queues the files of a directory that appeared with content.
func (w *Watcher) addTree(root string) bool {
	added := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			if w.cfg.SkipDir != nil && w.cfg.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.addFile(path) {
			added = true
		}
		return nil
	})
	if err != nil {
		logging.Warn("failed to walk new directory %s: %v", root, err)
	}
	return added
}

func (w *Watcher) addFile(path string) bool {
	if w.cfg.SkipDir != nil && w.cfg.SkipDir(filepath.Dir(path)) {
		return false
	}
	if w.cfg.Filter != nil && !w.cfg.Filter(path) {
		return false
	}
	if _, ok := w.pending[path]; !ok {
		w.order = append(w.order, path)
	}
	w.pending[path] = w.now()
	return true
}

// flush hands every path quiet for the debounce period to the sink in
// first-seen order. It returns how long until the next pending path
// settles, or 0 when nothing is left.
func (w *Watcher) flush(ctx context.Context) time.Duration {
	now := w.now()
	var next time.Duration
	keep := w.order[:0]
	seen := make(map[string]bool, len(w.order))

	for _, path := range w.order {
		changed, ok := w.pending[path]
		if !ok || seen[path] {
			continue
		}
		seen[path] = true
		if quiet := now.Sub(changed); quiet < w.cfg.Debounce {
			keep = append(keep, path)
			if wait := w.cfg.Debounce - quiet; next == 0 || wait < next {
				next = wait
			}
			continue
		}
		delete(w.pending, path)
		if ctx.Err() != nil {
			continue
		}
		if w.cfg.Sink != nil {
			w.cfg.Sink(path)
		}
	}
	w.order = keep
	return next
}
