package watcher

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"mediascan/internal/filesystem"
	"mediascan/internal/logging"
	"mediascan/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change an Event reports.
type Op uint8

const (
	OpCreate Op = iota + 1
	OpWrite
	OpRemove
	OpRename
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is one filesystem change.
type Event struct {
	Path string
	Op   Op
}

// Notifier delivers filesystem events for added paths.
type Notifier interface {
	// Add starts watching path.
	Add(path string) error
	Events() <-chan Event
	Errors() <-chan error
	// Close stops the notifier and closes both channels.
	Close() error
}

// FSNotifier watches directory trees with fsnotify.
type FSNotifier struct {
	w      *fsnotify.Watcher
	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once

	mu   sync.Mutex
	skip func(path string) bool
}

var (
	_ Notifier   = (*FSNotifier)(nil)
	_ DirSkipper = (*FSNotifier)(nil)
)

// NewFSNotifier creates an fsnotify watcher.
func NewFSNotifier() (*FSNotifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return nil, err
	}
	n := &FSNotifier{
		w:      w,
		events: make(chan Event, 64),
		errors: make(chan error, 8),
		done:   make(chan struct{}),
	}
	n.wg.Add(1)
	go n.run()
	return n, nil
}

// SetSkipDir leaves directories for which skip returns true, and
// everything below them, unwatched.
func (n *FSNotifier) SetSkipDir(skip func(path string) bool) {
	n.mu.Lock()
	n.skip = skip
	n.mu.Unlock()
}

func (n *FSNotifier) skipped(path string) bool {
	n.mu.Lock()
	skip := n.skip
	n.mu.Unlock()
	return skip != nil && skip(path)
}

// Add watches root and every non-hidden, non-skipped directory below it.
func (n *FSNotifier) Add(root string) error {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("failed to walk %s for watcher: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || n.skipped(path)) {
			return filepath.SkipDir
		}
		if addErr := n.w.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		count++
		return nil
	})
	metrics.WatchedDirectories.Add(float64(count))
	logging.Debug("Watching %d directories under %s", count, root)
	return err
}

func (n *FSNotifier) Events() <-chan Event { return n.events }
func (n *FSNotifier) Errors() <-chan error { return n.errors }

// Close stops the fsnotify watcher and waits for the event loop to exit.
func (n *FSNotifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = n.w.Close()
		n.wg.Wait()
		close(n.events)
		close(n.errors)
	})
	return err
}

func (n *FSNotifier) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case ev, ok := <-n.w.Events:
			if !ok {
				return
			}
			op := translateOp(ev.Op)
			if op == 0 {
				continue
			}
			if op == OpCreate {
				n.followNewDirectory(ev.Name)
			}
			select {
			case n.events <- Event{Path: ev.Name, Op: op}:
			case <-n.done:
				return
			}
		case err, ok := <-n.w.Errors:
			if !ok {
				return
			}
			select {
			case n.errors <- err:
			case <-n.done:
				return
			}
		}
	}
}

// followNewDirectory watches a directory created after Add.
func (n *FSNotifier) followNewDirectory(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") || n.skipped(path) {
		return
	}
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil || !info.IsDir() {
		return
	}
	if err := n.Add(path); err != nil {
		logging.Warn("failed to add new directory to watcher %s: %v", path, err)
		return
	}
	logging.Debug("Added new directory to watcher: %s", path)
}

func translateOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return 0
	}
}
