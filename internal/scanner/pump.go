package scanner

import (
	"path/filepath"
	"sort"
	"time"

	"mediascan/internal/logging"
	"mediascan/internal/mediatypes"
	"mediascan/internal/metrics"
	"mediascan/internal/watcher"
)

// Ready returns a channel that receives when events are waiting for Pump.
// A receive may be spurious; Pump then returns 0.
func (s *Session) Ready() <-chan struct{} {
	return s.queue.ready
}

// Pump delivers every queued event on the calling goroutine and returns
// how many it handled. Watched files are scanned here and reported through
// OnBackground. Concurrent Pump calls run one at a time.
func (s *Session) Pump() int {
	s.pumpMu.Lock()
	defer s.pumpMu.Unlock()

	events := s.queue.drain()
	if len(events) == 0 {
		return 0
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		for _, ev := range events {
			ev.discard()
		}
		return 0
	}
	cb := s.cb
	var p *plan
	for _, ev := range events {
		if ev.kind == eventFile {
			p = s.snapshot()
			break
		}
	}
	s.mu.Unlock()

	ctx := s.ctx
	deliver := s.deliverNow(ctx, cb)
	for _, ev := range events {
		metrics.PumpDeliveredTotal.WithLabelValues(ev.kind.String()).Inc()
		if ev.kind == eventFile {
			s.scanOne(ctx, p, ev.path, mediatypes.Unknown, true, deliver)
			continue
		}
		deliver(ev)
	}
	return len(events)
}

// Watch starts reporting new and changed files under dir. Files are
// queued once they have been quiet for the debounce period and scanned by
// Pump. Watching an already watched directory does nothing.
func (s *Session) Watch(dir string) error {
	dir = filepath.Clean(dir)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.watchers[dir]; ok {
		return nil
	}

	n, err := s.newNotifier()
	if err != nil {
		return err
	}
	p := s.snapshot()
	w := watcher.New(watcher.Config{
		Notifier: n,
		Debounce: s.debounce,
		Filter: func(path string) bool {
			return p.classifier.Classify(path).IsMedia()
		},
		SkipDir: func(path string) bool {
			if path == dir {
				return false
			}
			return p.walker.IsIgnoredDir(filepath.Base(path)) || p.walker.IsIgnoredPath(dir, path)
		},
		Sink: func(path string) {
			logging.Debug("Queued changed file %s", path)
			s.queue.push(event{kind: eventFile, path: path, background: true})
		},
		OnRemove: func(path string) {
			if s.store == nil {
				return
			}
			if err := s.store.Remove(s.ctx, path); err != nil {
				logging.Warn("Failed to forget %s: %v", path, err)
			}
		},
	})
	if err := w.Add(dir); err != nil {
		w.Stop()
		return err
	}
	w.Start(s.ctx)
	s.watchers[dir] = w
	logging.Info("Watching %s for changes", dir)
	return nil
}

// StopWatching stops every watcher and waits for them. Files already
// queued are still delivered by the next Pump.
func (s *Session) StopWatching() {
	s.mu.Lock()
	watchers := s.watchers
	s.watchers = make(map[string]*watcher.Watcher)
	s.mu.Unlock()

	for dir, w := range watchers {
		w.Stop()
		logging.Debug("Stopped watching %s", dir)
	}
}

// Status is a point-in-time view of a session.
type Status struct {
	Running    bool          `json:"running"`
	RunID      string        `json:"runId,omitempty"`
	LastRun    time.Time     `json:"lastRun,omitempty"`
	Delivered  int64         `json:"delivered"`
	Errors     int64         `json:"errors"`
	Skipped    int64         `json:"skipped"`
	QueueDepth int           `json:"queueDepth"`
	Watching   []string      `json:"watching,omitempty"`
	Uptime     time.Duration `json:"uptime"`
	Progress   *Progress     `json:"progress,omitempty"`
}

// Status reports the session's current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		Running: s.running,
		RunID:   s.runID,
		LastRun: s.lastRun,
	}
	for dir := range s.watchers {
		st.Watching = append(st.Watching, dir)
	}
	s.mu.Unlock()

	sort.Strings(st.Watching)
	st.Delivered = s.delivered.Load()
	st.Errors = s.errorsSeen.Load()
	st.Skipped = s.skipped.Load()
	st.QueueDepth = s.queue.len()
	st.Uptime = s.now().Sub(s.startTime)
	if p := s.lastProgress.Load(); p != nil {
		cp := *p
		st.Progress = &cp
	}
	return st
}
