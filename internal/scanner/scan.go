package scanner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mediascan/internal/filesystem"
	"mediascan/internal/logging"
	"mediascan/internal/mediatypes"
	"mediascan/internal/metrics"
	"mediascan/internal/result"
	"mediascan/internal/store"
	"mediascan/internal/walker"
)

// runCounts tracks what one run handed to its sink.
type runCounts struct {
	done    atomic.Int64
	results atomic.Int64
	errors  atomic.Int64
	skipped atomic.Int64
}

// begin marks the session busy and snapshots its configuration.
func (s *Session) begin() (*plan, bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, "", ErrSessionClosed
	}
	if s.running {
		return nil, false, "", ErrScanInProgress
	}
	if s.cb.OnResult == nil {
		return nil, false, "", ErrNoResultCallback
	}
	s.running = true
	s.runID = uuid.NewString()
	metrics.ScanIsRunning.Set(1)
	return s.snapshot(), s.async, s.runID, nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.running = false
	s.lastRun = s.now()
	s.mu.Unlock()
	metrics.ScanIsRunning.Set(0)
}

// Scan walks every registered path and scans each classified file. In
// synchronous mode it returns once all paths are walked and every callback
// has fired. In async mode it returns immediately; outcomes are delivered
// by Pump.
func (s *Session) Scan(ctx context.Context) error {
	s.mu.Lock()
	noPaths := len(s.paths) == 0
	s.mu.Unlock()
	if noPaths {
		return result.NewError("", result.KindInvalidParameters, "no paths registered", 0, nil)
	}

	p, async, runID, err := s.begin()
	if err != nil {
		return err
	}
	if async {
		s.goAsync(ctx, func(ctx context.Context) {
			if err := s.runScan(ctx, p, runID, "async", s.enqueue); err != nil {
				logging.Warn("Async scan %s stopped: %v", runID, err)
			}
		})
		return nil
	}

	defer s.end()
	ctx, stop := s.bind(ctx)
	defer stop()
	return s.runScan(ctx, p, runID, "sync", s.deliverNow(ctx, p.cb))
}

// ScanFile scans a single file. A hint that is not a media type, such as
// mediatypes.Unknown, means the file is classified by extension. The outcome is reported
// through the callbacks like any walked file; files the state store knows
// are scanned again.
func (s *Session) ScanFile(ctx context.Context, path string, hint mediatypes.MediaType) error {
	if path == "" {
		return result.NewError("", result.KindInvalidParameters, "empty path", 0, nil)
	}

	p, async, runID, err := s.begin()
	if err != nil {
		return err
	}
	logging.Debug("Scan %s: single file %s", runID, path)

	if async {
		s.goAsync(ctx, func(ctx context.Context) {
			s.scanOne(ctx, p, path, hint, false, s.enqueue)
		})
		return nil
	}

	defer s.end()
	ctx, stop := s.bind(ctx)
	defer stop()
	s.scanOne(ctx, p, path, hint, false, s.deliverNow(ctx, p.cb))
	return nil
}

// bind derives a context that is also cancelled when the session closes.
func (s *Session) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// goAsync runs fn on a worker. The worker stops when the session closes or
// when the caller's ctx is cancelled.
func (s *Session) goAsync(ctx context.Context, fn func(context.Context)) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer s.queue.signal()
		defer s.end()

		wctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		fn(wctx)
	}()
}

// Wait blocks until any async scan has finished. Queued callbacks still
// need a Pump.
func (s *Session) Wait() {
	s.workers.Wait()
}

// enqueue is the async sink: handles are closed on the worker and the
// event waits for Pump.
func (s *Session) enqueue(ev event) {
	if ev.res != nil {
		ev.res.Release()
	}
	s.queue.push(ev)
}

// deliverNow is the synchronous sink.
func (s *Session) deliverNow(ctx context.Context, cb Callbacks) func(event) {
	return func(ev event) {
		s.dispatch(ctx, cb, ev)
	}
}

func (s *Session) runScan(ctx context.Context, p *plan, runID, mode string, deliver func(event)) error {
	start := s.now()
	metrics.ScanRunsTotal.WithLabelValues(mode).Inc()
	logging.Info("Starting scan %s of %d paths", runID, len(p.paths))

	if p.flags.Has(result.FlagClearPriorState) && s.store != nil {
		n, err := s.store.Clear(ctx)
		if err != nil {
			logging.Warn("Failed to clear scan state: %v", err)
		} else {
			logging.Info("Cleared %d previously scanned files", n)
		}
	}

	var counts runCounts
	count := func(ev event) {
		switch ev.kind {
		case eventResult:
			counts.results.Add(1)
		case eventError:
			counts.errors.Add(1)
		}
		deliver(ev)
	}

	var runErr error
	for _, root := range p.paths {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		rep := newProgressReporter(runID, root, p.progressInterval, s.now, counts.done.Load, deliver)
		err := p.walker.Walk(ctx, root, rep.report, func(g walker.DirGroup) error {
			for _, f := range g.Files {
				if err := ctx.Err(); err != nil {
					return err
				}
				if s.unchanged(ctx, p, f) {
					counts.skipped.Add(1)
					continue
				}
				if s.gate != nil {
					if err := s.gate.Wait(ctx); err != nil {
						return err
					}
				}
				s.scanOne(ctx, p, f.Path, f.Type, false, count)
				counts.done.Add(1)
			}
			return nil
		})
		rep.finish()

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				runErr = err
				break
			}
			logging.Warn("Walk of %s failed: %v", root, err)
		}
	}

	elapsed := s.now().Sub(start)
	metrics.ScanLastRunTimestamp.Set(float64(s.now().Unix()))
	metrics.ScanLastRunDuration.Set(elapsed.Seconds())

	stats := p.walker.Stats()
	logging.Info("Scan complete: %d files (%d results, %d errors, %d unchanged) in %d directories in %v",
		counts.done.Load(), counts.results.Load(), counts.errors.Load(), counts.skipped.Load(),
		stats.Directories, elapsed)

	if s.store != nil {
		run := store.Run{
			ID:        runID,
			StartedAt: start,
			Duration:  elapsed.Seconds(),
			Results:   int(counts.results.Load()),
			Errors:    int(counts.errors.Load()),
			Skipped:   int(counts.skipped.Load()),
		}
		if err := s.store.SetLastScan(context.WithoutCancel(ctx), run); err != nil {
			logging.Warn("Failed to record scan run: %v", err)
		}
	}
	s.skipped.Add(counts.skipped.Load())
	return runErr
}

// unchanged reports whether f can be skipped because the state store saw
// it with the same size and modification time.
func (s *Session) unchanged(ctx context.Context, p *plan, f walker.File) bool {
	if s.store == nil || p.flags.Has(result.FlagRescanAll) {
		return false
	}
	info, err := filesystem.StatWithRetry(f.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		return false
	}
	same, err := s.store.IsUnchanged(ctx, f.Path, info)
	if err != nil {
		logging.Warn("Failed to check scan state for %s: %v", f.Path, err)
		return false
	}
	if same {
		logging.Debug("Skipping unchanged file %s", f.Path)
		metrics.ScanFilesTotal.WithLabelValues(string(f.Type), "unchanged").Inc()
	}
	return same
}

// scanOne scans path and hands exactly one event, or nothing but a log
// line, to deliver. The result is destroyed by whoever consumes the event.
func (s *Session) scanOne(ctx context.Context, p *plan, path string, hint mediatypes.MediaType, background bool, deliver func(event)) {
	typ := hint
	if !typ.IsMedia() {
		typ = p.classifier.Classify(path)
	}
	if !typ.IsMedia() {
		deliver(event{
			kind:       eventError,
			err:        result.NewError(path, result.KindUnrecognizedExtension, "Unrecognized file extension", 0, nil),
			path:       path,
			background: background,
		})
		return
	}

	start := time.Now()
	r := result.New(path, typ, p.flags)

	var ok bool
	switch typ {
	case mediatypes.Video:
		ok = p.video.Scan(ctx, r)
	default:
		logging.Debug("No %s scanner, skipping %s", typ, path)
	}
	metrics.ScanFileDuration.WithLabelValues(string(typ)).Observe(time.Since(start).Seconds())

	switch {
	case ok:
		deliver(event{kind: eventResult, res: r, path: path, background: background})
	case r.Err != nil:
		deliver(event{kind: eventError, res: r, err: r.Err, path: path, background: background})
	default:
		logging.Debug("No result for %s", path)
		metrics.ScanFilesTotal.WithLabelValues(string(typ), "dropped").Inc()
		r.Destroy()
	}
}

// dispatch fires the callback for ev and destroys the result it carries.
func (s *Session) dispatch(ctx context.Context, cb Callbacks, ev event) {
	switch ev.kind {
	case eventResult:
		if ev.background && cb.OnBackground != nil {
			cb.OnBackground(s, ev.res)
		} else {
			cb.OnResult(s, ev.res)
		}
		s.delivered.Add(1)
		metrics.ScanFilesTotal.WithLabelValues(string(ev.res.Type), "result").Inc()
		if s.store != nil {
			if err := s.store.Record(context.WithoutCancel(ctx), ev.res); err != nil {
				logging.Warn("Failed to record %s: %v", ev.res.Path, err)
			}
		}
		ev.res.Destroy()

	case eventError:
		s.errorsSeen.Add(1)
		typ := mediatypes.Unknown
		if ev.res != nil {
			typ = ev.res.Type
		}
		metrics.ScanFilesTotal.WithLabelValues(string(typ), "error").Inc()
		metrics.ScanErrorsTotal.WithLabelValues(ev.err.Kind.String()).Inc()

		switch {
		case cb.OnError != nil:
			cb.OnError(s, ev.err)
		case ev.err.Kind == result.KindUnrecognizedExtension:
			// Dropped without an error callback.
		default:
			logging.Warn("Error scanning %s: %v", ev.err.Path, ev.err)
		}
		if ev.res != nil {
			ev.res.Destroy()
		}

	case eventProgress:
		p := ev.progress
		s.lastProgress.Store(&p)
		if cb.OnProgress != nil {
			cb.OnProgress(s, p)
		}
	}
}
