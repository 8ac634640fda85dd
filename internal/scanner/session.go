package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"mediascan/internal/backend"
	"mediascan/internal/logging"
	"mediascan/internal/mediatypes"
	"mediascan/internal/profile"
	"mediascan/internal/result"
	"mediascan/internal/store"
	"mediascan/internal/thumbnail"
	"mediascan/internal/video"
	"mediascan/internal/walker"
	"mediascan/internal/watcher"
)

// Registration caps.
const (
	MaxPaths             = 128
	MaxIgnoreExtensions  = 128
	MaxIgnoreDirectories = 128
	MaxThumbnailSpecs    = result.MaxThumbnails
)

// DefaultProgressInterval throttles progress callbacks during a walk.
const DefaultProgressInterval = time.Second

var (
	// ErrNoResultCallback is returned when no result callback is set.
	ErrNoResultCallback = errors.New("scanner: result callback is required")
	// ErrSessionClosed is returned by calls made after Close.
	ErrSessionClosed = errors.New("scanner: session closed")
	// ErrScanInProgress is returned when a scan is already running.
	ErrScanInProgress = errors.New("scanner: scan in progress")
)

// Callbacks receive scan outcomes. OnResult is required; the others are
// optional. Results are valid only until the callback returns.
type Callbacks struct {
	OnResult     func(s *Session, r *result.Result)
	OnError      func(s *Session, e *result.Error)
	OnProgress   func(s *Session, p Progress)
	OnBackground func(s *Session, r *result.Result)
}

// StateStore remembers scanned files between runs. *store.Store
// implements it.
type StateStore interface {
	IsUnchanged(ctx context.Context, path string, info fs.FileInfo) (bool, error)
	Record(ctx context.Context, r *result.Result) error
	Remove(ctx context.Context, path string) error
	Clear(ctx context.Context) (int64, error)
	SetLastScan(ctx context.Context, run store.Run) error
}

// Option configures a Session.
type Option func(*Session)

// WithProfileMatcher replaces the default profile table. A nil matcher
// disables profile matching.
func WithProfileMatcher(m profile.Matcher) Option {
	return func(s *Session) { s.matcher = m }
}

// WithStore enables skipping unchanged files and the rescan/clear flags.
func WithStore(st StateStore) Option {
	return func(s *Session) { s.store = st }
}

// WithLogLevel sets the process log level when the session is created.
func WithLogLevel(level logging.LogLevel) Option {
	return func(s *Session) {
		lvl := level
		s.logLevel = &lvl
	}
}

// WithClock overrides the time source used for progress and run records.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithWatchNotifier overrides how Watch observes the filesystem.
func WithWatchNotifier(newNotifier func() (watcher.Notifier, error)) Option {
	return func(s *Session) { s.newNotifier = newNotifier }
}

// WithDebounce sets how long a watched file must be quiet before it is scanned.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) { s.debounce = d }
}

// Gate holds back a scan before each file. Wait returns an error only
// when ctx ends.
type Gate interface {
	Wait(ctx context.Context) error
}

// WithGate makes scans wait on g before scanning each file.
func WithGate(g Gate) Option {
	return func(s *Session) { s.gate = g }
}

// Session holds the configuration and callbacks for one logical scanning use.
type Session struct {
	backend     backend.Backend
	matcher     profile.Matcher
	store       StateStore
	now         func() time.Time
	newNotifier func() (watcher.Notifier, error)
	debounce    time.Duration
	gate        Gate
	logLevel    *logging.LogLevel

	ctx    context.Context
	cancel context.CancelFunc

	mu               sync.Mutex
	cb               Callbacks
	paths            []string
	ignoreExts       []string
	ignoreDirs       []string
	thumbs           []thumbnail.Spec
	flags            result.Flags
	async            bool
	progressInterval time.Duration
	running          bool
	closed           bool
	runID            string
	lastRun          time.Time
	watchers         map[string]*watcher.Watcher

	queue   *queue
	pumpMu  sync.Mutex
	workers sync.WaitGroup

	startTime    time.Time
	delivered    atomic.Int64
	errorsSeen   atomic.Int64
	skipped      atomic.Int64
	lastProgress atomic.Pointer[Progress]
}

// New creates a session over b. cb.OnResult must be set.
func New(b backend.Backend, cb Callbacks, opts ...Option) (*Session, error) {
	if b == nil {
		return nil, result.NewError("", result.KindInvalidParameters, "backend is required", 0, nil)
	}
	if cb.OnResult == nil {
		return nil, ErrNoResultCallback
	}

	s := &Session{
		backend:          b,
		matcher:          profile.DefaultTable(),
		now:              time.Now,
		newNotifier:      func() (watcher.Notifier, error) { return watcher.NewFSNotifier() },
		debounce:         watcher.DefaultDebounce,
		cb:               cb,
		progressInterval: DefaultProgressInterval,
		watchers:         make(map[string]*watcher.Watcher),
		queue:            newQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logLevel != nil {
		logging.SetLevel(*s.logLevel)
	}
	s.startTime = s.now()
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if r, ok := b.(interface{ Register(context.Context) error }); ok {
		if err := r.Register(s.ctx); err != nil {
			logging.Warn("Backend registration failed, decoder names unavailable: %v", err)
		}
	}
	return s, nil
}

// checkMutable reports whether configuration may change. Callers hold s.mu.
func (s *Session) checkMutable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.running {
		return ErrScanInProgress
	}
	return nil
}

func limitError(what string, max int) error {
	return result.NewError("", result.KindLimitExceeded,
		fmt.Sprintf("too many %s (limit %d)", what, max), 0, nil)
}

// AddPath registers a root path to scan.
func (s *Session) AddPath(path string) error {
	if path == "" {
		return result.NewError("", result.KindInvalidParameters, "empty path", 0, nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	if len(s.paths) >= MaxPaths {
		return limitError("paths", MaxPaths)
	}
	s.paths = append(s.paths, path)
	return nil
}

// AddIgnoreExtension ignores an extension, or a whole media type with
// mediatypes.IgnoreAllAudio, IgnoreAllVideo or IgnoreAllImage.
func (s *Session) AddIgnoreExtension(token string) error {
	if token == "" {
		return result.NewError("", result.KindInvalidParameters, "empty extension", 0, nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	if len(s.ignoreExts) >= MaxIgnoreExtensions {
		return limitError("ignored extensions", MaxIgnoreExtensions)
	}
	s.ignoreExts = append(s.ignoreExts, token)
	return nil
}

// AddIgnoreDirectory skips directories whose name contains substr.
func (s *Session) AddIgnoreDirectory(substr string) error {
	if substr == "" {
		return result.NewError("", result.KindInvalidParameters, "empty directory pattern", 0, nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	if len(s.ignoreDirs) >= MaxIgnoreDirectories {
		return limitError("ignored directories", MaxIgnoreDirectories)
	}
	s.ignoreDirs = append(s.ignoreDirs, substr)
	return nil
}

// AddThumbnailSpec requests one more thumbnail per video.
func (s *Session) AddThumbnailSpec(spec thumbnail.Spec) error {
	if err := spec.Validate(); err != nil {
		return result.NewError("", result.KindInvalidParameters, err.Error(), 0, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	if len(s.thumbs) >= MaxThumbnailSpecs {
		return limitError("thumbnail specs", MaxThumbnailSpecs)
	}
	s.thumbs = append(s.thumbs, spec)
	return nil
}

// SetFlags replaces the scan flags.
func (s *Session) SetFlags(f result.Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	s.flags = f
	return nil
}

// SetAsync selects async mode for subsequent scans.
func (s *Session) SetAsync(async bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	s.async = async
	return nil
}

// SetCallbacks replaces the callbacks. cb.OnResult must be set.
func (s *Session) SetCallbacks(cb Callbacks) error {
	if cb.OnResult == nil {
		return ErrNoResultCallback
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	s.cb = cb
	return nil
}

// SetProgressInterval sets the minimum time between progress callbacks
// during a walk. Zero or negative reports every directory.
func (s *Session) SetProgressInterval(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	s.progressInterval = d
	return nil
}

// ThumbnailSpecs returns the registered specs, indexed like Thumbnail.Spec.
func (s *Session) ThumbnailSpecs() []thumbnail.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]thumbnail.Spec(nil), s.thumbs...)
}

// plan is an immutable snapshot of the configuration used by one scan.
type plan struct {
	paths            []string
	classifier       *mediatypes.Classifier
	walker           *walker.Walker
	video            *video.Scanner
	flags            result.Flags
	progressInterval time.Duration
	cb               Callbacks
}

// snapshot captures the current configuration. Callers hold s.mu.
func (s *Session) snapshot() *plan {
	classifier := mediatypes.NewClassifier(s.ignoreExts)
	return &plan{
		paths:      append([]string(nil), s.paths...),
		classifier: classifier,
		walker: walker.New(walker.Config{
			Classifier: classifier,
			IgnoreDirs: append([]string(nil), s.ignoreDirs...),
		}),
		video: &video.Scanner{
			Backend:    s.backend,
			Matcher:    s.matcher,
			Thumbnails: len(s.thumbs),
		},
		flags:            s.flags,
		progressInterval: s.progressInterval,
		cb:               s.cb,
	}
}

// Close stops watchers and any async worker, waits for them, and drops
// undelivered queued events. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watchers := s.watchers
	s.watchers = make(map[string]*watcher.Watcher)
	s.mu.Unlock()

	s.cancel()
	for _, w := range watchers {
		w.Stop()
	}
	s.workers.Wait()

	s.pumpMu.Lock()
	dropped := s.queue.drain()
	s.pumpMu.Unlock()
	for _, ev := range dropped {
		ev.discard()
	}
	if len(dropped) > 0 {
		logging.Debug("Session closed with %d undelivered events", len(dropped))
	}
	logging.Debug("Session closed")
	return nil
}
