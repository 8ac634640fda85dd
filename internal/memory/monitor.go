package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"mediascan/internal/logging"
	"mediascan/internal/metrics"
)

// Config holds the monitor thresholds as fractions of the heap limit.
type Config struct {
	Limit         int64 // 0 uses the current heap limit
	HighMark      float64
	CriticalMark  float64
	CheckInterval time.Duration
}

// DefaultConfig returns the thresholds used by mediascan.
func DefaultConfig() Config {
	return Config{
		HighMark:      0.7,
		CriticalMark:  0.85,
		CheckInterval: 5 * time.Second,
	}
}

// Monitor pauses scanning while heap usage is above the critical mark.
type Monitor struct {
	config Config
	limit  int64
	alloc  func() uint64
	gc     func()

	mu      sync.Mutex
	usage   float64
	paused  bool
	resumed chan struct{}
}

// NewMonitor creates a monitor. Without a heap limit it never pauses.
func NewMonitor(config Config) *Monitor {
	limit := config.Limit
	if limit == 0 {
		if cur := debug.SetMemoryLimit(-1); cur > 0 && cur < 1<<62 {
			limit = cur
		}
	}
	if limit == 0 {
		logging.Debug("Memory monitor: no heap limit, backpressure disabled")
	}
	return &Monitor{
		config:  config,
		limit:   limit,
		alloc:   heapAlloc,
		gc:      runtime.GC,
		resumed: make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Run samples usage until ctx is done. A paused monitor resumes on return.
func (m *Monitor) Run(ctx context.Context) {
	if m.limit == 0 {
		return
	}
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()
	defer m.resume()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) check() {
	usage := float64(m.alloc()) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	m.usage = usage
	switch {
	case usage >= m.config.CriticalMark && !m.paused:
		m.paused = true
		m.mu.Unlock()
		logging.Warn("Heap at %.1f%% of limit, pausing scan", usage*100)
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		m.gc()
		return
	case usage < m.config.HighMark && m.paused:
		m.mu.Unlock()
		logging.Info("Heap at %.1f%% of limit, resuming scan", usage*100)
		m.resume()
		return
	}
	m.mu.Unlock()
}

func (m *Monitor) resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.paused {
		return
	}
	m.paused = false
	close(m.resumed)
	m.resumed = make(chan struct{})
	metrics.MemoryPaused.Set(0)
}

// Wait blocks while the monitor is paused.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	resumed := m.resumed
	m.mu.Unlock()

	logging.Debug("Scan waiting for memory to recover")
	select {
	case <-resumed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether Wait would block.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Usage returns the last sampled heap usage as a fraction of the limit.
func (m *Monitor) Usage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}
