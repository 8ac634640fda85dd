package metrics

import (
	"context"
	"time"

	"mediascan/internal/logging"
)

// StatsProvider reports what the scan state database knows.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds counts of files known to the scan state database.
type Stats struct {
	TotalFiles  int
	TotalVideos int
	TotalAudio  int
	TotalImages int
}

// Collector copies store statistics into MediaFilesTotal on an interval.
type Collector struct {
	provider StatsProvider
	interval time.Duration
}

// NewCollector returns a collector polling provider every interval.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{provider: provider, interval: interval}
}

// Run collects once immediately, then on every tick until ctx is done.
func (c *Collector) Run(ctx context.Context) {
	c.Collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-ctx.Done():
			return
		}
	}
}

// Collect updates the gauges from a single GetStats call.
func (c *Collector) Collect() {
	if c.provider == nil {
		return
	}
	s := c.provider.GetStats()
	for typ, n := range map[string]int{"video": s.TotalVideos, "audio": s.TotalAudio, "image": s.TotalImages} {
		MediaFilesTotal.WithLabelValues(typ).Set(float64(n))
	}
	logging.Debug("Known files: %d (%d video, %d audio, %d image)",
		s.TotalFiles, s.TotalVideos, s.TotalAudio, s.TotalImages)
}
