package scanner

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Progress describes how far a scan has come. CurrentItem is empty on the
// terminal notification of a phase.
type Progress struct {
	RunID       string        `json:"runId"`
	Phase       string        `json:"phase"`
	CurrentItem string        `json:"currentItem,omitempty"`
	Done        int64         `json:"done"`
	Total       int64         `json:"total"` // 0 while unknown
	Elapsed     time.Duration `json:"elapsed"`
	Rate        float64       `json:"rate"` // files per second
}

// Finished reports whether p ends its phase.
func (p Progress) Finished() bool {
	return p.CurrentItem == ""
}

func phaseFor(root string) string {
	return fmt.Sprintf("Discovering files in %s", root)
}

// progressReporter throttles the per-directory notifications of one root.
// The terminal notification is never throttled.
type progressReporter struct {
	runID   string
	phase   string
	now     func() time.Time
	start   time.Time
	done    func() int64
	every   *rate.Sometimes
	deliver func(event)
}

func newProgressReporter(runID, root string, interval time.Duration, now func() time.Time, done func() int64, deliver func(event)) *progressReporter {
	r := &progressReporter{
		runID:   runID,
		phase:   phaseFor(root),
		now:     now,
		start:   now(),
		done:    done,
		deliver: deliver,
	}
	if interval > 0 {
		r.every = &rate.Sometimes{Interval: interval}
	}
	return r
}

func (r *progressReporter) report(item string) {
	if r.every == nil {
		r.emit(item)
		return
	}
	r.every.Do(func() { r.emit(item) })
}

func (r *progressReporter) finish() {
	r.emit("")
}

func (r *progressReporter) emit(item string) {
	elapsed := r.now().Sub(r.start)
	done := r.done()
	var perSec float64
	if elapsed > 0 {
		perSec = float64(done) / elapsed.Seconds()
	}
	r.deliver(event{kind: eventProgress, progress: Progress{
		RunID:       r.runID,
		Phase:       r.phase,
		CurrentItem: item,
		Done:        done,
		Elapsed:     elapsed,
		Rate:        perSec,
	}})
}
