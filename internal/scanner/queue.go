package scanner

import (
	"sync"

	"mediascan/internal/metrics"
	"mediascan/internal/result"
)

type eventKind int

const (
	eventResult eventKind = iota
	eventError
	eventProgress
	eventFile
)

func (k eventKind) String() string {
	switch k {
	case eventResult:
		return "result"
	case eventError:
		return "error"
	case eventProgress:
		return "progress"
	case eventFile:
		return "file"
	default:
		return "unknown"
	}
}

// event is one deferred callback, or a watched path still to be scanned.
type event struct {
	kind       eventKind
	res        *result.Result // result and error events; nil for unrecognized files
	err        *result.Error
	progress   Progress
	path       string
	background bool
}

// discard frees what an undelivered event owns.
func (ev event) discard() {
	if ev.res != nil {
		ev.res.Destroy()
	}
}

// queue is the hand-off between producers (async worker, watchers) and Pump.
type queue struct {
	mu     sync.Mutex
	events []event
	ready  chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

func (q *queue) push(ev event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	metrics.PumpQueueDepth.Set(float64(len(q.events)))
	q.mu.Unlock()
	q.signal()
}

// signal wakes a Ready waiter without blocking.
func (q *queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// drain takes every queued event. The ready token is consumed under the
// same lock, so a push that lands after drain always re-arms it.
func (q *queue) drain() []event {
	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case <-q.ready:
	default:
	}
	events := q.events
	q.events = nil
	metrics.PumpQueueDepth.Set(0)
	return events
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
