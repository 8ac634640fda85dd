package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"mediascan/internal/logging"
)

// DefaultRatio is the share of the container limit given to the Go heap.
const DefaultRatio = 0.85

// Limit describes how the heap limit was chosen.
type Limit struct {
	Source    string // "GOMEMLIMIT", "MEDIASCAN_MEMORY_LIMIT" or "none"
	Container int64
	Heap      int64
	Ratio     float64
}

// Configured reports whether a heap limit is in effect.
func (l Limit) Configured() bool { return l.Heap > 0 }

// ConfigureFromEnv applies the heap limit. Call it before the scan starts.
func ConfigureFromEnv() Limit {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		l := Limit{Source: "GOMEMLIMIT"}
		if cur := debug.SetMemoryLimit(-1); cur > 0 && cur < math.MaxInt64 {
			l.Heap = cur
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return l
	}

	raw := os.Getenv("MEDIASCAN_MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEDIASCAN_MEMORY_LIMIT not set, heap limit left alone")
		return Limit{Source: "none"}
	}
	container, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || container <= 0 {
		logging.Warn("Ignoring invalid MEDIASCAN_MEMORY_LIMIT %q", raw)
		return Limit{Source: "none"}
	}

	ratio := parseRatio(os.Getenv("MEDIASCAN_MEMORY_RATIO"))
	heap := int64(float64(container) * ratio)
	debug.SetMemoryLimit(heap)

	logging.Info("Heap limit %s (%.0f%% of %s container limit)",
		FormatBytes(heap), ratio*100, FormatBytes(container))
	return Limit{Source: "MEDIASCAN_MEMORY_LIMIT", Container: container, Heap: heap, Ratio: ratio}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultRatio
	}
	r, err := strconv.ParseFloat(raw, 64)
	if err != nil || r <= 0 || r > 1 {
		logging.Warn("MEDIASCAN_MEMORY_RATIO %q must be in (0, 1], using %.2f", raw, DefaultRatio)
		return DefaultRatio
	}
	return r
}

// FormatBytes renders b with binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
