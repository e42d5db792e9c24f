package output

import (
	"strings"
	"sync"
)

// SparklineTracker keeps a rolling window of values per key, e.g. the
// per-iteration latency of each benchmark scenario.
type SparklineTracker struct {
	mu     sync.Mutex
	data   map[string][]float64
	maxLen int
}

// NewSparklineTracker creates a tracker with a fixed window size.
func NewSparklineTracker(maxLen int) *SparklineTracker {
	if maxLen < 1 {
		maxLen = 20
	}
	return &SparklineTracker{
		data:   make(map[string][]float64),
		maxLen: maxLen,
	}
}

// Record adds a new value for key, dropping the oldest once the window is full.
func (s *SparklineTracker) Record(key string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append(s.data[key], value)
	if len(s.data[key]) > s.maxLen {
		s.data[key] = s.data[key][len(s.data[key])-s.maxLen:]
	}
}

// Sparkline returns the sparkline for key, empty when nothing was recorded.
func (s *SparklineTracker) Sparkline(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Sparkline(s.data[key])
}

// sparkline block characters from lowest to highest
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders values scaled between their minimum and maximum.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	var b strings.Builder
	rng := hi - lo
	for _, v := range values {
		idx := 0
		if rng > 0 {
			idx = int((v - lo) / rng * float64(len(sparkBlocks)-1))
		}
		idx = max(0, min(idx, len(sparkBlocks)-1))
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}
