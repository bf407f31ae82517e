package utils

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded window of generation run durations.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []time.Duration
	maxSize int
}

// LatencySnapshot is a point-in-time view of the tracked window.
type LatencySnapshot struct {
	Count int
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
}

// NewLatencyTracker creates a tracker storing up to maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{maxSize: maxSize}
}

// Observe records a new duration, evicting the oldest when full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples = append(l.samples, d)
	if len(l.samples) > l.maxSize {
		copy(l.samples[0:], l.samples[1:])
		l.samples = l.samples[:l.maxSize]
	}
}

// Percentile returns the nearest-rank percentile (0-100). Zero when empty.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return nearestRank(l.sorted(), p)
}

// Count returns number of samples recorded.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}

// Snapshot summarises the window in one pass.
func (l *LatencyTracker) Snapshot() LatencySnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sorted := l.sorted()
	if len(sorted) == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: len(sorted),
		P50:   nearestRank(sorted, 50),
		P95:   nearestRank(sorted, 95),
		Max:   sorted[len(sorted)-1],
	}
}

func (l *LatencyTracker) sorted() []time.Duration {
	sorted := append([]time.Duration(nil), l.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

func nearestRank(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
