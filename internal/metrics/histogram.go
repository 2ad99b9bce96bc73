package metrics

import (
	"math"
	"slices"
	"sync"
	"time"
)

const defaultSamples = 2048

// Histogram keeps a bounded window of duration samples, in milliseconds.
type Histogram struct {
	mu      sync.RWMutex
	samples []float64
	limit   int
}

// NewHistogram creates a histogram holding at most limit samples.
// When full, the oldest fifth is discarded.
func NewHistogram(limit int) *Histogram {
	if limit <= 0 {
		limit = defaultSamples
	}
	return &Histogram{
		samples: make([]float64, 0, limit),
		limit:   limit,
	}
}

// Record adds a sample.
func (h *Histogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, float64(d.Microseconds())/1000.0)
	if len(h.samples) > h.limit {
		h.samples = slices.Delete(h.samples, 0, max(h.limit/5, 1))
	}
}

// Since records the time elapsed since start.
func (h *Histogram) Since(start time.Time) {
	h.Record(time.Since(start))
}

// Count returns the number of retained samples.
func (h *Histogram) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Summary computes latency statistics over the retained samples.
func (h *Histogram) Summary() Latency {
	h.mu.RLock()
	sorted := slices.Clone(h.samples)
	h.mu.RUnlock()

	if len(sorted) == 0 {
		return Latency{}
	}
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return Latency{
		Count: len(sorted),
		Mean:  sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		Max:   sorted[len(sorted)-1],
	}
}

// Reset discards all samples.
func (h *Histogram) Reset() {
	h.mu.Lock()
	h.samples = h.samples[:0]
	h.mu.Unlock()
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p / 100 * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
