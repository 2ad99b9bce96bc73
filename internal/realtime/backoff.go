package realtime

import (
	"sync"
	"time"
)

const (
	// DefaultFloor is the reconnect delay after a successful open.
	DefaultFloor = time.Second

	// DefaultCeiling caps the reconnect delay.
	DefaultCeiling = 10 * time.Second
)

// Backoff tracks the reconnect delay of one connection.
// The delay starts at the floor, doubles after every close up to the
// ceiling, and returns to the floor after a successful open.
type Backoff struct {
	mu      sync.Mutex
	floor   time.Duration
	ceiling time.Duration
	current time.Duration
}

// NewBackoff creates a backoff. Non-positive values fall back to the defaults,
// and a ceiling below the floor is raised to the floor.
func NewBackoff(floor, ceiling time.Duration) *Backoff {
	if floor <= 0 {
		floor = DefaultFloor
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if ceiling < floor {
		ceiling = floor
	}
	return &Backoff{floor: floor, ceiling: ceiling, current: floor}
}

// Reset returns the delay to the floor. Called on successful open.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.floor
}

// Next returns the delay to wait before the next reconnect and doubles the
// stored delay, capped at the ceiling. Called on every close.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	delay := b.current
	b.current *= 2
	if b.current > b.ceiling {
		b.current = b.ceiling
	}
	return delay
}

// Peek returns the delay Next would return without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
