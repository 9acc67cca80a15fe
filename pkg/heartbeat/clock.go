package heartbeat

import (
	"sync"
	"time"
)

// tieBump is added to a reading that would not advance past the previous one.
const tieBump = 1e-6

// Clock reports seconds elapsed since it was created, as a float, on the monotonic clock.
// Successive readings are strictly increasing.
type Clock struct {
	start time.Time
	mu    sync.Mutex
	last  float64
}

// NewClock starts a clock at zero.
func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// Now returns the elapsed seconds. Equal or backward readings are bumped by 1µs
// past the previous one.
func (c *Clock) Now() float64 {
	elapsed := time.Since(c.start).Seconds()

	c.mu.Lock()
	defer c.mu.Unlock()
	if elapsed <= c.last {
		elapsed = c.last + tieBump
	}
	c.last = elapsed
	return elapsed
}
