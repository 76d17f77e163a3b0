package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time for FixedClock.
var Epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// FixedClock is a settable time source for tests.
//
// Now returns the same instant until Advance or Set moves it, so stamped
// entities hash identically across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock stopped at start. A zero start means Epoch.
func NewFixedClock(start time.Time) *FixedClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FixedClock{now: start.UTC()}
}

// Now returns the current instant. It matches the func() time.Time shape
// expected by version.WithClock and guard.WithClock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
