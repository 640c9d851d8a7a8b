// Package clock provides a time source abstraction so that time-dependent
// behavior (token expiry, cache TTLs) can be tested deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock is a source of time
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// Sleep blocks for the given duration
	Sleep(d time.Duration)
}

// SystemClock is a Clock backed by the real system time
type SystemClock struct{}

// NewSystemClock creates a clock backed by the system time
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}

func (c *SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// FakeClock is a manually advanced Clock for tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a fake clock starting at the given time
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the fake clock without blocking
func (c *FakeClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the fake clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
