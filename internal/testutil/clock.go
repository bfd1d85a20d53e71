package testutil

import (
	"sync"
	"time"
)

// ManualClock is a wall clock that only moves when told to.
//
// Pass its Now method to engine.WithNow and its Epoch to engine.WithEpoch to
// get transition timestamps that do not depend on scheduling.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu    sync.Mutex
	epoch time.Time
	now   time.Time
}

// NewManualClock creates a clock whose epoch and current time are both epoch.
// A zero epoch is replaced with 2026-01-01T00:00:00Z.
func NewManualClock(epoch time.Time) *ManualClock {
	if epoch.IsZero() {
		epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &ManualClock{epoch: epoch, now: epoch}
}

// Epoch returns the instant the clock started at.
func (c *ManualClock) Epoch() time.Time {
	return c.epoch
}

// Now returns the current instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Elapsed returns Now minus Epoch.
func (c *ManualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.epoch)
}

// Reset moves the clock back to its epoch.
func (c *ManualClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.epoch
}
