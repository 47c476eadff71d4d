// Package clock provides the time source used by the limiters.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time. It can be replaced in tests.
type Clock interface {
	Now() time.Time
}

// System implements Clock using the system time. Values returned by
// time.Now carry a monotonic reading, so Sub between them is monotonic.
type System struct{}

// Now returns the current system time.
func (System) Now() time.Time {
	return time.Now()
}

// Func adapts a plain function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}

// Manual is a Clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock positioned at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the clock's current position.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d and returns the new position.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// Set moves the clock to t. Moving backwards is permitted so callers can
// exercise clock regression handling.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Clamp returns now, or last when now is earlier than last.
func Clamp(now, last time.Time) time.Time {
	if now.Before(last) {
		return last
	}
	return now
}

// Elapsed returns now-since, or zero when now is earlier than since.
func Elapsed(now, since time.Time) time.Duration {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return d
}
