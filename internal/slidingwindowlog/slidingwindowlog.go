// Package slidingwindowlog implements the Sliding Window Log rate limiting algorithm.
//
// Every admitted request is recorded with its timestamp, so the count over
// any trailing window is exact. Memory grows with accepted traffic.
package slidingwindowlog

import (
	"errors"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/clock"
	"learn.admission/types"
)

type entry struct {
	at   time.Time
	cost int64
}

// Limiter is a single-identity sliding window log.
type Limiter struct {
	window time.Duration
	limit  int64

	mu sync.Mutex
	// entries is ordered oldest first.
	entries deque.Deque[entry]
	total   int64
	last    time.Time
}

// New creates a sliding window log admitting up to limit permits in any
// trailing window.
func New(window time.Duration, limit int64) (*Limiter, error) {
	if err := errors.Join(
		config.PositiveDuration("window", window),
		config.PositiveInt("limit", limit),
	); err != nil {
		return nil, err
	}
	log.Debug().Str("limiter_type", string(config.SlidingWindowLog)).Dur("window", window).Int64("limit", limit).Msg("Limiter: Initialized")
	return &Limiter{window: window, limit: limit}, nil
}

// Allow consumes one permit if available.
func (l *Limiter) Allow(now time.Time) bool {
	return l.AllowN(now, 1)
}

// AllowN records cost permits at now if the trailing window has room for them.
func (l *Limiter) AllowN(now time.Time, cost int64) bool {
	if cost <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now = clock.Clamp(now, l.last)
	l.last = now

	// remove logs which are beyond current window
	boundary := now.Add(-l.window)
	for l.entries.Len() > 0 && !l.entries.Front().at.After(boundary) {
		l.total -= l.entries.PopFront().cost
	}

	if cost > l.limit-l.total {
		return false
	}
	l.entries.PushBack(entry{at: now, cost: cost})
	l.total += cost
	return true
}

// Len returns the number of log entries currently held, including any that
// have expired but not yet been evicted by a decision.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries.Len()
}

// Snapshot reports the permits recorded within the window ending at now.
func (l *Limiter) Snapshot(now time.Time) types.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	now = clock.Clamp(now, l.last)
	boundary := now.Add(-l.window)
	inWindow := l.total
	for i := 0; i < l.entries.Len(); i++ {
		e := l.entries.At(i)
		if e.at.After(boundary) {
			break
		}
		inWindow -= e.cost
	}
	return types.Snapshot{Level: float64(inWindow), Capacity: float64(l.limit)}
}

var _ types.Decider = (*Limiter)(nil)
