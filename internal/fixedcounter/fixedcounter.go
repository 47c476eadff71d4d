// Package fixedcounter implements the Fixed Window Counter rate limiting algorithm.
//
// Requests that cluster around the boundary of two adjacent windows can
// total up to twice the limit within a short span. That is a property of
// the algorithm and is kept as is.
package fixedcounter

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/clock"
	"learn.admission/types"
)

// windowState is never mutated once published; every decision that admits
// a request swaps in a new value.
type windowState struct {
	started bool
	start   time.Time
	last    time.Time
	count   int64
}

// Limiter is a single-identity fixed window counter.
type Limiter struct {
	window time.Duration
	limit  int64
	state  atomic.Pointer[windowState]
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithOrigin starts the first window at t instead of at the first call.
func WithOrigin(t time.Time) Option {
	return func(l *Limiter) {
		l.state.Store(&windowState{started: true, start: t, last: t})
	}
}

// New creates a fixed window counter admitting up to limit permits per window.
func New(window time.Duration, limit int64, opts ...Option) (*Limiter, error) {
	if err := errors.Join(
		config.PositiveDuration("window", window),
		config.PositiveInt("limit", limit),
	); err != nil {
		return nil, err
	}
	l := &Limiter{window: window, limit: limit}
	l.state.Store(&windowState{})
	for _, opt := range opts {
		opt(l)
	}
	log.Debug().Str("limiter_type", string(config.FixedWindowCounter)).Dur("window", window).Int64("limit", limit).Msg("Limiter: Initialized")
	return l, nil
}

// Allow consumes one permit if available.
func (l *Limiter) Allow(now time.Time) bool {
	return l.AllowN(now, 1)
}

// AllowN consumes cost permits if the current window still has room for them.
func (l *Limiter) AllowN(now time.Time, cost int64) bool {
	if cost <= 0 {
		return true
	}
	for {
		cur := l.state.Load()
		next := l.advance(cur, now)
		if cost > l.limit-next.count {
			return false
		}
		next.count += cost
		if l.state.CompareAndSwap(cur, &next) {
			return true
		}
	}
}

// Snapshot reports the count of the window containing now.
func (l *Limiter) Snapshot(now time.Time) types.Snapshot {
	next := l.advance(l.state.Load(), now)
	return types.Snapshot{Level: float64(next.count), Capacity: float64(l.limit)}
}

// advance returns the state as seen at now. When a full window or more has
// passed the window jumps to start at now.
func (l *Limiter) advance(cur *windowState, now time.Time) windowState {
	if !cur.started {
		return windowState{started: true, start: now, last: now}
	}
	next := *cur
	now = clock.Clamp(now, next.last)
	next.last = now
	if now.Sub(next.start) >= l.window {
		next.start = now
		next.count = 0
	}
	return next
}

var _ types.Decider = (*Limiter)(nil)
