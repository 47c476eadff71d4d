// Package interpolatedcounter implements the interpolated Sliding Window
// Counter rate limiting algorithm.
//
// Only the counts of the current and previous fixed windows are kept. The
// number of requests in the trailing window is estimated by weighting the
// previous window's count by the fraction of it still covered:
//
//	estimate = (1 - elapsed/window) * previous + current
//
// The estimate is a linear interpolation, not an exact count.
package interpolatedcounter

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/clock"
	"learn.admission/types"
)

// Limiter is a single-identity interpolated sliding window counter.
type Limiter struct {
	window time.Duration
	limit  int64

	mu                  sync.Mutex
	started             bool
	currentWindowStart  time.Time
	last                time.Time
	previousWindowCount int64
	currentWindowCount  int64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithOrigin starts the first window at t instead of at the first call.
func WithOrigin(t time.Time) Option {
	return func(l *Limiter) {
		l.started = true
		l.currentWindowStart = t
		l.last = t
	}
}

// New creates an interpolated counter admitting roughly limit permits per
// trailing window.
func New(window time.Duration, limit int64, opts ...Option) (*Limiter, error) {
	if err := errors.Join(
		config.PositiveDuration("window", window),
		config.PositiveInt("limit", limit),
	); err != nil {
		return nil, err
	}
	l := &Limiter{window: window, limit: limit}
	for _, opt := range opts {
		opt(l)
	}
	log.Debug().Str("limiter_type", string(config.InterpolatedSlidingWindowCounter)).Dur("window", window).Int64("limit", limit).Msg("Limiter: Initialized")
	return l, nil
}

// Allow consumes one permit if the estimate is below the limit.
func (l *Limiter) Allow(now time.Time) bool {
	return l.AllowN(now, 1)
}

// AllowN consumes cost permits if the last of them would still start below
// the limit, that is estimate+cost-1 < limit. For cost 1 this is estimate < limit.
func (l *Limiter) AllowN(now time.Time, cost int64) bool {
	if cost <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		l.started = true
		l.currentWindowStart = now
	}
	now = clock.Clamp(now, l.last)
	l.last = now

	start, previous, current := l.roll(now)
	if l.estimate(now, start, previous, current)+float64(cost-1) >= float64(l.limit) {
		return false
	}

	l.currentWindowStart = start
	l.previousWindowCount = previous
	l.currentWindowCount = current + cost
	return true
}

// Snapshot reports the interpolated estimate at now.
func (l *Limiter) Snapshot(now time.Time) types.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return types.Snapshot{Capacity: float64(l.limit)}
	}
	now = clock.Clamp(now, l.last)
	start, previous, current := l.roll(now)
	return types.Snapshot{Level: l.estimate(now, start, previous, current), Capacity: float64(l.limit)}
}

// roll returns the window start and counts as they would be at now without
// committing them. One elapsed window shifts current into previous; two or
// more leave nothing of the old counts.
func (l *Limiter) roll(now time.Time) (time.Time, int64, int64) {
	windowsPassed := int64(clock.Elapsed(now, l.currentWindowStart) / l.window)
	if windowsPassed < 1 {
		return l.currentWindowStart, l.previousWindowCount, l.currentWindowCount
	}
	var previous int64
	if windowsPassed == 1 {
		previous = l.currentWindowCount
	}
	return l.currentWindowStart.Add(time.Duration(windowsPassed) * l.window), previous, 0
}

func (l *Limiter) estimate(now, start time.Time, previous, current int64) float64 {
	weight := float64(clock.Elapsed(now, start)) / float64(l.window)
	return (1-weight)*float64(previous) + float64(current)
}

var _ types.Decider = (*Limiter)(nil)
