// Package slidingwindowcounter implements the bucketed Sliding Window Counter
// rate limiting algorithm.
//
// The window is split into a fixed number of buckets. A request is admitted
// when the sum of the buckets covering the trailing window is below the
// limit. Memory is O(buckets) regardless of traffic; with a single bucket
// the algorithm behaves like an aligned fixed window.
package slidingwindowcounter

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/clock"
	"learn.admission/types"
)

type bucket struct {
	index int64
	count int64
}

// Limiter is a single-identity bucketed sliding window counter.
type Limiter struct {
	limit       int64
	bucketWidth time.Duration

	mu      sync.Mutex
	started bool
	origin  time.Time
	last    time.Time
	// ring holds one slot per bucket; slot i holds the most recent bucket
	// whose index is congruent to i.
	ring []bucket
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithOrigin aligns bucket boundaries to t instead of to the first call.
func WithOrigin(t time.Time) Option {
	return func(l *Limiter) {
		l.started = true
		l.origin = t
		l.last = t
	}
}

// New creates a sliding window counter with the window split into buckets.
func New(window time.Duration, limit int64, buckets int, opts ...Option) (*Limiter, error) {
	var bucketsErr error
	if buckets < 1 {
		bucketsErr = &config.ConfigError{Field: "buckets", Value: buckets, Reason: "must be at least 1"}
	} else if window > 0 && window/time.Duration(buckets) <= 0 {
		bucketsErr = &config.ConfigError{Field: "buckets", Value: buckets, Reason: "leaves a zero bucket width"}
	}
	if err := errors.Join(
		config.PositiveDuration("window", window),
		config.PositiveInt("limit", limit),
		bucketsErr,
	); err != nil {
		return nil, err
	}

	l := &Limiter{
		limit:       limit,
		bucketWidth: window / time.Duration(buckets),
		ring:        make([]bucket, buckets),
	}
	for i := range l.ring {
		l.ring[i].index = -1
	}
	for _, opt := range opts {
		opt(l)
	}
	log.Debug().Str("limiter_type", string(config.SlidingWindowCounter)).Dur("window", window).Int64("limit", limit).Int("buckets", buckets).Msg("Limiter: Initialized")
	return l, nil
}

// Allow consumes one permit if available.
func (l *Limiter) Allow(now time.Time) bool {
	return l.AllowN(now, 1)
}

// AllowN adds cost to the bucket containing now if the buckets covering the
// trailing window sum to no more than limit-cost.
func (l *Limiter) AllowN(now time.Time, cost int64) bool {
	if cost <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		l.started = true
		l.origin = now
	}
	now = clock.Clamp(now, l.last)
	l.last = now

	current := l.indexOf(now)
	if cost > l.limit-l.sum(current) {
		return false
	}

	slot := &l.ring[current%int64(len(l.ring))]
	if slot.index != current {
		slot.index = current
		slot.count = 0
	}
	slot.count += cost
	return true
}

// Snapshot reports the sum of the buckets covering the window ending at now.
func (l *Limiter) Snapshot(now time.Time) types.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return types.Snapshot{Capacity: float64(l.limit)}
	}
	now = clock.Clamp(now, l.last)
	return types.Snapshot{Level: float64(l.sum(l.indexOf(now))), Capacity: float64(l.limit)}
}

func (l *Limiter) indexOf(now time.Time) int64 {
	return int64(clock.Elapsed(now, l.origin) / l.bucketWidth)
}

// sum adds the counts of buckets with index in [current-len(ring)+1, current].
// Slots outside that range are stale and ignored.
func (l *Limiter) sum(current int64) int64 {
	oldest := current - int64(len(l.ring)) + 1
	var total int64
	for _, b := range l.ring {
		if b.index >= oldest && b.index <= current {
			total += b.count
		}
	}
	return total
}

var _ types.Decider = (*Limiter)(nil)
