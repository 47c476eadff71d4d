// Package tokenbucket implements the Token Bucket rate limiting algorithm.
//
// Tokens accrue continuously at rate per second up to capacity. Idle time
// banks tokens, so a burst of up to capacity can be admitted at once while
// the long-run average stays bounded by rate.
package tokenbucket

import (
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/clock"
	"learn.admission/types"
)

// epsilon is the distance from a whole token within which the level is
// snapped to that token, so repeated float refills do not drift.
const epsilon = 1e-9

type bucket struct {
	started    bool
	tokens     float64
	lastRefill time.Time
}

// Limiter is a single-identity token bucket.
type Limiter struct {
	rate     float64
	capacity int64
	initial  float64
	origin   time.Time
	state    atomic.Pointer[bucket]
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithInitialTokens starts the bucket with n tokens instead of a full bucket.
// n is clamped to [0, capacity].
func WithInitialTokens(n float64) Option {
	return func(l *Limiter) {
		l.initial = math.Max(0, math.Min(n, float64(l.capacity)))
	}
}

// WithOrigin starts refilling from t instead of from the first call.
func WithOrigin(t time.Time) Option {
	return func(l *Limiter) {
		l.origin = t
	}
}

// New creates a token bucket refilling rate tokens per second up to capacity.
// The bucket starts full.
func New(rate float64, capacity int64, opts ...Option) (*Limiter, error) {
	if err := errors.Join(
		config.PositiveRate("rate", rate),
		config.PositiveInt("capacity", capacity),
	); err != nil {
		return nil, err
	}
	l := &Limiter{rate: rate, capacity: capacity, initial: float64(capacity)}
	for _, opt := range opts {
		opt(l)
	}
	if l.origin.IsZero() {
		l.state.Store(&bucket{})
	} else {
		l.state.Store(&bucket{started: true, tokens: l.initial, lastRefill: l.origin})
	}
	log.Debug().Str("limiter_type", string(config.TokenBucket)).Float64("rate", rate).Int64("capacity", capacity).Msg("Limiter: Initialized")
	return l, nil
}

// Allow takes one token if available.
func (l *Limiter) Allow(now time.Time) bool {
	return l.AllowN(now, 1)
}

// AllowN takes cost tokens if at least cost are available.
func (l *Limiter) AllowN(now time.Time, cost int64) bool {
	if cost <= 0 {
		return true
	}
	for {
		cur := l.state.Load()
		next := l.refill(cur, now)
		if next.tokens < float64(cost) {
			return false
		}
		next.tokens = snap(next.tokens - float64(cost))
		if l.state.CompareAndSwap(cur, &next) {
			return true
		}
	}
}

// Tokens returns the number of tokens available at now.
func (l *Limiter) Tokens(now time.Time) float64 {
	return l.refill(l.state.Load(), now).tokens
}

// Snapshot reports the tokens available at now.
func (l *Limiter) Snapshot(now time.Time) types.Snapshot {
	return types.Snapshot{Level: l.Tokens(now), Capacity: float64(l.capacity)}
}

// refill returns the bucket as it would be at now. lastRefill always
// advances to now; an earlier now adds nothing.
func (l *Limiter) refill(cur *bucket, now time.Time) bucket {
	if !cur.started {
		return bucket{started: true, tokens: l.initial, lastRefill: now}
	}
	next := *cur
	elapsed := clock.Elapsed(now, next.lastRefill)
	if elapsed > 0 {
		next.tokens = snap(math.Min(float64(l.capacity), next.tokens+elapsed.Seconds()*l.rate))
		next.lastRefill = now
	}
	return next
}

// snap clamps tokens at zero and rounds values within epsilon of a whole token.
func snap(tokens float64) float64 {
	if tokens < epsilon {
		return 0
	}
	if r := math.Round(tokens); math.Abs(tokens-r) < epsilon {
		return r
	}
	return tokens
}

var _ types.Decider = (*Limiter)(nil)
