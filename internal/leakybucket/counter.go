package leakybucket

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/clock"
	"learn.admission/types"
)

type level struct {
	started  bool
	water    int64
	lastLeak time.Time
	last     time.Time
}

// CounterLimiter is the counter model: an integer water level that drains
// by whole units.
type CounterLimiter struct {
	rate     float64
	capacity int64
	state    atomic.Pointer[level]
}

// NewCounter creates a counter-model leaky bucket draining rate units per second.
func NewCounter(rate float64, capacity int64) (*CounterLimiter, error) {
	if err := validate(rate, capacity); err != nil {
		return nil, err
	}
	l := &CounterLimiter{rate: rate, capacity: capacity}
	l.state.Store(&level{})
	log.Debug().Str("limiter_type", string(config.LeakyBucket)).Str("model", string(config.CounterModel)).Float64("rate", rate).Int64("capacity", capacity).Msg("Limiter: Initialized")
	return l, nil
}

// Allow admits one unit if the bucket has room for it.
func (l *CounterLimiter) Allow(now time.Time) bool {
	return l.AllowN(now, 1)
}

// AllowN admits cost units if the drained bucket has room for all of them.
func (l *CounterLimiter) AllowN(now time.Time, cost int64) bool {
	if cost <= 0 {
		return true
	}
	for {
		cur := l.state.Load()
		next := l.leak(cur, now)
		if cost > l.capacity-next.water {
			return false
		}
		next.water += cost
		if l.state.CompareAndSwap(cur, &next) {
			return true
		}
	}
}

// Snapshot reports the water level at now.
func (l *CounterLimiter) Snapshot(now time.Time) types.Snapshot {
	next := l.leak(l.state.Load(), now)
	return types.Snapshot{Level: float64(next.water), Capacity: float64(l.capacity)}
}

// leak drains whole units accumulated since lastLeak. lastLeak only moves
// when at least one unit drained so partial progress carries over.
func (l *CounterLimiter) leak(cur *level, now time.Time) level {
	if !cur.started {
		return level{started: true, lastLeak: now, last: now}
	}
	next := *cur
	now = clock.Clamp(now, next.last)
	next.last = now

	leaked := math.Floor(clock.Elapsed(now, next.lastLeak).Seconds() * l.rate)
	if leaked >= 1 {
		if leaked >= float64(next.water) {
			next.water = 0
		} else {
			next.water -= int64(leaked)
		}
		next.lastLeak = now
	}
	return next
}

var _ types.Decider = (*CounterLimiter)(nil)
