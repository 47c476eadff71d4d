package leakybucket

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/clock"
	"learn.admission/types"
)

// QueueLimiter is the queue model: admission timestamps held in a bounded
// queue, one popped per leak interval.
type QueueLimiter struct {
	capacity int64
	interval time.Duration

	mu       sync.Mutex
	started  bool
	queue    deque.Deque[time.Time]
	lastLeak time.Time
	last     time.Time
}

// NewQueue creates a queue-model leaky bucket draining rate entries per second.
func NewQueue(rate float64, capacity int64) (*QueueLimiter, error) {
	if err := validate(rate, capacity); err != nil {
		return nil, err
	}
	interval, err := leakInterval(rate)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("limiter_type", string(config.LeakyBucket)).Str("model", string(config.QueueModel)).Float64("rate", rate).Int64("capacity", capacity).Dur("leak_interval", interval).Msg("Limiter: Initialized")
	return &QueueLimiter{capacity: capacity, interval: interval}, nil
}

// Allow enqueues one entry if the queue has room for it.
func (l *QueueLimiter) Allow(now time.Time) bool {
	return l.AllowN(now, 1)
}

// AllowN enqueues cost entries stamped now if the drained queue has room for
// all of them. Draining happens whether or not the request is admitted.
func (l *QueueLimiter) AllowN(now time.Time, cost int64) bool {
	if cost <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		l.started = true
		l.lastLeak = now
	}
	now = clock.Clamp(now, l.last)
	l.last = now
	l.drain(now)

	if cost > l.capacity-int64(l.queue.Len()) {
		return false
	}
	for i := int64(0); i < cost; i++ {
		l.queue.PushBack(now)
	}
	return true
}

// Len returns the number of queued entries.
func (l *QueueLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// Snapshot reports the queue length as it would be after draining at now.
func (l *QueueLimiter) Snapshot(now time.Time) types.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	queued := int64(l.queue.Len())
	if l.started {
		now = clock.Clamp(now, l.last)
		leaked := int64(clock.Elapsed(now, l.lastLeak) / l.interval)
		queued = max(0, queued-leaked)
	}
	return types.Snapshot{Level: float64(queued), Capacity: float64(l.capacity)}
}

// drain pops one entry per whole interval elapsed and advances lastLeak by
// exactly that many intervals, keeping the remainder for the next call.
func (l *QueueLimiter) drain(now time.Time) {
	leaked := int64(clock.Elapsed(now, l.lastLeak) / l.interval)
	if leaked <= 0 {
		return
	}
	for i := int64(0); i < leaked && l.queue.Len() > 0; i++ {
		l.queue.PopFront()
	}
	l.lastLeak = l.lastLeak.Add(time.Duration(leaked) * l.interval)
}

var _ types.Decider = (*QueueLimiter)(nil)
