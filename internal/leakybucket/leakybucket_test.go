package leakybucket_test

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"learn.admission/config"
	"learn.admission/internal/leakybucket"
	"learn.admission/types"
)

var t0 = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

type snapshotDecider interface {
	types.Decider
	types.Snapshotter
}

func models(t *testing.T, rate float64, capacity int64) map[string]snapshotDecider {
	t.Helper()
	counter, err := leakybucket.NewCounter(rate, capacity)
	if err != nil {
		t.Fatalf("NewCounter failed: %v", err)
	}
	queue, err := leakybucket.NewQueue(rate, capacity)
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	return map[string]snapshotDecider{"Counter": counter, "Queue": queue}
}

func TestLeakyBucketLimiter_StrictPacing(t *testing.T) {
	for name, limiter := range models(t, 1, 3) {
		t.Run(name, func(t *testing.T) {
			allowed := 0
			for i := 0; i < 6; i++ {
				if limiter.Allow(t0) {
					allowed++
				}
			}
			if allowed != 3 {
				t.Fatalf("allowed %d of 6 simultaneous requests, want 3", allowed)
			}
		})
	}
}

func TestLeakyBucketLimiter_IdleDoesNotBankBurst(t *testing.T) {
	for name, limiter := range models(t, 1, 3) {
		t.Run(name, func(t *testing.T) {
			limiter.Allow(t0)
			allowed := 0
			for i := 0; i < 10; i++ {
				if limiter.Allow(at(60_000)) {
					allowed++
				}
			}
			if allowed != 3 {
				t.Fatalf("allowed %d after a long idle period, want capacity 3", allowed)
			}
		})
	}
}

func TestLeakyBucketLimiter_LeakOverTime(t *testing.T) {
	for name, limiter := range models(t, 2, 4) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 4; i++ {
				limiter.Allow(t0)
			}
			if limiter.Allow(at(499)) {
				t.Fatal("nothing has leaked after 499ms at 2/s")
			}
			if !limiter.Allow(at(500)) {
				t.Fatal("one unit should have leaked after 500ms")
			}
			if limiter.Allow(at(500)) {
				t.Fatal("bucket should be full again")
			}
			// 1s later two more units have drained.
			if !limiter.Allow(at(1500)) || !limiter.Allow(at(1500)) {
				t.Fatal("two units should have leaked by 1.5s")
			}
			if limiter.Allow(at(1500)) {
				t.Fatal("bucket should be full at 1.5s")
			}
		})
	}
}

func TestCounterLimiter_KeepsFractionalProgress(t *testing.T) {
	limiter, _ := leakybucket.NewCounter(1, 1)
	limiter.Allow(t0)

	// Sub-interval calls must not discard elapsed time.
	for _, ms := range []int{300, 600, 900} {
		if limiter.Allow(at(ms)) {
			t.Fatalf("unexpected admission at %dms", ms)
		}
	}
	if !limiter.Allow(at(1000)) {
		t.Fatal("one unit should have drained after a full second")
	}
}

func TestQueueLimiter_KeepsResidualTime(t *testing.T) {
	limiter, _ := leakybucket.NewQueue(1, 3)
	for i := 0; i < 3; i++ {
		limiter.Allow(t0)
	}

	// 1.5s drains one entry and keeps 0.5s of progress.
	if !limiter.Allow(at(1500)) {
		t.Fatal("one entry should have drained at 1.5s")
	}
	if limiter.Allow(at(1900)) {
		t.Fatal("no further entry drains before 2s")
	}
	if !limiter.Allow(at(2000)) {
		t.Fatal("the residual 0.5s plus 0.5s should drain another entry at 2s")
	}
	if got := limiter.Len(); got != 3 {
		t.Fatalf("queue length = %d, want 3", got)
	}
}

func TestLeakyBucketLimiter_AllowN(t *testing.T) {
	for name, limiter := range models(t, 1, 5) {
		t.Run(name, func(t *testing.T) {
			if !limiter.AllowN(t0, 4) {
				t.Fatal("cost 4 of 5 should be allowed")
			}
			if limiter.AllowN(t0, 2) {
				t.Fatal("cost 2 with 1 free should be denied")
			}
			if !limiter.AllowN(at(1000), 2) {
				t.Fatal("cost 2 should fit after one unit drained")
			}
			if limiter.AllowN(at(100_000), 6) {
				t.Fatal("cost above capacity should never be allowed")
			}
		})
	}
}

func TestLeakyBucketLimiter_DenialDoesNotMutate(t *testing.T) {
	for name, limiter := range models(t, 1, 2) {
		t.Run(name, func(t *testing.T) {
			limiter.AllowN(t0, 2)
			before := limiter.Snapshot(at(200))
			if limiter.Allow(at(200)) {
				t.Fatal("request should be denied")
			}
			if after := limiter.Snapshot(at(200)); after != before {
				t.Fatalf("denial changed state: before %+v after %+v", before, after)
			}
		})
	}
}

func TestLeakyBucketLimiter_ClockRegression(t *testing.T) {
	for name, limiter := range models(t, 1, 2) {
		t.Run(name, func(t *testing.T) {
			limiter.AllowN(at(5000), 2)
			// An earlier timestamp must not produce a negative leak.
			if limiter.Allow(t0) {
				t.Fatal("regressed clock should see a full bucket")
			}
			if got := limiter.Snapshot(t0).Level; got != 2 {
				t.Fatalf("level = %v, want 2", got)
			}
		})
	}
}

func TestLeakyBucketLimiter_InvalidConfig(t *testing.T) {
	for _, tc := range []struct {
		name     string
		model    config.LeakyBucketModel
		rate     float64
		capacity int64
	}{
		{"ZeroRate", config.CounterModel, 0, 10},
		{"NegativeRate", config.QueueModel, -1, 10},
		{"ZeroCapacity", config.CounterModel, 5, 0},
		{"NegativeCapacity", config.QueueModel, 5, -1},
		{"UnknownModel", "pipe", 5, 10},
		{"QueueRateTooHigh", config.QueueModel, 1e12, 10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			limiter, err := leakybucket.New(tc.model, tc.rate, tc.capacity)
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if limiter != nil {
				t.Fatal("expected no limiter on configuration error")
			}
		})
	}
}

func TestLeakyBucketLimiter_Concurrency(t *testing.T) {
	for name, limiter := range models(t, 0.001, 10) {
		t.Run(name, func(t *testing.T) {
			var mu sync.Mutex
			allowed := 0
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if limiter.Allow(t0) {
						mu.Lock()
						allowed++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if allowed != 10 {
				t.Fatalf("allowed %d, want capacity 10", allowed)
			}
		})
	}
}

func TestLeakyBucketLimiter_HugeCostDenied(t *testing.T) {
	for name, limiter := range models(t, 1, 3) {
		t.Run(name, func(t *testing.T) {
			limiter.Allow(t0)
			if limiter.AllowN(t0, math.MaxInt64) {
				t.Fatal("a cost of MaxInt64 must be denied")
			}
			if got := limiter.Snapshot(t0).Level; got != 1 {
				t.Fatalf("level = %v, want 1", got)
			}
			allowed := 0
			for i := 0; i < 5; i++ {
				if limiter.Allow(t0) {
					allowed++
				}
			}
			if allowed != 2 {
				t.Fatalf("allowed %d after the denied cost, want 2", allowed)
			}
		})
	}
}
