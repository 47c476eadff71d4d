package factory_test

import (
	"errors"
	"testing"
	"time"

	"learn.admission/config"
	"learn.admission/internal/factory"
	"learn.admission/internal/fixedcounter"
	"learn.admission/internal/interpolatedcounter"
	"learn.admission/internal/leakybucket"
	"learn.admission/internal/slidingwindowcounter"
	"learn.admission/internal/slidingwindowlog"
	"learn.admission/internal/tokenbucket"
)

var t0 = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func window(w time.Duration, limit int64) config.Params {
	return config.Params{WindowParams: &config.WindowConfig{Window: w, Limit: limit}}
}

func TestNew_DispatchesOnAlgorithm(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  config.LimiterConfig
		want any
	}{
		{"FixedWindow", config.LimiterConfig{Algorithm: config.FixedWindowCounter, Params: window(time.Second, 5)}, &fixedcounter.Limiter{}},
		{"SlidingLog", config.LimiterConfig{Algorithm: config.SlidingWindowLog, Params: window(time.Second, 5)}, &slidingwindowlog.Limiter{}},
		{"SlidingCounter", config.LimiterConfig{Algorithm: config.SlidingWindowCounter, Params: window(time.Second, 5)}, &slidingwindowcounter.Limiter{}},
		{"Interpolated", config.LimiterConfig{Algorithm: config.InterpolatedSlidingWindowCounter, Params: window(time.Second, 5)}, &interpolatedcounter.Limiter{}},
		{"LeakyCounter", config.LimiterConfig{Algorithm: config.LeakyBucket, Params: config.Params{LeakyBucketParams: &config.LeakyBucketConfig{Rate: 1, Capacity: 5}}}, &leakybucket.CounterLimiter{}},
		{"LeakyQueue", config.LimiterConfig{Algorithm: config.LeakyBucket, Params: config.Params{LeakyBucketParams: &config.LeakyBucketConfig{Rate: 1, Capacity: 5, Model: config.QueueModel}}}, &leakybucket.QueueLimiter{}},
		{"TokenBucket", config.LimiterConfig{Algorithm: config.TokenBucket, Params: config.Params{TokenBucketParams: &config.TokenBucketConfig{Rate: 1, Capacity: 5}}}, &tokenbucket.Limiter{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Key = "test"
			limiter, err := factory.New(tc.cfg, factory.Options{})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			var ok bool
			switch tc.want.(type) {
			case *fixedcounter.Limiter:
				_, ok = limiter.(*fixedcounter.Limiter)
			case *slidingwindowlog.Limiter:
				_, ok = limiter.(*slidingwindowlog.Limiter)
			case *slidingwindowcounter.Limiter:
				_, ok = limiter.(*slidingwindowcounter.Limiter)
			case *interpolatedcounter.Limiter:
				_, ok = limiter.(*interpolatedcounter.Limiter)
			case *leakybucket.CounterLimiter:
				_, ok = limiter.(*leakybucket.CounterLimiter)
			case *leakybucket.QueueLimiter:
				_, ok = limiter.(*leakybucket.QueueLimiter)
			case *tokenbucket.Limiter:
				_, ok = limiter.(*tokenbucket.Limiter)
			}
			if !ok {
				t.Fatalf("New returned %T, want %T", limiter, tc.want)
			}
			if !limiter.Allow(t0) {
				t.Fatal("first request should be allowed")
			}
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  config.LimiterConfig
	}{
		{"UnknownAlgorithm", config.LimiterConfig{Algorithm: "magic", Params: window(time.Second, 5)}},
		{"MissingParams", config.LimiterConfig{Algorithm: config.TokenBucket}},
		{"ZeroLimit", config.LimiterConfig{Algorithm: config.FixedWindowCounter, Params: window(time.Second, 0)}},
		{"ZeroWindow", config.LimiterConfig{Algorithm: config.SlidingWindowLog, Params: window(0, 5)}},
		{"TooManyBuckets", config.LimiterConfig{Algorithm: config.SlidingWindowCounter, Params: config.Params{WindowParams: &config.WindowConfig{Window: 5 * time.Nanosecond, Limit: 5, Buckets: 10}}}},
		{"NegativeLeakRate", config.LimiterConfig{Algorithm: config.LeakyBucket, Params: config.Params{LeakyBucketParams: &config.LeakyBucketConfig{Rate: -1, Capacity: 5}}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Key = "bad"
			limiter, err := factory.New(tc.cfg, factory.Options{})
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if limiter != nil {
				t.Fatal("expected no limiter on configuration error")
			}
		})
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := factory.New(config.LimiterConfig{Key: "k", Algorithm: "magic"}, factory.Options{})
	if !errors.Is(err, config.ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
	if _, err := factory.ForAlgorithm("magic"); !errors.Is(err, config.ErrUnknownAlgorithm) {
		t.Fatalf("ForAlgorithm: expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestCreateLimiter_MissingParams(t *testing.T) {
	for _, algorithm := range config.Algorithms {
		t.Run(string(algorithm), func(t *testing.T) {
			f, err := factory.ForAlgorithm(algorithm)
			if err != nil {
				t.Fatalf("ForAlgorithm failed: %v", err)
			}
			limiter, err := f.CreateLimiter(config.LimiterConfig{Key: "k", Algorithm: algorithm}, factory.Options{})
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if limiter != nil {
				t.Fatal("expected no limiter")
			}
		})
	}
}

func TestNew_OriginAlignsWindows(t *testing.T) {
	cfg := config.LimiterConfig{Key: "k", Algorithm: config.FixedWindowCounter, Params: window(time.Second, 1)}
	limiter, err := factory.New(cfg, factory.Options{Origin: t0})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !limiter.Allow(t0.Add(999 * time.Millisecond)) {
		t.Fatal("first request should be allowed")
	}
	// The window started at t0, so a new one begins at t0+1s.
	if !limiter.Allow(t0.Add(time.Second)) {
		t.Fatal("request in the next aligned window should be allowed")
	}
}
