package config_test

import (
	"errors"
	"testing"
	"time"

	"learn.admission/config"
)

func TestLimiterConfigValidate(t *testing.T) {
	window := func(w time.Duration, limit int64, buckets int) *config.WindowConfig {
		return &config.WindowConfig{Window: w, Limit: limit, Buckets: buckets}
	}

	tests := []struct {
		name    string
		cfg     config.LimiterConfig
		wantErr bool
	}{
		{"fixed window ok", config.LimiterConfig{Algorithm: config.FixedWindowCounter, Params: config.Params{WindowParams: window(time.Second, 10, 0)}}, false},
		{"fixed window zero limit", config.LimiterConfig{Algorithm: config.FixedWindowCounter, Params: config.Params{WindowParams: window(time.Second, 0, 0)}}, true},
		{"sliding log negative window", config.LimiterConfig{Algorithm: config.SlidingWindowLog, Params: config.Params{WindowParams: window(-time.Second, 10, 0)}}, true},
		{"sliding log missing params", config.LimiterConfig{Algorithm: config.SlidingWindowLog}, true},
		{"bucketed zero buckets", config.LimiterConfig{Algorithm: config.SlidingWindowCounter, Params: config.Params{WindowParams: window(time.Second, 10, 0)}}, true},
		{"bucketed ok", config.LimiterConfig{Algorithm: config.SlidingWindowCounter, Params: config.Params{WindowParams: window(time.Second, 10, 4)}}, false},
		{"bucketed too many buckets", config.LimiterConfig{Algorithm: config.SlidingWindowCounter, Params: config.Params{WindowParams: window(time.Nanosecond, 10, 4)}}, true},
		{"interpolated ok", config.LimiterConfig{Algorithm: config.InterpolatedSlidingWindowCounter, Params: config.Params{WindowParams: window(time.Minute, 100, 0)}}, false},
		{"token bucket zero rate", config.LimiterConfig{Algorithm: config.TokenBucket, Params: config.Params{TokenBucketParams: &config.TokenBucketConfig{Rate: 0, Capacity: 5}}}, true},
		{"token bucket ok", config.LimiterConfig{Algorithm: config.TokenBucket, Params: config.Params{TokenBucketParams: &config.TokenBucketConfig{Rate: 2, Capacity: 5}}}, false},
		{"leaky bucket zero capacity", config.LimiterConfig{Algorithm: config.LeakyBucket, Params: config.Params{LeakyBucketParams: &config.LeakyBucketConfig{Rate: 1, Capacity: 0}}}, true},
		{"leaky bucket bad model", config.LimiterConfig{Algorithm: config.LeakyBucket, Params: config.Params{LeakyBucketParams: &config.LeakyBucketConfig{Rate: 1, Capacity: 3, Model: "pipe"}}}, true},
		{"leaky bucket queue ok", config.LimiterConfig{Algorithm: config.LeakyBucket, Params: config.Params{LeakyBucketParams: &config.LeakyBucketConfig{Rate: 1, Capacity: 3, Model: config.QueueModel}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidateUnknownAlgorithm(t *testing.T) {
	cfg := config.LimiterConfig{Key: "k", Algorithm: "gcra"}
	err := cfg.Validate()
	if !errors.Is(err, config.ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrUnknownAlgorithm to wrap ErrInvalidConfig, got %v", err)
	}
}

func TestConfigErrorCarriesKey(t *testing.T) {
	cfg := config.LimiterConfig{
		Key:       "api",
		Algorithm: config.TokenBucket,
		Params:    config.Params{TokenBucketParams: &config.TokenBucketConfig{Rate: 1, Capacity: -1}},
	}
	var ce *config.ConfigError
	if err := cfg.Validate(); !errors.As(err, &ce) {
		t.Fatalf("expected a ConfigError, got %v", err)
	}
	if ce.Key != "api" || ce.Field != "capacity" {
		t.Fatalf("unexpected ConfigError %+v", ce)
	}
}

func TestDefaultsAndResolve(t *testing.T) {
	cfg := config.LimiterConfig{
		Key:       "api",
		Algorithm: config.SlidingWindowCounter,
		Params:    config.Params{WindowParams: &config.WindowConfig{Window: time.Second, Limit: 10}},
		Overrides: map[string]config.Params{
			"premium": {WindowParams: &config.WindowConfig{Window: time.Second, Limit: 100}},
		},
	}.WithDefaults()

	if cfg.WindowParams.Buckets != config.DefaultBuckets {
		t.Fatalf("buckets = %d, want default %d", cfg.WindowParams.Buckets, config.DefaultBuckets)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() after defaults: %v", err)
	}

	premium := cfg.Resolve("premium")
	if premium.WindowParams.Limit != 100 || premium.WindowParams.Buckets != config.DefaultBuckets {
		t.Fatalf("premium resolved to %+v", premium.WindowParams)
	}
	if premium.Overrides != nil {
		t.Fatal("resolved config should not carry overrides")
	}
	if other := cfg.Resolve("someone"); other.WindowParams.Limit != 10 {
		t.Fatalf("default identity resolved to limit %d", other.WindowParams.Limit)
	}
}

func TestInvalidOverrideRejected(t *testing.T) {
	cfg := config.LimiterConfig{
		Key:       "api",
		Algorithm: config.TokenBucket,
		Params:    config.Params{TokenBucketParams: &config.TokenBucketConfig{Rate: 1, Capacity: 5}},
		Overrides: map[string]config.Params{
			"broken": {TokenBucketParams: &config.TokenBucketConfig{Rate: -1, Capacity: 5}},
		},
	}
	if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected invalid override to be rejected, got %v", err)
	}
}

func TestRegistryConfigValidate(t *testing.T) {
	if err := (config.RegistryConfig{IdleTTL: time.Minute, SweepSchedule: "@every 30s"}).Validate(); err != nil {
		t.Fatalf("valid registry config rejected: %v", err)
	}
	if err := (config.RegistryConfig{IdleTTL: time.Minute, SweepSchedule: "not a schedule"}).Validate(); err == nil {
		t.Fatal("expected a bad sweep schedule to be rejected")
	}
	if err := (config.RegistryConfig{MaxIdentities: -1}).Validate(); err == nil {
		t.Fatal("expected negative max_identities to be rejected")
	}
	if got := (config.RegistryConfig{}).WithDefaults().Shards; got != config.DefaultShards {
		t.Fatalf("default shards = %d", got)
	}
	if got := (config.RegistryConfig{IdleTTL: time.Minute}).WithDefaults().SweepSchedule; got != config.DefaultSweepSchedule {
		t.Fatalf("default sweep schedule = %q", got)
	}
	if got := (config.RegistryConfig{}).WithDefaults().SweepSchedule; got != "" {
		t.Fatalf("sweep schedule without idle ttl = %q, want empty", got)
	}
}
