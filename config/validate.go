package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidConfig is wrapped by every configuration error.
	ErrInvalidConfig = errors.New("invalid limiter configuration")

	// ErrUnknownAlgorithm is returned for an unsupported AlgorithmType.
	ErrUnknownAlgorithm = fmt.Errorf("%w: unknown algorithm", ErrInvalidConfig)
)

// ConfigError describes a single rejected configuration value.
type ConfigError struct {
	Key    string
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s=%v %s", ErrInvalidConfig, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: limiter '%s': %s=%v %s", ErrInvalidConfig, e.Key, e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// PositiveInt rejects values <= 0.
func PositiveInt(field string, v int64) error {
	if v <= 0 {
		return &ConfigError{Field: field, Value: v, Reason: "must be positive"}
	}
	return nil
}

// PositiveRate rejects rates <= 0, including NaN.
func PositiveRate(field string, v float64) error {
	if !(v > 0) {
		return &ConfigError{Field: field, Value: v, Reason: "must be positive"}
	}
	return nil
}

// PositiveDuration rejects durations <= 0.
func PositiveDuration(field string, v time.Duration) error {
	if v <= 0 {
		return &ConfigError{Field: field, Value: v, Reason: "must be positive"}
	}
	return nil
}

// Validate checks that the algorithm is known and that every parameter it
// reads satisfies its constraints. Overrides are validated the same way.
func (c LimiterConfig) Validate() error {
	if err := c.Params.validate(c.Algorithm); err != nil {
		return withKey(err, c.Key)
	}
	for identity := range c.Overrides {
		if err := c.Resolve(identity).Params.validate(c.Algorithm); err != nil {
			return withKey(fmt.Errorf("override for '%s': %w", identity, err), c.Key)
		}
	}
	return nil
}

func (p Params) validate(algorithm AlgorithmType) error {
	switch algorithm {
	case FixedWindowCounter, SlidingWindowLog, InterpolatedSlidingWindowCounter:
		if p.WindowParams == nil {
			return &ConfigError{Field: "window_params", Value: nil, Reason: "is required"}
		}
		return p.WindowParams.validate(false)
	case SlidingWindowCounter:
		if p.WindowParams == nil {
			return &ConfigError{Field: "window_params", Value: nil, Reason: "is required"}
		}
		return p.WindowParams.validate(true)
	case TokenBucket:
		if p.TokenBucketParams == nil {
			return &ConfigError{Field: "token_bucket_params", Value: nil, Reason: "is required"}
		}
		return errors.Join(
			PositiveRate("rate", p.TokenBucketParams.Rate),
			PositiveInt("capacity", p.TokenBucketParams.Capacity),
		)
	case LeakyBucket:
		if p.LeakyBucketParams == nil {
			return &ConfigError{Field: "leaky_bucket_params", Value: nil, Reason: "is required"}
		}
		lb := p.LeakyBucketParams
		var modelErr error
		switch lb.Model {
		case CounterModel, QueueModel, "":
		default:
			modelErr = &ConfigError{Field: "model", Value: lb.Model, Reason: "must be counter or queue"}
		}
		return errors.Join(
			PositiveRate("rate", lb.Rate),
			PositiveInt("capacity", lb.Capacity),
			modelErr,
		)
	default:
		return fmt.Errorf("%w '%s'", ErrUnknownAlgorithm, algorithm)
	}
}

func (w *WindowConfig) validate(bucketed bool) error {
	errs := []error{
		PositiveDuration("window", w.Window),
		PositiveInt("limit", w.Limit),
	}
	if bucketed {
		if w.Buckets < 1 {
			errs = append(errs, &ConfigError{Field: "buckets", Value: w.Buckets, Reason: "must be at least 1"})
		} else if w.Window/time.Duration(w.Buckets) <= 0 {
			errs = append(errs, &ConfigError{Field: "buckets", Value: w.Buckets, Reason: "leaves a zero bucket width"})
		}
	}
	return errors.Join(errs...)
}

// Validate checks the registry section.
func (r RegistryConfig) Validate() error {
	if r.Shards < 0 {
		return &ConfigError{Field: "registry.shards", Value: r.Shards, Reason: "cannot be negative"}
	}
	if r.IdleTTL < 0 {
		return &ConfigError{Field: "registry.idle_ttl", Value: r.IdleTTL, Reason: "cannot be negative"}
	}
	if r.MaxIdentities < 0 {
		return &ConfigError{Field: "registry.max_identities", Value: r.MaxIdentities, Reason: "cannot be negative"}
	}
	if r.IdleTTL > 0 && r.SweepSchedule != "" {
		if _, err := cron.ParseStandard(r.SweepSchedule); err != nil {
			return &ConfigError{Field: "registry.sweep_schedule", Value: r.SweepSchedule, Reason: err.Error()}
		}
	}
	return nil
}

// withKey stamps the limiter key onto any ConfigError inside err.
func withKey(err error, key string) error {
	if err == nil || key == "" {
		return err
	}
	var ce *ConfigError
	if errors.As(err, &ce) && ce.Key == "" {
		ce.Key = key
	}
	return err
}
