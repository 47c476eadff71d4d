package config

import "time"

// AlgorithmType represents the type of rate limiting algorithm.
type AlgorithmType string

const (
	FixedWindowCounter               AlgorithmType = "fixed_window_counter"
	SlidingWindowLog                 AlgorithmType = "sliding_window_log"
	SlidingWindowCounter             AlgorithmType = "sliding_window_counter"
	InterpolatedSlidingWindowCounter AlgorithmType = "interpolated_sliding_window_counter"
	LeakyBucket                      AlgorithmType = "leaky_bucket"
	TokenBucket                      AlgorithmType = "token_bucket"
)

// Algorithms lists every supported algorithm in declaration order.
var Algorithms = []AlgorithmType{
	FixedWindowCounter,
	SlidingWindowLog,
	SlidingWindowCounter,
	InterpolatedSlidingWindowCounter,
	LeakyBucket,
	TokenBucket,
}

// LeakyBucketModel selects the state model of the leaky bucket.
type LeakyBucketModel string

const (
	// CounterModel keeps an integer water level.
	CounterModel LeakyBucketModel = "counter"
	// QueueModel keeps the admission timestamps themselves.
	QueueModel LeakyBucketModel = "queue"
)

const (
	// DefaultBuckets is used for the bucketed sliding window counter when
	// the configuration leaves buckets unset.
	DefaultBuckets = 10
	// DefaultShards is the registry shard count when unset.
	DefaultShards = 32
	// DefaultSweepSchedule is used when an idle TTL is set without a schedule.
	DefaultSweepSchedule = "@every 1m"
)

// LimiterConfig holds the configuration for a single rate limiter.
type LimiterConfig struct {
	Algorithm AlgorithmType `yaml:"algorithm"`
	Key       string        `yaml:"key"`

	Params `yaml:",inline"`

	// Overrides maps a client identity to the parameters it uses instead
	// of the defaults above. Only the non-nil sections are replaced.
	Overrides map[string]Params `yaml:"overrides,omitempty"`
}

// Params groups the algorithm specific parameter sections.
type Params struct {
	WindowParams      *WindowConfig      `yaml:"window_params,omitempty"`
	TokenBucketParams *TokenBucketConfig `yaml:"token_bucket_params,omitempty"`
	LeakyBucketParams *LeakyBucketConfig `yaml:"leaky_bucket_params,omitempty"`
}

// WindowConfig holds parameters for the window based algorithms.
type WindowConfig struct {
	Window time.Duration `yaml:"window"`
	Limit  int64         `yaml:"limit"`
	// Buckets is only read by the bucketed sliding window counter.
	Buckets int `yaml:"buckets,omitempty"`
}

// TokenBucketConfig holds parameters for the Token Bucket algorithm.
type TokenBucketConfig struct {
	// Rate is the number of tokens added per second.
	Rate     float64 `yaml:"rate"`
	Capacity int64   `yaml:"capacity"`
}

// LeakyBucketConfig holds parameters for the Leaky Bucket algorithm.
type LeakyBucketConfig struct {
	// Rate is the number of units drained per second.
	Rate     float64          `yaml:"rate"`
	Capacity int64            `yaml:"capacity"`
	Model    LeakyBucketModel `yaml:"model,omitempty"`
}

// RegistryConfig controls the per-client registry and its optional
// eviction policies. Zero values disable the corresponding policy.
//
// MaxIdentities bounds the registry with an LRU. Recency is updated on
// every decision under one lock, so a bounded limiter does not get the
// full benefit of Shards under heavy concurrent load.
type RegistryConfig struct {
	Shards        int           `yaml:"shards,omitempty"`
	IdleTTL       time.Duration `yaml:"idle_ttl,omitempty"`
	SweepSchedule string        `yaml:"sweep_schedule,omitempty"`
	MaxIdentities int           `yaml:"max_identities,omitempty"`
}

// File represents the top-level structure of the configuration file.
type File struct {
	Limiters []LimiterConfig `yaml:"limiters"`
	Registry RegistryConfig  `yaml:"registry,omitempty"`
}

// WithDefaults returns a copy of the params with unset optional fields filled in.
func (p Params) WithDefaults() Params {
	if p.WindowParams != nil && p.WindowParams.Buckets == 0 {
		w := *p.WindowParams
		w.Buckets = DefaultBuckets
		p.WindowParams = &w
	}
	if p.LeakyBucketParams != nil && p.LeakyBucketParams.Model == "" {
		lb := *p.LeakyBucketParams
		lb.Model = CounterModel
		p.LeakyBucketParams = &lb
	}
	return p
}

// WithDefaults returns a copy of the config with unset optional fields filled in,
// including inside every override.
func (c LimiterConfig) WithDefaults() LimiterConfig {
	c.Params = c.Params.WithDefaults()
	if len(c.Overrides) > 0 {
		overrides := make(map[string]Params, len(c.Overrides))
		for identity, p := range c.Overrides {
			overrides[identity] = p.WithDefaults()
		}
		c.Overrides = overrides
	}
	return c
}

// Resolve returns the configuration that applies to identity: the limiter's
// defaults with any override sections for that identity swapped in. The
// returned config carries no overrides of its own.
func (c LimiterConfig) Resolve(identity string) LimiterConfig {
	resolved := c
	resolved.Overrides = nil
	o, ok := c.Overrides[identity]
	if !ok {
		return resolved
	}
	if o.WindowParams != nil {
		resolved.WindowParams = o.WindowParams
	}
	if o.TokenBucketParams != nil {
		resolved.TokenBucketParams = o.TokenBucketParams
	}
	if o.LeakyBucketParams != nil {
		resolved.LeakyBucketParams = o.LeakyBucketParams
	}
	return resolved
}

// WithDefaults returns a copy of the registry config with unset fields filled in.
func (r RegistryConfig) WithDefaults() RegistryConfig {
	if r.Shards == 0 {
		r.Shards = DefaultShards
	}
	if r.IdleTTL > 0 && r.SweepSchedule == "" {
		r.SweepSchedule = DefaultSweepSchedule
	}
	return r
}
