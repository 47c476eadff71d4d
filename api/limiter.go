package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/clock"
	"learn.admission/internal/eviction"
	"learn.admission/internal/factory"
	"learn.admission/internal/registry"
	"learn.admission/metrics"
	"learn.admission/types"
)

// ErrMissingIdentity is returned when a request carries no client identity.
var ErrMissingIdentity = errors.New("missing client identity")

// KeyedLimiter applies one limiter configuration to many client
// identities, each with its own lazily created Decider. Windows and refill
// start at an identity's first request, so window boundaries differ between
// identities and an evicted identity starts a new window when it returns.
//
// With MaxIdentities set, every decision also records the identity in the
// LRU bound, which serializes on a single lock across all shards.
type KeyedLimiter struct {
	cfg     config.LimiterConfig
	regCfg  config.RegistryConfig
	clock   clock.Clock
	metrics *metrics.RateLimitMetrics

	reg     *registry.Registry
	bound   *eviction.LRUBound
	sweeper *eviction.IdleSweeper
}

// Option configures a KeyedLimiter.
type Option func(*KeyedLimiter)

// WithClock sets the time source passed to every decision.
func WithClock(c clock.Clock) Option {
	return func(k *KeyedLimiter) {
		k.clock = c
	}
}

// WithRegistryConfig sets sharding and eviction for the identity registry.
func WithRegistryConfig(rc config.RegistryConfig) Option {
	return func(k *KeyedLimiter) {
		k.regCfg = rc
	}
}

// WithMetricsRegistry records into r instead of metrics.DefaultRegistry.
func WithMetricsRegistry(r *metrics.Registry) Option {
	return func(k *KeyedLimiter) {
		k.metrics = r.ForLimiter(k.cfg.Key, k.cfg.Algorithm)
	}
}

// NewKeyedLimiter validates cfg and creates a limiter serving every
// identity. Close must be called to stop a scheduled idle sweep.
func NewKeyedLimiter(cfg config.LimiterConfig, opts ...Option) (*KeyedLimiter, error) {
	k := &KeyedLimiter{cfg: cfg.WithDefaults(), clock: clock.System{}}
	for _, opt := range opts {
		opt(k)
	}
	k.regCfg = k.regCfg.WithDefaults()
	if err := errors.Join(k.cfg.Validate(), k.regCfg.Validate()); err != nil {
		log.Error().Err(err).Str("limiter_key", cfg.Key).Msg("API: Limiter configuration rejected")
		return nil, err
	}
	if k.metrics == nil {
		k.metrics = metrics.DefaultRegistry.ForLimiter(k.cfg.Key, k.cfg.Algorithm)
	}

	k.reg = registry.New(k.regCfg.Shards, registry.WithClock(k.clock))
	if k.regCfg.MaxIdentities > 0 {
		bound, err := eviction.NewLRUBound(k.reg, k.regCfg.MaxIdentities, eviction.WithHook(k.evicted(metrics.ReasonLRU)))
		if err != nil {
			return nil, fmt.Errorf("limiter '%s': %w", k.cfg.Key, err)
		}
		k.bound = bound
	}
	if k.regCfg.IdleTTL > 0 {
		k.sweeper = eviction.NewIdleSweeper(k.reg, k.regCfg.IdleTTL,
			eviction.WithClock(k.clock),
			eviction.WithHook(k.evicted(metrics.ReasonIdle)),
		)
		if err := k.sweeper.Start(k.regCfg.SweepSchedule); err != nil {
			return nil, fmt.Errorf("limiter '%s': %w", k.cfg.Key, err)
		}
	}

	log.Info().
		Str("limiter_key", k.cfg.Key).
		Str("limiter_type", string(k.cfg.Algorithm)).
		Int("overrides", len(k.cfg.Overrides)).
		Int("shards", k.regCfg.Shards).
		Dur("idle_ttl", k.regCfg.IdleTTL).
		Int("max_identities", k.regCfg.MaxIdentities).
		Msg("Limiter: Initialized")
	return k, nil
}

func (k *KeyedLimiter) evicted(reason string) eviction.Hook {
	return func(identity string) {
		k.metrics.RecordEviction(reason)
		k.metrics.SetInstances(k.reg.Len())
	}
}

// Allow checks if one request from identity is allowed now.
func (k *KeyedLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	return k.AllowN(ctx, identity, 1)
}

// AllowN checks if a request of the given cost from identity is allowed
// now. A denial is reported as false with a nil error; an error means no
// decision was made.
func (k *KeyedLimiter) AllowN(ctx context.Context, identity string, cost int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		k.metrics.RecordError()
		return false, err
	}
	if identity == "" {
		k.metrics.RecordError()
		return false, fmt.Errorf("limiter '%s': %w", k.cfg.Key, ErrMissingIdentity)
	}

	d, err := k.reg.GetOrCreate(identity, func() (types.Decider, error) {
		return factory.New(k.cfg.Resolve(identity), factory.Options{})
	})
	if err != nil {
		k.metrics.RecordError()
		return false, fmt.Errorf("limiter '%s': identity '%s': %w", k.cfg.Key, identity, err)
	}
	if k.bound != nil {
		// Single lock shared by every identity.
		k.bound.Touch(identity)
	}

	now := k.clock.Now()
	allowed := d.AllowN(now, cost)

	k.metrics.RecordRequest(allowed)
	k.metrics.SetInstances(k.reg.Len())
	if s, ok := d.(types.Snapshotter); ok {
		k.metrics.SetTokens(remaining(k.cfg.Algorithm, s.Snapshot(now)))
	}
	log.Debug().
		Str("limiter_key", k.cfg.Key).
		Str("limiter_type", string(k.cfg.Algorithm)).
		Str("identifier", identity).
		Int64("cost", cost).
		Bool("allowed", allowed).
		Msg("Limiter: Decision")
	return allowed, nil
}

// remaining converts a snapshot into the capacity still available.
func remaining(algorithm config.AlgorithmType, s types.Snapshot) float64 {
	if algorithm == config.TokenBucket {
		return s.Level
	}
	return max(0, s.Capacity-s.Level)
}

// Snapshot reports the state of identity's Decider without consuming
// anything. ok is false if identity has no Decider yet.
func (k *KeyedLimiter) Snapshot(identity string) (s types.Snapshot, ok bool) {
	d, found := k.reg.Get(identity)
	if !found {
		return types.Snapshot{}, false
	}
	sn, isSnap := d.(types.Snapshotter)
	if !isSnap {
		return types.Snapshot{}, false
	}
	return sn.Snapshot(k.clock.Now()), true
}

// Evict drops identity's state so its next request starts fresh.
func (k *KeyedLimiter) Evict(identity string) bool {
	ok := k.reg.Evict(identity)
	if ok {
		k.metrics.SetInstances(k.reg.Len())
	}
	return ok
}

// SweepIdle runs the idle eviction policy once and returns how many
// identities were removed. It returns 0 when no idle TTL is configured.
func (k *KeyedLimiter) SweepIdle() int {
	if k.sweeper == nil {
		return 0
	}
	return k.sweeper.Sweep(k.clock.Now())
}

// Len returns the number of identities holding a Decider.
func (k *KeyedLimiter) Len() int {
	return k.reg.Len()
}

// Config returns the limiter configuration with defaults applied.
func (k *KeyedLimiter) Config() config.LimiterConfig {
	return k.cfg
}

// Close stops the idle sweep schedule, if any.
func (k *KeyedLimiter) Close() error {
	if k.sweeper != nil {
		k.sweeper.Stop()
	}
	return nil
}

var _ types.WeightedLimiter = (*KeyedLimiter)(nil)
