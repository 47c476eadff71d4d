// Package factory builds single-identity Deciders from limiter configuration.
package factory

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/types"
)

// Options carries construction settings that are not part of the
// configuration file.
type Options struct {
	// Origin aligns window boundaries and the first refill to a fixed
	// instant. The zero value starts each limiter at its first call.
	Origin time.Time
}

// LimiterFactory creates Deciders for one algorithm.
type LimiterFactory interface {
	CreateLimiter(cfg config.LimiterConfig, opts Options) (types.Decider, error)
}

// ForAlgorithm returns the factory for the given algorithm.
func ForAlgorithm(algorithm config.AlgorithmType) (LimiterFactory, error) {
	switch algorithm {
	case config.FixedWindowCounter:
		return NewFixedWindowFactory(), nil
	case config.SlidingWindowLog:
		return NewSlidingWindowLogFactory(), nil
	case config.SlidingWindowCounter:
		return NewSlidingWindowCounterFactory(), nil
	case config.InterpolatedSlidingWindowCounter:
		return NewInterpolatedCounterFactory(), nil
	case config.LeakyBucket:
		return NewLeakyBucketFactory(), nil
	case config.TokenBucket:
		return NewTokenBucketFactory(), nil
	default:
		return nil, fmt.Errorf("%w '%s'", config.ErrUnknownAlgorithm, algorithm)
	}
}

// New validates cfg, fills in defaults and creates a Decider for it.
// Any error wraps config.ErrInvalidConfig and no Decider is returned.
func New(cfg config.LimiterConfig, opts Options) (types.Decider, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Str("limiter_key", cfg.Key).Str("limiter_type", string(cfg.Algorithm)).Msg("Factory: Configuration rejected")
		return nil, err
	}
	f, err := ForAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return f.CreateLimiter(cfg, opts)
}

// creationFailed logs and wraps a constructor error for the limiter key.
func creationFailed(name string, cfg config.LimiterConfig, err error) error {
	err = fmt.Errorf("limiter '%s': %w", cfg.Key, err)
	log.Error().Err(err).Str("limiter_key", cfg.Key).Msgf("Factory(%s): Creation failed", name)
	return err
}

func missingParams(name string, cfg config.LimiterConfig, field string) error {
	return creationFailed(name, cfg, &config.ConfigError{Key: cfg.Key, Field: field, Value: nil, Reason: "is required"})
}
