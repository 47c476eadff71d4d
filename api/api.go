// Package api is the public entry point for building rate limiters from
// configuration.
package api

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	apiinternal "learn.admission/api/internal"
	"learn.admission/config"
)

// limiterCloser stops every limiter created from one configuration.
type limiterCloser struct {
	limiters []*KeyedLimiter
}

// Close stops the background work of all limiters held by the closer.
func (c *limiterCloser) Close() error {
	log.Info().Int("limiters", len(c.limiters)).Msg("API: Starting limiter shutdown")
	var errs []error
	for _, l := range c.limiters {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close limiter '%s': %w", l.cfg.Key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Error().Err(err).Msg("API: Errors during limiter shutdown")
		return err
	}
	log.Info().Msg("API: Limiter shutdown complete")
	return nil
}

// NewLimitersFromConfigPath loads the YAML config at configPath and returns
// the keyed limiters by key, their configurations by key, and an io.Closer
// that stops them.
func NewLimitersFromConfigPath(configPath string, opts ...Option) (map[string]*KeyedLimiter, map[string]config.LimiterConfig, io.Closer, error) {
	log.Info().Str("config_path", configPath).Msg("API: Starting initialization of rate limiters")
	cfgFile, err := apiinternal.LoadConfig(configPath)
	if err != nil {
		log.Error().Err(err).Str("config_path", configPath).Msg("API: Initialization failed: Error loading configuration")
		return nil, nil, nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return NewLimitersFromConfig(*cfgFile, opts...)
}

// NewLimitersFromConfig creates one KeyedLimiter per entry in file. Every
// limiter shares the file's registry section; opts apply to all of them.
// On error no limiter is left running.
func NewLimitersFromConfig(file config.File, opts ...Option) (map[string]*KeyedLimiter, map[string]config.LimiterConfig, io.Closer, error) {
	if len(file.Limiters) == 0 {
		err := fmt.Errorf("%w: no limiter configurations found", config.ErrInvalidConfig)
		log.Error().Err(err).Msg("API: Initialization failed")
		return nil, nil, nil, err
	}

	limiters := make(map[string]*KeyedLimiter, len(file.Limiters))
	configs := make(map[string]config.LimiterConfig, len(file.Limiters))
	closer := &limiterCloser{}
	fail := func(err error) (map[string]*KeyedLimiter, map[string]config.LimiterConfig, io.Closer, error) {
		log.Error().Err(err).Msg("API: Initialization failed")
		return nil, nil, nil, errors.Join(err, closer.Close())
	}

	log.Info().Int("limiters", len(file.Limiters)).Msg("API: Creating limiter instances")
	for _, cfg := range file.Limiters {
		if cfg.Key == "" {
			return fail(&config.ConfigError{Field: "key", Value: "", Reason: "is required"})
		}
		if _, dup := limiters[cfg.Key]; dup {
			return fail(&config.ConfigError{Key: cfg.Key, Field: "key", Value: cfg.Key, Reason: "is duplicated"})
		}

		limiterOpts := append([]Option{WithRegistryConfig(file.Registry)}, opts...)
		limiter, err := NewKeyedLimiter(cfg, limiterOpts...)
		if err != nil {
			return fail(fmt.Errorf("limiter '%s': failed to create instance: %w", cfg.Key, err))
		}
		limiters[cfg.Key] = limiter
		configs[cfg.Key] = limiter.Config()
		closer.limiters = append(closer.limiters, limiter)
		log.Info().Str("limiter_key", cfg.Key).Str("limiter_type", string(cfg.Algorithm)).Msg("API: Limiter created successfully")
	}

	log.Info().Msg("API: All rate limiters initialized")
	return limiters, configs, closer, nil
}
