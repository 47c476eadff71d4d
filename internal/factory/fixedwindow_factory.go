package factory

import (
	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/fixedcounter"
	"learn.admission/types"
)

// FixedWindowFactory creates limiters using the Fixed Window Counter algorithm.
type FixedWindowFactory struct{}

// NewFixedWindowFactory returns a new FixedWindowFactory instance.
func NewFixedWindowFactory() *FixedWindowFactory {
	return &FixedWindowFactory{}
}

// CreateLimiter creates a Fixed Window Counter limiter from cfg.WindowParams.
func (f *FixedWindowFactory) CreateLimiter(cfg config.LimiterConfig, opts Options) (types.Decider, error) {
	const name = "FixedWindowCounter"
	if cfg.WindowParams == nil {
		return nil, missingParams(name, cfg, "window_params")
	}
	log.Debug().Str("limiter_key", cfg.Key).Dur("window", cfg.WindowParams.Window).Int64("limit", cfg.WindowParams.Limit).Msgf("Factory(%s): Creating limiter", name)
	var fo []fixedcounter.Option
	if !opts.Origin.IsZero() {
		fo = append(fo, fixedcounter.WithOrigin(opts.Origin))
	}
	l, err := fixedcounter.New(cfg.WindowParams.Window, cfg.WindowParams.Limit, fo...)
	if err != nil {
		return nil, creationFailed(name, cfg, err)
	}
	return l, nil
}
