package factory

import (
	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/interpolatedcounter"
	"learn.admission/types"
)

// InterpolatedCounterFactory creates limiters using the interpolated
// sliding window counter.
type InterpolatedCounterFactory struct{}

func NewInterpolatedCounterFactory() *InterpolatedCounterFactory {
	return &InterpolatedCounterFactory{}
}

func (*InterpolatedCounterFactory) CreateLimiter(cfg config.LimiterConfig, opts Options) (types.Decider, error) {
	const name = "InterpolatedSlidingWindowCounter"
	if cfg.WindowParams == nil {
		return nil, missingParams(name, cfg, "window_params")
	}
	log.Debug().Str("limiter_key", cfg.Key).Dur("window", cfg.WindowParams.Window).Int64("limit", cfg.WindowParams.Limit).Msgf("Factory(%s): Creating limiter", name)
	var ico []interpolatedcounter.Option
	if !opts.Origin.IsZero() {
		ico = append(ico, interpolatedcounter.WithOrigin(opts.Origin))
	}
	l, err := interpolatedcounter.New(cfg.WindowParams.Window, cfg.WindowParams.Limit, ico...)
	if err != nil {
		return nil, creationFailed(name, cfg, err)
	}
	return l, nil
}
