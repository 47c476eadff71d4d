package factory

import (
	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/slidingwindowcounter"
	"learn.admission/types"
)

type SlidingWindowCounterFactory struct{}

func NewSlidingWindowCounterFactory() *SlidingWindowCounterFactory {
	return &SlidingWindowCounterFactory{}
}

func (*SlidingWindowCounterFactory) CreateLimiter(cfg config.LimiterConfig, opts Options) (types.Decider, error) {
	const name = "SlidingWindowCounter"
	if cfg.WindowParams == nil {
		return nil, missingParams(name, cfg, "window_params")
	}
	buckets := cfg.WindowParams.Buckets
	if buckets == 0 {
		buckets = config.DefaultBuckets
	}
	log.Debug().Str("limiter_key", cfg.Key).Dur("window", cfg.WindowParams.Window).Int64("limit", cfg.WindowParams.Limit).Int("buckets", buckets).Msgf("Factory(%s): Creating limiter", name)
	var so []slidingwindowcounter.Option
	if !opts.Origin.IsZero() {
		so = append(so, slidingwindowcounter.WithOrigin(opts.Origin))
	}
	l, err := slidingwindowcounter.New(cfg.WindowParams.Window, cfg.WindowParams.Limit, buckets, so...)
	if err != nil {
		return nil, creationFailed(name, cfg, err)
	}
	return l, nil
}
