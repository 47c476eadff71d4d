package factory

import (
	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/slidingwindowlog"
	"learn.admission/types"
)

// SlidingWindowLogFactory creates limiters using the Sliding Window Log algorithm.
type SlidingWindowLogFactory struct{}

func NewSlidingWindowLogFactory() *SlidingWindowLogFactory {
	return &SlidingWindowLogFactory{}
}

// CreateLimiter ignores opts.Origin: a log has no boundaries to align.
func (*SlidingWindowLogFactory) CreateLimiter(cfg config.LimiterConfig, _ Options) (types.Decider, error) {
	const name = "SlidingWindowLog"
	if cfg.WindowParams == nil {
		return nil, missingParams(name, cfg, "window_params")
	}
	log.Debug().Str("limiter_key", cfg.Key).Dur("window", cfg.WindowParams.Window).Int64("limit", cfg.WindowParams.Limit).Msgf("Factory(%s): Creating limiter", name)
	l, err := slidingwindowlog.New(cfg.WindowParams.Window, cfg.WindowParams.Limit)
	if err != nil {
		return nil, creationFailed(name, cfg, err)
	}
	return l, nil
}
