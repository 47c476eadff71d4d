package factory

import (
	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/leakybucket"
	"learn.admission/types"
)

type LeakyBucketFactory struct{}

func NewLeakyBucketFactory() *LeakyBucketFactory {
	return &LeakyBucketFactory{}
}

// CreateLimiter builds the counter or queue model named by cfg.LeakyBucketParams.Model.
func (*LeakyBucketFactory) CreateLimiter(cfg config.LimiterConfig, _ Options) (types.Decider, error) {
	const name = "LeakyBucket"
	if cfg.LeakyBucketParams == nil {
		return nil, missingParams(name, cfg, "leaky_bucket_params")
	}
	p := cfg.LeakyBucketParams
	log.Debug().Str("limiter_key", cfg.Key).Str("model", string(p.Model)).Float64("rate", p.Rate).Int64("capacity", p.Capacity).Msgf("Factory(%s): Creating limiter", name)
	l, err := leakybucket.New(p.Model, p.Rate, p.Capacity)
	if err != nil {
		return nil, creationFailed(name, cfg, err)
	}
	return l, nil
}
