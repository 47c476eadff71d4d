package factory

import (
	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/tokenbucket"
	"learn.admission/types"
)

type TokenBucketFactory struct{}

func NewTokenBucketFactory() *TokenBucketFactory {
	return &TokenBucketFactory{}
}

func (*TokenBucketFactory) CreateLimiter(cfg config.LimiterConfig, opts Options) (types.Decider, error) {
	const name = "TokenBucket"
	if cfg.TokenBucketParams == nil {
		return nil, missingParams(name, cfg, "token_bucket_params")
	}
	p := cfg.TokenBucketParams
	log.Debug().Str("limiter_key", cfg.Key).Float64("rate", p.Rate).Int64("capacity", p.Capacity).Msgf("Factory(%s): Creating limiter", name)
	var to []tokenbucket.Option
	if !opts.Origin.IsZero() {
		to = append(to, tokenbucket.WithOrigin(opts.Origin))
	}
	l, err := tokenbucket.New(p.Rate, p.Capacity, to...)
	if err != nil {
		return nil, creationFailed(name, cfg, err)
	}
	return l, nil
}
