package api

import (
	"time"

	"learn.admission/config"
	"learn.admission/internal/factory"
	"learn.admission/types"
)

// NewLimiter creates a single-identity Decider for cfg. Overrides in cfg
// are ignored; use NewKeyedLimiter to serve many identities.
//
// An invalid configuration returns an error wrapping
// config.ErrInvalidConfig and no Decider.
func NewLimiter(cfg config.LimiterConfig) (types.Decider, error) {
	return factory.New(cfg, factory.Options{})
}

// NewLimiterAt is NewLimiter with window boundaries and refills anchored
// at origin instead of at the first call.
func NewLimiterAt(cfg config.LimiterConfig, origin time.Time) (types.Decider, error) {
	return factory.New(cfg, factory.Options{Origin: origin})
}
