// Package types defines common types and interfaces used throughout the rate limiter.
package types

import (
	"context"
	"time"
)

// Decider is the admission contract every algorithm implements. A Decider
// owns the state of exactly one client identity.
//
// Successive calls should pass non-decreasing timestamps; an earlier
// timestamp is treated as the latest one already observed. A false result
// never records the attempt.
type Decider interface {
	// Allow reports whether one permit is available at now and consumes it if so.
	Allow(now time.Time) bool

	// AllowN reports whether cost permits are available at now and consumes
	// them if so. A cost <= 0 is always allowed and consumes nothing.
	AllowN(now time.Time, cost int64) bool
}

// Snapshot is the observable state of a Decider at a point in time.
type Snapshot struct {
	// Level is the algorithm's consumed amount: window count, log length,
	// bucketed sum, interpolated estimate or water level. For the token
	// bucket it is the number of tokens available.
	Level float64
	// Capacity is the amount Level is compared against.
	Capacity float64
}

// Snapshotter is implemented by Deciders that can report their state
// without consuming permits.
type Snapshotter interface {
	Snapshot(now time.Time) Snapshot
}

// Limiter is the keyed interface consumed by request-handling layers.
type Limiter interface {
	// Allow checks if a request is allowed for the given key.
	// It returns true if the request is allowed, false otherwise, and an error if any occurred.
	Allow(ctx context.Context, key string) (bool, error)
}

// WeightedLimiter is a Limiter whose requests may consume more than one permit.
type WeightedLimiter interface {
	Limiter
	AllowN(ctx context.Context, key string, cost int64) (bool, error)
}
