// Package leakybucket implements the Leaky Bucket rate limiting algorithm in
// two state models.
//
// Both models drain at a strictly constant rate. An idle period empties the
// bucket but never lets a following burst exceed capacity, unlike a token
// bucket.
package leakybucket

import (
	"errors"
	"fmt"
	"time"

	"learn.admission/config"
	"learn.admission/types"
)

// New creates a leaky bucket using the given state model. An empty model
// selects the counter model.
func New(model config.LeakyBucketModel, rate float64, capacity int64) (types.Decider, error) {
	switch model {
	case config.CounterModel, "":
		l, err := NewCounter(rate, capacity)
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.QueueModel:
		l, err := NewQueue(rate, capacity)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, &config.ConfigError{Field: "model", Value: model, Reason: "must be counter or queue"}
	}
}

func validate(rate float64, capacity int64) error {
	return errors.Join(
		config.PositiveRate("rate", rate),
		config.PositiveInt("capacity", capacity),
	)
}

// leakInterval is the time it takes to drain one unit at rate per second.
func leakInterval(rate float64) (time.Duration, error) {
	interval := time.Duration(float64(time.Second) / rate)
	if interval <= 0 {
		return 0, &config.ConfigError{Field: "rate", Value: rate, Reason: fmt.Sprintf("exceeds one unit per %s", time.Nanosecond)}
	}
	return interval, nil
}
