// Package eviction provides optional policies that remove client identities
// from a registry. The registry itself never evicts; a policy is attached
// by whoever owns the registry.
package eviction

import "learn.admission/internal/clock"

// Hook is called once for every identity a policy removed.
type Hook func(identity string)

type options struct {
	clock   clock.Clock
	onEvict Hook
}

// Option configures a policy.
type Option func(*options)

// WithClock sets the clock the policy reads the current time from.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithHook registers fn to run after each eviction.
func WithHook(fn Hook) Option {
	return func(o *options) {
		o.onEvict = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: clock.System{}, onEvict: func(string) {}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
