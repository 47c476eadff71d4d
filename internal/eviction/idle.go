package eviction

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"learn.admission/internal/registry"
)

// IdleSweeper removes identities that have not been accessed for ttl.
type IdleSweeper struct {
	reg  *registry.Registry
	ttl  time.Duration
	opts options

	mu   sync.Mutex
	cron *cron.Cron
}

// NewIdleSweeper creates a sweeper for reg. It does nothing until Sweep or
// Start is called.
func NewIdleSweeper(reg *registry.Registry, ttl time.Duration, opts ...Option) *IdleSweeper {
	return &IdleSweeper{reg: reg, ttl: ttl, opts: buildOptions(opts)}
}

// Sweep evicts every identity last accessed at or before now-ttl and
// returns how many were removed.
func (s *IdleSweeper) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)
	var evicted []string
	s.reg.EvictIf(func(identity string, lastAccess time.Time) bool {
		if lastAccess.After(cutoff) {
			return false
		}
		evicted = append(evicted, identity)
		return true
	})
	for _, identity := range evicted {
		s.opts.onEvict(identity)
	}
	if len(evicted) > 0 {
		log.Info().Int("evicted", len(evicted)).Dur("idle_ttl", s.ttl).Int("remaining", s.reg.Len()).Msg("Eviction: Idle sweep")
	}
	return len(evicted)
}

// Start runs Sweep on the given cron schedule, for example "@every 1m".
func (s *IdleSweeper) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("idle sweeper already started")
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { s.Sweep(s.opts.clock.Now()) }); err != nil {
		return fmt.Errorf("invalid sweep schedule '%s': %w", schedule, err)
	}
	c.Start()
	s.cron = c
	log.Info().Str("schedule", schedule).Dur("idle_ttl", s.ttl).Msg("Eviction: Idle sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *IdleSweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	log.Info().Msg("Eviction: Idle sweeper stopped")
}
