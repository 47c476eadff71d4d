// Package registry maps client identities to their own Decider.
//
// Instances are created lazily on first reference and live until they are
// explicitly evicted. The registry never evicts on its own; idle and size
// bounds are layered on top by the eviction package.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/internal/clock"
	"learn.admission/types"
)

// Factory creates the Decider for an identity seen for the first time.
type Factory func() (types.Decider, error)

type entry struct {
	decider types.Decider
	// lastAccess is the UnixNano of the latest GetOrCreate for this identity.
	lastAccess atomic.Int64
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Registry is a sharded map from identity to Decider. Lookups of existing
// identities take a read lock on one shard only.
type Registry struct {
	shards []*shard
	clock  clock.Clock
	size   atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for last-access tracking.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// New creates a registry with the given number of shards. A count below
// one selects config.DefaultShards.
func New(shards int, opts ...Option) *Registry {
	if shards < 1 {
		shards = config.DefaultShards
	}
	r := &Registry{shards: make([]*shard, shards), clock: clock.System{}}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	for _, opt := range opts {
		opt(r)
	}
	log.Debug().Int("shards", shards).Msg("Registry: Initialized")
	return r
}

func (r *Registry) shardFor(identity string) *shard {
	return r.shards[xxhash.Sum64String(identity)%uint64(len(r.shards))]
}

// GetOrCreate returns the Decider registered for identity, calling create
// to build and register one if there is none. Concurrent first calls for
// the same identity run create exactly once and all receive its result.
// If create fails nothing is registered and its error is returned.
func (r *Registry) GetOrCreate(identity string, create Factory) (types.Decider, error) {
	now := r.clock.Now().UnixNano()
	s := r.shardFor(identity)

	s.mu.RLock()
	e, ok := s.entries[identity]
	s.mu.RUnlock()
	if ok {
		e.lastAccess.Store(now)
		return e.decider, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[identity]; ok {
		e.lastAccess.Store(now)
		return e.decider, nil
	}
	d, err := create()
	if err != nil {
		return nil, err
	}
	e = &entry{decider: d}
	e.lastAccess.Store(now)
	s.entries[identity] = e
	r.size.Add(1)
	log.Debug().Str("identifier", identity).Msg("Registry: Created instance")
	return d, nil
}

// Get returns the Decider registered for identity without creating one.
func (r *Registry) Get(identity string) (types.Decider, bool) {
	s := r.shardFor(identity)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[identity]
	if !ok {
		return nil, false
	}
	return e.decider, true
}

// Evict removes identity and reports whether it was present. A later
// GetOrCreate for the same identity starts from fresh state.
func (r *Registry) Evict(identity string) bool {
	s := r.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[identity]; !ok {
		return false
	}
	delete(s.entries, identity)
	r.size.Add(-1)
	log.Debug().Str("identifier", identity).Msg("Registry: Evicted instance")
	return true
}

// EvictIf removes every identity for which pred returns true and returns
// how many were removed. pred is called with the shard write lock held and
// must not call back into the registry.
func (r *Registry) EvictIf(pred func(identity string, lastAccess time.Time) bool) int {
	removed := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for identity, e := range s.entries {
			if pred(identity, time.Unix(0, e.lastAccess.Load())) {
				delete(s.entries, identity)
				removed++
			}
		}
		s.mu.Unlock()
	}
	r.size.Add(int64(-removed))
	return removed
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	return int(r.size.Load())
}

// Range calls fn for every registered identity until fn returns false.
// Each shard is copied before fn runs, so fn may call back into the
// registry. Entries added or removed during the walk may be missed.
func (r *Registry) Range(fn func(identity string, d types.Decider, lastAccess time.Time) bool) {
	type item struct {
		identity string
		e        *entry
	}
	for _, s := range r.shards {
		s.mu.RLock()
		items := make([]item, 0, len(s.entries))
		for identity, e := range s.entries {
			items = append(items, item{identity, e})
		}
		s.mu.RUnlock()
		for _, it := range items {
			if !fn(it.identity, it.e.decider, time.Unix(0, it.e.lastAccess.Load())) {
				return
			}
		}
	}
}
