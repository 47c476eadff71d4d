package eviction

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"

	"learn.admission/internal/registry"
)

// LRUBound keeps at most size identities in a registry by evicting the least
// recently touched one. Identities removed by other means stay in the
// recency list until they age out, so the registry may hold fewer than size.
type LRUBound struct {
	reg   *registry.Registry
	cache *lru.Cache
	opts  options
}

// NewLRUBound creates a bound of size identities over reg.
func NewLRUBound(reg *registry.Registry, size int, opts ...Option) (*LRUBound, error) {
	b := &LRUBound{reg: reg, opts: buildOptions(opts)}
	cache, err := lru.NewWithEvict(size, func(key, _ interface{}) {
		identity := key.(string)
		if b.reg.Evict(identity) {
			log.Debug().Str("identifier", identity).Int("max_identities", size).Msg("Eviction: LRU bound")
			b.opts.onEvict(identity)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("lru bound of %d identities: %w", size, err)
	}
	b.cache = cache
	return b, nil
}

// Touch marks identity as most recently used, evicting the least recently
// used identity if the bound is exceeded. Call it after every registry access.
func (b *LRUBound) Touch(identity string) {
	b.cache.Add(identity, struct{}{})
}

// Len returns the number of tracked identities.
func (b *LRUBound) Len() int {
	return b.cache.Len()
}
