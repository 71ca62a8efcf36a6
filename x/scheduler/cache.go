package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/permagate/aogo/core"
)

// Cache stores resolved scheduler locations. Backends keep entries
// past their TTL so a stale location can be offered as a fallback when
// a fresh lookup fails; Get flags such entries with Stale.
type Cache interface {
	Get(ctx context.Context, key string) (core.SchedulerLocation, bool)
	Set(ctx context.Context, key string, loc core.SchedulerLocation)
	Invalidate(ctx context.Context, key string)
}

// staleRetention bounds how long an expired entry stays usable as a
// fallback, as a multiple of its TTL.
const staleRetention = 4

// NewMemoryCache returns the default in-process cache.
func NewMemoryCache() Cache {
	return &memoryCache{entries: map[string]core.SchedulerLocation{}}
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]core.SchedulerLocation
}

func (c *memoryCache) Get(ctx context.Context, key string) (core.SchedulerLocation, bool) {
	c.mu.RLock()
	loc, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return core.SchedulerLocation{}, false
	}

	now := time.Now()
	if now.After(loc.FreshUntil()) {
		if now.After(loc.ResolvedAt.Add(loc.TTL * staleRetention)) {
			c.Invalidate(ctx, key)
			return core.SchedulerLocation{}, false
		}
		loc.Stale = true
	}
	return loc, true
}

func (c *memoryCache) Set(ctx context.Context, key string, loc core.SchedulerLocation) {
	loc.Stale = false
	c.mu.Lock()
	c.entries[key] = loc
	c.mu.Unlock()
}

func (c *memoryCache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
