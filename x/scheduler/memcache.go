package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/permagate/aogo/core"
)

// NewMemcachedCache returns a Cache backed by memcached.
func NewMemcachedCache(mc *memcache.Client, prefix string) Cache {
	if prefix == "" {
		prefix = "aogo:scheduler:"
	}
	return &memcachedCache{mc: mc, prefix: prefix}
}

type memcachedCache struct {
	mc     *memcache.Client
	prefix string
}

func (c *memcachedCache) Get(ctx context.Context, key string) (core.SchedulerLocation, bool) {
	item, err := c.mc.Get(c.prefix + key)
	if err != nil {
		return core.SchedulerLocation{}, false
	}

	var loc core.SchedulerLocation
	if err := json.Unmarshal(item.Value, &loc); err != nil {
		return core.SchedulerLocation{}, false
	}

	if time.Now().After(loc.FreshUntil()) {
		loc.Stale = true
	}
	return loc, true
}

func (c *memcachedCache) Set(ctx context.Context, key string, loc core.SchedulerLocation) {
	loc.Stale = false
	value, err := json.Marshal(loc)
	if err != nil {
		return
	}
	c.mc.Set(&memcache.Item{
		Key:        c.prefix + key,
		Value:      value,
		Expiration: int32((loc.TTL * staleRetention) / time.Second),
	})
}

func (c *memcachedCache) Invalidate(ctx context.Context, key string) {
	c.mc.Delete(c.prefix + key)
}
