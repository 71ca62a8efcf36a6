package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/permagate/aogo/core"
)

// NewRedisCache returns a Cache backed by redis, for deployments where
// many client processes should share one resolution cache. Entries are
// stored past their TTL (see staleRetention) and flagged stale on read.
func NewRedisCache(rdb *redis.Client, prefix string) Cache {
	if prefix == "" {
		prefix = "aogo:scheduler:"
	}
	return &redisCache{rdb: rdb, prefix: prefix}
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

func (c *redisCache) Get(ctx context.Context, key string) (core.SchedulerLocation, bool) {
	value, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "scheduler cache read failed",
				slog.String("module", "scheduler"),
				slog.String("error", err.Error()),
			)
		}
		return core.SchedulerLocation{}, false
	}

	var loc core.SchedulerLocation
	if err := json.Unmarshal([]byte(value), &loc); err != nil {
		return core.SchedulerLocation{}, false
	}

	if time.Now().After(loc.FreshUntil()) {
		loc.Stale = true
	}
	return loc, true
}

func (c *redisCache) Set(ctx context.Context, key string, loc core.SchedulerLocation) {
	loc.Stale = false
	value, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, value, loc.TTL*staleRetention).Err(); err != nil {
		slog.WarnContext(ctx, "scheduler cache write failed",
			slog.String("module", "scheduler"),
			slog.String("error", err.Error()),
		)
	}
}

func (c *redisCache) Invalidate(ctx context.Context, key string) {
	c.rdb.Del(ctx, c.prefix+key)
}
