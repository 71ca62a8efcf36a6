// Package scheduler resolves which scheduler endpoint is authoritative
// for a process, with a TTL cache and single-flight coalescing so
// concurrent resolutions of one process cost one directory round-trip.
package scheduler

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"

	"github.com/permagate/aogo/client"
	"github.com/permagate/aogo/core"
)

var tracer = otel.Tracer("scheduler")

const processQuery = `
query($id: ID!) {
  transactions(ids: [$id], first: 1) {
    edges { node { id owner { address } tags { name value } } }
  }
}`

const locationQuery = `
query($owner: String!) {
  transactions(
    owners: [$owner],
    tags: [{name: "Type", values: ["Scheduler-Location"]}],
    first: 1,
    sort: HEIGHT_DESC
  ) {
    edges { node { id owner { address } tags { name value } } }
  }
}`

type Service interface {
	// Locate resolves the scheduler endpoint for an existing process.
	Locate(ctx context.Context, processID string) (core.SchedulerLocation, error)
	// LocateScheduler resolves a scheduler by its owner address, used
	// by spawn before any process exists.
	LocateScheduler(ctx context.Context, address string) (core.SchedulerLocation, error)
	// Invalidate drops the cached location for a process, forcing the
	// next Locate to re-resolve.
	Invalidate(ctx context.Context, processID string)
}

type service struct {
	client     client.Client
	cache      Cache
	gatewayURL string
	defaultTTL time.Duration
	group      singleflight.Group
}

func NewService(c client.Client, cache Cache, gatewayURL string, defaultTTL time.Duration) Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if defaultTTL == 0 {
		defaultTTL = core.DefaultLocationTTL
	}
	return &service{
		client:     c,
		cache:      cache,
		gatewayURL: gatewayURL,
		defaultTTL: defaultTTL,
	}
}

func processKey(processID string) string {
	return "process:" + processID
}

func schedulerKey(address string) string {
	return "scheduler:" + address
}

func (s *service) Locate(ctx context.Context, processID string) (core.SchedulerLocation, error) {
	ctx, span := tracer.Start(ctx, "Scheduler.Service.Locate")
	defer span.End()

	return s.resolve(ctx, processKey(processID), func(ctx context.Context) (core.SchedulerLocation, error) {
		return s.lookupProcess(ctx, processID)
	})
}

func (s *service) LocateScheduler(ctx context.Context, address string) (core.SchedulerLocation, error) {
	ctx, span := tracer.Start(ctx, "Scheduler.Service.LocateScheduler")
	defer span.End()

	return s.resolve(ctx, schedulerKey(address), func(ctx context.Context) (core.SchedulerLocation, error) {
		return s.lookupLocation(ctx, address)
	})
}

func (s *service) Invalidate(ctx context.Context, processID string) {
	s.cache.Invalidate(ctx, processKey(processID))
}

// resolve serves from cache when fresh, coalesces concurrent lookups
// per key, and falls back to a stale entry when the directory is
// unreachable.
func (s *service) resolve(ctx context.Context, key string, lookup func(context.Context) (core.SchedulerLocation, error)) (core.SchedulerLocation, error) {
	cached, hasCached := s.cache.Get(ctx, key)
	if hasCached && !cached.Stale {
		return cached, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Re-check: a coalesced peer may have repopulated the cache.
		if loc, ok := s.cache.Get(ctx, key); ok && !loc.Stale {
			return loc, nil
		}

		loc, err := lookup(ctx)
		if err != nil {
			return core.SchedulerLocation{}, err
		}
		s.cache.Set(ctx, key, loc)
		return loc, nil
	})
	if err == nil {
		return v.(core.SchedulerLocation), nil
	}

	if hasCached {
		slog.WarnContext(ctx, "scheduler resolution failed, using stale location",
			slog.String("module", "scheduler"),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return cached, nil
	}

	return core.SchedulerLocation{}, err
}

// lookupProcess finds the scheduler address assigned to a process and
// chases it to a Scheduler-Location record.
func (s *service) lookupProcess(ctx context.Context, processID string) (core.SchedulerLocation, error) {
	txs, err := s.client.QueryGateway(ctx, s.gatewayURL, processQuery, map[string]any{"id": processID})
	if err != nil {
		return core.SchedulerLocation{}, core.NewResolutionError(processID, err)
	}
	if len(txs) == 0 {
		return core.SchedulerLocation{}, core.NewResolutionError(processID, nil)
	}

	address, ok := core.FindTag(txs[0].Tags, core.TagScheduler)
	if !ok {
		return core.SchedulerLocation{}, core.NewResolutionError(processID, nil)
	}

	return s.lookupLocation(ctx, address)
}

// lookupLocation finds the newest Scheduler-Location record published
// by a scheduler address.
func (s *service) lookupLocation(ctx context.Context, address string) (core.SchedulerLocation, error) {
	txs, err := s.client.QueryGateway(ctx, s.gatewayURL, locationQuery, map[string]any{"owner": address})
	if err != nil {
		return core.SchedulerLocation{}, core.NewResolutionError(address, err)
	}
	if len(txs) == 0 {
		return core.SchedulerLocation{}, core.NewResolutionError(address, nil)
	}

	endpoint, ok := core.FindTag(txs[0].Tags, "Url")
	if !ok {
		return core.SchedulerLocation{}, core.NewResolutionError(address, nil)
	}

	ttl := s.defaultTTL
	if raw, ok := core.FindTag(txs[0].Tags, "Time-To-Live"); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			ttl = time.Duration(ms) * time.Millisecond
		}
	}

	return core.SchedulerLocation{
		Address:    address,
		URL:        endpoint,
		TTL:        ttl,
		ResolvedAt: time.Now(),
	}, nil
}
