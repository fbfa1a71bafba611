package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hackgods/turf-booking/internal/catalog"
	redisclient "github.com/hackgods/turf-booking/internal/redis"
)

// AvailabilityCache keeps resolved availability for a short while.
// Misses and cache errors both fall through to the store.
type AvailabilityCache interface {
	Get(ctx context.Context, date string, sport catalog.Sport) (*Availability, bool)
	Set(ctx context.Context, a *Availability)
	Invalidate(ctx context.Context, date string)
}

type redisAvailabilityCache struct {
	cache *redisclient.JSONCache
	ttl   time.Duration
}

func NewRedisAvailabilityCache(cache *redisclient.JSONCache, ttl time.Duration) AvailabilityCache {
	return &redisAvailabilityCache{cache: cache, ttl: ttl}
}

func availabilityKey(date string, sport catalog.Sport) string {
	return date + ":" + string(sport)
}

func (c *redisAvailabilityCache) Get(ctx context.Context, date string, sport catalog.Sport) (*Availability, bool) {
	var a Availability
	if err := c.cache.Get(ctx, availabilityKey(date, sport), &a); err != nil {
		if !errors.Is(err, redisclient.ErrCacheMiss) {
			log.Printf("availability cache read failed date=%s sport=%s: %v", date, sport, err)
		}
		return nil, false
	}
	return &a, true
}

func (c *redisAvailabilityCache) Set(ctx context.Context, a *Availability) {
	if err := c.cache.Set(ctx, availabilityKey(a.Date, a.Sport), a, c.ttl); err != nil {
		log.Printf("availability cache write failed date=%s sport=%s: %v", a.Date, a.Sport, err)
	}
}

func (c *redisAvailabilityCache) Invalidate(ctx context.Context, date string) {
	sports := catalog.Sports()
	keys := make([]string, 0, len(sports))
	for _, s := range sports {
		keys = append(keys, availabilityKey(date, s.ID))
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		log.Printf("availability cache invalidate failed date=%s: %v", date, err)
	}
}

type noCache struct{}

func (noCache) Get(context.Context, string, catalog.Sport) (*Availability, bool) { return nil, false }
func (noCache) Set(context.Context, *Availability)                               {}
func (noCache) Invalidate(context.Context, string)                               {}

// NoCache disables availability caching.
func NoCache() AvailabilityCache { return noCache{} }
