package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/harvestlink/bid-engine/pkg/cache"
)

// DefaultProfileCacheTTL is how long an account creation time is cached.
const DefaultProfileCacheTTL = 10 * time.Minute

// CachedProfiles wraps a ProfileStore with a TTL cache. Account creation times
// never change, so only misses and errors reach the store.
type CachedProfiles struct {
	store ProfileStore
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProfiles creates a cached profile store. A nil cache passes every call through.
func NewCachedProfiles(store ProfileStore, c cache.Cache, ttl time.Duration) *CachedProfiles {
	if ttl <= 0 {
		ttl = DefaultProfileCacheTTL
	}
	return &CachedProfiles{
		store: store,
		cache: c,
		ttl:   ttl,
	}
}

func profileKey(bidderID string) string {
	return fmt.Sprintf("profile:%s", bidderID)
}

// GetAccountCreatedAt returns the cached creation time or loads it from the store.
// Errors are not cached.
func (c *CachedProfiles) GetAccountCreatedAt(ctx context.Context, bidderID string) (time.Time, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(profileKey(bidderID)); ok {
			if createdAt, ok := cached.(time.Time); ok {
				ProfileCacheHitsTotal.Inc()
				return createdAt, nil
			}
		}
		ProfileCacheMissesTotal.Inc()
	}

	createdAt, err := c.store.GetAccountCreatedAt(ctx, bidderID)
	if err != nil {
		return time.Time{}, err
	}

	if c.cache != nil {
		c.cache.Set(profileKey(bidderID), createdAt, c.ttl)
	}
	return createdAt, nil
}
