package services

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tbourn/go-quetras-backend/internal/domain"
)

// ViewCache memoizes filtered, sorted list views. Keys embed the store's
// version (see QueryStore.Version), so any write makes earlier entries
// unreachable and they age out through LRU eviction or TTL.
type ViewCache struct {
	lru *expirable.LRU[string, []domain.QueryRecord]
}

// NewViewCache returns a cache of at most size views living ttl each. A
// non-positive size returns nil; a nil *ViewCache is a valid no-op cache.
func NewViewCache(size int, ttl time.Duration) *ViewCache {
	if size <= 0 {
		return nil
	}
	return &ViewCache{lru: expirable.NewLRU[string, []domain.QueryRecord](size, nil, ttl)}
}

// ViewKey builds the cache key for a scope (user id or "*" for admins)
// and filter at the given store version.
func ViewKey(version, scope string, f QueryFilter) string {
	return fmt.Sprintf("%s|%s|%s", version, scope, f.CacheKey())
}

// Get returns a cached view. Callers must not mutate the returned slice.
func (c *ViewCache) Get(key string) ([]domain.QueryRecord, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		viewCacheHits.Inc()
		return v, true
	}
	viewCacheMisses.Inc()
	return nil, false
}

// Set stores a view.
func (c *ViewCache) Set(key string, view []domain.QueryRecord) {
	if c == nil {
		return
	}
	c.lru.Add(key, view)
}

// Purge drops every entry.
func (c *ViewCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len returns the number of cached views.
func (c *ViewCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
