// Package cachemanager wraps go-cache with a typed interface. The
// dispatcher uses it to memoize provider lookups, which are repeated for
// every fragment of every record.
package cachemanager

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/loom/internal/log"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// NewInMemoryCacheManager initializes the in-memory cache with a default cleanup interval
func NewInMemoryCacheManager[V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *InMemoryCacheManager[V] {
	return &InMemoryCacheManager[V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

// InMemoryCacheManager is a typed view over one go-cache instance
type InMemoryCacheManager[V any] struct {
	useCase string
	cache   *gocache.Cache
}

// Get retrieves an item from the cache by its key
func (c *InMemoryCacheManager[V]) Get(key string) (V, bool) {
	var zeroValue V

	value, found := c.cache.Get(key)
	if !found {
		return zeroValue, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "useCase", c.useCase, "key", key)

		return zeroValue, false
	}

	log.Debug(log.CatCache, "cache hit", "useCase", c.useCase, "key", key)

	return v, true
}

// Set stores an item under key for the manager's default expiration
func (c *InMemoryCacheManager[V]) Set(key string, value V) {
	c.cache.Set(key, value, gocache.DefaultExpiration)
}

// Delete removes keys from the cache; absent keys are ignored
func (c *InMemoryCacheManager[V]) Delete(keys ...string) {
	for _, key := range keys {
		c.cache.Delete(key)
	}
}

// Flush drops every cached item
func (c *InMemoryCacheManager[V]) Flush() {
	c.cache.Flush()
}

// ItemCount reports how many items the cache currently holds
func (c *InMemoryCacheManager[V]) ItemCount() int {
	return c.cache.ItemCount()
}
