package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a key value store with per entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)
	Delete(ctx context.Context, key string)
	DeleteByPrefix(ctx context.Context, prefix string)
	Flush(ctx context.Context)
}

// InMemoryCache implements Cache with go-cache.
type InMemoryCache struct {
	cache *gocache.Cache
}

// NewInMemoryCache creates a cache whose entries expire after defaultExpiry unless
// Set is given an explicit expiration.
func NewInMemoryCache(defaultExpiry time.Duration) *InMemoryCache {
	if defaultExpiry <= 0 {
		defaultExpiry = ExpiryDefaultInMemory
	}
	return &InMemoryCache{cache: gocache.New(defaultExpiry, cleanupInterval)}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	return c.cache.Get(key)
}

// Set stores value. A zero expiration uses the cache default.
func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if expiration == 0 {
		expiration = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, expiration)
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}

func (c *InMemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

func (c *InMemoryCache) Flush(_ context.Context) {
	c.cache.Flush()
}

// GenerateKey joins parts with ':'.
func GenerateKey(prefix string, parts ...string) string {
	return strings.Join(append([]string{prefix}, parts...), ":")
}
