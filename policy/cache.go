package policy

import (
	"sync"
	"time"
)

// Cache abstracts caching of the active-policy list so batch migrations do
// not hit the database once per item.
type Cache interface {
	// Get retrieves cached policies, returns nil on miss or expiry
	Get() []*Policy

	// Set stores policies in cache
	Set(policies []*Policy)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()
}

// CacheConfig holds configuration for cache behavior.
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means no expiration (manual invalidation only).
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults: no TTL, invalidate on
// mutations only.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// InMemoryCache is a thread-safe in-memory Cache.
type InMemoryCache struct {
	policies []*Policy
	cachedAt time.Time
	config   CacheConfig
	valid    bool
	mu       sync.RWMutex
}

// NewInMemoryCache creates a new in-memory policy cache.
func NewInMemoryCache(config CacheConfig) *InMemoryCache {
	return &InMemoryCache{config: config}
}

// Get retrieves cached policies. Returns nil if the cache is invalid or
// expired.
func (c *InMemoryCache) Get() []*Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		return nil
	}

	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return nil
	}

	// Return a copy to prevent external modification
	out := make([]*Policy, len(c.policies))
	copy(out, c.policies)
	return out
}

// Set stores policies in the cache.
func (c *InMemoryCache) Set(policies []*Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.policies = make([]*Policy, len(policies))
	copy(c.policies, policies)
	c.cachedAt = time.Now()
	c.valid = true
}

// Invalidate clears the cache.
func (c *InMemoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.policies = nil
}
