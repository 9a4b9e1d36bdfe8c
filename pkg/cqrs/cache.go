package cqrs

import (
	"sync"
	"time"
)

// Cache stores query results until they expire. Values are stored and returned
// by reference: callers must not mutate a cached result (a slice or map returned
// by a handler), or later hits within the TTL observe the change.
type Cache interface {
	// Get returns a live entry.
	Get(key string) (any, bool)
	// Set stores value until now+ttl.
	Set(key string, value any, ttl time.Duration)
	// Clear drops every entry.
	Clear()
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache is a Cache held in process memory. Expired entries are dropped
// lazily on lookup.
type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewMemoryCache creates a cache that reads the time from now (time.Now if nil).
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{now: now, entries: make(map[string]cacheEntry)}
}

var _ Cache = (*MemoryCache)(nil)

func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
