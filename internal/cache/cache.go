// Package cache provides a small in-memory TTL cache used for gem registry
// lookups. Caching is an optimization only; correctness never depends on it.
package cache

import (
	"sync"
	"time"
)

// Cache is a TTL cache. A zero TTL disables caching entirely.
type Cache[V any] struct {
	entries map[string]entry[V]
	ttl     time.Duration
	mu      sync.RWMutex
}

type entry[V any] struct {
	value V
	at    time.Time
}

// New creates a cache whose entries expire after ttl.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
	}
}

// Get returns the cached value when present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c.ttl <= 0 {
		return zero, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.at) > c.ttl {
		return zero, false
	}
	return e.value, true
}

// Set stores a value under key.
func (c *Cache[V]) Set(key string, value V) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, at: time.Now()}
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}
