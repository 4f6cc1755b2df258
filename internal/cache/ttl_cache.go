// Package cache provides an explicit TTL cache with bounded capacity and a
// pluggable clock, so eviction is deterministic and testable without real
// wall-clock waits.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// TTLCache is a string-keyed cache with per-cache TTL and capacity bound.
// When full, the entry closest to expiry is evicted first.
type TTLCache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	ttl      time.Duration
	capacity int
	nowFn    func() time.Time
}

// New creates a cache. capacity <= 0 means unbounded.
func New(ttl time.Duration, capacity int) *TTLCache {
	return &TTLCache{
		entries:  make(map[string]entry),
		ttl:      ttl,
		capacity: capacity,
		nowFn:    time.Now,
	}
}

// SetClock replaces the cache's time source. Intended for tests.
func (c *TTLCache) SetClock(nowFn func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFn = nowFn
}

// Get returns the value for key, or nil and false if absent or expired.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.nowFn().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores a value under key, evicting the entry closest to expiry if the
// cache is at capacity.
func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	if _, exists := c.entries[key]; !exists && c.capacity > 0 && len(c.entries) >= c.capacity {
		c.evictSoonestLocked(now)
	}
	c.entries[key] = entry{value: value, expiresAt: now.Add(c.ttl)}
}

// evictSoonestLocked removes expired entries, or failing that the entry
// closest to expiry.
func (c *TTLCache) evictSoonestLocked(now time.Time) {
	var soonestKey string
	var soonestAt time.Time
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			return
		}
		if soonestKey == "" || e.expiresAt.Before(soonestAt) {
			soonestKey = key
			soonestAt = e.expiresAt
		}
	}
	if soonestKey != "" {
		delete(c.entries, soonestKey)
	}
}

// Delete removes a key.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, including not-yet-collected
// expired ones.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// CleanupExpired removes all expired entries and reports how many were
// removed.
func (c *TTLCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFn()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
