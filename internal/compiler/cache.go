package compiler

import (
	"sync"
	"sync/atomic"
)

// Cache is a concurrent insert-if-absent memo table.
//
// Values are published whole: a reader sees either nothing or the value
// passed to LoadOrStore, never a partially built one.
type Cache[K comparable, V any] struct {
	m      sync.Map
	size   atomic.Int64
	hits   atomic.Int64
	misses atomic.Int64
}

// Load returns the cached value for key.
func (c *Cache[K, V]) Load(key K) (V, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return v.(V), true
}

// peek is Load without touching the hit and miss counters.
func (c *Cache[K, V]) peek(key K) (V, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// LoadOrStore stores value unless key is already present. It returns the
// value that ended up in the cache and whether it was already there.
func (c *Cache[K, V]) LoadOrStore(key K, value V) (V, bool) {
	actual, loaded := c.m.LoadOrStore(key, value)
	if !loaded {
		c.size.Add(1)
	}
	return actual.(V), loaded
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	return int(c.size.Load())
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Stats returns the current counters.
func (c *Cache[K, V]) Stats() CacheStats {
	return CacheStats{Entries: c.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}
