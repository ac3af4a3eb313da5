package cache

import (
	"sync"
	"time"
)

// Cache is a bounded in-memory TTL cache.
// ⭐ SSOT: API 回應與報價快取都用這個實作，只是參數不同。
//
// Expiry is lazy: entries are only dropped when a Get touches them or
// when an insert pushes the map past maxSize. All access goes through
// one mutex; the dataset is small enough that contention never matters.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	maxSize int
	ttl     time.Duration

	// now is swappable for tests
	now func() time.Time
}

type entry struct {
	value      interface{}
	insertedAt time.Time
}

// New creates a cache bounded at maxSize entries with the given TTL.
func New(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key, or false if the key is missing
// or its entry has outlived the TTL. Expired entries are removed.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.insertedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}

	return e.value, true
}

// Set inserts or overwrites the value for key. If the insert would push
// the map past maxSize, the single oldest-inserted entry is evicted
// first.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = entry{value: value, insertedAt: c.now()}
}

// evictOldestLocked removes the entry with the oldest insertion time.
// Caller must hold the lock.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true

	for k, e := range c.entries {
		if first || e.insertedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.insertedAt
			first = false
		}
	}

	if !first {
		delete(c.entries, oldestKey)
	}
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}
