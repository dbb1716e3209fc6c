package cache

import (
	"fmt"
	"sync"
	"time"
)

// entry holds a cached value with its expiration time. Entries are never
// handed out to callers; Get returns only the value.
type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache is a thread-safe TTL cache with a bounded number of entries.
// Expiry is purely lazy: expired entries are swept on every Get and Set,
// so there is no background goroutine to manage.
type Cache[T any] struct {
	mu      sync.Mutex
	items   map[string]entry[T]
	ttl     time.Duration
	maxSize int

	// now is swappable in tests to exercise expiry without sleeping.
	now func() time.Time
}

// New creates a cache with the given TTL and maximum entry count.
// Both must be positive; invalid values fail construction.
func New[T any](ttl time.Duration, maxSize int) (*Cache[T], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache max size must be positive, got %d", maxSize)
	}

	return &Cache[T]{
		items:   make(map[string]entry[T]),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}, nil
}

// Get returns the value for key if present and unexpired.
// Expired entries are removed before the lookup.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepExpired()

	item, ok := c.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	return item.value, true
}

// Set stores value under key with a fresh TTL. Re-setting an existing key
// replaces its value and resets its expiry. If the cache is full and key is
// not already present, the entry closest to expiring is evicted first, so
// the cache never holds more than maxSize live entries.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepExpired()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Clear removes all entries unconditionally.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]entry[T])
}

// Len returns the number of stored entries, including any that have
// expired but not yet been swept.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Stats returns cache statistics for the ops endpoints.
func (c *Cache[T]) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	totalItems := len(c.items)
	expiredItems := 0
	for _, item := range c.items {
		if !now.Before(item.expiresAt) {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"total_items":   totalItems,
		"expired_items": expiredItems,
		"active_items":  totalItems - expiredItems,
		"ttl_seconds":   c.ttl.Seconds(),
		"max_size":      c.maxSize,
	}
}

// sweepExpired removes every entry whose expiry has passed.
// Callers must hold the lock.
func (c *Cache[T]) sweepExpired() {
	now := c.now()
	for key, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, key)
		}
	}
}

// evictOldest removes the entry with the smallest expiry timestamp.
// Linear scan; fine at the configured sizes. Callers must hold the lock.
func (c *Cache[T]) evictOldest() {
	var oldestKey string
	var oldestExpiry time.Time
	first := true
	for key, item := range c.items {
		if first || item.expiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = item.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}
