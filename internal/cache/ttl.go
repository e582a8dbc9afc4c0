package cache

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

// TTL is a process-wide expiring cache. Stale reads across goroutines are an
// accepted trade-off; the mutex only protects the map itself. When the cache
// grows past its bound the oldest entry is evicted first.
type TTL[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	clock   Clock
	entries map[string]ttlEntry[V]
}

func NewTTL[V any](ttl time.Duration, maxSize int, clock Clock) *TTL[V] {
	if clock == nil {
		clock = SystemClock()
	}
	if maxSize <= 0 {
		maxSize = 256
	}
	return &TTL[V]{
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clock,
		entries: make(map[string]ttlEntry[V]),
	}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.clock.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = ttlEntry[V]{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(c.ttl),
	}
}

// GetOrPopulate returns the cached value or computes and stores a fresh one.
// Concurrent population of the same key is not de-duplicated; redundant
// computation is bounded and harmless for read-only lookups.
func (c *TTL[V]) GetOrPopulate(key string, populate func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := populate()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, value)
	return value, nil
}

// evictOldest removes the entry with the earliest storedAt. Caller holds the lock.
func (c *TTL[V]) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
