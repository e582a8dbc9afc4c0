package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/recoilme/pudge"
)

// KV is the optional shared cache behind the batch orchestrator: string
// values with per-entry TTL. Implementations must treat expired entries as
// misses; there is no active invalidation.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key string, value string, ttl time.Duration) error
	Close() error
}

// kvRecord is the stored shape; expiry travels with the value since the
// embedded store has no native TTL.
type kvRecord struct {
	Value     string
	ExpiresAt time.Time
}

// PudgeKV backs the batch cache with an embedded pudge database.
type PudgeKV struct {
	db    *pudge.Db
	clock Clock
}

func OpenPudge(path string, clock Clock) (*PudgeKV, error) {
	if clock == nil {
		clock = SystemClock()
	}
	db, err := pudge.Open(path, &pudge.Config{SyncInterval: 1})
	if err != nil {
		return nil, err
	}
	return &PudgeKV{db: db, clock: clock}, nil
}

func (c *PudgeKV) Get(key string) (string, bool, error) {
	var rec kvRecord
	err := c.db.Get(key, &rec)
	if err != nil {
		if errors.Is(err, pudge.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if c.clock.Now().After(rec.ExpiresAt) {
		_ = c.db.Delete(key)
		return "", false, nil
	}
	return rec.Value, true, nil
}

func (c *PudgeKV) Set(key string, value string, ttl time.Duration) error {
	return c.db.Set(key, kvRecord{
		Value:     value,
		ExpiresAt: c.clock.Now().Add(ttl),
	})
}

func (c *PudgeKV) Close() error {
	return c.db.Close()
}

// MemoryKV is an in-process KV used in tests and as a fallback when no cache
// file is configured.
type MemoryKV struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]kvRecord
}

func NewMemoryKV(clock Clock) *MemoryKV {
	if clock == nil {
		clock = SystemClock()
	}
	return &MemoryKV{
		clock:   clock,
		entries: make(map[string]kvRecord),
	}
}

func (c *MemoryKV) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if c.clock.Now().After(rec.ExpiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return rec.Value, true, nil
}

func (c *MemoryKV) Set(key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = kvRecord{
		Value:     value,
		ExpiresAt: c.clock.Now().Add(ttl),
	}
	return nil
}

func (c *MemoryKV) Close() error { return nil }
