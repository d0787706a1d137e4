package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BatmanBruc/inkpay/types"
)

type cacheEntry struct {
	data     []byte
	expireAt time.Time
}

const cacheSweepInterval = time.Minute

// MemoryCache is a process-local Cache. Values round-trip through JSON like RedisClient.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]cacheEntry
	nextSweep time.Time
	now       func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	now := c.now()
	e := cacheEntry{data: data}
	if ttl > 0 {
		e.expireAt = now.Add(ttl)
	}
	c.mu.Lock()
	if !now.Before(c.nextSweep) {
		c.sweep(now)
	}
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// sweep drops expired entries. Callers hold mu.
func (c *MemoryCache) sweep(now time.Time) {
	for k, e := range c.entries {
		if !e.expireAt.IsZero() && !now.Before(e.expireAt) {
			delete(c.entries, k)
		}
	}
	c.nextSweep = now.Add(cacheSweepInterval)
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !e.expireAt.IsZero() && !c.now().Before(e.expireAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrCacheMiss, key)
	}
	return json.Unmarshal(e.data, dest)
}

func (c *MemoryCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}
