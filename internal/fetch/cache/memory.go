package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryEntries bounds a MemoryCache built without an explicit size.
const DefaultMemoryEntries = 10000

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryCache is an in-process Cache backed by a size-bounded LRU. Entries
// older than the cache TTL are reaped in the background; a shorter TTL passed
// to Set is enforced on read.
type MemoryCache struct {
	lru *expirable.LRU[string, memoryEntry]
}

// NewMemoryCache creates an empty MemoryCache holding at most size entries,
// each for at most ttl. Non-positive values fall back to DefaultMemoryEntries
// and no cache-wide expiry.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	if ttl < 0 {
		ttl = 0
	}
	return &MemoryCache{lru: expirable.NewLRU[string, memoryEntry](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.data, true
}

func (c *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	c.lru.Add(key, memoryEntry{data: buf, expires: time.Now().Add(ttl)})
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

func (c *MemoryCache) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

// Len reports the number of stored entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

func (c *MemoryCache) Close() error { return nil }
