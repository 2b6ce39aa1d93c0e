// Package cache provides storage backends for upstream API responses.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache defines the interface for caching raw response bodies by request key.
type Cache interface {
	// Get retrieves data from the cache by key.
	// Returns the data and true if found and not expired, otherwise nil and false.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores data in the cache with the given key and TTL.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a single entry. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error

	// Close closes the cache and releases resources.
	Close() error
}

// Purger is implemented by backends that keep expired entries until asked to
// drop them.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend string

	// TTL and MaxEntries bound the memory backend.
	TTL        time.Duration
	MaxEntries int

	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open builds the backend named by opts.Backend. An empty backend means memory.
func Open(opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryCache(opts.MaxEntries, opts.TTL), nil
	case BackendSQLite:
		return NewSQLiteCache(opts.SQLitePath)
	case BackendRedis:
		return NewRedisCacheFromOptions(opts)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
