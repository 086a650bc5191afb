// Package cache is a small key/value store with per-key TTL.
//
// Two implementations share the Cache interface: MemoryCache for a single
// instance and RedisCache when several server instances must agree (a token
// revoked on one instance has to be rejected by all of them).
package cache

import (
	"context"
	"time"
)

// Cache is the subset of key/value operations the application needs.
type Cache interface {
	// Get returns ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// CacheError is a constant error type.
type CacheError string

func (e CacheError) Error() string { return string(e) }

// ErrCacheMiss indicates the key was not found.
const ErrCacheMiss CacheError = "cache miss"
