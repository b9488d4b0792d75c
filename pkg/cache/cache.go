// Package cache provides the byte caches behind descriptor lookups.
//
// The module store reads the manifest of every jar it scans. Parsed
// descriptors are memoized in process and, through this package, across
// processes: a [FileCache] under the server directory for single hosts, a
// [RedisCache] when several engines share one bundle directory, and a
// [NullCache] when caching is disabled.
//
// Keys are built by a [Keyer] so that different stores never collide:
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "srv1:")
//	key := keyer.DescriptorKey(path, info.Size(), info.ModTime())
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values by key. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns the value and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear drops every entry owned by the cache.
	Clear(ctx context.Context) error
	Close() error
}
