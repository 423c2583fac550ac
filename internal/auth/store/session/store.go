// Package session holds the TTL cache for verified user principals. A cache
// hit lets the resolver skip the identity provider round trip; eviction is
// TTL-only and entries are never proactively invalidated.
//
// Concurrent misses for the same key are deliberately not deduplicated: two
// simultaneous requests with the same uncached credentials both consult the
// identity provider and both write the cache, last write wins.
package session

import (
	"context"
	"fmt"
	"time"
)

// Cache is the narrow key/value contract the principal resolver depends on.
// Implementations: InMemoryCache for single-instance and tests, RedisCache
// for shared deployments.
type Cache interface {
	// Get returns the serialized principal for key, or sentinel.ErrNotFound
	// when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// TTL returns the remaining lifetime of key, or sentinel.ErrNotFound
	// when the key is absent or expired.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Key builds the cache key for a user id and token pair.
func Key(userID int64, token string) string {
	return fmt.Sprintf("user:%d:%s", userID, token)
}
