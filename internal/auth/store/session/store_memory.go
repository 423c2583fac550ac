package session

import (
	"context"
	"sync"
	"time"

	"trailmark/pkg/platform/sentinel"
)

// InMemoryCache implements Cache with a map and lazy expiry. Suited to
// single-instance deployments and tests; use RedisCache when instances need
// to share verification state.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// InMemoryOption configures an InMemoryCache.
type InMemoryOption func(*InMemoryCache)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) InMemoryOption {
	return func(c *InMemoryCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewInMemory creates an empty in-memory cache.
func NewInMemory(opts ...InMemoryOption) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key, or sentinel.ErrNotFound when absent or expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.clock().After(entry.expiresAt) {
		return "", sentinel.ErrNotFound
	}
	return entry.value, nil
}

// Set stores value under key with the given TTL. An existing entry is
// overwritten, TTL included (last write wins).
func (c *InMemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		value:     value,
		expiresAt: c.clock().Add(ttl),
	}
	return nil
}

// TTL returns the remaining lifetime of key.
func (c *InMemoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	now := c.clock()
	if !ok || now.After(entry.expiresAt) {
		return 0, sentinel.ErrNotFound
	}
	return entry.expiresAt.Sub(now), nil
}

var _ Cache = (*InMemoryCache)(nil)
