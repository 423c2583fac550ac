package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trailmark/pkg/platform/sentinel"
)

const cacheKeyPrefix = "auth:"

// RedisCache is the Redis-backed implementation of Cache, recommended for
// deployments where multiple instances share verification state.
type RedisCache struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed session cache. The client lifecycle is
// managed by the caller.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the value for key, or sentinel.ErrNotFound when absent or expired.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cache get: %w", err)
	}
	return value, nil
}

// Set stores value under key with the given TTL using SET with expiry.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, cacheKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of key.
func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, cacheKeyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache ttl: %w", err)
	}
	// go-redis returns -2 for missing keys and -1 for keys without expiry;
	// neither should happen for entries this package wrote.
	if ttl < 0 {
		return 0, sentinel.ErrNotFound
	}
	return ttl, nil
}

var _ Cache = (*RedisCache)(nil)
