// ABOUTME: Redis-backed authentication cache for multi-instance deployments.
// ABOUTME: Entries expire via Redis TTL; a corrupt entry is treated as a miss.

package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache stores authentication results in Redis so every instance of
// the server shares one cache. Failures degrade to a cache miss; the
// chain then resolves against the store as usual.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisCache builds a cache over an existing Redis client. Keys are
// namespaced under prefix to keep them apart from the realtime channels.
func NewRedisCache(client *redis.Client, prefix string, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "authcache"),
	}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + key
}

// Get fetches and decodes a cached result. Any Redis or decode error is a
// miss, never a failure.
func (c *RedisCache) Get(ctx context.Context, key string) (*CachedResult, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", "error", err)
		}
		return nil, false
	}
	var result CachedResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", "error", err)
		_ = c.client.Del(ctx, c.key(key)).Err()
		return nil, false
	}
	return &result, true
}

// Set encodes and stores a result with the given TTL. Write failures are
// logged and ignored.
func (c *RedisCache) Set(ctx context.Context, key string, result *CachedResult, ttl time.Duration) {
	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
}
