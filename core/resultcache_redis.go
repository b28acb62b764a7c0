package core

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisResultCache is a ResultCache backed by Redis, adapted from the
// teacher's RedisQueue: same client construction/ping-on-connect discipline,
// generalized from a job queue to a keyed result cache so that parallel
// shards of a CI judge farm checking the same package share cached verdicts
// for identical (case, submission, args, limits) keys instead of recomputing
// them independently.
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient returns a configured go-redis client from URL (e.g.
// redis://localhost:6379/0), pinging it once to fail fast on misconfiguration.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// NewRedisResultCache wraps an existing client; entries expire after ttl
// (0 disables expiry).
func NewRedisResultCache(client *redis.Client, ttl time.Duration) *RedisResultCache {
	return &RedisResultCache{client: client, ttl: ttl}
}

func (c *RedisResultCache) key(caseID string, key CacheKey) string {
	return "probcheck:resultcache:" + caseID + ":" + key.string()
}

// Get is best-effort: any Redis error or decode failure is treated as a
// cache miss, never surfaced to the caller, since the cache is purely an
// optimization over recomputation.
func (c *RedisResultCache) Get(caseID string, key CacheKey) (CachedTriple, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := c.client.Get(ctx, c.key(caseID, key)).Bytes()
	if err != nil {
		return CachedTriple{}, false
	}
	triple, err := unmarshalTriple(b)
	if err != nil {
		return CachedTriple{}, false
	}
	return triple, true
}

func (c *RedisResultCache) Set(caseID string, key CacheKey, triple CachedTriple) {
	b, err := marshalTriple(triple)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.client.Set(ctx, c.key(caseID, key), b, c.ttl).Err()
}
