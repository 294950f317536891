package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"chainhub.backend/pkg/logger"
)

// ErrMiss is returned when a key is absent or the cache is unavailable.
// Callers always fall back to the authoritative store or provider.
var ErrMiss = errors.New("cache miss")

// Cache is a TTL key-value layer over Redis. Every failure degrades to a miss
// so a cache outage never fails a user-facing call.
type Cache struct {
	client *goredis.Client
}

// New creates a cache over the given client. A nil client yields a cache that
// always misses.
func New(client *goredis.Client) *Cache {
	return &Cache{client: client}
}

// Get retrieves a raw value by key
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	if c.client == nil {
		return "", ErrMiss
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Warn(ctx, "cache read failed", zap.String("key", key), zap.Error(err))
		}
		return "", ErrMiss
	}
	return val, nil
}

// SetWithTTL stores a raw value under key with the given TTL
func (c *Cache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) {
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logger.Warn(ctx, "cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes a key. Best-effort; staleness self-heals via TTL.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn(ctx, "cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// DeleteByPattern removes every key matching the glob pattern using SCAN.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) {
	if c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn(ctx, "cache scan failed", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	c.Delete(ctx, keys...)
}

// GetJSON retrieves a key and unmarshals it into dest. Decode failures count
// as misses; the poisoned key is dropped.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		logger.Warn(ctx, "cache entry corrupt, dropping", zap.String("key", key), zap.Error(err))
		c.Delete(ctx, key)
		return ErrMiss
	}
	return nil
}

// SetJSON marshals value and stores it under key with the given TTL
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn(ctx, "cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.SetWithTTL(ctx, key, string(data), ttl)
}
