package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Store backed by redis, using the same JSON envelope as
// the memcached backend.
type Redis[T any] struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedis creates a redis-backed store from a redis URL
// (e.g. "redis://localhost:6379/0").
func NewRedis[T any](url string, retention time.Duration) (*Redis[T], error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis[T]{client: redis.NewClient(opts), retention: retention}, nil
}

// Get returns the value for key if present and unexpired per its envelope.
func (c *Redis[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	if !env.fresh(time.Now()) {
		return zero, false, nil
	}
	return env.Value, true, nil
}

// GetStale returns the value for key regardless of envelope freshness.
func (c *Redis[T]) GetStale(ctx context.Context, key string) (T, time.Time, bool, error) {
	var zero T
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return zero, time.Time{}, false, err
	}
	return env.Value, env.CachedAt, true, nil
}

func (c *Redis[T]) fetch(ctx context.Context, key string) (envelope[T], bool, error) {
	var env envelope[T]
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return env, false, nil
		}
		return env, false, err
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, false, err
	}
	return env, true, nil
}

// Set stores value under key, fresh until now+ttl. The redis expiration is
// ttl+retention so stale values remain retrievable.
func (c *Redis[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	now := time.Now()
	raw, err := json.Marshal(envelope[T]{Value: value, CachedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, raw, ttl+c.retention).Err()
}

// Delete removes key.
func (c *Redis[T]) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, keyPrefix+key).Err()
}

// Ping checks that redis is reachable. Used by health checks.
func (c *Redis[T]) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (c *Redis[T]) Close() error {
	return c.client.Close()
}
