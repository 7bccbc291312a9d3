package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "transit:"

// Memcached implements Store backed by memcached. Values are stored as a
// JSON envelope carrying their own timestamps so stale fallback behaves the
// same as the in-memory backend.
type Memcached[T any] struct {
	client    *memcache.Client
	retention time.Duration
}

// NewMemcached creates a memcached-backed store. addrs is a comma-separated
// server list. retention extends the remote expiration beyond the logical
// TTL to keep stale values retrievable.
func NewMemcached[T any](addrs string, timeout time.Duration, maxIdleConns int, retention time.Duration) *Memcached[T] {
	servers := splitAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &Memcached[T]{client: client, retention: retention}
}

func splitAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Get returns the value for key if present and unexpired per its envelope.
func (c *Memcached[T]) Get(ctx context.Context, key string) (T, bool, error) {
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

// GetStale returns the value for key regardless of envelope freshness; the
// remote expiration (ttl+retention) bounds how old it can be.
func (c *Memcached[T]) GetStale(ctx context.Context, key string) (T, time.Time, bool, error) {
	var zero T
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return zero, time.Time{}, false, err
	}
	return env.Value, env.CachedAt, true, nil
}

func (c *Memcached[T]) fetch(ctx context.Context, key string) (envelope[T], bool, error) {
	var env envelope[T]
	if ctx.Err() != nil {
		return env, false, ctx.Err()
	}
	item, err := c.client.Get(keyPrefix + key)
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return env, false, nil
		}
		return env, false, err
	}
	if err := json.Unmarshal(item.Value, &env); err != nil {
		return env, false, err
	}
	return env, true, nil
}

// Set stores value under key, fresh until now+ttl.
func (c *Memcached[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	now := time.Now()
	raw, err := json.Marshal(envelope[T]{Value: value, CachedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return err
	}
	expSec := int32((ttl + c.retention).Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // memcached treats larger values as unix timestamps
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600
	}
	return c.client.Set(&memcache.Item{
		Key:        keyPrefix + key,
		Value:      raw,
		Expiration: expSec,
	})
}

// Delete removes key.
func (c *Memcached[T]) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := c.client.Delete(keyPrefix + key)
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}

// Ping checks that memcached is reachable. Used by health checks.
func (c *Memcached[T]) Ping() error {
	return c.client.Ping()
}

// Close closes client connections. Call during shutdown.
func (c *Memcached[T]) Close() error {
	return c.client.Close()
}
