package cache

import (
	"context"
	"sync"
	"time"
)

const janitorInterval = time.Minute

// entry stores a cached value with its timestamps. Entries past expiresAt
// are misses for Get but remain readable through GetStale until cachedAt +
// stale retention, when the janitor evicts them.
type entry[T any] struct {
	value     T
	cachedAt  time.Time
	expiresAt time.Time
}

// InMemory implements Store using a map guarded by an RWMutex. Expiry is
// checked lazily on read; a background janitor bounds memory by evicting
// entries past the stale-retention horizon.
type InMemory[T any] struct {
	mu        sync.RWMutex
	data      map[string]entry[T]
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewInMemory creates an in-memory store. retention is how long expired
// entries stay available for stale fallback; zero or negative disables
// stale retention entirely.
func NewInMemory[T any](retention time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		data:      make(map[string]entry[T]),
		retention: retention,
		stop:      make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the value for key if present and unexpired.
func (c *InMemory[T]) Get(ctx context.Context, key string) (T, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false, nil
	}
	return e.value, true, nil
}

// GetStale returns the value for key even when expired, as long as it is
// still within the retention horizon.
func (c *InMemory[T]) GetStale(ctx context.Context, key string) (T, time.Time, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[key]
	if !ok {
		var zero T
		return zero, time.Time{}, false, nil
	}
	if c.retention <= 0 && time.Now().After(e.expiresAt) {
		var zero T
		return zero, time.Time{}, false, nil
	}
	return e.value, e.cachedAt, true, nil
}

// Set stores value under key, fresh until now+ttl.
func (c *InMemory[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[T]{
		value:     value,
		cachedAt:  now,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Delete removes key.
func (c *InMemory[T]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Close stops the janitor goroutine.
func (c *InMemory[T]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *InMemory[T]) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

// evictExpired removes entries no longer useful even as stale fallback.
func (c *InMemory[T]) evictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.data {
		horizon := e.expiresAt
		if c.retention > 0 {
			horizon = e.cachedAt.Add(c.retention)
			if e.expiresAt.After(horizon) {
				horizon = e.expiresAt
			}
		}
		if now.After(horizon) {
			delete(c.data, key)
		}
	}
}
