package cache

import (
	"context"
	"time"

	"github.com/nycaccess/transit-accessibility-service/internal/observability"
)

// Store is a TTL key/value store for one record type. Get returns only fresh
// values; GetStale also returns expired values still within the backend's
// stale-retention horizon, along with the time they were cached. All methods
// are safe for concurrent use.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	GetStale(ctx context.Context, key string) (T, time.Time, bool, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetOrFetch returns the fresh cached value for key, or invokes fetch and
// stores the result with ttl. If fetch fails and a stale value is retained,
// the stale value is returned with stale=true instead of the error.
// Concurrent callers for the same key may each invoke fetch; collapsing
// duplicates is left to the caller.
func GetOrFetch[T any](ctx context.Context, s Store[T], key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (value T, stale bool, err error) {
	cached, ok, getErr := s.Get(ctx, key)
	if getErr == nil && ok {
		observability.CacheHitsTotal.WithLabelValues(key).Inc()
		return cached, false, nil
	}
	observability.CacheMissesTotal.WithLabelValues(key).Inc()

	fetched, fetchErr := fetch(ctx)
	if fetchErr != nil {
		staleVal, cachedAt, ok, staleErr := s.GetStale(ctx, key)
		if staleErr == nil && ok {
			observability.StaleServesTotal.WithLabelValues(key).Inc()
			observability.StaleAgeSeconds.Observe(time.Since(cachedAt).Seconds())
			return staleVal, true, nil
		}
		var zero T
		return zero, false, fetchErr
	}

	// Set failures are not fatal: the fetched value is still good.
	_ = s.Set(ctx, key, fetched, ttl)
	return fetched, false, nil
}
