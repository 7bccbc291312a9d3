package cache

import "time"

// envelope is the JSON wrapper stored in remote backends. The remote TTL is
// set to ttl+retention so expired-but-retained values survive for stale
// fallback; freshness is judged from ExpiresAt, not from the backend.
type envelope[T any] struct {
	Value     T         `json:"value"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e envelope[T]) fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
