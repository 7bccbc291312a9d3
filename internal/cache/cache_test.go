package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// TestInMemory_GetSet verifies that Set stores values and Get retrieves them
// while the TTL has not elapsed.
func TestInMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string](time.Hour)
	defer c.Close()

	if err := c.Set(ctx, "stations", "snapshot-1", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "stations")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got != "snapshot-1" {
		t.Errorf("Get() = %q, want %q", got, "snapshot-1")
	}
}

// TestInMemory_Get_Miss verifies that Get reports a miss for unknown keys.
func TestInMemory_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string](time.Hour)
	defer c.Close()

	_, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemory_Get_Expired verifies that a read after the TTL elapses is a
// miss, while GetStale still returns the retained value.
func TestInMemory_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string](time.Hour)
	defer c.Close()

	if err := c.Set(ctx, "equipment", "old", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	_, ok, err := c.Get(ctx, "equipment")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}

	stale, cachedAt, ok, err := c.GetStale(ctx, "equipment")
	if err != nil {
		t.Fatalf("GetStale() error = %v", err)
	}
	if !ok {
		t.Fatal("GetStale() ok = false, want true within retention")
	}
	if stale != "old" {
		t.Errorf("GetStale() = %q, want %q", stale, "old")
	}
	if cachedAt.IsZero() {
		t.Error("GetStale() cachedAt is zero")
	}
}

// TestInMemory_NoRetention verifies that with retention disabled an expired
// entry is not available even through GetStale.
func TestInMemory_NoRetention(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string](0)
	defer c.Close()

	if err := c.Set(ctx, "alerts", "gone", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	_, _, ok, err := c.GetStale(ctx, "alerts")
	if err != nil {
		t.Fatalf("GetStale() error = %v", err)
	}
	if ok {
		t.Error("GetStale() ok = true, want false with retention disabled")
	}
}

// TestInMemory_Delete verifies that Delete removes an entry completely.
func TestInMemory_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[int](time.Hour)
	defer c.Close()

	_ = c.Set(ctx, "k", 42, time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() ok = true after Delete")
	}
	if _, _, ok, _ := c.GetStale(ctx, "k"); ok {
		t.Error("GetStale() ok = true after Delete")
	}
}

// TestGetOrFetch_Hit verifies that a fresh cached value short-circuits the
// fetch function.
func TestGetOrFetch_Hit(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string](time.Hour)
	defer c.Close()
	_ = c.Set(ctx, "stations", "cached", time.Minute)

	calls := 0
	got, stale, err := GetOrFetch(ctx, c, "stations", time.Minute, func(ctx context.Context) (string, error) {
		calls++
		return "fetched", nil
	})
	if err != nil {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	if stale {
		t.Error("GetOrFetch() stale = true, want false")
	}
	if got != "cached" {
		t.Errorf("GetOrFetch() = %q, want %q", got, "cached")
	}
	if calls != 0 {
		t.Errorf("fetch called %d times, want 0", calls)
	}
}

// TestGetOrFetch_MissFetchesAndStores verifies that a miss invokes fetch and
// primes the cache for the next read.
func TestGetOrFetch_MissFetchesAndStores(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string](time.Hour)
	defer c.Close()

	got, stale, err := GetOrFetch(ctx, c, "equipment", time.Minute, func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	if stale {
		t.Error("GetOrFetch() stale = true, want false")
	}
	if got != "fresh" {
		t.Errorf("GetOrFetch() = %q, want %q", got, "fresh")
	}

	cached, ok, _ := c.Get(ctx, "equipment")
	if !ok || cached != "fresh" {
		t.Errorf("Get() after GetOrFetch = (%q, %v), want (%q, true)", cached, ok, "fresh")
	}
}

// TestGetOrFetch_StaleFallback verifies that when fetch fails, a previously
// stored value is returned unchanged and no error propagates.
func TestGetOrFetch_StaleFallback(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string](time.Hour)
	defer c.Close()

	_ = c.Set(ctx, "equipment", "last-good", time.Millisecond)
	time.Sleep(2 * time.Millisecond)

	got, stale, err := GetOrFetch(ctx, c, "equipment", time.Minute, func(ctx context.Context) (string, error) {
		return "", errors.New("upstream down")
	})
	if err != nil {
		t.Fatalf("GetOrFetch() error = %v, want stale fallback", err)
	}
	if !stale {
		t.Error("GetOrFetch() stale = false, want true")
	}
	if got != "last-good" {
		t.Errorf("GetOrFetch() = %q, want %q", got, "last-good")
	}
}

// TestGetOrFetch_NoStalePropagatesError verifies that a fetch failure with
// no retained value surfaces the error.
func TestGetOrFetch_NoStalePropagatesError(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string](time.Hour)
	defer c.Close()

	wantErr := errors.New("upstream down")
	_, _, err := GetOrFetch(ctx, c, "alerts", time.Minute, func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("GetOrFetch() error = %v, want %v", err, wantErr)
	}
}

// TestInMemory_ConcurrentAccess exercises parallel readers and writers under
// the race detector.
func TestInMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[int](time.Hour)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "shared", i, time.Minute)
		}()
		go func() {
			defer wg.Done()
			_, _, _ = c.Get(ctx, "shared")
		}()
	}
	wg.Wait()

	if _, ok, _ := c.Get(ctx, "shared"); !ok {
		t.Error("Get() ok = false after concurrent writes")
	}
}
