package service

import (
	"context"
	"sync"
	"time"
)

// inflight is one upstream fetch that multiple callers wait on. The result
// fields are written once before done is closed.
type inflight[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// coalescer collapses concurrent fetches for the same key into a single
// upstream call. The first caller runs the fetch; later callers for the same
// key block on its result. The fetch runs in its own goroutine so one
// caller's timeout never cancels work other callers are waiting on.
type coalescer[T any] struct {
	mu       sync.Mutex
	requests map[string]*inflight[T]
	timeout  time.Duration
}

func newCoalescer[T any](timeout time.Duration) *coalescer[T] {
	return &coalescer[T]{
		requests: make(map[string]*inflight[T]),
		timeout:  timeout,
	}
}

// Do returns the result of fn for key, sharing an in-flight call when one
// exists. Waiting is bounded by the coalescer timeout and by ctx.
func (c *coalescer[T]) Do(ctx context.Context, key string, fn func() (T, error)) (T, error) {
	c.mu.Lock()
	if req, ok := c.requests[key]; ok {
		c.mu.Unlock()
		return c.wait(ctx, req)
	}

	req := &inflight[T]{done: make(chan struct{})}
	c.requests[key] = req
	c.mu.Unlock()

	go func() {
		req.value, req.err = fn()
		c.mu.Lock()
		delete(c.requests, key)
		c.mu.Unlock()
		close(req.done)
	}()

	return c.wait(ctx, req)
}

func (c *coalescer[T]) wait(ctx context.Context, req *inflight[T]) (T, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case <-req.done:
		return req.value, req.err
	case <-waitCtx.Done():
		var zero T
		return zero, waitCtx.Err()
	}
}
