// Package refresher re-primes cached datasets in the background so reads
// rarely pay the upstream fetch.
package refresher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nycaccess/transit-accessibility-service/internal/cache"
	"github.com/nycaccess/transit-accessibility-service/internal/observability"
)

// Task is one periodically refreshed dataset.
type Task struct {
	Name     string
	Interval time.Duration
	Refresh  func(ctx context.Context) error
}

// Prime builds a Task that fetches one dataset and stores it under its name.
// The fetch completes before the store write, so no lock is ever held across
// the network call.
func Prime[T any](name string, interval, ttl time.Duration, store cache.Store[T], fetch func(ctx context.Context) (T, error)) Task {
	return Task{
		Name:     name,
		Interval: interval,
		Refresh: func(ctx context.Context) error {
			value, err := fetch(ctx)
			if err != nil {
				return err
			}
			return store.Set(ctx, name, value, ttl)
		},
	}
}

// Refresher drives one goroutine per task: an immediate prime at startup,
// then ticker-paced refreshes until the context is canceled. Failures are
// logged and counted, never fatal; the stale cache covers the gap.
type Refresher struct {
	tasks  []Task
	logger *zap.Logger
}

func New(logger *zap.Logger, tasks ...Task) *Refresher {
	return &Refresher{tasks: tasks, logger: logger}
}

// Run blocks until ctx is canceled and every task goroutine has stopped.
func (r *Refresher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, task := range r.tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.runTask(ctx, task)
		}()
	}
	wg.Wait()
}

func (r *Refresher) runTask(ctx context.Context, task Task) {
	r.refreshOnce(ctx, task)

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx, task)
		}
	}
}

func (r *Refresher) refreshOnce(ctx context.Context, task Task) {
	start := time.Now()
	err := task.Refresh(ctx)
	duration := time.Since(start)

	if err != nil {
		observability.RefreshCyclesTotal.WithLabelValues(task.Name, "error").Inc()
		if r.logger != nil && ctx.Err() == nil {
			r.logger.Warn("refresh failed", zap.String("dataset", task.Name), zap.Duration("duration", duration), zap.Error(err))
		}
		return
	}
	observability.RefreshCyclesTotal.WithLabelValues(task.Name, "success").Inc()
	if r.logger != nil {
		r.logger.Debug("refreshed", zap.String("dataset", task.Name), zap.Duration("duration", duration))
	}
}
