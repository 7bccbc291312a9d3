// Package service is the aggregation engine: it joins the normalized feeds
// into the station/route/equipment query surface, reading through the TTL
// cache with stale fallback.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nycaccess/transit-accessibility-service/internal/cache"
	"github.com/nycaccess/transit-accessibility-service/internal/models"
	"github.com/nycaccess/transit-accessibility-service/internal/mta"
)

var (
	// ErrNotFound marks an unknown station, equipment, route, or feed
	// partition identifier.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks a dataset with no fresh fetch and no stale cache
	// to fall back on. Transport and parse details stay wrapped inside.
	ErrUnavailable = errors.New("data unavailable")
)

// FeedClient is the upstream fetch surface the engine depends on.
// *mta.Client satisfies it; tests substitute a mock.
type FeedClient interface {
	FetchEquipment(ctx context.Context) (models.EquipmentSnapshot, error)
	FetchStations(ctx context.Context) ([]models.Station, error)
	FetchRealtime(ctx context.Context, partition string) (models.RealtimeSnapshot, error)
	FetchAlerts(ctx context.Context, partition string) ([]models.Alert, error)
	Partitions() []string
	AlertPartitions() []string
}

// HealthRecorder receives per-feed fetch outcomes. Nil disables recording.
type HealthRecorder interface {
	RecordSuccess(feed string)
	RecordFailure(feed string)
}

// Stores groups the per-dataset cache stores. Each dataset keeps its own
// typed store; they may share one backend process.
type Stores struct {
	Equipment cache.Store[models.EquipmentSnapshot]
	Stations  cache.Store[[]models.Station]
	Realtime  cache.Store[models.RealtimeSnapshot]
	Alerts    cache.Store[[]models.Alert]
}

// TTLs holds the per-dataset cache lifetimes.
type TTLs struct {
	Equipment time.Duration
	Stations  time.Duration
	Realtime  time.Duration
	Alerts    time.Duration
}

// Engine answers accessibility queries over the cached feed snapshots.
// All methods are safe for concurrent use.
type Engine struct {
	client FeedClient
	stores Stores
	ttls   TTLs
	health HealthRecorder
	logger *zap.Logger

	// now is swappable for deterministic arrival/alert tests.
	now func() time.Time

	equipmentFlight *coalescer[models.EquipmentSnapshot]
	stationsFlight  *coalescer[[]models.Station]
	realtimeFlight  *coalescer[models.RealtimeSnapshot]
	alertsFlight    *coalescer[[]models.Alert]
}

// NewEngine creates an Engine. A positive coalesceTimeout enables request
// coalescing, bounding how long a caller waits on someone else's fetch.
// health and logger may be nil.
func NewEngine(client FeedClient, stores Stores, ttls TTLs, coalesceTimeout time.Duration, health HealthRecorder, logger *zap.Logger) *Engine {
	e := &Engine{
		client: client,
		stores: stores,
		ttls:   ttls,
		health: health,
		logger: logger,
		now:    time.Now,
	}
	if coalesceTimeout > 0 {
		e.equipmentFlight = newCoalescer[models.EquipmentSnapshot](coalesceTimeout)
		e.stationsFlight = newCoalescer[[]models.Station](coalesceTimeout)
		e.realtimeFlight = newCoalescer[models.RealtimeSnapshot](coalesceTimeout)
		e.alertsFlight = newCoalescer[[]models.Alert](coalesceTimeout)
	}
	return e
}

const (
	keyEquipment = "equipment"
	keyStations  = "stations"
)

func realtimeKey(partition string) string { return "realtime:" + partition }
func alertsKey(partition string) string   { return "alerts:" + partition }

// equipmentSnapshot reads the equipment dataset through the cache. The bool
// reports whether the value is stale.
func (e *Engine) equipmentSnapshot(ctx context.Context) (models.EquipmentSnapshot, bool, error) {
	snap, stale, err := cache.GetOrFetch(ctx, e.stores.Equipment, keyEquipment, e.ttls.Equipment, func(ctx context.Context) (models.EquipmentSnapshot, error) {
		fetch := func() (models.EquipmentSnapshot, error) {
			snap, err := e.client.FetchEquipment(ctx)
			e.record(keyEquipment, err)
			return snap, err
		}
		if e.equipmentFlight != nil {
			return e.equipmentFlight.Do(ctx, keyEquipment, fetch)
		}
		return fetch()
	})
	if err != nil {
		return models.EquipmentSnapshot{}, false, fmt.Errorf("%w: equipment: %v", ErrUnavailable, err)
	}
	return snap, stale, nil
}

func (e *Engine) stationList(ctx context.Context) ([]models.Station, bool, error) {
	stations, stale, err := cache.GetOrFetch(ctx, e.stores.Stations, keyStations, e.ttls.Stations, func(ctx context.Context) ([]models.Station, error) {
		fetch := func() ([]models.Station, error) {
			stations, err := e.client.FetchStations(ctx)
			e.record(keyStations, err)
			return stations, err
		}
		if e.stationsFlight != nil {
			return e.stationsFlight.Do(ctx, keyStations, fetch)
		}
		return fetch()
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: stations: %v", ErrUnavailable, err)
	}
	return stations, stale, nil
}

func (e *Engine) realtimeSnapshot(ctx context.Context, partition string) (models.RealtimeSnapshot, bool, error) {
	key := realtimeKey(partition)
	snap, stale, err := cache.GetOrFetch(ctx, e.stores.Realtime, key, e.ttls.Realtime, func(ctx context.Context) (models.RealtimeSnapshot, error) {
		fetch := func() (models.RealtimeSnapshot, error) {
			snap, err := e.client.FetchRealtime(ctx, partition)
			e.record(key, err)
			return snap, err
		}
		if e.realtimeFlight != nil {
			return e.realtimeFlight.Do(ctx, key, fetch)
		}
		return fetch()
	})
	if err != nil {
		if errors.Is(err, mta.ErrFeedNotFound) {
			return models.RealtimeSnapshot{}, false, fmt.Errorf("%w: realtime partition %q", ErrNotFound, partition)
		}
		return models.RealtimeSnapshot{}, false, fmt.Errorf("%w: realtime partition %q: %v", ErrUnavailable, partition, err)
	}
	return snap, stale, nil
}

func (e *Engine) alertList(ctx context.Context, partition string) ([]models.Alert, bool, error) {
	key := alertsKey(partition)
	alerts, stale, err := cache.GetOrFetch(ctx, e.stores.Alerts, key, e.ttls.Alerts, func(ctx context.Context) ([]models.Alert, error) {
		fetch := func() ([]models.Alert, error) {
			alerts, err := e.client.FetchAlerts(ctx, partition)
			e.record(key, err)
			return alerts, err
		}
		if e.alertsFlight != nil {
			return e.alertsFlight.Do(ctx, key, fetch)
		}
		return fetch()
	})
	if err != nil {
		if errors.Is(err, mta.ErrFeedNotFound) {
			return nil, false, fmt.Errorf("%w: alert partition %q", ErrNotFound, partition)
		}
		return nil, false, fmt.Errorf("%w: alert partition %q: %v", ErrUnavailable, partition, err)
	}
	return alerts, stale, nil
}

// record reports one fetch outcome to the health recorder. A not-found
// partition is a caller mistake, not feed trouble, and is not recorded.
func (e *Engine) record(feed string, err error) {
	if errors.Is(err, mta.ErrFeedNotFound) {
		return
	}
	if err != nil {
		e.warn("feed fetch failed", zap.String("feed", feed), zap.Error(err))
		if e.health != nil {
			e.health.RecordFailure(feed)
		}
		return
	}
	if e.health != nil {
		e.health.RecordSuccess(feed)
	}
}

func (e *Engine) warn(msg string, fields ...zap.Field) {
	if e.logger != nil {
		e.logger.Warn(msg, fields...)
	}
}
