package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nycaccess/transit-accessibility-service/internal/models"
	"github.com/nycaccess/transit-accessibility-service/internal/mta"
)

var severityRank = map[models.Severity]int{
	models.SeverityCritical: 3,
	models.SeverityHigh:     2,
	models.SeverityMedium:   1,
	models.SeverityLow:      0,
}

// GetAlerts returns service alerts. With a partition name only that feed is
// read; with an empty partition all alert feeds are merged, skipping
// partitions that are down as long as at least one answers.
func (e *Engine) GetAlerts(ctx context.Context, partition string) ([]models.Alert, error) {
	if p := strings.TrimSpace(partition); p != "" {
		alerts, _, err := e.alertList(ctx, p)
		if err != nil {
			return nil, err
		}
		return sortAlerts(alerts), nil
	}
	return e.allAlerts(ctx)
}

// GetActiveAlerts returns the alerts from every partition whose active
// period covers the current time.
func (e *Engine) GetActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	alerts, err := e.allAlerts(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	active := make([]models.Alert, 0, len(alerts))
	for _, alert := range alerts {
		if alert.ActiveAt(now) {
			active = append(active, alert)
		}
	}
	return active, nil
}

// GetRouteAlerts returns the alerts naming routeID in their affected set.
// Unknown routes are a not-found condition.
func (e *Engine) GetRouteAlerts(ctx context.Context, routeID string) ([]models.Alert, error) {
	route := normalizeID(routeID)
	if _, ok := mta.FeedForRoute(route); !ok {
		return nil, fmt.Errorf("%w: route %q", ErrNotFound, routeID)
	}

	alerts, err := e.allAlerts(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]models.Alert, 0)
	for _, alert := range alerts {
		if alert.AffectsRoute(route) {
			matched = append(matched, alert)
		}
	}
	return matched, nil
}

// allAlerts merges every alert partition. A partition failure is tolerated
// while any other partition still answers; all failing means unavailable.
func (e *Engine) allAlerts(ctx context.Context) ([]models.Alert, error) {
	partitions := e.client.AlertPartitions()
	if len(partitions) == 0 {
		return nil, fmt.Errorf("%w: no alert partitions configured", ErrUnavailable)
	}

	var merged []models.Alert
	var lastErr error
	answered := 0
	for _, partition := range partitions {
		alerts, _, err := e.alertList(ctx, partition)
		if err != nil {
			lastErr = err
			e.warn("alert partition unavailable", zap.String("partition", partition), zap.Error(err))
			continue
		}
		answered++
		merged = append(merged, alerts...)
	}
	if answered == 0 {
		return nil, lastErr
	}
	return sortAlerts(merged), nil
}

// sortAlerts orders by severity, most severe first, then id for stability.
func sortAlerts(alerts []models.Alert) []models.Alert {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := severityRank[alerts[i].Severity], severityRank[alerts[j].Severity]
		if ri != rj {
			return ri > rj
		}
		return alerts[i].ID < alerts[j].ID
	})
	return alerts
}
