package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nycaccess/transit-accessibility-service/internal/models"
)

// EquipmentList is a filtered slice of units with snapshot provenance.
type EquipmentList struct {
	Units       []models.EquipmentUnit `json:"units"`
	LastUpdated time.Time              `json:"last_updated"`
	Stale       bool                   `json:"stale,omitempty"`
}

// EquipmentFilter narrows GetEquipment output. Zero value matches everything.
type EquipmentFilter struct {
	Status    models.EquipmentStatus
	StationID string
	Kind      models.EquipmentKind
}

// SystemStats is a point-in-time accessibility overview, recomputed per call.
type SystemStats struct {
	StationsTotal         int       `json:"stations_total"`
	StationsADA           int       `json:"stations_ada"`
	ADAPercent            float64   `json:"ada_percent"`
	ElevatorsActive       int       `json:"elevators_active"`
	ElevatorsTotal        int       `json:"elevators_total"`
	ElevatorUptimePercent float64   `json:"elevator_uptime_percent"`
	EscalatorsActive      int       `json:"escalators_active"`
	EscalatorsTotal       int       `json:"escalators_total"`
	GeneratedAt           time.Time `json:"generated_at"`
}

// GetEquipment returns all units passing the filter, elevators first.
func (e *Engine) GetEquipment(ctx context.Context, filter EquipmentFilter) (EquipmentList, error) {
	snap, stale, err := e.equipmentSnapshot(ctx)
	if err != nil {
		return EquipmentList{}, err
	}

	stationID := normalizeID(filter.StationID)
	units := make([]models.EquipmentUnit, 0, len(snap.Elevators)+len(snap.Escalators))
	for _, unit := range allUnits(snap) {
		if filter.Kind != "" && unit.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && unit.Status != filter.Status {
			continue
		}
		if stationID != "" && normalizeID(unit.StationID) != stationID {
			continue
		}
		units = append(units, unit)
	}

	return EquipmentList{Units: units, LastUpdated: snap.LastUpdated, Stale: stale}, nil
}

// GetEquipmentUnit returns one unit by its feed identifier.
func (e *Engine) GetEquipmentUnit(ctx context.Context, unitID string) (models.EquipmentUnit, error) {
	snap, _, err := e.equipmentSnapshot(ctx)
	if err != nil {
		return models.EquipmentUnit{}, err
	}

	id := strings.TrimSpace(unitID)
	for _, unit := range allUnits(snap) {
		if strings.EqualFold(unit.ID, id) {
			return unit, nil
		}
	}
	return models.EquipmentUnit{}, fmt.Errorf("%w: equipment unit %q", ErrNotFound, unitID)
}

// GetOutages returns units currently in outage, optionally one kind only.
func (e *Engine) GetOutages(ctx context.Context, kind models.EquipmentKind) (EquipmentList, error) {
	return e.GetEquipment(ctx, EquipmentFilter{Status: models.StatusOutage, Kind: kind})
}

// GetSystemStats summarizes station ADA coverage and live equipment uptime.
func (e *Engine) GetSystemStats(ctx context.Context) (SystemStats, error) {
	stations, _, err := e.stationList(ctx)
	if err != nil {
		return SystemStats{}, err
	}
	snap, _, err := e.equipmentSnapshot(ctx)
	if err != nil {
		return SystemStats{}, err
	}

	stats := SystemStats{
		StationsTotal:  len(stations),
		ElevatorsTotal: len(snap.Elevators),
		EscalatorsTotal: len(snap.Escalators),
		GeneratedAt:    e.now().UTC(),
	}
	for _, s := range stations {
		if s.ADACompliant {
			stats.StationsADA++
		}
	}
	for _, unit := range snap.Elevators {
		if unit.Status == models.StatusActive {
			stats.ElevatorsActive++
		}
	}
	for _, unit := range snap.Escalators {
		if unit.Status == models.StatusActive {
			stats.EscalatorsActive++
		}
	}
	stats.ADAPercent = percent(stats.StationsADA, stats.StationsTotal)
	stats.ElevatorUptimePercent = percent(stats.ElevatorsActive, stats.ElevatorsTotal)
	return stats, nil
}

func allUnits(snap models.EquipmentSnapshot) []models.EquipmentUnit {
	units := make([]models.EquipmentUnit, 0, len(snap.Elevators)+len(snap.Escalators))
	units = append(units, snap.Elevators...)
	units = append(units, snap.Escalators...)
	return units
}

// percent returns part/whole as a percentage rounded to two decimals,
// zero when whole is zero.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}
