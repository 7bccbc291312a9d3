package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nycaccess/transit-accessibility-service/internal/geo"
	"github.com/nycaccess/transit-accessibility-service/internal/models"
)

// Search radius for accessible alternatives when a route end is not usable.
const alternativesRadiusKm = 2.0

// StationSummary is a station joined with its current elevator availability.
// A station counts as accessible when at least one elevator is active;
// the ADA flag alone says nothing about today's equipment state.
type StationSummary struct {
	Station          models.Station `json:"station"`
	Accessible       bool           `json:"accessible"`
	ElevatorsWorking int            `json:"elevators_working"`
	ElevatorsTotal   int            `json:"elevators_total"`
}

// StationDetail is the full single-station view.
type StationDetail struct {
	StationSummary
	Elevators  []models.EquipmentUnit `json:"elevators"`
	Escalators []models.EquipmentUnit `json:"escalators"`
	Stale      bool                   `json:"stale,omitempty"`
}

// NearbyStation is one ranked accessible alternative.
type NearbyStation struct {
	StationSummary
	DistanceKm     float64 `json:"distance_km"`
	WalkingMinutes int     `json:"walking_time_minutes"`
}

// RouteEndpoint is one end of a route check. Alternatives are populated only
// when the end itself is not accessible.
type RouteEndpoint struct {
	StationSummary
	Alternatives []NearbyStation `json:"alternatives,omitempty"`
}

// RouteCheck reports per-end accessibility for an origin/destination pair.
type RouteCheck struct {
	Origin          RouteEndpoint `json:"origin"`
	Destination     RouteEndpoint `json:"destination"`
	FullyAccessible bool          `json:"fully_accessible"`
}

// ListFilter narrows ListStations output. Zero value matches everything.
type ListFilter struct {
	ADAOnly        bool
	AccessibleOnly bool
	Borough        string
}

// GetStation returns the detailed view for one station id.
func (e *Engine) GetStation(ctx context.Context, stationID string) (StationDetail, error) {
	id := normalizeID(stationID)

	stations, _, err := e.stationList(ctx)
	if err != nil {
		return StationDetail{}, err
	}
	station, ok := findStation(stations, id)
	if !ok {
		return StationDetail{}, fmt.Errorf("%w: station %q", ErrNotFound, stationID)
	}

	snap, stale, err := e.equipmentSnapshot(ctx)
	if err != nil {
		return StationDetail{}, err
	}
	elevators := unitsAtStation(snap.Elevators, station.ID)
	escalators := unitsAtStation(snap.Escalators, station.ID)

	return StationDetail{
		StationSummary: summarize(station, elevators),
		Elevators:      elevators,
		Escalators:     escalators,
		Stale:          stale,
	}, nil
}

// ListStations returns summaries for all stations passing the filter,
// sorted by id.
func (e *Engine) ListStations(ctx context.Context, filter ListFilter) ([]StationSummary, error) {
	stations, _, err := e.stationList(ctx)
	if err != nil {
		return nil, err
	}
	snap, _, err := e.equipmentSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	elevatorsByStation := groupByStation(snap.Elevators)

	borough := strings.TrimSpace(filter.Borough)
	summaries := make([]StationSummary, 0, len(stations))
	for _, station := range stations {
		if filter.ADAOnly && !station.ADACompliant {
			continue
		}
		if borough != "" && !strings.EqualFold(station.Borough, borough) {
			continue
		}
		summary := summarize(station, elevatorsByStation[normalizeID(station.ID)])
		if filter.AccessibleOnly && !summary.Accessible {
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Station.ID < summaries[j].Station.ID
	})
	return summaries, nil
}

// FindNearbyAccessible ranks accessible stations within maxKm of the given
// station, nearest first. A station without registry coordinates yields an
// empty result, not an error.
func (e *Engine) FindNearbyAccessible(ctx context.Context, stationID string, maxKm float64) ([]NearbyStation, error) {
	id := normalizeID(stationID)

	stations, _, err := e.stationList(ctx)
	if err != nil {
		return nil, err
	}
	origin, ok := findStation(stations, id)
	if !ok {
		return nil, fmt.Errorf("%w: station %q", ErrNotFound, stationID)
	}

	snap, _, err := e.equipmentSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	elevatorsByStation := groupByStation(snap.Elevators)

	return e.nearbyAccessible(origin, maxKm, stations, elevatorsByStation), nil
}

// CheckRoute reports accessibility for both ends of a trip, with nearby
// accessible alternatives for any end that is not usable today.
func (e *Engine) CheckRoute(ctx context.Context, originID, destinationID string) (RouteCheck, error) {
	stations, _, err := e.stationList(ctx)
	if err != nil {
		return RouteCheck{}, err
	}
	origin, ok := findStation(stations, normalizeID(originID))
	if !ok {
		return RouteCheck{}, fmt.Errorf("%w: origin station %q", ErrNotFound, originID)
	}
	destination, ok := findStation(stations, normalizeID(destinationID))
	if !ok {
		return RouteCheck{}, fmt.Errorf("%w: destination station %q", ErrNotFound, destinationID)
	}

	snap, _, err := e.equipmentSnapshot(ctx)
	if err != nil {
		return RouteCheck{}, err
	}
	elevatorsByStation := groupByStation(snap.Elevators)

	endpoint := func(station models.Station) RouteEndpoint {
		end := RouteEndpoint{
			StationSummary: summarize(station, elevatorsByStation[normalizeID(station.ID)]),
		}
		if !end.Accessible {
			end.Alternatives = e.nearbyAccessible(station, alternativesRadiusKm, stations, elevatorsByStation)
		}
		return end
	}

	check := RouteCheck{
		Origin:      endpoint(origin),
		Destination: endpoint(destination),
	}
	check.FullyAccessible = check.Origin.Accessible && check.Destination.Accessible
	return check, nil
}

func (e *Engine) nearbyAccessible(origin models.Station, maxKm float64, stations []models.Station, elevatorsByStation map[string][]models.EquipmentUnit) []NearbyStation {
	if !origin.HasCoordinates() {
		return []NearbyStation{}
	}

	byID := make(map[string]models.Station, len(stations))
	candidates := make([]geo.Candidate, 0, len(stations))
	for _, s := range stations {
		byID[s.ID] = s
		candidates = append(candidates, geo.Candidate{ID: s.ID, Latitude: s.Latitude, Longitude: s.Longitude})
	}

	matches := geo.Nearby(origin.ID, *origin.Latitude, *origin.Longitude, maxKm, candidates, func(id string) bool {
		accessible, _, _ := availability(elevatorsByStation[normalizeID(id)])
		return accessible
	})

	nearby := make([]NearbyStation, 0, len(matches))
	for _, m := range matches {
		nearby = append(nearby, NearbyStation{
			StationSummary: summarize(byID[m.ID], elevatorsByStation[normalizeID(m.ID)]),
			DistanceKm:     m.DistanceKm,
			WalkingMinutes: m.WalkingMinutes,
		})
	}
	return nearby
}

func summarize(station models.Station, elevators []models.EquipmentUnit) StationSummary {
	accessible, working, total := availability(elevators)
	return StationSummary{
		Station:          station,
		Accessible:       accessible,
		ElevatorsWorking: working,
		ElevatorsTotal:   total,
	}
}

// availability derives the accessibility verdict from elevator states.
func availability(elevators []models.EquipmentUnit) (accessible bool, working, total int) {
	for _, unit := range elevators {
		total++
		if unit.Status == models.StatusActive {
			working++
		}
	}
	return working > 0, working, total
}

func findStation(stations []models.Station, id string) (models.Station, bool) {
	for _, s := range stations {
		if normalizeID(s.ID) == id {
			return s, true
		}
	}
	return models.Station{}, false
}

func unitsAtStation(units []models.EquipmentUnit, stationID string) []models.EquipmentUnit {
	id := normalizeID(stationID)
	var at []models.EquipmentUnit
	for _, unit := range units {
		if normalizeID(unit.StationID) == id {
			at = append(at, unit)
		}
	}
	return at
}

func groupByStation(units []models.EquipmentUnit) map[string][]models.EquipmentUnit {
	grouped := make(map[string][]models.EquipmentUnit)
	for _, unit := range units {
		key := normalizeID(unit.StationID)
		grouped[key] = append(grouped[key], unit)
	}
	return grouped
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
