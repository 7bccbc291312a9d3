package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nycaccess/transit-accessibility-service/internal/models"
	"github.com/nycaccess/transit-accessibility-service/internal/mta"
)

const maxArrivals = 10

// Arrival is one upcoming stop call at a station.
type Arrival struct {
	RouteID      string    `json:"route_id"`
	TripID       string    `json:"trip_id,omitempty"`
	StopID       string    `json:"stop_id"`
	Direction    string    `json:"direction,omitempty"`
	Time         time.Time `json:"time"`
	MinutesUntil int       `json:"minutes_until"`
}

// VehicleList is the live positions for one route.
type VehicleList struct {
	RouteID     string                   `json:"route_id"`
	Partition   string                   `json:"partition"`
	Vehicles    []models.VehiclePosition `json:"vehicles"`
	LastUpdated time.Time                `json:"last_updated"`
	Stale       bool                     `json:"stale,omitempty"`
}

// GetArrivals returns up to 10 upcoming arrivals at a station, soonest
// first. With a route id the search covers only that route's feed
// partition; without one, every partition serving the station's lines.
// Departed trains (negative minutes) are dropped.
func (e *Engine) GetArrivals(ctx context.Context, stationID, routeID string) ([]Arrival, error) {
	id := normalizeID(stationID)

	stations, _, err := e.stationList(ctx)
	if err != nil {
		return nil, err
	}
	station, ok := findStation(stations, id)
	if !ok {
		return nil, fmt.Errorf("%w: station %q", ErrNotFound, stationID)
	}

	route := normalizeID(routeID)
	partitions, err := arrivalPartitions(station, route)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var arrivals []Arrival
	for _, partition := range partitions {
		snap, _, err := e.realtimeSnapshot(ctx, partition)
		if err != nil {
			return nil, err
		}
		for _, stu := range snap.StopTimes {
			// Stop ids carry N/S directional suffixes on the station id.
			if !strings.HasPrefix(normalizeID(stu.StopID), station.ID) {
				continue
			}
			if route != "" && normalizeID(stu.RouteID) != route {
				continue
			}
			when := stu.Arrival
			if when == nil {
				when = stu.Departure
			}
			if when == nil || when.Before(now) {
				continue
			}
			minutes := int(when.Sub(now) / time.Minute)
			arrivals = append(arrivals, Arrival{
				RouteID:      stu.RouteID,
				TripID:       stu.TripID,
				StopID:       stu.StopID,
				Direction:    directionOf(stu.StopID),
				Time:         *when,
				MinutesUntil: minutes,
			})
		}
	}

	sort.Slice(arrivals, func(i, j int) bool {
		if !arrivals[i].Time.Equal(arrivals[j].Time) {
			return arrivals[i].Time.Before(arrivals[j].Time)
		}
		return arrivals[i].TripID < arrivals[j].TripID
	})
	if len(arrivals) > maxArrivals {
		arrivals = arrivals[:maxArrivals]
	}
	return arrivals, nil
}

// GetVehiclePositions returns live vehicle positions for one route.
func (e *Engine) GetVehiclePositions(ctx context.Context, routeID string) (VehicleList, error) {
	route := normalizeID(routeID)
	partition, ok := mta.FeedForRoute(route)
	if !ok {
		return VehicleList{}, fmt.Errorf("%w: route %q", ErrNotFound, routeID)
	}

	snap, stale, err := e.realtimeSnapshot(ctx, partition)
	if err != nil {
		return VehicleList{}, err
	}

	vehicles := make([]models.VehiclePosition, 0)
	for _, v := range snap.Vehicles {
		if normalizeID(v.RouteID) == route {
			vehicles = append(vehicles, v)
		}
	}
	return VehicleList{
		RouteID:     route,
		Partition:   partition,
		Vehicles:    vehicles,
		LastUpdated: snap.LastUpdated,
		Stale:       stale,
	}, nil
}

// arrivalPartitions resolves which realtime partitions to scan. An explicit
// route pins one partition; otherwise the station's lines decide.
func arrivalPartitions(station models.Station, route string) ([]string, error) {
	if route != "" {
		partition, ok := mta.FeedForRoute(route)
		if !ok {
			return nil, fmt.Errorf("%w: route %q", ErrNotFound, route)
		}
		return []string{partition}, nil
	}

	seen := make(map[string]bool)
	var partitions []string
	for _, line := range station.Lines {
		partition, ok := mta.FeedForRoute(line)
		if !ok || seen[partition] {
			continue
		}
		seen[partition] = true
		partitions = append(partitions, partition)
	}
	sort.Strings(partitions)
	return partitions, nil
}

func directionOf(stopID string) string {
	switch {
	case strings.HasSuffix(stopID, "N"):
		return "northbound"
	case strings.HasSuffix(stopID, "S"):
		return "southbound"
	default:
		return ""
	}
}
