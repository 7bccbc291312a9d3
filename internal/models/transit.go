package models

import "time"

// EquipmentKind identifies the type of accessibility equipment at a station.
type EquipmentKind string

const (
	KindElevator  EquipmentKind = "elevator"
	KindEscalator EquipmentKind = "escalator"
)

// EquipmentStatus is the normalized operational state of a unit.
type EquipmentStatus string

const (
	StatusActive      EquipmentStatus = "active"
	StatusOutage      EquipmentStatus = "outage"
	StatusMaintenance EquipmentStatus = "maintenance"
)

// Severity is the derived importance of a service alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Station is one row of the MTA station registry in canonical form.
// Latitude/Longitude are nil when the registry row carried no usable
// coordinates; such stations are excluded from geo search.
type Station struct {
	ID           string   `json:"station_id"`
	Name         string   `json:"station_name"`
	Borough      string   `json:"borough"`
	Lines        []string `json:"lines"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	ADACompliant bool     `json:"ada_compliant"`
	ADANotes     string   `json:"ada_notes,omitempty"`
	Structure    string   `json:"structure,omitempty"`
	ComplexID    string   `json:"complex_id,omitempty"`
}

// HasCoordinates reports whether the station can participate in geo search.
func (s Station) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// EquipmentUnit is one elevator or escalator from the equipment feed.
// Outage timestamps are carried verbatim from the upstream feed; the feed's
// date format is undocumented, so no parsing is attempted here.
type EquipmentUnit struct {
	ID              string          `json:"id"`
	StationID       string          `json:"station_id"`
	StationName     string          `json:"station_name"`
	Borough         string          `json:"borough"`
	Kind            EquipmentKind   `json:"kind"`
	Status          EquipmentStatus `json:"status"`
	Serving         string          `json:"serving"`
	ADA             bool            `json:"ada"`
	OutageStart     string          `json:"outage_start,omitempty"`
	OutageEnd       string          `json:"outage_end,omitempty"`
	EstimatedReturn string          `json:"estimated_return,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Direction       string          `json:"direction,omitempty"` // escalators only
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EquipmentSnapshot is the full equipment feed at one fetch instant.
type EquipmentSnapshot struct {
	Elevators   []EquipmentUnit `json:"elevators"`
	Escalators  []EquipmentUnit `json:"escalators"`
	LastUpdated time.Time       `json:"last_updated"`
}

// VehiclePosition is one vehicle entity from a GTFS-RT feed partition.
// Optional upstream fields are nil rather than zero-valued.
type VehiclePosition struct {
	VehicleID       string     `json:"vehicle_id,omitempty"`
	TripID          string     `json:"trip_id,omitempty"`
	RouteID         string     `json:"route_id,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	Bearing         *float64   `json:"bearing,omitempty"`
	CurrentStop     string     `json:"current_stop,omitempty"`
	Status          string     `json:"status"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
	CongestionLevel string     `json:"congestion_level"`
	OccupancyStatus string     `json:"occupancy_status"`
}

// StopTimeUpdate is one predicted stop call from a trip-update entity.
// Records keep the order they were encountered in within the trip.
type StopTimeUpdate struct {
	TripID    string     `json:"trip_id,omitempty"`
	RouteID   string     `json:"route_id,omitempty"`
	VehicleID string     `json:"vehicle_id,omitempty"`
	StopID    string     `json:"stop_id,omitempty"`
	Arrival   *time.Time `json:"arrival,omitempty"`
	Departure *time.Time `json:"departure,omitempty"`
}

// RealtimeSnapshot is one decoded GTFS-RT feed partition.
type RealtimeSnapshot struct {
	Partition   string            `json:"partition"`
	Vehicles    []VehiclePosition `json:"vehicles"`
	StopTimes   []StopTimeUpdate  `json:"stop_times"`
	LastUpdated time.Time         `json:"last_updated"`
}

// ActivePeriod is a time window during which an alert is in effect.
// A nil Start means no lower bound; a nil End means no upper bound.
type ActivePeriod struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// Contains reports whether now falls within the window.
func (p ActivePeriod) Contains(now time.Time) bool {
	if p.Start != nil && now.Before(*p.Start) {
		return false
	}
	if p.End != nil && !now.Before(*p.End) {
		return false
	}
	return true
}

// Alert is one normalized service alert.
type Alert struct {
	ID             string         `json:"id"`
	Header         string         `json:"header"`
	Description    string         `json:"description"`
	URL            string         `json:"url,omitempty"`
	AffectedRoutes []string       `json:"affected_routes"`
	Cause          string         `json:"cause"`
	Effect         string         `json:"effect"`
	Severity       Severity       `json:"severity"`
	ActivePeriods  []ActivePeriod `json:"active_period"`
	FeedPartition  string         `json:"feed_partition,omitempty"`
}

// ActiveAt reports whether the alert is in effect at now. An alert with no
// active periods is unrestricted and always active.
func (a Alert) ActiveAt(now time.Time) bool {
	if len(a.ActivePeriods) == 0 {
		return true
	}
	for _, p := range a.ActivePeriods {
		if p.Contains(now) {
			return true
		}
	}
	return false
}

// AffectsRoute reports whether routeID is in the alert's affected set.
func (a Alert) AffectsRoute(routeID string) bool {
	for _, r := range a.AffectedRoutes {
		if r == routeID {
			return true
		}
	}
	return false
}
