package mta

import (
	"sort"
	"strings"
)

// Feed partitions: each physical GTFS-RT endpoint carries a fixed subset of
// routes. The numbered lines plus the shuttles share one feed.
const feedBase = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2F"

func defaultRealtimeURLs() map[string]string {
	return map[string]string{
		"1234567": feedBase + "gtfs",
		"ace":     feedBase + "gtfs-ace",
		"bdfm":    feedBase + "gtfs-bdfm",
		"g":       feedBase + "gtfs-g",
		"jz":      feedBase + "gtfs-jz",
		"nqrw":    feedBase + "gtfs-nqrw",
		"l":       feedBase + "gtfs-l",
		"si":      feedBase + "gtfs-si",
	}
}

const alertBase = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/camsys%2F"

func defaultAlertURLs() map[string]string {
	return map[string]string{
		"subway":            alertBase + "subway-alerts",
		"bus_bronx":         alertBase + "bus-alerts-bronx",
		"bus_brooklyn":      alertBase + "bus-alerts-brooklyn",
		"bus_manhattan":     alertBase + "bus-alerts-manhattan",
		"bus_queens":        alertBase + "bus-alerts-queens",
		"bus_staten_island": alertBase + "bus-alerts-staten-island",
		"lirr":              alertBase + "lirr-alerts",
		"metro_north":       alertBase + "metronorth-alerts",
	}
}

// routeToFeed maps route identifiers to the partition carrying them.
var routeToFeed = map[string]string{
	"1": "1234567", "2": "1234567", "3": "1234567",
	"4": "1234567", "5": "1234567", "6": "1234567",
	"7": "1234567", "S": "1234567",
	"A": "ace", "C": "ace", "E": "ace",
	"B": "bdfm", "D": "bdfm", "F": "bdfm", "M": "bdfm",
	"G": "g",
	"J": "jz", "Z": "jz",
	"N": "nqrw", "Q": "nqrw", "R": "nqrw", "W": "nqrw",
	"L": "l",
	"SI": "si",
}

// FeedForRoute returns the realtime feed partition carrying routeID,
// case-insensitively. ok is false for unknown routes; callers treat that as
// a not-found condition, not an error.
func FeedForRoute(routeID string) (partition string, ok bool) {
	partition, ok = routeToFeed[strings.ToUpper(strings.TrimSpace(routeID))]
	return partition, ok
}

// Partitions returns all realtime feed partition names, sorted.
func (c *Client) Partitions() []string {
	names := make([]string, 0, len(c.endpoints.RealtimeURLs))
	for name := range c.endpoints.RealtimeURLs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AlertPartitions returns all alert feed partition names, sorted.
func (c *Client) AlertPartitions() []string {
	names := make([]string, 0, len(c.endpoints.AlertURLs))
	for name := range c.endpoints.AlertURLs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
