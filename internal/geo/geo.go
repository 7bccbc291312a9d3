// Package geo ranks stations by great-circle distance.
package geo

import (
	"math"
	"sort"
)

const (
	earthRadiusKm = 6371

	// Walking pace used for time estimates, minutes per kilometer.
	walkMinutesPerKm = 12

	maxResults = 5
)

// Candidate is a station considered for nearby search. Nil coordinates
// exclude the candidate.
type Candidate struct {
	ID        string
	Latitude  *float64
	Longitude *float64
}

// Match is one ranked nearby candidate.
type Match struct {
	ID             string  `json:"id"`
	DistanceKm     float64 `json:"distance_km"`
	WalkingMinutes int     `json:"walking_time_minutes"`
}

// DistanceKm computes the haversine great-circle distance in kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// WalkingMinutes estimates walking time for a distance in kilometers.
func WalkingMinutes(distanceKm float64) int {
	return int(math.Round(distanceKm * walkMinutesPerKm))
}

// Nearby returns up to 5 candidates within maxDistanceKm of (lat, lon),
// excluding excludeID and any candidate rejected by keep or missing
// coordinates. Results are sorted ascending by distance, ties broken by id
// for determinism. Zero query coordinates yield an empty result.
func Nearby(excludeID string, lat, lon, maxDistanceKm float64, candidates []Candidate, keep func(id string) bool) []Match {
	if lat == 0 || lon == 0 {
		return nil
	}

	var matches []Match
	for _, c := range candidates {
		if c.ID == excludeID || c.Latitude == nil || c.Longitude == nil {
			continue
		}
		if keep != nil && !keep(c.ID) {
			continue
		}
		d := DistanceKm(lat, lon, *c.Latitude, *c.Longitude)
		if d > maxDistanceKm {
			continue
		}
		matches = append(matches, Match{
			ID:             c.ID,
			DistanceKm:     math.Round(d*100) / 100,
			WalkingMinutes: WalkingMinutes(d),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm != matches[j].DistanceKm {
			return matches[i].DistanceKm < matches[j].DistanceKm
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}
