package geo

import (
	"fmt"
	"math"
	"testing"
)

func ptr(f float64) *float64 { return &f }

// TestDistanceKm_KnownPair checks the Times Square to Grand Central distance
// against the expected ~0.9 km.
func TestDistanceKm_KnownPair(t *testing.T) {
	d := DistanceKm(40.7580, -73.9855, 40.7527, -73.9772)
	if math.Abs(d-0.9) > 0.1 {
		t.Errorf("DistanceKm(Times Sq, Grand Central) = %v, want ~0.9", d)
	}
}

// TestDistanceKm_Symmetric verifies d(a,b) == d(b,a) and d(a,a) == 0.
func TestDistanceKm_Symmetric(t *testing.T) {
	ab := DistanceKm(40.7580, -73.9855, 40.6847, -73.9777)
	ba := DistanceKm(40.6847, -73.9777, 40.7580, -73.9855)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", ab, ba)
	}
	if self := DistanceKm(40.7580, -73.9855, 40.7580, -73.9855); self != 0 {
		t.Errorf("DistanceKm(a, a) = %v, want 0", self)
	}
}

// TestWalkingMinutes verifies the 12 min/km estimate with rounding.
func TestWalkingMinutes(t *testing.T) {
	tests := []struct {
		km   float64
		want int
	}{
		{0, 0},
		{0.5, 6},
		{0.42, 5},
		{1, 12},
	}
	for _, tc := range tests {
		if got := WalkingMinutes(tc.km); got != tc.want {
			t.Errorf("WalkingMinutes(%v) = %d, want %d", tc.km, got, tc.want)
		}
	}
}

// TestNearby_OrderingAndLimit verifies exclusion of the query station, the
// 5-result cap, and non-decreasing distance ordering.
func TestNearby_OrderingAndLimit(t *testing.T) {
	origin := Candidate{ID: "origin", Latitude: ptr(40.7580), Longitude: ptr(-73.9855)}
	candidates := []Candidate{origin}
	for i := 0; i < 8; i++ {
		candidates = append(candidates, Candidate{
			ID:        fmt.Sprintf("s%d", i),
			Latitude:  ptr(40.7580 + float64(i)*0.001),
			Longitude: ptr(-73.9855),
		})
	}

	got := Nearby("origin", 40.7580, -73.9855, 2.0, candidates, nil)

	if len(got) > 5 {
		t.Fatalf("Nearby() returned %d results, want at most 5", len(got))
	}
	for i, m := range got {
		if m.ID == "origin" {
			t.Error("Nearby() returned the excluded station")
		}
		if i > 0 && m.DistanceKm < got[i-1].DistanceKm {
			t.Errorf("Nearby() results not sorted: %v before %v", got[i-1].DistanceKm, m.DistanceKm)
		}
	}
}

// TestNearby_FiltersAndSkips verifies the predicate filter, the max-distance
// cutoff, and skipping of candidates without coordinates.
func TestNearby_FiltersAndSkips(t *testing.T) {
	candidates := []Candidate{
		{ID: "near-accessible", Latitude: ptr(40.7590), Longitude: ptr(-73.9855)},
		{ID: "near-inaccessible", Latitude: ptr(40.7585), Longitude: ptr(-73.9855)},
		{ID: "far", Latitude: ptr(41.5), Longitude: ptr(-73.9855)},
		{ID: "no-coords"},
	}
	accessible := map[string]bool{"near-accessible": true}

	got := Nearby("x", 40.7580, -73.9855, 1.0, candidates, func(id string) bool {
		return accessible[id]
	})

	if len(got) != 1 || got[0].ID != "near-accessible" {
		t.Fatalf("Nearby() = %+v, want only near-accessible", got)
	}
	if got[0].WalkingMinutes != WalkingMinutes(got[0].DistanceKm) {
		t.Errorf("walking minutes %d inconsistent with distance %v", got[0].WalkingMinutes, got[0].DistanceKm)
	}
}

// TestNearby_ZeroCoordinates verifies that a missing query point yields an
// empty result rather than an error or bogus matches.
func TestNearby_ZeroCoordinates(t *testing.T) {
	candidates := []Candidate{{ID: "s1", Latitude: ptr(40.7), Longitude: ptr(-73.9)}}
	if got := Nearby("x", 0, 0, 100, candidates, nil); len(got) != 0 {
		t.Errorf("Nearby() with zero coords = %+v, want empty", got)
	}
}
