package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nycaccess/transit-accessibility-service/internal/models"
)

func tptr(t time.Time) *time.Time { return &t }

func TestGetArrivals(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := defaultMock()
	m.realtime = func(ctx context.Context, partition string) (models.RealtimeSnapshot, error) {
		if partition != "nqrw" {
			t.Errorf("fetched partition %q, want nqrw", partition)
		}
		return models.RealtimeSnapshot{
			Partition: partition,
			StopTimes: []models.StopTimeUpdate{
				{TripID: "t1", RouteID: "N", StopID: "R01N", Arrival: tptr(now.Add(5 * time.Minute))},
				{TripID: "t2", RouteID: "W", StopID: "R01S", Arrival: tptr(now.Add(90 * time.Second))},
				{TripID: "t3", RouteID: "N", StopID: "R01N", Arrival: tptr(now.Add(-2 * time.Minute))},
				{TripID: "t4", RouteID: "N", StopID: "R03N", Arrival: tptr(now.Add(3 * time.Minute))},
				{TripID: "t5", RouteID: "N", StopID: "R01S", Departure: tptr(now.Add(8 * time.Minute))},
			},
			LastUpdated: now,
		}, nil
	}
	e := newTestEngine(m)
	e.now = func() time.Time { return now }

	arrivals, err := e.GetArrivals(context.Background(), "R01", "")
	if err != nil {
		t.Fatalf("GetArrivals() error = %v", err)
	}
	// t3 is in the past, t4 is another station; t2, t1, t5 remain, soonest first.
	if len(arrivals) != 3 {
		t.Fatalf("GetArrivals() = %d arrivals, want 3", len(arrivals))
	}
	if arrivals[0].TripID != "t2" || arrivals[1].TripID != "t1" || arrivals[2].TripID != "t5" {
		t.Errorf("order = %q, %q, %q, want t2, t1, t5", arrivals[0].TripID, arrivals[1].TripID, arrivals[2].TripID)
	}
	if arrivals[0].MinutesUntil != 1 {
		t.Errorf("90s out MinutesUntil = %d, want 1 (floored)", arrivals[0].MinutesUntil)
	}
	if arrivals[2].MinutesUntil != 8 {
		t.Errorf("departure fallback MinutesUntil = %d, want 8", arrivals[2].MinutesUntil)
	}
	if arrivals[0].Direction != "southbound" || arrivals[1].Direction != "northbound" {
		t.Errorf("directions = %q, %q", arrivals[0].Direction, arrivals[1].Direction)
	}
}

func TestGetArrivals_RouteFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := defaultMock()
	m.realtime = func(ctx context.Context, partition string) (models.RealtimeSnapshot, error) {
		return models.RealtimeSnapshot{
			Partition: partition,
			StopTimes: []models.StopTimeUpdate{
				{TripID: "t1", RouteID: "N", StopID: "R01N", Arrival: tptr(now.Add(5 * time.Minute))},
				{TripID: "t2", RouteID: "W", StopID: "R01N", Arrival: tptr(now.Add(2 * time.Minute))},
			},
		}, nil
	}
	e := newTestEngine(m)
	e.now = func() time.Time { return now }

	arrivals, err := e.GetArrivals(context.Background(), "R01", "w")
	if err != nil {
		t.Fatalf("GetArrivals() error = %v", err)
	}
	if len(arrivals) != 1 || arrivals[0].RouteID != "W" {
		t.Errorf("arrivals = %+v, want only the W train", arrivals)
	}
}

func TestGetArrivals_Limit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := defaultMock()
	m.realtime = func(ctx context.Context, partition string) (models.RealtimeSnapshot, error) {
		snap := models.RealtimeSnapshot{Partition: partition}
		for i := 0; i < 15; i++ {
			snap.StopTimes = append(snap.StopTimes, models.StopTimeUpdate{
				TripID:  string(rune('a' + i)),
				RouteID: "N",
				StopID:  "R01N",
				Arrival: tptr(now.Add(time.Duration(i+1) * time.Minute)),
			})
		}
		return snap, nil
	}
	e := newTestEngine(m)
	e.now = func() time.Time { return now }

	arrivals, err := e.GetArrivals(context.Background(), "R01", "N")
	if err != nil {
		t.Fatalf("GetArrivals() error = %v", err)
	}
	if len(arrivals) != maxArrivals {
		t.Errorf("GetArrivals() = %d arrivals, want %d", len(arrivals), maxArrivals)
	}
}

func TestGetArrivals_Errors(t *testing.T) {
	e := newTestEngine(defaultMock())
	ctx := context.Background()

	if _, err := e.GetArrivals(ctx, "ZZZ", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown station error = %v, want ErrNotFound", err)
	}
	if _, err := e.GetArrivals(ctx, "R01", "XX"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown route error = %v, want ErrNotFound", err)
	}
}

func TestGetVehiclePositions(t *testing.T) {
	m := defaultMock()
	m.realtime = func(ctx context.Context, partition string) (models.RealtimeSnapshot, error) {
		if partition != "ace" {
			t.Errorf("fetched partition %q, want ace", partition)
		}
		return models.RealtimeSnapshot{
			Partition: partition,
			Vehicles: []models.VehiclePosition{
				{VehicleID: "v1", RouteID: "A"},
				{VehicleID: "v2", RouteID: "C"},
				{VehicleID: "v3", RouteID: "A"},
			},
			LastUpdated: time.Now().UTC(),
		}, nil
	}
	e := newTestEngine(m)

	list, err := e.GetVehiclePositions(context.Background(), "a")
	if err != nil {
		t.Fatalf("GetVehiclePositions() error = %v", err)
	}
	if list.RouteID != "A" || list.Partition != "ace" {
		t.Errorf("list = %q on %q", list.RouteID, list.Partition)
	}
	if len(list.Vehicles) != 2 {
		t.Errorf("vehicles = %d, want 2 (C train filtered out)", len(list.Vehicles))
	}
}

func TestGetVehiclePositions_UnknownRoute(t *testing.T) {
	e := newTestEngine(defaultMock())

	_, err := e.GetVehiclePositions(context.Background(), "XYZ")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetVehiclePositions() error = %v, want ErrNotFound", err)
	}
}

func TestGetVehiclePositions_Unavailable(t *testing.T) {
	m := defaultMock()
	m.realtime = func(ctx context.Context, partition string) (models.RealtimeSnapshot, error) {
		return models.RealtimeSnapshot{}, errors.New("upstream down")
	}
	e := newTestEngine(m)

	_, err := e.GetVehiclePositions(context.Background(), "A")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("GetVehiclePositions() error = %v, want ErrUnavailable", err)
	}
}
