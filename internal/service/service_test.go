package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nycaccess/transit-accessibility-service/internal/cache"
	"github.com/nycaccess/transit-accessibility-service/internal/models"
)

// mockClient substitutes the upstream feed client. Unset functions fail the
// operation, which keeps tests explicit about what they exercise.
type mockClient struct {
	equipment       func(ctx context.Context) (models.EquipmentSnapshot, error)
	stations        func(ctx context.Context) ([]models.Station, error)
	realtime        func(ctx context.Context, partition string) (models.RealtimeSnapshot, error)
	alerts          func(ctx context.Context, partition string) ([]models.Alert, error)
	alertPartitions []string
}

func (m *mockClient) FetchEquipment(ctx context.Context) (models.EquipmentSnapshot, error) {
	if m.equipment == nil {
		return models.EquipmentSnapshot{}, errors.New("equipment fetch not configured")
	}
	return m.equipment(ctx)
}

func (m *mockClient) FetchStations(ctx context.Context) ([]models.Station, error) {
	if m.stations == nil {
		return nil, errors.New("stations fetch not configured")
	}
	return m.stations(ctx)
}

func (m *mockClient) FetchRealtime(ctx context.Context, partition string) (models.RealtimeSnapshot, error) {
	if m.realtime == nil {
		return models.RealtimeSnapshot{}, errors.New("realtime fetch not configured")
	}
	return m.realtime(ctx, partition)
}

func (m *mockClient) FetchAlerts(ctx context.Context, partition string) ([]models.Alert, error) {
	if m.alerts == nil {
		return nil, errors.New("alerts fetch not configured")
	}
	return m.alerts(ctx, partition)
}

func (m *mockClient) Partitions() []string { return []string{"1234567", "ace", "nqrw"} }

func (m *mockClient) AlertPartitions() []string {
	if m.alertPartitions != nil {
		return m.alertPartitions
	}
	return []string{"subway"}
}

func coord(v float64) *float64 { return &v }

func testStations() []models.Station {
	return []models.Station{
		{ID: "R01", Name: "Astoria-Ditmars Blvd", Borough: "Q", Lines: []string{"N", "W"}, Latitude: coord(40.7750), Longitude: coord(-73.9120), ADACompliant: false},
		{ID: "R03", Name: "Astoria Blvd", Borough: "Q", Lines: []string{"N", "W"}, Latitude: coord(40.7703), Longitude: coord(-73.9178), ADACompliant: true},
		{ID: "R04", Name: "30 Av", Borough: "Q", Lines: []string{"N", "W"}, ADACompliant: true},
		{ID: "A32", Name: "Jay St", Borough: "Bk", Lines: []string{"A", "C"}, Latitude: coord(40.6924), Longitude: coord(-73.9875), ADACompliant: true},
	}
}

func testEquipment() models.EquipmentSnapshot {
	return models.EquipmentSnapshot{
		Elevators: []models.EquipmentUnit{
			{ID: "EL1", StationID: "R01", Kind: models.KindElevator, Status: models.StatusOutage},
			{ID: "EL2", StationID: "R03", Kind: models.KindElevator, Status: models.StatusActive},
			{ID: "EL3", StationID: "R03", Kind: models.KindElevator, Status: models.StatusOutage},
			{ID: "EL4", StationID: "A32", Kind: models.KindElevator, Status: models.StatusActive},
		},
		Escalators: []models.EquipmentUnit{
			{ID: "ES1", StationID: "R01", Kind: models.KindEscalator, Status: models.StatusActive},
		},
		LastUpdated: time.Now().UTC(),
	}
}

func newTestEngine(client FeedClient) *Engine {
	stores := Stores{
		Equipment: cache.NewInMemory[models.EquipmentSnapshot](time.Hour),
		Stations:  cache.NewInMemory[[]models.Station](time.Hour),
		Realtime:  cache.NewInMemory[models.RealtimeSnapshot](time.Hour),
		Alerts:    cache.NewInMemory[[]models.Alert](time.Hour),
	}
	ttls := TTLs{Equipment: time.Minute, Stations: time.Minute, Realtime: time.Minute, Alerts: time.Minute}
	return NewEngine(client, stores, ttls, 0, nil, nil)
}

func defaultMock() *mockClient {
	return &mockClient{
		equipment: func(ctx context.Context) (models.EquipmentSnapshot, error) { return testEquipment(), nil },
		stations:  func(ctx context.Context) ([]models.Station, error) { return testStations(), nil },
	}
}

func TestGetStation(t *testing.T) {
	e := newTestEngine(defaultMock())

	detail, err := e.GetStation(context.Background(), "r03")
	if err != nil {
		t.Fatalf("GetStation() error = %v", err)
	}
	if detail.Station.Name != "Astoria Blvd" {
		t.Errorf("Name = %q", detail.Station.Name)
	}
	if !detail.Accessible {
		t.Error("Accessible = false, want true (one active elevator)")
	}
	if detail.ElevatorsWorking != 1 || detail.ElevatorsTotal != 2 {
		t.Errorf("elevators = %d/%d, want 1/2", detail.ElevatorsWorking, detail.ElevatorsTotal)
	}
	if len(detail.Elevators) != 2 || len(detail.Escalators) != 0 {
		t.Errorf("equipment = %d elevators, %d escalators", len(detail.Elevators), len(detail.Escalators))
	}
}

func TestGetStation_NoActiveElevator(t *testing.T) {
	e := newTestEngine(defaultMock())

	detail, err := e.GetStation(context.Background(), "R01")
	if err != nil {
		t.Fatalf("GetStation() error = %v", err)
	}
	if detail.Accessible {
		t.Error("Accessible = true with only an outage elevator")
	}
	if len(detail.Escalators) != 1 {
		t.Errorf("escalators = %d, want 1", len(detail.Escalators))
	}
}

func TestGetStation_NotFound(t *testing.T) {
	e := newTestEngine(defaultMock())

	_, err := e.GetStation(context.Background(), "ZZZ")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetStation() error = %v, want ErrNotFound", err)
	}
}

func TestGetStation_Unavailable(t *testing.T) {
	m := defaultMock()
	m.stations = func(ctx context.Context) ([]models.Station, error) {
		return nil, errors.New("boom")
	}
	e := newTestEngine(m)

	_, err := e.GetStation(context.Background(), "R01")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("GetStation() error = %v, want ErrUnavailable", err)
	}
}

// TestGetStation_StaleFallback primes the cache, expires it, and breaks the
// upstream; the expired value must still be served, flagged stale.
func TestGetStation_StaleFallback(t *testing.T) {
	m := defaultMock()
	e := newTestEngine(m)
	ctx := context.Background()

	if err := e.stores.Equipment.Set(ctx, keyEquipment, testEquipment(), time.Millisecond); err != nil {
		t.Fatalf("seed equipment: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	m.equipment = func(ctx context.Context) (models.EquipmentSnapshot, error) {
		return models.EquipmentSnapshot{}, errors.New("upstream down")
	}

	detail, err := e.GetStation(ctx, "R03")
	if err != nil {
		t.Fatalf("GetStation() error = %v, want stale fallback", err)
	}
	if !detail.Stale {
		t.Error("Stale = false, want true")
	}
	if !detail.Accessible {
		t.Error("stale snapshot lost accessibility data")
	}
}

func TestListStations_Filters(t *testing.T) {
	tests := []struct {
		name    string
		filter  ListFilter
		wantIDs []string
	}{
		{"all", ListFilter{}, []string{"A32", "R01", "R03", "R04"}},
		{"ada only", ListFilter{ADAOnly: true}, []string{"A32", "R03", "R04"}},
		{"accessible only", ListFilter{AccessibleOnly: true}, []string{"A32", "R03"}},
		{"borough", ListFilter{Borough: "bk"}, []string{"A32"}},
		{"combined", ListFilter{ADAOnly: true, AccessibleOnly: true, Borough: "Q"}, []string{"R03"}},
	}

	e := newTestEngine(defaultMock())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.ListStations(context.Background(), tc.filter)
			if err != nil {
				t.Fatalf("ListStations() error = %v", err)
			}
			if len(got) != len(tc.wantIDs) {
				t.Fatalf("ListStations() = %d stations, want %d", len(got), len(tc.wantIDs))
			}
			for i, want := range tc.wantIDs {
				if got[i].Station.ID != want {
					t.Errorf("station[%d] = %q, want %q", i, got[i].Station.ID, want)
				}
			}
		})
	}
}

func TestGetEquipment_Filters(t *testing.T) {
	e := newTestEngine(defaultMock())
	ctx := context.Background()

	all, err := e.GetEquipment(ctx, EquipmentFilter{})
	if err != nil {
		t.Fatalf("GetEquipment() error = %v", err)
	}
	if len(all.Units) != 5 {
		t.Errorf("unfiltered = %d units, want 5", len(all.Units))
	}

	outages, err := e.GetOutages(ctx, models.KindElevator)
	if err != nil {
		t.Fatalf("GetOutages() error = %v", err)
	}
	if len(outages.Units) != 2 {
		t.Errorf("elevator outages = %d, want 2", len(outages.Units))
	}
	for _, unit := range outages.Units {
		if unit.Status != models.StatusOutage || unit.Kind != models.KindElevator {
			t.Errorf("unexpected unit in outages: %+v", unit)
		}
	}

	atStation, err := e.GetEquipment(ctx, EquipmentFilter{StationID: "r01"})
	if err != nil {
		t.Fatalf("GetEquipment() error = %v", err)
	}
	if len(atStation.Units) != 2 {
		t.Errorf("station filter = %d units, want 2", len(atStation.Units))
	}
}

func TestGetEquipmentUnit(t *testing.T) {
	e := newTestEngine(defaultMock())
	ctx := context.Background()

	unit, err := e.GetEquipmentUnit(ctx, "el2")
	if err != nil {
		t.Fatalf("GetEquipmentUnit() error = %v", err)
	}
	if unit.ID != "EL2" || unit.StationID != "R03" {
		t.Errorf("unit = %+v", unit)
	}

	if _, err := e.GetEquipmentUnit(ctx, "EL999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetEquipmentUnit(EL999) error = %v, want ErrNotFound", err)
	}
}

func TestFindNearbyAccessible(t *testing.T) {
	e := newTestEngine(defaultMock())

	nearby, err := e.FindNearbyAccessible(context.Background(), "R01", 2.0)
	if err != nil {
		t.Fatalf("FindNearbyAccessible() error = %v", err)
	}
	if len(nearby) != 1 {
		t.Fatalf("FindNearbyAccessible() = %d results, want 1 (only R03 is near and accessible)", len(nearby))
	}
	got := nearby[0]
	if got.Station.ID != "R03" {
		t.Errorf("nearest = %q, want R03", got.Station.ID)
	}
	if got.DistanceKm <= 0 || got.DistanceKm > 2.0 {
		t.Errorf("DistanceKm = %v", got.DistanceKm)
	}
	if got.WalkingMinutes <= 0 {
		t.Errorf("WalkingMinutes = %d", got.WalkingMinutes)
	}
	if !got.Accessible {
		t.Error("result not accessible")
	}
}

func TestFindNearbyAccessible_NoCoordinates(t *testing.T) {
	e := newTestEngine(defaultMock())

	nearby, err := e.FindNearbyAccessible(context.Background(), "R04", 2.0)
	if err != nil {
		t.Fatalf("FindNearbyAccessible() error = %v", err)
	}
	if len(nearby) != 0 {
		t.Errorf("coordinate-less origin returned %d results, want 0", len(nearby))
	}
}

func TestCheckRoute(t *testing.T) {
	e := newTestEngine(defaultMock())

	check, err := e.CheckRoute(context.Background(), "R01", "A32")
	if err != nil {
		t.Fatalf("CheckRoute() error = %v", err)
	}
	if check.Origin.Accessible {
		t.Error("origin R01 reported accessible")
	}
	if len(check.Origin.Alternatives) == 0 {
		t.Error("inaccessible origin has no alternatives")
	}
	if !check.Destination.Accessible {
		t.Error("destination A32 reported inaccessible")
	}
	if len(check.Destination.Alternatives) != 0 {
		t.Error("accessible destination should carry no alternatives")
	}
	if check.FullyAccessible {
		t.Error("FullyAccessible = true with an inaccessible origin")
	}

	if _, err := e.CheckRoute(context.Background(), "R01", "ZZZ"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CheckRoute() error = %v, want ErrNotFound", err)
	}
}

func TestGetSystemStats(t *testing.T) {
	e := newTestEngine(defaultMock())

	stats, err := e.GetSystemStats(context.Background())
	if err != nil {
		t.Fatalf("GetSystemStats() error = %v", err)
	}
	if stats.StationsTotal != 4 || stats.StationsADA != 3 {
		t.Errorf("stations = %d total, %d ADA, want 4 and 3", stats.StationsTotal, stats.StationsADA)
	}
	if stats.ADAPercent != 75 {
		t.Errorf("ADAPercent = %v, want 75", stats.ADAPercent)
	}
	if stats.ElevatorsActive != 2 || stats.ElevatorsTotal != 4 {
		t.Errorf("elevators = %d/%d, want 2/4", stats.ElevatorsActive, stats.ElevatorsTotal)
	}
	if stats.ElevatorUptimePercent != 50 {
		t.Errorf("ElevatorUptimePercent = %v, want 50", stats.ElevatorUptimePercent)
	}
	if stats.EscalatorsActive != 1 || stats.EscalatorsTotal != 1 {
		t.Errorf("escalators = %d/%d, want 1/1", stats.EscalatorsActive, stats.EscalatorsTotal)
	}
	if stats.GeneratedAt.IsZero() {
		t.Error("GeneratedAt is zero")
	}
}
