package mta

import (
	"context"
	"fmt"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/nycaccess/transit-accessibility-service/internal/models"
)

// FetchRealtime retrieves and decodes one GTFS-RT feed partition into
// vehicle positions and stop-time updates. Unknown partitions return
// ErrFeedNotFound.
func (c *Client) FetchRealtime(ctx context.Context, partition string) (models.RealtimeSnapshot, error) {
	url, ok := c.endpoints.RealtimeURLs[partition]
	if !ok {
		return models.RealtimeSnapshot{}, fmt.Errorf("%w: realtime partition %q", ErrFeedNotFound, partition)
	}

	body, err := c.fetchBytes(ctx, "realtime:"+partition, url, c.realtimeTimeout)
	if err != nil {
		return models.RealtimeSnapshot{}, err
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return models.RealtimeSnapshot{}, fmt.Errorf("%w: realtime partition %q: %v", ErrParse, partition, err)
	}

	snapshot := decodeRealtime(feed)
	snapshot.Partition = partition
	return snapshot, nil
}

// decodeRealtime normalizes a FeedMessage. Vehicle and trip-update entities
// are mutually exclusive per entity; entities carrying neither are ignored.
func decodeRealtime(feed *gtfs.FeedMessage) models.RealtimeSnapshot {
	snapshot := models.RealtimeSnapshot{LastUpdated: time.Now().UTC()}

	for _, entity := range feed.GetEntity() {
		if v := entity.GetVehicle(); v != nil {
			snapshot.Vehicles = append(snapshot.Vehicles, decodeVehicle(v))
		}
		if tu := entity.GetTripUpdate(); tu != nil {
			snapshot.StopTimes = append(snapshot.StopTimes, decodeStopTimes(tu)...)
		}
	}
	return snapshot
}

// decodeVehicle maps one vehicle entity; absent optional fields stay nil
// rather than becoming zero values.
func decodeVehicle(v *gtfs.VehiclePosition) models.VehiclePosition {
	out := models.VehiclePosition{
		VehicleID:       v.GetVehicle().GetId(),
		TripID:          v.GetTrip().GetTripId(),
		RouteID:         v.GetTrip().GetRouteId(),
		CurrentStop:     v.GetStopId(),
		Status:          enumUnknown,
		CongestionLevel: enumUnknown,
		OccupancyStatus: enumUnknown,
	}

	if pos := v.GetPosition(); pos != nil {
		lat := float64(pos.GetLatitude())
		lon := float64(pos.GetLongitude())
		out.Latitude = &lat
		out.Longitude = &lon
		if pos.Bearing != nil {
			bearing := float64(pos.GetBearing())
			out.Bearing = &bearing
		}
	}
	if v.CurrentStatus != nil {
		out.Status = lookupEnum(vehicleStatusText, int32(v.GetCurrentStatus()), enumUnknown)
	}
	if v.CongestionLevel != nil {
		out.CongestionLevel = lookupEnum(congestionText, int32(v.GetCongestionLevel()), enumUnknown)
	}
	if v.OccupancyStatus != nil {
		out.OccupancyStatus = lookupEnum(occupancyText, int32(v.GetOccupancyStatus()), enumUnknown)
	}
	if v.Timestamp != nil {
		ts := time.Unix(int64(v.GetTimestamp()), 0).UTC()
		out.Timestamp = &ts
	}
	return out
}

// decodeStopTimes flattens one trip-update entity into per-stop records,
// preserving encounter order.
func decodeStopTimes(tu *gtfs.TripUpdate) []models.StopTimeUpdate {
	tripID := tu.GetTrip().GetTripId()
	routeID := tu.GetTrip().GetRouteId()
	vehicleID := tu.GetVehicle().GetId()

	updates := make([]models.StopTimeUpdate, 0, len(tu.GetStopTimeUpdate()))
	for _, stu := range tu.GetStopTimeUpdate() {
		update := models.StopTimeUpdate{
			TripID:    tripID,
			RouteID:   routeID,
			VehicleID: vehicleID,
			StopID:    stu.GetStopId(),
		}
		if ev := stu.GetArrival(); ev != nil && ev.Time != nil {
			t := time.Unix(ev.GetTime(), 0).UTC()
			update.Arrival = &t
		}
		if ev := stu.GetDeparture(); ev != nil && ev.Time != nil {
			t := time.Unix(ev.GetTime(), 0).UTC()
			update.Departure = &t
		}
		// An update with neither event carries no schedule information.
		if update.Arrival == nil && update.Departure == nil {
			continue
		}
		updates = append(updates, update)
	}
	return updates
}
