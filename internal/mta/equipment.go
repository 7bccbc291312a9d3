package mta

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nycaccess/transit-accessibility-service/internal/models"
)

// equipmentItem mirrors one entry of the equipment feed. The feed has used
// more than one field name for the same datum over time; alternates are all
// declared and coalesced during normalization.
type equipmentItem struct {
	EquipmentType    string          `json:"equipmenttype"`
	EquipmentNo      string          `json:"equipmentno"`
	EquipmentID      string          `json:"equipment_id"`
	Station          string          `json:"station"`
	StationID        string          `json:"stationid"`
	StationName      string          `json:"stationname"`
	StationNameAlt   string          `json:"station_name"`
	Borough          string          `json:"borough"`
	OutageStatus     string          `json:"outageStatus"`
	IsActive         string          `json:"isactive"`
	Serving          string          `json:"serving"`
	Location         string          `json:"location"`
	ADA              json.RawMessage `json:"ada"`
	OutageStartDate  string          `json:"outageStartDate"`
	OutageEndDate    string          `json:"outageEndDate"`
	EstimatedReturn  string          `json:"estimatedReturnToService"`
	Reason           string          `json:"reason"`
	Direction        string          `json:"direction"`
}

// FetchEquipment retrieves and normalizes the elevator/escalator status
// feed. Individual malformed items are skipped with a warning; only a
// transport failure or an unparsable document fails the whole fetch.
func (c *Client) FetchEquipment(ctx context.Context) (models.EquipmentSnapshot, error) {
	body, err := c.fetchBytes(ctx, "equipment", c.endpoints.EquipmentURL, c.staticTimeout)
	if err != nil {
		return models.EquipmentSnapshot{}, err
	}
	return c.parseEquipment(body)
}

// parseEquipment accepts both document shapes the feed has been seen to
// produce, a wrapped {"equipment": [...]} object and a bare array, and
// normalizes to one canonical snapshot at the parse boundary.
func (c *Client) parseEquipment(body []byte) (models.EquipmentSnapshot, error) {
	items, err := equipmentItems(body)
	if err != nil {
		return models.EquipmentSnapshot{}, err
	}

	now := time.Now().UTC()
	snapshot := models.EquipmentSnapshot{LastUpdated: now}

	for i, raw := range items {
		var item equipmentItem
		if err := json.Unmarshal(raw, &item); err != nil {
			c.warn("skipping malformed equipment item", zap.Int("index", i), zap.Error(err))
			continue
		}

		unit := models.EquipmentUnit{
			ID:              coalesce(item.EquipmentNo, item.EquipmentID, "UNKNOWN"),
			StationID:       coalesce(item.Station, item.StationID, "UNKNOWN"),
			StationName:     coalesce(item.StationName, item.StationNameAlt, "Unknown Station"),
			Borough:         coalesce(item.Borough, "", "Unknown"),
			Status:          parseEquipmentStatus(coalesce(item.OutageStatus, item.IsActive, "Active")),
			Serving:         coalesce(item.Serving, item.Location, "Unknown Location"),
			ADA:             parseFlexBool(item.ADA, true),
			OutageStart:     item.OutageStartDate,
			OutageEnd:       item.OutageEndDate,
			EstimatedReturn: item.EstimatedReturn,
			Reason:          item.Reason,
			UpdatedAt:       now,
		}

		// Loose substring classification, matching the upstream feed's
		// observed type strings; unrecognized types are dropped.
		switch kind := strings.ToLower(strings.TrimSpace(item.EquipmentType)); {
		case strings.Contains(kind, "elevator") || kind == "el":
			unit.Kind = models.KindElevator
			snapshot.Elevators = append(snapshot.Elevators, unit)
		case strings.Contains(kind, "escalator") || kind == "es":
			unit.Kind = models.KindEscalator
			unit.Direction = coalesce(item.Direction, "", "bidirectional")
			snapshot.Escalators = append(snapshot.Escalators, unit)
		}
	}

	return snapshot, nil
}

// equipmentItems extracts the item list from either document shape.
func equipmentItems(body []byte) ([]json.RawMessage, error) {
	var wrapped struct {
		Equipment []json.RawMessage `json:"equipment"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Equipment != nil {
		return wrapped.Equipment, nil
	}
	var bare []json.RawMessage
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	return nil, fmt.Errorf("%w: equipment document is neither wrapped object nor array", ErrParse)
}

// parseEquipmentStatus maps the feed's free-text status to the status enum.
func parseEquipmentStatus(raw string) models.EquipmentStatus {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "outage") || strings.Contains(s, "out"):
		return models.StatusOutage
	case strings.Contains(s, "active") || strings.Contains(s, "in service"):
		return models.StatusActive
	case strings.Contains(s, "maintenance"):
		return models.StatusMaintenance
	default:
		return models.StatusActive
	}
}

// parseFlexBool interprets a field the feed serializes inconsistently as
// bool, string, or number.
func parseFlexBool(raw json.RawMessage, def bool) bool {
	if len(raw) == 0 {
		return def
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		}
		return def
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return def
}

// coalesce returns the first non-empty trimmed value, or fallback.
func coalesce(primary, secondary, fallback string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	if strings.TrimSpace(secondary) != "" {
		return secondary
	}
	return fallback
}
