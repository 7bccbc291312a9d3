package mta

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nycaccess/transit-accessibility-service/internal/models"
)

// FetchStations retrieves and parses the station registry CSV. Rows with
// unparsable coordinates keep nil coordinates rather than failing.
func (c *Client) FetchStations(ctx context.Context) ([]models.Station, error) {
	body, err := c.fetchBytes(ctx, "stations", c.endpoints.StationsURL, c.staticTimeout)
	if err != nil {
		return nil, err
	}
	return c.parseStations(string(body))
}

func (c *Client) parseStations(csvText string) ([]models.Station, error) {
	reader := csv.NewReader(strings.NewReader(csvText))
	reader.FieldsPerRecord = -1 // registry rows occasionally omit trailing columns

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: station registry CSV: %v", ErrParse, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%w: station registry is empty", ErrParse)
	}

	cols := headerIndex(records[0])
	stations := make([]models.Station, 0, len(records)-1)
	for i, row := range records[1:] {
		id := coalesce(field(row, cols, "GTFS Stop ID"), field(row, cols, "Station ID"), "")
		if id == "" {
			c.warn("skipping station row without id", zap.Int("row", i+1))
			continue
		}
		stations = append(stations, models.Station{
			ID:           id,
			Name:         coalesce(field(row, cols, "Stop Name"), "", "Unknown"),
			Borough:      coalesce(field(row, cols, "Borough"), "", "Unknown"),
			Lines:        strings.Fields(field(row, cols, "Daytime Routes")),
			Latitude:     parseCoordinate(field(row, cols, "GTFS Latitude")),
			Longitude:    parseCoordinate(field(row, cols, "GTFS Longitude")),
			ADACompliant: parseADAFlag(field(row, cols, "ADA")),
			ADANotes:     field(row, cols, "ADA Notes"),
			Structure:    coalesce(field(row, cols, "Structure"), "", "Unknown"),
			ComplexID:    field(row, cols, "Complex ID"),
		})
	}
	return stations, nil
}

// headerIndex maps trimmed column names to their positions.
func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	return cols
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseCoordinate returns nil for empty or unparsable values; such stations
// are excluded from geo search but kept in the registry.
func parseCoordinate(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseADAFlag is true when the raw value, case-insensitively trimmed, is
// one of {1, true, yes}.
func parseADAFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
