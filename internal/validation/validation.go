// Package validation checks request path and query inputs before they reach
// the query surface. It enforces shape only; existence checks belong to the
// aggregation engine.
package validation

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrStationIDEmpty is returned for an empty or whitespace-only station id.
	ErrStationIDEmpty = errors.New("station id is required")

	// ErrStationIDTooLong is returned when a station id exceeds the registry's
	// id length.
	ErrStationIDTooLong = errors.New("station id too long")

	// ErrStationIDInvalidChars is returned for characters outside the GTFS id
	// alphabet.
	ErrStationIDInvalidChars = errors.New("station id contains invalid characters")

	// ErrRouteIDEmpty is returned for an empty or whitespace-only route id.
	ErrRouteIDEmpty = errors.New("route id is required")

	// ErrRouteIDInvalid is returned for a route id that cannot name an MTA route.
	ErrRouteIDInvalid = errors.New("route id invalid")

	// ErrPartitionInvalid is returned for a malformed feed partition name.
	ErrPartitionInvalid = errors.New("feed partition invalid")
)

const maxStationIDLen = 10

// ValidateStationID trims the input and enforces the station id shape:
// ASCII letters and digits, at most 10 runes. Returns the trimmed,
// uppercased id.
func ValidateStationID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrStationIDEmpty
	}
	if len([]rune(s)) > maxStationIDLen {
		return "", ErrStationIDTooLong
	}
	for _, r := range s {
		if !isAlphanumeric(r) {
			return "", ErrStationIDInvalidChars
		}
	}
	return strings.ToUpper(s), nil
}

// ValidateRouteID trims the input and enforces the route id shape: one or
// two ASCII letters or digits. Returns the trimmed, uppercased id. Whether
// the route exists is the router's call.
func ValidateRouteID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrRouteIDEmpty
	}
	if len([]rune(s)) > 2 {
		return "", ErrRouteIDInvalid
	}
	for _, r := range s {
		if !isAlphanumeric(r) {
			return "", ErrRouteIDInvalid
		}
	}
	return strings.ToUpper(s), nil
}

// ValidatePartition trims the input and enforces the feed partition shape:
// lowercase letters, digits, and underscores. An empty input is allowed and
// means "all partitions".
func ValidatePartition(input string) (string, error) {
	s := strings.TrimSpace(input)
	for _, r := range s {
		if r != '_' && !(unicode.IsLower(r) || unicode.IsDigit(r)) {
			return "", ErrPartitionInvalid
		}
	}
	return s, nil
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
