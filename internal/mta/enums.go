package mta

import "github.com/nycaccess/transit-accessibility-service/internal/models"

// Fixed GTFS-RT enum-to-text tables. Codes outside a table resolve to
// enumUnknown rather than failing the record.
const enumUnknown = "UNKNOWN"

var vehicleStatusText = map[int32]string{
	0: "INCOMING_AT",
	1: "STOPPED_AT",
	2: "IN_TRANSIT_TO",
}

var congestionText = map[int32]string{
	0: "UNKNOWN",
	1: "RUNNING_SMOOTHLY",
	2: "STOP_AND_GO",
	3: "CONGESTION",
	4: "SEVERE_CONGESTION",
}

var occupancyText = map[int32]string{
	0: "EMPTY",
	1: "MANY_SEATS_AVAILABLE",
	2: "FEW_SEATS_AVAILABLE",
	3: "STANDING_ROOM_ONLY",
	4: "CRUSHED_STANDING_ROOM_ONLY",
	5: "FULL",
	6: "NOT_ACCEPTING_PASSENGERS",
}

var causeText = map[int32]string{
	1:  "UNKNOWN_CAUSE",
	2:  "OTHER_CAUSE",
	3:  "TECHNICAL_PROBLEM",
	4:  "STRIKE",
	5:  "DEMONSTRATION",
	6:  "ACCIDENT",
	7:  "HOLIDAY",
	8:  "WEATHER",
	9:  "MAINTENANCE",
	10: "CONSTRUCTION",
	11: "POLICE_ACTIVITY",
	12: "MEDICAL_EMERGENCY",
}

var effectText = map[int32]string{
	1: "NO_SERVICE",
	2: "REDUCED_SERVICE",
	3: "SIGNIFICANT_DELAYS",
	4: "DETOUR",
	5: "ADDITIONAL_SERVICE",
	6: "MODIFIED_SERVICE",
	7: "OTHER_EFFECT",
	8: "UNKNOWN_EFFECT",
	9: "STOP_MOVED",
}

func lookupEnum(table map[int32]string, code int32, def string) string {
	if text, ok := table[code]; ok {
		return text
	}
	return def
}

// SeverityFromEffect derives alert severity from the GTFS-RT effect code.
// Pure function: NO_SERVICE is critical, SIGNIFICANT_DELAYS and DETOUR are
// high, REDUCED_SERVICE and MODIFIED_SERVICE are medium, all else low.
func SeverityFromEffect(effect int32) models.Severity {
	switch effect {
	case 1:
		return models.SeverityCritical
	case 3, 4:
		return models.SeverityHigh
	case 2, 6:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
