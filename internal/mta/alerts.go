package mta

import (
	"context"
	"fmt"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/nycaccess/transit-accessibility-service/internal/models"
)

// FetchAlerts retrieves and decodes one alert feed partition. Unknown
// partitions return ErrFeedNotFound.
func (c *Client) FetchAlerts(ctx context.Context, partition string) ([]models.Alert, error) {
	url, ok := c.endpoints.AlertURLs[partition]
	if !ok {
		return nil, fmt.Errorf("%w: alert partition %q", ErrFeedNotFound, partition)
	}

	body, err := c.fetchBytes(ctx, "alerts:"+partition, url, c.realtimeTimeout)
	if err != nil {
		return nil, err
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("%w: alert partition %q: %v", ErrParse, partition, err)
	}

	alerts := make([]models.Alert, 0, len(feed.GetEntity()))
	for _, entity := range feed.GetEntity() {
		raw := entity.GetAlert()
		if raw == nil {
			continue
		}
		alerts = append(alerts, decodeAlert(entity.GetId(), partition, raw))
	}
	return alerts, nil
}

func decodeAlert(id, partition string, raw *gtfs.Alert) models.Alert {
	effect := int32(raw.GetEffect())
	alert := models.Alert{
		ID:             id,
		Header:         firstTranslation(raw.GetHeaderText()),
		Description:    firstTranslation(raw.GetDescriptionText()),
		URL:            firstTranslation(raw.GetUrl()),
		AffectedRoutes: affectedRoutes(raw),
		Cause:          lookupEnum(causeText, int32(raw.GetCause()), "UNKNOWN_CAUSE"),
		Effect:         lookupEnum(effectText, effect, "UNKNOWN_EFFECT"),
		Severity:       SeverityFromEffect(effect),
		FeedPartition:  partition,
	}

	for _, period := range raw.GetActivePeriod() {
		window := models.ActivePeriod{}
		// A zero bound is an open end, same as an absent one.
		if start := period.GetStart(); start != 0 {
			t := time.Unix(int64(start), 0).UTC()
			window.Start = &t
		}
		if end := period.GetEnd(); end != 0 {
			t := time.Unix(int64(end), 0).UTC()
			window.End = &t
		}
		alert.ActivePeriods = append(alert.ActivePeriods, window)
	}
	return alert
}

// affectedRoutes deduplicates route ids across informed entities, keeping
// first-encounter order for determinism.
func affectedRoutes(raw *gtfs.Alert) []string {
	seen := make(map[string]bool)
	var routes []string
	for _, ie := range raw.GetInformedEntity() {
		routeID := ie.GetRouteId()
		if routeID == "" || seen[routeID] {
			continue
		}
		seen[routeID] = true
		routes = append(routes, routeID)
	}
	return routes
}

// firstTranslation returns the first translation's text, empty if absent.
func firstTranslation(ts *gtfs.TranslatedString) string {
	translations := ts.GetTranslation()
	if len(translations) == 0 {
		return ""
	}
	return translations[0].GetText()
}
