// Package http exposes the query surface as a JSON API. Handlers translate
// transport concerns only; all business logic lives in the service package.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nycaccess/transit-accessibility-service/internal/feedhealth"
	"github.com/nycaccess/transit-accessibility-service/internal/models"
	"github.com/nycaccess/transit-accessibility-service/internal/service"
	"github.com/nycaccess/transit-accessibility-service/internal/validation"
)

const defaultNearbyRadiusKm = 2.0

// maxNearbyRadiusKm bounds the geo scan; beyond this the "walking
// alternative" framing stops making sense.
const maxNearbyRadiusKm = 10.0

// HealthConfig holds the degraded-verdict inputs for the health handler.
type HealthConfig struct {
	DegradedErrorPct int
	StartTime        time.Time
	// CachePing, when set, checks remote cache reachability.
	CachePing func() error
}

// Handler holds the HTTP handler dependencies.
type Handler struct {
	engine       *service.Engine
	health       *feedhealth.Tracker
	healthConfig *HealthConfig
	logger       *zap.Logger
}

// NewHandler returns a new Handler. health and healthConfig may be nil, in
// which case /health reports healthy whenever the process is up.
func NewHandler(engine *service.Engine, health *feedhealth.Tracker, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		engine:       engine,
		health:       health,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetStations handles GET /stations?borough=&ada=&accessible=.
func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	filter := service.ListFilter{
		ADAOnly:        boolParam(r, "ada"),
		AccessibleOnly: boolParam(r, "accessible"),
		Borough:        r.URL.Query().Get("borough"),
	}
	stations, err := h.engine.ListStations(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stations": stations,
		"count":    len(stations),
	})
}

// GetStation handles GET /stations/{id}.
func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateStationID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATION_ID", err.Error())
		return
	}
	detail, err := h.engine.GetStation(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetNearbyAccessible handles GET /stations/{id}/nearby-accessible?max_km=.
func (h *Handler) GetNearbyAccessible(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateStationID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATION_ID", err.Error())
		return
	}

	maxKm := defaultNearbyRadiusKm
	if raw := strings.TrimSpace(r.URL.Query().Get("max_km")); raw != "" {
		maxKm, err = strconv.ParseFloat(raw, 64)
		if err != nil || maxKm <= 0 || maxKm > maxNearbyRadiusKm {
			writeError(w, r, http.StatusBadRequest, "INVALID_RADIUS", "max_km must be a number in (0, 10]")
			return
		}
	}

	nearby, err := h.engine.FindNearbyAccessible(r.Context(), id, maxKm)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"station_id": id,
		"max_km":     maxKm,
		"results":    nearby,
	})
}

// GetArrivals handles GET /stations/{id}/arrivals?route=.
func (h *Handler) GetArrivals(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateStationID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATION_ID", err.Error())
		return
	}
	route := ""
	if raw := r.URL.Query().Get("route"); strings.TrimSpace(raw) != "" {
		route, err = validation.ValidateRouteID(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_ROUTE_ID", err.Error())
			return
		}
	}

	arrivals, err := h.engine.GetArrivals(r.Context(), id, route)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"station_id": id,
		"arrivals":   arrivals,
	})
}

// GetEquipment handles GET /equipment?status=&station=&kind=.
func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	filter := service.EquipmentFilter{
		Status:    models.EquipmentStatus(strings.ToLower(r.URL.Query().Get("status"))),
		StationID: r.URL.Query().Get("station"),
		Kind:      models.EquipmentKind(strings.ToLower(r.URL.Query().Get("kind"))),
	}
	list, err := h.engine.GetEquipment(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetEquipmentUnit handles GET /equipment/{id}.
func (h *Handler) GetEquipmentUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.engine.GetEquipmentUnit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

// GetOutages handles GET /outages?kind=.
func (h *Handler) GetOutages(w http.ResponseWriter, r *http.Request) {
	kind := models.EquipmentKind(strings.ToLower(r.URL.Query().Get("kind")))
	list, err := h.engine.GetOutages(r.Context(), kind)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CheckRoute handles GET /routes/check?from=&to=.
func (h *Handler) CheckRoute(w http.ResponseWriter, r *http.Request) {
	from, err := validation.ValidateStationID(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATION_ID", "from: "+err.Error())
		return
	}
	to, err := validation.ValidateStationID(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATION_ID", "to: "+err.Error())
		return
	}

	check, err := h.engine.CheckRoute(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// GetVehicles handles GET /routes/{id}/vehicles.
func (h *Handler) GetVehicles(w http.ResponseWriter, r *http.Request) {
	route, err := validation.ValidateRouteID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ROUTE_ID", err.Error())
		return
	}
	list, err := h.engine.GetVehiclePositions(r.Context(), route)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetRouteAlerts handles GET /routes/{id}/alerts.
func (h *Handler) GetRouteAlerts(w http.ResponseWriter, r *http.Request) {
	route, err := validation.ValidateRouteID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ROUTE_ID", err.Error())
		return
	}
	alerts, err := h.engine.GetRouteAlerts(r.Context(), route)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"route_id": route,
		"alerts":   alerts,
	})
}

// GetAlerts handles GET /alerts?partition=.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	partition, err := validation.ValidatePartition(r.URL.Query().Get("partition"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARTITION", err.Error())
		return
	}
	alerts, err := h.engine.GetAlerts(r.Context(), partition)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetActiveAlerts handles GET /alerts/active.
func (h *Handler) GetActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.engine.GetActiveAlerts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetStats handles GET /stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.GetSystemStats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetHealth handles GET /health. Degraded feeds are informational; the
// endpoint flips to 503 only when feeds are failing beyond the threshold.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := map[string]interface{}{}

	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if err := h.healthConfig.CachePing(); err != nil {
			checks["cache"] = "unhealthy"
		} else {
			checks["cache"] = "healthy"
		}
	}

	var degradedFeeds []string
	if h.health != nil && h.healthConfig != nil {
		degradedFeeds = h.health.Degraded(float64(h.healthConfig.DegradedErrorPct))
		checks["feeds"] = h.health.Snapshot()
	}
	if len(degradedFeeds) > 0 {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	resp := map[string]interface{}{
		"status":    status,
		"service":   "transit-accessibility-service",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(degradedFeeds) > 0 {
		resp["degraded_feeds"] = degradedFeeds
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptime"] = time.Since(h.healthConfig.StartTime).Round(time.Second).String()
	}
	writeJSON(w, statusCode, resp)
}

func boolParam(r *http.Request, name string) bool {
	v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name)))
	return v == "true" || v == "1"
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with the request's
// correlation id when one is present.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError maps engine errors onto HTTP: unknown identifiers are
// 404, missing data is 503, anything else is a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "SERVICE_DEGRADED", "upstream feed unavailable and no cached data")
		if h.logger != nil {
			h.logger.Warn("request served 503", zap.String("path", r.URL.Path), zap.Error(err))
		}
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
		if h.logger != nil {
			h.logger.Error("unhandled service error", zap.String("path", r.URL.Path), zap.Error(err))
		}
	}
}
