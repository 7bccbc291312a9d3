package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nycaccess/transit-accessibility-service/internal/observability"
)

// NewRouter wires the full route table. Rate limiting and the request
// timeout apply to the query surface only; /health and /metrics stay
// reachable while the service sheds load.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/").Subrouter()
	api.Use(RateLimitMiddleware(limiter))
	api.Use(TimeoutMiddleware(requestTimeout))

	api.HandleFunc("/stations", h.GetStations).Methods(http.MethodGet)
	api.HandleFunc("/stations/{id}", h.GetStation).Methods(http.MethodGet)
	api.HandleFunc("/stations/{id}/nearby-accessible", h.GetNearbyAccessible).Methods(http.MethodGet)
	api.HandleFunc("/stations/{id}/arrivals", h.GetArrivals).Methods(http.MethodGet)

	api.HandleFunc("/equipment", h.GetEquipment).Methods(http.MethodGet)
	api.HandleFunc("/equipment/{id}", h.GetEquipmentUnit).Methods(http.MethodGet)
	api.HandleFunc("/outages", h.GetOutages).Methods(http.MethodGet)

	api.HandleFunc("/routes/check", h.CheckRoute).Methods(http.MethodGet)
	api.HandleFunc("/routes/{id}/vehicles", h.GetVehicles).Methods(http.MethodGet)
	api.HandleFunc("/routes/{id}/alerts", h.GetRouteAlerts).Methods(http.MethodGet)

	api.HandleFunc("/alerts", h.GetAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/active", h.GetActiveAlerts).Methods(http.MethodGet)

	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)

	return router
}
