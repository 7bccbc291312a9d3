package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream MTA feed call rate by feed and outcome. Watch for: error vs success ratio per feed.
	FeedFetchesTotal *prometheus.CounterVec

	// Upstream feed latency. Watch for: p95 approaching the per-feed timeout.
	FeedFetchDuration *prometheus.HistogramVec

	// Retry attempts against upstream feeds. High retries = unstable upstream.
	FeedFetchRetriesTotal prometheus.Counter

	// Cache hits by dataset key. Hit rate = hits/(hits+misses).
	CacheHitsTotal *prometheus.CounterVec

	// Cache misses by dataset key.
	CacheMissesTotal *prometheus.CounterVec

	// Stale values served in place of a failed fetch. Any sustained rate means a feed is down.
	StaleServesTotal *prometheus.CounterVec

	// Age of stale values at serve time. Watch for: growth toward the retention horizon.
	StaleAgeSeconds prometheus.Histogram

	// Background refresh cycles by dataset and outcome.
	RefreshCyclesTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	FeedFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedFetchesTotal",
			Help: "Total number of upstream MTA feed fetches",
		},
		[]string{"feed", "status"},
	)
	FeedFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedFetchDurationSeconds",
			Help:    "Upstream MTA feed latency in seconds (per fetch)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"feed", "status"},
	)
	FeedFetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedFetchRetriesTotal",
			Help: "Total number of retry attempts against upstream feeds",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits by dataset key",
		},
		[]string{"dataset"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses by dataset key",
		},
		[]string{"dataset"},
	)
	StaleServesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheStaleServesTotal",
			Help: "Total number of stale cache values served after a failed fetch",
		},
		[]string{"dataset"},
	)
	StaleAgeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheStaleAgeSeconds",
			Help:    "Age of stale cache values at serve time",
			Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 21600, 86400},
		},
	)
	RefreshCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshCyclesTotal",
			Help: "Background cache refresh cycles by dataset and outcome",
		},
		[]string{"dataset", "status"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		FeedFetchesTotal, FeedFetchDuration, FeedFetchRetriesTotal,
		CacheHitsTotal, CacheMissesTotal, StaleServesTotal, StaleAgeSeconds,
		RefreshCyclesTotal, RateLimitDeniedTotal,
	)
}

// MetricsHandler returns the /metrics handler bound to the service registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
