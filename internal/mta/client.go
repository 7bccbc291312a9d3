// Package mta fetches the upstream MTA feeds and normalizes them into the
// canonical record shapes in internal/models.
package mta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nycaccess/transit-accessibility-service/internal/observability"
)

var (
	// ErrTransport covers network failures, timeouts, and non-2xx upstream
	// responses. Never escapes the service layer.
	ErrTransport = errors.New("upstream transport failure")

	// ErrParse covers malformed or unexpectedly shaped upstream payloads.
	ErrParse = errors.New("malformed upstream payload")

	// ErrFeedNotFound is returned for an unknown feed partition or a route
	// with no feed. Callers treat it as a not-found condition, not an error.
	ErrFeedNotFound = errors.New("no feed for identifier")
)

// Endpoints holds the upstream feed URLs, overridable for tests and
// non-production environments.
type Endpoints struct {
	EquipmentURL string
	StationsURL  string
	RealtimeURLs map[string]string // partition -> GTFS-RT feed URL
	AlertURLs    map[string]string // partition -> GTFS-RT alert feed URL
}

// DefaultEndpoints returns the public MTA feed URLs. None require an API key.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		EquipmentURL: "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fnyct_ene.json",
		StationsURL:  "http://web.mta.info/developers/data/nyct/subway/Stations.csv",
		RealtimeURLs: defaultRealtimeURLs(),
		AlertURLs:    defaultAlertURLs(),
	}
}

// Client fetches and normalizes the upstream feeds. Fetch failures surface
// as ErrTransport/ErrParse wrapped errors; the aggregation layer decides
// whether to fall back to cache.
type Client struct {
	httpClient      *http.Client
	endpoints       Endpoints
	logger          *zap.Logger
	realtimeTimeout time.Duration
	staticTimeout   time.Duration
	retryAttempts   int
	retryBaseDelay  time.Duration
	retryMaxDelay   time.Duration
}

// NewClient creates a Client with default retry behavior (3 attempts,
// 100ms base backoff, 2s cap).
func NewClient(endpoints Endpoints, realtimeTimeout, staticTimeout time.Duration, logger *zap.Logger) *Client {
	return NewClientWithRetry(endpoints, realtimeTimeout, staticTimeout, logger, 3, 100*time.Millisecond, 2*time.Second)
}

// NewClientWithRetry creates a Client with explicit retry configuration.
// realtimeTimeout bounds GTFS-RT fetches (vehicle/trip and alert feeds);
// staticTimeout bounds the equipment and station registry fetches.
func NewClientWithRetry(endpoints Endpoints, realtimeTimeout, staticTimeout time.Duration, logger *zap.Logger, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) *Client {
	if realtimeTimeout <= 0 {
		realtimeTimeout = 10 * time.Second
	}
	if staticTimeout <= 0 {
		staticTimeout = 30 * time.Second
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}
	return &Client{
		// The outer client timeout stays unset; per-fetch context deadlines
		// carry the feed-specific timeout.
		httpClient:      &http.Client{},
		endpoints:       endpoints,
		logger:          logger,
		realtimeTimeout: realtimeTimeout,
		staticTimeout:   staticTimeout,
		retryAttempts:   retryAttempts,
		retryBaseDelay:  retryBaseDelay,
		retryMaxDelay:   retryMaxDelay,
	}
}

// fetchBytes performs a GET with retry and exponential backoff. feed labels
// the metrics; timeout bounds each individual attempt.
func (c *Client) fetchBytes(ctx context.Context, feed, url string, timeout time.Duration) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.FeedFetchRetriesTotal.Inc()
			delay := c.backoff(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
			case <-time.After(delay):
			}
		}

		body, err := c.doFetch(ctx, feed, url, timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *Client) doFetch(ctx context.Context, feed, url string, timeout time.Duration) ([]byte, error) {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		observability.FeedFetchesTotal.WithLabelValues(feed, "error").Inc()
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("User-Agent", "transit-accessibility-service/1.0")

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.FeedFetchesTotal.WithLabelValues(feed, "error").Inc()
		observability.FeedFetchDuration.WithLabelValues(feed, "error").Observe(duration)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: timeout fetching %s: %v", ErrTransport, feed, err)
		}
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrTransport, feed, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.FeedFetchesTotal.WithLabelValues(feed, status).Inc()
	observability.FeedFetchDuration.WithLabelValues(feed, status).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrTransport, feed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %v", ErrTransport, feed, err)
	}
	return body, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// retryable reports whether a fetch error is worth another attempt. Parse
// errors are deterministic and never retried.
func retryable(err error) bool {
	if err == nil || errors.Is(err, ErrParse) {
		return false
	}
	if errors.Is(err, ErrTransport) {
		// 4xx responses repeat deterministically; everything else
		// (network failure, timeout, 5xx) is transient.
		msg := err.Error()
		if strings.Contains(msg, "HTTP 4") {
			return false
		}
		return true
	}
	return false
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}

func (c *Client) warn(msg string, fields ...zap.Field) {
	if c.logger != nil {
		c.logger.Warn(msg, fields...)
	}
}
