package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nycaccess/transit-accessibility-service/internal/cache"
	"github.com/nycaccess/transit-accessibility-service/internal/config"
	"github.com/nycaccess/transit-accessibility-service/internal/feedhealth"
	httphandler "github.com/nycaccess/transit-accessibility-service/internal/http"
	"github.com/nycaccess/transit-accessibility-service/internal/models"
	"github.com/nycaccess/transit-accessibility-service/internal/mta"
	"github.com/nycaccess/transit-accessibility-service/internal/observability"
	"github.com/nycaccess/transit-accessibility-service/internal/refresher"
	"github.com/nycaccess/transit-accessibility-service/internal/service"
)

// backendStores collects the per-backend ping and close hooks accumulated
// while the typed stores are built.
type backendStores struct {
	cfg     *config.Config
	ping    func() error
	closers []func() error
}

func buildStore[T any](b *backendStores) (cache.Store[T], error) {
	switch b.cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcached[T](b.cfg.MemcachedAddrs, b.cfg.MemcachedTimeout, b.cfg.MemcachedMaxIdleConns, b.cfg.StaleRetention)
		if b.ping == nil {
			b.ping = mc.Ping
		}
		b.closers = append(b.closers, mc.Close)
		return mc, nil
	case "redis":
		rc, err := cache.NewRedis[T](b.cfg.RedisURL, b.cfg.StaleRetention)
		if err != nil {
			return nil, err
		}
		if b.ping == nil {
			b.ping = func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return rc.Ping(ctx)
			}
		}
		b.closers = append(b.closers, rc.Close)
		return rc, nil
	default:
		mem := cache.NewInMemory[T](b.cfg.StaleRetention)
		b.closers = append(b.closers, func() error {
			mem.Close()
			return nil
		})
		return mem, nil
	}
}

func buildEndpoints(cfg *config.Config) mta.Endpoints {
	endpoints := mta.DefaultEndpoints()
	if cfg.EquipmentURL != "" {
		endpoints.EquipmentURL = cfg.EquipmentURL
	}
	if cfg.StationsURL != "" {
		endpoints.StationsURL = cfg.StationsURL
	}
	if len(cfg.RealtimeURLs) > 0 {
		endpoints.RealtimeURLs = cfg.RealtimeURLs
	}
	if len(cfg.AlertURLs) > 0 {
		endpoints.AlertURLs = cfg.AlertURLs
	}
	return endpoints
}

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	client := mta.NewClientWithRetry(
		buildEndpoints(cfg),
		cfg.RealtimeTimeout,
		cfg.StaticTimeout,
		logger,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)

	b := &backendStores{cfg: cfg}
	equipmentStore, err := buildStore[models.EquipmentSnapshot](b)
	if err != nil {
		logger.Fatal("equipment store", zap.Error(err))
	}
	stationsStore, err := buildStore[[]models.Station](b)
	if err != nil {
		logger.Fatal("stations store", zap.Error(err))
	}
	realtimeStore, err := buildStore[models.RealtimeSnapshot](b)
	if err != nil {
		logger.Fatal("realtime store", zap.Error(err))
	}
	alertsStore, err := buildStore[[]models.Alert](b)
	if err != nil {
		logger.Fatal("alerts store", zap.Error(err))
	}
	logger.Info("cache backend ready", zap.String("backend", cfg.CacheBackend))

	tracker := feedhealth.New(cfg.DegradedWindow)

	coalesceTimeout := time.Duration(0)
	if cfg.CoalesceEnabled {
		coalesceTimeout = cfg.CoalesceTimeout
	}
	engine := service.NewEngine(
		client,
		service.Stores{
			Equipment: equipmentStore,
			Stations:  stationsStore,
			Realtime:  realtimeStore,
			Alerts:    alertsStore,
		},
		service.TTLs{
			Equipment: cfg.EquipmentTTL,
			Stations:  cfg.StationsTTL,
			Realtime:  cfg.RealtimeTTL,
			Alerts:    cfg.AlertsTTL,
		},
		coalesceTimeout,
		tracker,
		logger,
	)

	runCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	if cfg.RefreshEnabled {
		r := refresher.New(logger,
			refresher.Prime("equipment", cfg.RefreshEquipmentInterval, cfg.EquipmentTTL, equipmentStore, client.FetchEquipment),
			refresher.Prime("stations", cfg.RefreshStationsInterval, cfg.StationsTTL, stationsStore, client.FetchStations),
		)
		go r.Run(runCtx)
		logger.Info("background refresher started",
			zap.Duration("equipment_interval", cfg.RefreshEquipmentInterval),
			zap.Duration("stations_interval", cfg.RefreshStationsInterval))
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedErrorPct: cfg.DegradedErrorPct,
		StartTime:        time.Now(),
		CachePing:        b.ping,
	}
	handler := httphandler.NewHandler(engine, tracker, healthConfig, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	stopRefresh()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
