// Package config loads service configuration from config/{ENV_NAME}.yaml
// with environment overrides. A missing file is fine; defaults cover every
// field, and the loaded result is validated before use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the resolved service configuration.
type Config struct {
	ServerPort     string        `validate:"required,numeric"`
	RequestTimeout time.Duration `validate:"gt=0"`

	// Feed URLs; empty values fall back to the public MTA endpoints.
	EquipmentURL string            `validate:"omitempty,url"`
	StationsURL  string            `validate:"omitempty,url"`
	RealtimeURLs map[string]string `validate:"omitempty,dive,url"`
	AlertURLs    map[string]string `validate:"omitempty,dive,url"`

	RealtimeTimeout time.Duration `validate:"gt=0"`
	StaticTimeout   time.Duration `validate:"gt=0"`

	EquipmentTTL time.Duration `validate:"gt=0"`
	StationsTTL  time.Duration `validate:"gt=0"`
	RealtimeTTL  time.Duration `validate:"gt=0"`
	AlertsTTL    time.Duration `validate:"gt=0"`

	StaleRetention time.Duration `validate:"gte=0"`

	CacheBackend          string `validate:"oneof=in_memory memcached redis"`
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	RedisURL              string

	RetryAttempts  int           `validate:"gte=1"`
	RetryBaseDelay time.Duration `validate:"gt=0"`
	RetryMaxDelay  time.Duration `validate:"gt=0"`

	RateLimitRPS   int `validate:"gte=0"`
	RateLimitBurst int `validate:"gte=0"`

	CoalesceEnabled bool
	CoalesceTimeout time.Duration

	RefreshEnabled           bool
	RefreshEquipmentInterval time.Duration `validate:"gt=0"`
	RefreshStationsInterval  time.Duration `validate:"gt=0"`

	DegradedWindow   time.Duration `validate:"gt=0"`
	DegradedErrorPct int           `validate:"gt=0,lte=100"`

	ShutdownTimeout time.Duration `validate:"gt=0"`
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Feeds struct {
		EquipmentURL    string            `yaml:"equipment_url"`
		StationsURL     string            `yaml:"stations_url"`
		RealtimeURLs    map[string]string `yaml:"realtime_urls"`
		AlertURLs       map[string]string `yaml:"alert_urls"`
		RealtimeTimeout string            `yaml:"realtime_timeout"`
		StaticTimeout   string            `yaml:"static_timeout"`
	} `yaml:"feeds"`

	Cache struct {
		Backend        string `yaml:"backend"`
		EquipmentTTL   string `yaml:"equipment_ttl"`
		StationsTTL    string `yaml:"stations_ttl"`
		RealtimeTTL    string `yaml:"realtime_ttl"`
		AlertsTTL      string `yaml:"alerts_ttl"`
		StaleRetention string `yaml:"stale_retention"`
		Memcached      struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			URL string `yaml:"url"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CoalesceEnabled  *bool  `yaml:"coalesce_enabled"`
		CoalesceTimeout  string `yaml:"coalesce_timeout"`
	} `yaml:"reliability"`

	Refresh struct {
		Enabled           *bool  `yaml:"enabled"`
		EquipmentInterval string `yaml:"equipment_interval"`
		StationsInterval  string `yaml:"stations_interval"`
	} `yaml:"refresh"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load resolves configuration: .env, then config/{ENV_NAME}.yaml (default
// dev, missing file tolerated), then environment overrides, then validation.
// Call from the project root.
func Load() (*Config, error) {
	// A missing .env is the normal production case.
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("read %s: %w", configPath, err)
	}

	cfg := fromFile(fc)
	applyEnvOverrides(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func fromFile(fc fileConfig) *Config {
	cfg := &Config{
		ServerPort:     defaultString(fc.Server.Port, "8080"),
		RequestTimeout: parseDuration(fc.Request.Timeout, 15*time.Second),

		EquipmentURL: strings.TrimSpace(fc.Feeds.EquipmentURL),
		StationsURL:  strings.TrimSpace(fc.Feeds.StationsURL),
		RealtimeURLs: fc.Feeds.RealtimeURLs,
		AlertURLs:    fc.Feeds.AlertURLs,

		RealtimeTimeout: parseDuration(fc.Feeds.RealtimeTimeout, 10*time.Second),
		StaticTimeout:   parseDuration(fc.Feeds.StaticTimeout, 30*time.Second),

		EquipmentTTL:   parseDuration(fc.Cache.EquipmentTTL, 10*time.Minute),
		StationsTTL:    parseDuration(fc.Cache.StationsTTL, time.Hour),
		RealtimeTTL:    parseDuration(fc.Cache.RealtimeTTL, 30*time.Second),
		AlertsTTL:      parseDuration(fc.Cache.AlertsTTL, time.Minute),
		StaleRetention: parseDuration(fc.Cache.StaleRetention, time.Hour),

		CacheBackend:          strings.ToLower(defaultString(fc.Cache.Backend, "in_memory")),
		MemcachedAddrs:        defaultString(fc.Cache.Memcached.Addrs, "localhost:11211"),
		MemcachedTimeout:      parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond),
		MemcachedMaxIdleConns: defaultInt(fc.Cache.Memcached.MaxIdleConns, 2),
		RedisURL:              defaultString(fc.Cache.Redis.URL, "redis://localhost:6379/0"),

		RetryAttempts:  defaultInt(fc.Reliability.RetryMaxAttempts, 3),
		RetryBaseDelay: parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond),
		RetryMaxDelay:  parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second),
		RateLimitRPS:   defaultInt(fc.Reliability.RateLimitRPS, 100),
		RateLimitBurst: defaultInt(fc.Reliability.RateLimitBurst, 250),

		CoalesceEnabled: true,
		CoalesceTimeout: parseDuration(fc.Reliability.CoalesceTimeout, 10*time.Second),

		RefreshEnabled:           true,
		RefreshEquipmentInterval: parseDuration(fc.Refresh.EquipmentInterval, 10*time.Minute),
		RefreshStationsInterval:  parseDuration(fc.Refresh.StationsInterval, time.Hour),

		DegradedWindow:   parseDuration(fc.Health.DegradedWindow, 5*time.Minute),
		DegradedErrorPct: defaultInt(fc.Health.DegradedErrorPct, 50),

		ShutdownTimeout: parseDuration(fc.Shutdown.Timeout, 30*time.Second),
	}
	if fc.Reliability.CoalesceEnabled != nil {
		cfg.CoalesceEnabled = *fc.Reliability.CoalesceEnabled
	}
	if fc.Refresh.Enabled != nil {
		cfg.RefreshEnabled = *fc.Refresh.Enabled
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.ServerPort = v
	}
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND"))); v != "" {
		cfg.CacheBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")); v != "" {
		cfg.MemcachedAddrs = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("EQUIPMENT_FEED_URL")); v != "" {
		cfg.EquipmentURL = v
	}
	if v := strings.TrimSpace(os.Getenv("STATIONS_FEED_URL")); v != "" {
		cfg.StationsURL = v
	}
}

func defaultString(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// parseDuration parses a YAML duration string, falling back to def on empty,
// unparsable, or non-positive input.
func parseDuration(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
