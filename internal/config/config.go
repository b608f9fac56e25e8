// Package config provides the YAML configuration surface of the cache
// engine, with defaults, environment overrides, and validation.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/tiercache/tiercache/internal/monitor"
	"github.com/tiercache/tiercache/internal/policy"
	"github.com/tiercache/tiercache/internal/tier"
	cacherr "github.com/tiercache/tiercache/pkg/errors"
)

// Configuration is the complete cache engine configuration.
type Configuration struct {
	L1Memory L1Config      `yaml:"l1_memory"`
	L2Disk   L2Config      `yaml:"l2_disk"`
	L3Remote L3Config      `yaml:"l3_distributed"`
	Alerts   AlertsConfig  `yaml:"alerts"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"`
}

// AlertsConfig configures the monitor's thresholds. The access time maximum
// is expressed in seconds and may be fractional.
type AlertsConfig struct {
	HitRateMin              float64 `yaml:"hit_rate_min"`
	AvgAccessTimeMaxSeconds float64 `yaml:"avg_access_time_max"`
	MinSamples              uint64  `yaml:"min_samples"`
}

// L1Config configures the in-memory tier.
type L1Config struct {
	Enabled  bool            `yaml:"enabled"`
	Strategy policy.Strategy `yaml:"strategy"`
	MaxSize  int             `yaml:"max_size"`
}

// L2Config configures the disk tier.
type L2Config struct {
	Enabled                bool   `yaml:"enabled"`
	CacheDir               string `yaml:"cache_dir"`
	MaxSizeMB              int    `yaml:"max_size_mb"`
	Compression            bool   `yaml:"compression"`
	CleanupIntervalSeconds int    `yaml:"cleanup_interval_seconds"`
}

// L3Config configures the remote tier.
type L3Config struct {
	Enabled           bool          `yaml:"enabled"`
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Password          string        `yaml:"password"`
	DB                int           `yaml:"db"`
	NamespacePrefix   string        `yaml:"namespace_prefix"`
	DefaultTTLSeconds int           `yaml:"default_ttl_seconds"`
	TimeoutSeconds    int           `yaml:"timeout_seconds"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	HTTPAddr string `yaml:"http_addr"`
}

// NewDefault returns a configuration with sensible defaults: a memory-only
// cache with adaptive eviction and alerting disabled.
func NewDefault() *Configuration {
	return &Configuration{
		L1Memory: L1Config{
			Enabled:  true,
			Strategy: policy.StrategyAdaptive,
			MaxSize:  10000,
		},
		L2Disk: L2Config{
			Enabled:                false,
			CacheDir:               "/var/cache/tiercache",
			MaxSizeMB:              512,
			Compression:            true,
			CleanupIntervalSeconds: 600,
		},
		L3Remote: L3Config{
			Enabled:           false,
			Host:              "localhost",
			Port:              6379,
			NamespacePrefix:   "tiercache:",
			DefaultTTLSeconds: 3600,
			TimeoutSeconds:    2,
		},
		Alerts: AlertsConfig{
			MinSamples: 100,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		LogLevel: "info",
	}
}

// Load reads YAML from path over the defaults and applies environment
// overrides and validation.
func Load(path string) (*Configuration, error) {
	cfg := NewDefault()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, cacherr.Wrap(cacherr.ErrCodeConfigLoad, "read config file", err).
				WithContext("path", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, cacherr.Wrap(cacherr.ErrCodeConfigLoad, "parse config file", err).
				WithContext("path", path)
		}
	}

	cfg.LoadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv applies TIERCACHE_* environment overrides.
func (c *Configuration) LoadFromEnv() {
	if val := os.Getenv("TIERCACHE_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("TIERCACHE_L1_STRATEGY"); val != "" {
		c.L1Memory.Strategy = policy.Strategy(strings.ToLower(val))
	}
	if val := os.Getenv("TIERCACHE_L1_MAX_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.L1Memory.MaxSize = n
		}
	}
	if val := os.Getenv("TIERCACHE_L2_CACHE_DIR"); val != "" {
		c.L2Disk.CacheDir = val
	}
	if val := os.Getenv("TIERCACHE_L2_MAX_SIZE_MB"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.L2Disk.MaxSizeMB = n
		}
	}
	if val := os.Getenv("TIERCACHE_L3_HOST"); val != "" {
		c.L3Remote.Host = val
	}
	if val := os.Getenv("TIERCACHE_L3_PORT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.L3Remote.Port = n
		}
	}
	if val := os.Getenv("TIERCACHE_L3_PASSWORD"); val != "" {
		c.L3Remote.Password = val
	}
	if val := os.Getenv("TIERCACHE_L3_NAMESPACE_PREFIX"); val != "" {
		c.L3Remote.NamespacePrefix = val
	}
	if val := os.Getenv("TIERCACHE_METRICS_ADDR"); val != "" {
		c.Metrics.Enabled = true
		c.Metrics.HTTPAddr = val
	}
}

// Validate checks the configuration for contradictions before any tier is
// constructed.
func (c *Configuration) Validate() error {
	if !c.L1Memory.Enabled && !c.L2Disk.Enabled && !c.L3Remote.Enabled {
		return cacherr.New(cacherr.ErrCodeInvalidConfig, "at least one tier must be enabled")
	}
	if c.L1Memory.Enabled {
		if !c.L1Memory.Strategy.Valid() {
			return cacherr.Newf(cacherr.ErrCodeInvalidConfig,
				"l1_memory.strategy must be lru, lfu or adaptive, got %q", c.L1Memory.Strategy)
		}
		if c.L1Memory.MaxSize <= 0 {
			return cacherr.Newf(cacherr.ErrCodeInvalidConfig,
				"l1_memory.max_size must be positive, got %d", c.L1Memory.MaxSize)
		}
	}
	if c.L2Disk.Enabled {
		if c.L2Disk.CacheDir == "" {
			return cacherr.New(cacherr.ErrCodeInvalidConfig, "l2_disk.cache_dir is required")
		}
		if c.L2Disk.MaxSizeMB <= 0 {
			return cacherr.Newf(cacherr.ErrCodeInvalidConfig,
				"l2_disk.max_size_mb must be positive, got %d", c.L2Disk.MaxSizeMB)
		}
	}
	if c.L3Remote.Enabled {
		if c.L3Remote.Port <= 0 || c.L3Remote.Port > 65535 {
			return cacherr.Newf(cacherr.ErrCodeInvalidConfig,
				"l3_distributed.port %d out of range", c.L3Remote.Port)
		}
	}
	if c.Alerts.HitRateMin < 0 || c.Alerts.HitRateMin >= 1 {
		return cacherr.Newf(cacherr.ErrCodeInvalidConfig,
			"alerts.hit_rate_min must be in [0, 1), got %f", c.Alerts.HitRateMin)
	}
	return nil
}

// MemoryConfig converts the L1 section to the tier's own config type.
func (c *Configuration) MemoryConfig() tier.MemoryConfig {
	return tier.MemoryConfig{
		Strategy: c.L1Memory.Strategy,
		MaxSize:  c.L1Memory.MaxSize,
	}
}

// DiskConfig converts the L2 section to the tier's own config type.
func (c *Configuration) DiskConfig() tier.DiskConfig {
	return tier.DiskConfig{
		Directory:       c.L2Disk.CacheDir,
		MaxSizeMB:       c.L2Disk.MaxSizeMB,
		Compression:     c.L2Disk.Compression,
		CleanupInterval: time.Duration(c.L2Disk.CleanupIntervalSeconds) * time.Second,
	}
}

// RemoteConfig converts the L3 section to the tier's own config type.
func (c *Configuration) RemoteConfig() tier.RemoteConfig {
	return tier.RemoteConfig{
		Host:            c.L3Remote.Host,
		Port:            c.L3Remote.Port,
		Password:        c.L3Remote.Password,
		DB:              c.L3Remote.DB,
		NamespacePrefix: c.L3Remote.NamespacePrefix,
		DefaultTTL:      time.Duration(c.L3Remote.DefaultTTLSeconds) * time.Second,
		Timeout:         time.Duration(c.L3Remote.TimeoutSeconds) * time.Second,
	}
}

// MonitorConfig converts the alerting and metrics sections to the monitor's
// config type.
func (c *Configuration) MonitorConfig() monitor.Config {
	cfg := monitor.Config{
		Thresholds: monitor.Thresholds{
			HitRateMin:       c.Alerts.HitRateMin,
			AvgAccessTimeMax: time.Duration(c.Alerts.AvgAccessTimeMaxSeconds * float64(time.Second)),
			MinSamples:       c.Alerts.MinSamples,
		},
	}
	if c.Metrics.Enabled {
		cfg.HTTPAddr = c.Metrics.HTTPAddr
	}
	return cfg
}

// SlogLevel maps the configured log level to slog, defaulting to Info.
func (c *Configuration) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
