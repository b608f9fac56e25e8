package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiercache/tiercache/internal/policy"
	"github.com/tiercache/tiercache/pkg/errors"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.True(t, cfg.L1Memory.Enabled)
	assert.Equal(t, policy.StrategyAdaptive, cfg.L1Memory.Strategy)
	assert.Equal(t, 10000, cfg.L1Memory.MaxSize)
	assert.False(t, cfg.L2Disk.Enabled)
	assert.False(t, cfg.L3Remote.Enabled)
	assert.Equal(t, 6379, cfg.L3Remote.Port)
	assert.Equal(t, "info", cfg.LogLevel)

	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
l1_memory:
  enabled: true
  strategy: lru
  max_size: 500
l2_disk:
  enabled: true
  cache_dir: /tmp/cache
  max_size_mb: 64
  compression: false
  cleanup_interval_seconds: 300
l3_distributed:
  enabled: true
  host: cache.internal
  port: 6380
  namespace_prefix: "orders:"
  default_ttl_seconds: 120
alerts:
  hit_rate_min: 0.25
  avg_access_time_max: 0.05
  min_samples: 50
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, policy.StrategyLRU, cfg.L1Memory.Strategy)
	assert.Equal(t, 500, cfg.L1Memory.MaxSize)
	assert.True(t, cfg.L2Disk.Enabled)
	assert.Equal(t, "/tmp/cache", cfg.L2Disk.CacheDir)
	assert.Equal(t, 64, cfg.L2Disk.MaxSizeMB)
	assert.False(t, cfg.L2Disk.Compression)
	assert.Equal(t, 300, cfg.L2Disk.CleanupIntervalSeconds)
	assert.Equal(t, "cache.internal", cfg.L3Remote.Host)
	assert.Equal(t, 6380, cfg.L3Remote.Port)
	assert.Equal(t, 0.25, cfg.Alerts.HitRateMin)
	assert.Equal(t, 0.05, cfg.Alerts.AvgAccessTimeMaxSeconds)
	assert.Equal(t, uint64(50), cfg.Alerts.MinSamples)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	// Unset sections keep their defaults.
	assert.Equal(t, 2, cfg.L3Remote.TimeoutSeconds)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigLoad, errors.CodeOf(err))
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("l1_memory: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigLoad, errors.CodeOf(err))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TIERCACHE_LOG_LEVEL", "warn")
	t.Setenv("TIERCACHE_L1_STRATEGY", "LFU")
	t.Setenv("TIERCACHE_L1_MAX_SIZE", "250")
	t.Setenv("TIERCACHE_L3_HOST", "redis.internal")
	t.Setenv("TIERCACHE_L3_PORT", "6380")
	t.Setenv("TIERCACHE_METRICS_ADDR", ":9090")

	cfg := NewDefault()
	cfg.LoadFromEnv()

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, policy.StrategyLFU, cfg.L1Memory.Strategy)
	assert.Equal(t, 250, cfg.L1Memory.MaxSize)
	assert.Equal(t, "redis.internal", cfg.L3Remote.Host)
	assert.Equal(t, 6380, cfg.L3Remote.Port)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.HTTPAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"no tiers enabled", func(c *Configuration) {
			c.L1Memory.Enabled = false
		}},
		{"bad strategy", func(c *Configuration) {
			c.L1Memory.Strategy = "fifo"
		}},
		{"zero memory size", func(c *Configuration) {
			c.L1Memory.MaxSize = 0
		}},
		{"disk without directory", func(c *Configuration) {
			c.L2Disk.Enabled = true
			c.L2Disk.CacheDir = ""
		}},
		{"disk with zero budget", func(c *Configuration) {
			c.L2Disk.Enabled = true
			c.L2Disk.MaxSizeMB = 0
		}},
		{"remote port out of range", func(c *Configuration) {
			c.L3Remote.Enabled = true
			c.L3Remote.Port = 70000
		}},
		{"hit rate threshold out of range", func(c *Configuration) {
			c.Alerts.HitRateMin = 1.5
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
		})
	}
}

func TestConfigConversions(t *testing.T) {
	cfg := NewDefault()
	cfg.L3Remote.DefaultTTLSeconds = 90
	cfg.L3Remote.TimeoutSeconds = 3

	mem := cfg.MemoryConfig()
	assert.Equal(t, policy.StrategyAdaptive, mem.Strategy)
	assert.Equal(t, 10000, mem.MaxSize)

	disk := cfg.DiskConfig()
	assert.Equal(t, "/var/cache/tiercache", disk.Directory)
	assert.Equal(t, 512, disk.MaxSizeMB)
	assert.True(t, disk.Compression)

	remote := cfg.RemoteConfig()
	assert.Equal(t, 90*time.Second, remote.DefaultTTL)
	assert.Equal(t, 3*time.Second, remote.Timeout)
	assert.Equal(t, "tiercache:", remote.NamespacePrefix)

	cfg.Alerts.AvgAccessTimeMaxSeconds = 0.05
	mon := cfg.MonitorConfig()
	assert.Equal(t, 50*time.Millisecond, mon.Thresholds.AvgAccessTimeMax)
	assert.Equal(t, uint64(100), mon.Thresholds.MinSamples)
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	} {
		cfg := &Configuration{LogLevel: level}
		assert.Equal(t, want, cfg.SlogLevel(), "level %q", level)
	}
}
