// Package tiercache is the public surface of the tiered cache engine: a
// process-local cache that fronts slow data sources with up to three
// progressively larger, progressively slower tiers (memory, disk, remote),
// each with its own eviction discipline.
//
// A Cache is constructed explicitly and passed to consumers by reference:
//
//	cfg := tiercache.DefaultConfig()
//	cfg.L2Disk.Enabled = true
//	cfg.L2Disk.CacheDir = "/var/cache/myapp"
//
//	cache, err := tiercache.New(cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cache.Close()
//
//	cache.Put(ctx, "signal:AAPL", payload, 5*time.Minute, nil)
//	entry, err := cache.Get(ctx, "signal:AAPL")
//
// Values are opaque byte payloads; callers serialize their own types and
// may record the encoding in PutOptions.TypeTag. A fully unavailable cache
// degrades to "always miss": Get returns the not-found error rather than
// failing, so the caller's fallback-to-source path keeps working.
package tiercache

import (
	"log/slog"

	"github.com/tiercache/tiercache/internal/config"
	"github.com/tiercache/tiercache/internal/engine"
	"github.com/tiercache/tiercache/internal/tier"
)

// Tier names accepted by PutOptions.Tiers and Cache.Clear.
const (
	TierMemory = tier.MemoryName
	TierDisk   = tier.DiskName
	TierRemote = tier.RemoteName
)

// Config is the complete engine configuration. See DefaultConfig for the
// defaults and LoadConfig for the YAML surface.
type Config = config.Configuration

// PutOptions scopes a put to a subset of tiers and carries the value's
// type tag.
type PutOptions = engine.PutOptions

// Cache is a handle on the tiered cache engine.
type Cache struct {
	*engine.Engine
}

// DefaultConfig returns the default configuration: a memory-only cache
// with adaptive eviction.
func DefaultConfig() *Config {
	return config.NewDefault()
}

// LoadConfig reads a YAML configuration file over the defaults, applying
// TIERCACHE_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// New constructs a cache from configuration. The returned handle owns its
// tiers; call Close to release them.
func New(cfg *Config, logger *slog.Logger) (*Cache, error) {
	eng, err := engine.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Cache{Engine: eng}, nil
}
