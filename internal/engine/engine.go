// Package engine composes the cache tiers into a single get/put surface
// with tier fallthrough and cross-tier promotion.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/tiercache/tiercache/internal/config"
	"github.com/tiercache/tiercache/internal/monitor"
	"github.com/tiercache/tiercache/internal/tier"
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// Engine is the orchestrator over the configured tiers, ordered fastest
// first. It holds no entries itself, only tier references, and takes no
// lock across tiers: operations on different tiers run in parallel, and
// promotion after a hit is best-effort rather than linearizable.
//
// Engines are constructed explicitly and passed by reference; there is no
// package-level instance. Close releases every tier.
type Engine struct {
	tiers   []types.Tier
	monitor *monitor.Monitor
	logger  *slog.Logger
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With("component", "engine") }
}

// New creates an engine over the given tiers, ordered fastest first.
func New(mon *monitor.Monitor, tiers []types.Tier, opts ...Option) (*Engine, error) {
	if len(tiers) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "engine needs at least one tier")
	}
	if mon == nil {
		mon = monitor.New(monitor.Config{}, nil)
	}

	e := &Engine{
		tiers:   tiers,
		monitor: mon,
		logger:  slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewFromConfig wires a monitor and the enabled tiers from configuration.
func NewFromConfig(cfg *config.Configuration, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	mon := monitor.New(cfg.MonitorConfig(), logger)

	var tiers []types.Tier
	if cfg.L1Memory.Enabled {
		l1, err := tier.NewMemory(cfg.MemoryConfig(), mon, logger)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, l1)
	}
	if cfg.L2Disk.Enabled {
		l2, err := tier.NewDisk(cfg.DiskConfig(), mon, logger)
		if err != nil {
			closeAll(tiers, logger)
			return nil, err
		}
		tiers = append(tiers, l2)
	}
	if cfg.L3Remote.Enabled {
		l3, err := tier.NewRemote(cfg.RemoteConfig(), mon, logger)
		if err != nil {
			closeAll(tiers, logger)
			return nil, err
		}
		tiers = append(tiers, l3)
	}

	return New(mon, tiers, WithLogger(logger))
}

// Get tries each tier in order and returns the first hit, promoting it
// into every faster tier. A hit is recorded against the serving tier and a
// miss against each faster tier that was probed first. Tier failures are
// treated as misses for that tier; only a miss at every tier returns the
// not-found error.
func (e *Engine) Get(ctx context.Context, key string) (*types.Entry, error) {
	for i, t := range e.tiers {
		start := time.Now()
		entry, err := t.Get(ctx, key)
		if err != nil {
			if !errors.IsNotFound(err) {
				e.logger.Warn("tier get failed", "tier", t.Name(), "key", key, "error", err)
			}
			e.monitor.RecordMiss(t.Name())
			continue
		}

		e.monitor.RecordHit(t.Name(), time.Since(start))
		e.promote(ctx, key, entry, i)
		return entry, nil
	}

	return nil, errors.NotFound(key)
}

// GetValue is the convenience form of Get returning just the payload.
func (e *Engine) GetValue(ctx context.Context, key string) ([]byte, error) {
	entry, err := e.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// PutOptions scopes a put to a subset of tiers.
type PutOptions struct {
	// Tiers names the tiers to write ("l1_memory", "l2_disk", "l3_remote").
	// Empty means all configured tiers.
	Tiers []string
	// TypeTag records how the caller serialized the value.
	TypeTag string
}

// Put wraps the value in a new entry and writes it to each requested tier.
// The write is best-effort: one tier failing does not fail the others, and
// Put reports success if at least one tier stored the entry.
func (e *Engine) Put(ctx context.Context, key string, value []byte, ttl time.Duration, opts *PutOptions) bool {
	if opts == nil {
		opts = &PutOptions{}
	}
	entry := types.NewEntry(key, value, opts.TypeTag, ttl)

	stored := false
	for _, t := range e.tiers {
		if !tierRequested(opts.Tiers, t.Name()) {
			continue
		}
		if err := t.Put(ctx, key, entry); err != nil {
			e.logger.Warn("tier put failed", "tier", t.Name(), "key", key, "error", err)
			continue
		}
		stored = true
	}
	return stored
}

// Remove deletes the key from every tier and reports whether any tier held
// it. Removing an absent key is a no-op.
func (e *Engine) Remove(ctx context.Context, key string) bool {
	removed := false
	for _, t := range e.tiers {
		ok, err := t.Remove(ctx, key)
		if err != nil {
			e.logger.Warn("tier remove failed", "tier", t.Name(), "key", key, "error", err)
			continue
		}
		if ok {
			removed = true
		}
	}
	return removed
}

// Clear empties each requested tier independently; nil means all.
func (e *Engine) Clear(ctx context.Context, tiers []string) {
	for _, t := range e.tiers {
		if !tierRequested(tiers, t.Name()) {
			continue
		}
		if err := t.Clear(ctx); err != nil {
			e.logger.Warn("tier clear failed", "tier", t.Name(), "error", err)
		}
	}
}

// Stats returns the per-tier statistics snapshot.
func (e *Engine) Stats() map[string]types.TierStats {
	return e.monitor.AllStats()
}

// Report returns the aggregate performance report.
func (e *Engine) Report() types.PerformanceReport {
	return e.monitor.Report()
}

// AddAlertCallback registers a threshold alert callback on the monitor.
func (e *Engine) AddAlertCallback(cb types.AlertCallback) {
	e.monitor.AddAlertCallback(cb)
}

// Tiers returns the configured tier names, fastest first.
func (e *Engine) Tiers() []string {
	names := make([]string, len(e.tiers))
	for i, t := range e.tiers {
		names[i] = t.Name()
	}
	return names
}

// Close shuts down every tier. The engine must not be used afterwards.
func (e *Engine) Close() error {
	var firstErr error
	for _, t := range e.tiers {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// promote copies a hit at tier index from into every faster tier.
// Promotion failures must not turn the hit into a miss, so they are logged
// and swallowed.
func (e *Engine) promote(ctx context.Context, key string, entry *types.Entry, from int) {
	for i := 0; i < from; i++ {
		if err := e.tiers[i].Put(ctx, key, entry); err != nil {
			e.logger.Warn("promotion failed", "tier", e.tiers[i].Name(), "key", key, "error", err)
		} else {
			e.logger.Debug("promoted entry", "tier", e.tiers[i].Name(), "key", key)
		}
	}
}

func tierRequested(requested []string, name string) bool {
	if len(requested) == 0 {
		return true
	}
	for _, r := range requested {
		if r == name {
			return true
		}
	}
	return false
}

func closeAll(tiers []types.Tier, logger *slog.Logger) {
	for _, t := range tiers {
		if err := t.Close(); err != nil {
			logger.Warn("tier close failed", "tier", t.Name(), "error", err)
		}
	}
}
