package tier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tiercache/tiercache/internal/policy"
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// MemoryName is the stats and metrics label of the L1 tier.
const MemoryName = "l1_memory"

// MemoryConfig configures the in-memory L1 tier.
type MemoryConfig struct {
	Strategy policy.Strategy `yaml:"strategy"`
	MaxSize  int             `yaml:"max_size"`
}

// Memory is the L1 tier: a bounded in-memory map behind one of the eviction
// policies. One coarse mutex guards the policy, so concurrent get and put
// on this tier serialize and eviction decisions stay atomic.
type Memory struct {
	mu      sync.Mutex
	policy  types.EvictionPolicy
	monitor types.StatsRecorder
	logger  *slog.Logger
	closed  bool
}

// NewMemory creates the L1 tier with the configured eviction strategy.
func NewMemory(cfg MemoryConfig, monitor types.StatsRecorder, logger *slog.Logger) (*Memory, error) {
	if cfg.MaxSize <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"memory tier max_size must be positive, got %d", cfg.MaxSize)
	}
	p, err := policy.New(cfg.Strategy, cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	if monitor == nil {
		monitor = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		policy:  p,
		monitor: monitor,
		logger:  logger.With("component", MemoryName),
	}, nil
}

// Name returns the tier identifier.
func (m *Memory) Name() string { return MemoryName }

// Get returns the entry for key. Expired entries are dropped by the policy
// and reported as a clean miss.
func (m *Memory) Get(_ context.Context, key string) (*types.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New(errors.ErrCodeClosed, "memory tier closed").WithComponent(MemoryName)
	}

	entry, ok := m.policy.Get(key)
	if !ok {
		m.reportSize()
		return nil, errors.NotFound(key)
	}

	m.reportSize()
	return entry.Clone(), nil
}

// Put stores a copy of the entry, evicting per policy when at capacity.
func (m *Memory) Put(_ context.Context, key string, entry *types.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New(errors.ErrCodeClosed, "memory tier closed").WithComponent(MemoryName)
	}

	if evicted := m.policy.Put(key, entry.Clone()); evicted != nil {
		m.monitor.RecordEviction(MemoryName)
		m.logger.Debug("evicted entry", "key", evicted.Key)
	}
	m.reportSize()
	return nil
}

// Remove deletes the entry and reports whether it was present.
func (m *Memory) Remove(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, errors.New(errors.ErrCodeClosed, "memory tier closed").WithComponent(MemoryName)
	}

	removed := m.policy.Remove(key)
	m.reportSize()
	return removed, nil
}

// Clear drops all entries.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New(errors.ErrCodeClosed, "memory tier closed").WithComponent(MemoryName)
	}

	m.policy.Clear()
	m.reportSize()
	return nil
}

// Len returns the current entry count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy.Len()
}

// Close marks the tier closed. Subsequent operations fail.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) reportSize() {
	m.monitor.UpdateSize(MemoryName, m.policy.Len(), m.policy.Bytes())
}

// nopRecorder satisfies types.StatsRecorder for tiers built without a monitor.
type nopRecorder struct{}

func (nopRecorder) RecordHit(string, time.Duration) {}
func (nopRecorder) RecordMiss(string)               {}
func (nopRecorder) RecordEviction(string)           {}
func (nopRecorder) UpdateSize(string, int, int64)   {}
