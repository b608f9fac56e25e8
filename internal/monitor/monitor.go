// Package monitor tracks per-tier cache performance counters, exports them
// as Prometheus metrics, and dispatches threshold alerts.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiercache/tiercache/pkg/types"
)

// Thresholds configure alert dispatch. Zero values disable the check.
type Thresholds struct {
	// HitRateMin fires a low_hit_rate alert when a tier's hit rate drops
	// below it. Range (0, 1).
	HitRateMin float64
	// AvgAccessTimeMax fires a slow_access_time alert when a tier's mean
	// access latency exceeds it.
	AvgAccessTimeMax time.Duration
	// MinSamples is the hit+miss count a tier must accumulate before
	// thresholds are evaluated, so a cold cache does not alert.
	MinSamples uint64
}

// Config configures the monitor and its optional metrics endpoint.
type Config struct {
	Thresholds Thresholds
	Namespace  string
	HTTPAddr   string
}

// Monitor owns the aggregate per-tier statistics. It is shared by reference
// across all tiers and the engine but never holds entry data.
type Monitor struct {
	mu         sync.Mutex
	stats      map[string]*types.TierStats
	callbacks  []types.AlertCallback
	thresholds Thresholds
	logger     *slog.Logger

	registry       *prometheus.Registry
	hitCounter     *prometheus.CounterVec
	missCounter    *prometheus.CounterVec
	evictionCount  *prometheus.CounterVec
	entriesGauge   *prometheus.GaugeVec
	bytesGauge     *prometheus.GaugeVec
	accessDuration *prometheus.HistogramVec

	server *http.Server

	now func() time.Time
}

// New creates a monitor with its own Prometheus registry.
func New(cfg Config, logger *slog.Logger) *Monitor {
	if cfg.Namespace == "" {
		cfg.Namespace = "tiercache"
	}
	if cfg.Thresholds.MinSamples == 0 {
		cfg.Thresholds.MinSamples = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		stats:      make(map[string]*types.TierStats),
		thresholds: cfg.Thresholds,
		logger:     logger.With("component", "monitor"),
		registry:   prometheus.NewRegistry(),
		now:        time.Now,
	}

	m.hitCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "hits_total",
		Help:      "Cache hits per tier",
	}, []string{"tier"})
	m.missCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "misses_total",
		Help:      "Cache misses per tier",
	}, []string{"tier"})
	m.evictionCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "evictions_total",
		Help:      "Capacity evictions per tier",
	}, []string{"tier"})
	m.entriesGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Name:      "entries",
		Help:      "Resident entries per tier",
	}, []string{"tier"})
	m.bytesGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Name:      "bytes",
		Help:      "Estimated resident bytes per tier",
	}, []string{"tier"})
	m.accessDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Name:      "access_duration_seconds",
		Help:      "Access latency of cache hits per tier",
		Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 12),
	}, []string{"tier"})

	m.registry.MustRegister(m.hitCounter, m.missCounter, m.evictionCount,
		m.entriesGauge, m.bytesGauge, m.accessDuration)

	if cfg.HTTPAddr != "" {
		m.serve(cfg.HTTPAddr)
	}

	return m
}

// RecordHit records a hit with its observed latency and re-evaluates the
// tier's alert thresholds.
func (m *Monitor) RecordHit(tier string, latency time.Duration) {
	m.hitCounter.WithLabelValues(tier).Inc()
	m.accessDuration.WithLabelValues(tier).Observe(latency.Seconds())

	m.mu.Lock()
	stats := m.tierStats(tier)
	stats.RecordHit(latency)
	alerts := m.evaluate(tier, stats)
	m.mu.Unlock()

	m.dispatch(alerts)
}

// RecordMiss records a miss and re-evaluates the tier's alert thresholds.
func (m *Monitor) RecordMiss(tier string) {
	m.missCounter.WithLabelValues(tier).Inc()

	m.mu.Lock()
	stats := m.tierStats(tier)
	stats.RecordMiss()
	alerts := m.evaluate(tier, stats)
	m.mu.Unlock()

	m.dispatch(alerts)
}

// RecordEviction records one capacity eviction.
func (m *Monitor) RecordEviction(tier string) {
	m.evictionCount.WithLabelValues(tier).Inc()

	m.mu.Lock()
	m.tierStats(tier).Evictions++
	m.mu.Unlock()
}

// UpdateSize records a tier's current entry count and byte estimate.
func (m *Monitor) UpdateSize(tier string, entries int, bytes int64) {
	m.entriesGauge.WithLabelValues(tier).Set(float64(entries))
	m.bytesGauge.WithLabelValues(tier).Set(float64(bytes))

	m.mu.Lock()
	stats := m.tierStats(tier)
	stats.Entries = entries
	stats.MemoryUsage = bytes
	m.mu.Unlock()
}

// AddAlertCallback registers a callback invoked on every threshold breach.
func (m *Monitor) AddAlertCallback(cb types.AlertCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Stats returns a snapshot of one tier's counters.
func (m *Monitor) Stats(tier string) types.TierStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.tierStats(tier)
}

// AllStats returns a snapshot of every observed tier.
func (m *Monitor) AllStats() map[string]types.TierStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]types.TierStats, len(m.stats))
	for tier, stats := range m.stats {
		out[tier] = *stats
	}
	return out
}

// Report aggregates all tiers into a performance report.
func (m *Monitor) Report() types.PerformanceReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := types.PerformanceReport{
		GeneratedAt: m.now(),
		Tiers:       make(map[string]types.TierStats, len(m.stats)),
	}
	for tier, stats := range m.stats {
		report.Tiers[tier] = *stats
		report.TotalHits += stats.Hits
		report.TotalMisses += stats.Misses
		report.TotalEvictions += stats.Evictions
		report.TotalEntries += stats.Entries
		report.TotalBytes += stats.MemoryUsage
	}
	if total := report.TotalHits + report.TotalMisses; total > 0 {
		report.OverallHitRate = float64(report.TotalHits) / float64(total)
	}
	return report
}

// Reset zeroes all tracked statistics. Prometheus counters are monotonic
// and stay untouched.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = make(map[string]*types.TierStats)
}

// Registry exposes the Prometheus registry for embedding into an existing
// metrics endpoint.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Shutdown stops the metrics endpoint if one was started.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// tierStats returns the mutable stats record for tier. Caller holds m.mu.
func (m *Monitor) tierStats(tier string) *types.TierStats {
	stats, ok := m.stats[tier]
	if !ok {
		stats = &types.TierStats{}
		m.stats[tier] = stats
	}
	return stats
}

// evaluate checks thresholds against the tier's stats and returns any
// alerts to dispatch. Caller holds m.mu; dispatch happens outside the lock.
func (m *Monitor) evaluate(tier string, stats *types.TierStats) []types.Alert {
	if stats.Hits+stats.Misses < m.thresholds.MinSamples {
		return nil
	}

	var alerts []types.Alert
	now := m.now()

	if m.thresholds.HitRateMin > 0 && stats.HitRate < m.thresholds.HitRateMin {
		alerts = append(alerts, types.Alert{
			Tier:      tier,
			Kind:      types.AlertLowHitRate,
			Value:     stats.HitRate,
			Threshold: m.thresholds.HitRateMin,
			At:        now,
		})
	}
	if m.thresholds.AvgAccessTimeMax > 0 && stats.AvgAccessTime > m.thresholds.AvgAccessTimeMax {
		alerts = append(alerts, types.Alert{
			Tier:      tier,
			Kind:      types.AlertSlowAccess,
			Value:     stats.AvgAccessTime.Seconds(),
			Threshold: m.thresholds.AvgAccessTimeMax.Seconds(),
			At:        now,
		})
	}
	return alerts
}

// dispatch invokes the registered callbacks. A panicking callback is
// recovered and logged, never propagated.
func (m *Monitor) dispatch(alerts []types.Alert) {
	if len(alerts) == 0 {
		return
	}

	m.mu.Lock()
	callbacks := make([]types.AlertCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, alert := range alerts {
		for _, cb := range callbacks {
			func() {
				defer func() {
					if r := recover(); r != nil {
						m.logger.Error("alert callback panicked",
							"tier", alert.Tier, "kind", alert.Kind, "panic", fmt.Sprint(r))
					}
				}()
				cb(alert)
			}()
		}
	}
}

func (m *Monitor) serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics endpoint failed", "addr", addr, "error", err)
		}
	}()
}
