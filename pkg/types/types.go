package types

import (
	"time"
)

// Entry is the unit of cached data plus its metadata. The Value payload is
// opaque to the engine: callers serialize their own types and record what
// they stored in TypeTag.
type Entry struct {
	Key          string        `json:"key"`
	Value        []byte        `json:"value"`
	TypeTag      string        `json:"type_tag,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	LastAccessed time.Time     `json:"last_accessed"`
	AccessCount  int64         `json:"access_count"`
	TTL          time.Duration `json:"ttl,omitempty"`
	Size         int64         `json:"size"`
	Compressed   bool          `json:"compressed,omitempty"`
}

// NewEntry creates an entry for the given payload. A zero ttl means the
// entry never expires. Size starts as the payload length; tiers that
// compress update it with the stored size.
func NewEntry(key string, value []byte, typeTag string, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Key:          key,
		Value:        value,
		TypeTag:      typeTag,
		CreatedAt:    now,
		LastAccessed: now,
		TTL:          ttl,
		Size:         int64(len(value)),
	}
}

// Expired reports whether the entry's TTL has elapsed at the given time.
// Entries without a TTL never expire.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > e.TTL
}

// Touch records a successful read at the given time.
func (e *Entry) Touch(now time.Time) {
	e.AccessCount++
	if now.After(e.LastAccessed) {
		e.LastAccessed = now
	}
}

// Age returns how long the entry has existed at the given time.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Clone returns a deep copy of the entry. Tiers hand out clones so callers
// cannot mutate tier-owned state.
func (e *Entry) Clone() *Entry {
	cp := *e
	cp.Value = make([]byte, len(e.Value))
	copy(cp.Value, e.Value)
	return &cp
}

// TierStats represents the performance counters of a single cache tier.
type TierStats struct {
	Hits          uint64        `json:"hits"`
	Misses        uint64        `json:"misses"`
	Evictions     uint64        `json:"evictions"`
	Entries       int           `json:"entries"`
	MemoryUsage   int64         `json:"memory_usage"`
	AvgAccessTime time.Duration `json:"avg_access_time"`
	HitRate       float64       `json:"hit_rate"`
}

// RecordHit folds one hit with its observed latency into the stats,
// maintaining an incremental running mean of access time.
func (s *TierStats) RecordHit(latency time.Duration) {
	s.Hits++
	prev := s.AvgAccessTime
	s.AvgAccessTime = prev + (latency-prev)/time.Duration(s.Hits)
	s.updateHitRate()
}

// RecordMiss folds one miss into the stats.
func (s *TierStats) RecordMiss() {
	s.Misses++
	s.updateHitRate()
}

func (s *TierStats) updateHitRate() {
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// PerformanceReport aggregates tier statistics into a single snapshot.
type PerformanceReport struct {
	GeneratedAt    time.Time            `json:"generated_at"`
	Tiers          map[string]TierStats `json:"tiers"`
	TotalHits      uint64               `json:"total_hits"`
	TotalMisses    uint64               `json:"total_misses"`
	TotalEvictions uint64               `json:"total_evictions"`
	OverallHitRate float64              `json:"overall_hit_rate"`
	TotalEntries   int                  `json:"total_entries"`
	TotalBytes     int64                `json:"total_bytes"`
}

// AlertKind identifies which threshold a monitor alert crossed.
type AlertKind string

const (
	AlertLowHitRate AlertKind = "low_hit_rate"
	AlertSlowAccess AlertKind = "slow_access_time"
)

// Alert describes a single threshold breach observed by the monitor.
type Alert struct {
	Tier      string    `json:"tier"`
	Kind      AlertKind `json:"kind"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	At        time.Time `json:"at"`
}
