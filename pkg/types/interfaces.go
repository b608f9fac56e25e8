package types

import (
	"context"
	"time"
)

// Tier defines the contract every cache tier implements. A clean miss is
// reported as an error matching errors.ErrNotFound; any other non-nil error
// means the operation itself failed. Callers must treat both as "no value"
// but may distinguish them for diagnostics.
type Tier interface {
	// Name returns the tier identifier used in stats and metrics ("l1_memory",
	// "l2_disk", "l3_remote").
	Name() string

	// Get returns the entry for key, or a not-found error. Expired entries
	// are removed and reported as not found.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put stores the entry, evicting as needed to respect the tier's
	// capacity. A capacity failure after eviction is an error.
	Put(ctx context.Context, key string, entry *Entry) error

	// Remove deletes the entry if present and reports whether it existed.
	Remove(ctx context.Context, key string) (bool, error)

	// Clear removes every entry owned by this tier.
	Clear(ctx context.Context) error

	// Len returns the current entry count.
	Len() int

	// Close releases tier resources and stops background work.
	Close() error
}

// EvictionPolicy is the capability set shared by the in-memory bounded maps
// (LRU, LFU, Adaptive). Implementations are not internally synchronized;
// the owning tier serializes access under its own lock.
type EvictionPolicy interface {
	// Get returns the entry and marks it accessed. Expired entries are
	// dropped and reported as absent.
	Get(key string) (*Entry, bool)

	// Put inserts or replaces the entry and returns the entry evicted to
	// make room, or nil if none was.
	Put(key string, entry *Entry) *Entry

	// Remove deletes the key and reports whether it was present.
	Remove(key string) bool

	// Clear drops all entries.
	Clear()

	// Len returns the current entry count.
	Len() int

	// Bytes returns the summed payload size of resident entries.
	Bytes() int64

	// Keys returns the current key set in unspecified order.
	Keys() []string
}

// StatsRecorder is the monitor surface consumed by tiers. Implementations
// must be safe for concurrent use.
type StatsRecorder interface {
	RecordHit(tier string, latency time.Duration)
	RecordMiss(tier string)
	RecordEviction(tier string)
	UpdateSize(tier string, entries int, bytes int64)
}

// AlertCallback receives threshold-breach notifications from the monitor.
// Panics inside a callback are recovered and logged, never propagated.
type AlertCallback func(alert Alert)
