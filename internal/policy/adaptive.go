package policy

import (
	"time"

	"github.com/tiercache/tiercache/pkg/types"
)

const (
	// historyWindow bounds the per-key access history used for routing.
	historyWindow = time.Hour
	// recentSpan is the "hot" slice of the history window.
	recentSpan = 5 * time.Minute
	// recencyThreshold routes a key to the LRU segment when more than this
	// share of its windowed accesses are recent.
	recencyThreshold = 0.5

	minSegmentWeight = 0.2
	maxSegmentWeight = 0.8

	defaultReweightInterval = time.Minute
)

// Adaptive is a hybrid policy that splits its capacity between an LRU and an
// LFU segment. Keys with recency-dominated access patterns route to the LRU
// half, frequency-dominated keys to the LFU half, and unseen keys follow the
// current segment weight split.
//
// The split is genuinely adaptive: each segment's observed hit rate is
// tracked, and the weights are recomputed from them once per reweight
// interval (bounded to [0.2, 0.8] so neither segment starves).
//
// Adaptive is not internally synchronized; the owning tier serializes access.
type Adaptive struct {
	lru *LRU
	lfu *LFU

	history map[string][]time.Time

	lruWeight float64

	lruProbes uint64
	lruHits   uint64
	lfuProbes uint64
	lfuHits   uint64

	reweightInterval time.Duration
	lastReweight     time.Time

	now func() time.Time
}

// NewAdaptive creates an adaptive policy holding at most capacity entries,
// split evenly between the LRU and LFU segments.
func NewAdaptive(capacity int) *Adaptive {
	if capacity < 2 {
		capacity = 2
	}
	half := capacity / 2
	return &Adaptive{
		lru:              NewLRU(half),
		lfu:              NewLFU(capacity - half),
		history:          make(map[string][]time.Time),
		lruWeight:        0.5,
		reweightInterval: defaultReweightInterval,
		lastReweight:     time.Now(),
		now:              time.Now,
	}
}

// Get probes the LRU segment then the LFU segment.
func (c *Adaptive) Get(key string) (*types.Entry, bool) {
	now := c.now()
	c.recordAccess(key, now)

	c.lruProbes++
	if entry, ok := c.lru.Get(key); ok {
		c.lruHits++
		return entry, true
	}

	c.lfuProbes++
	if entry, ok := c.lfu.Get(key); ok {
		c.lfuHits++
		return entry, true
	}

	return nil, false
}

// Put routes the entry to a segment by its windowed access pattern and
// returns the entry evicted from that segment, if any. A key resident in
// the other segment is moved rather than duplicated.
func (c *Adaptive) Put(key string, entry *types.Entry) *types.Entry {
	now := c.now()
	c.recordAccess(key, now)
	c.maybeReweight(now)

	if c.routeToLRU(key, now) {
		c.lfu.Remove(key)
		return c.lru.Put(key, entry)
	}
	c.lru.Remove(key)
	return c.lfu.Put(key, entry)
}

// Remove deletes the key from whichever segment holds it.
func (c *Adaptive) Remove(key string) bool {
	delete(c.history, key)
	removed := c.lru.Remove(key)
	if c.lfu.Remove(key) {
		removed = true
	}
	return removed
}

// Clear drops all entries and access history.
func (c *Adaptive) Clear() {
	c.lru.Clear()
	c.lfu.Clear()
	c.history = make(map[string][]time.Time)
}

// Len returns the combined entry count of both segments.
func (c *Adaptive) Len() int {
	return c.lru.Len() + c.lfu.Len()
}

// Bytes returns the summed payload size across both segments.
func (c *Adaptive) Bytes() int64 {
	return c.lru.Bytes() + c.lfu.Bytes()
}

// Keys returns the keys of both segments.
func (c *Adaptive) Keys() []string {
	keys := c.lru.Keys()
	return append(keys, c.lfu.Keys()...)
}

// Weights returns the current (lru, lfu) segment weights.
func (c *Adaptive) Weights() (float64, float64) {
	return c.lruWeight, 1 - c.lruWeight
}

// routeToLRU decides the target segment for key. With fewer than two
// recorded accesses the current weight split decides; otherwise the key's
// recency ratio does.
func (c *Adaptive) routeToLRU(key string, now time.Time) bool {
	accesses := c.history[key]
	if len(accesses) < 2 {
		return c.lruWeight >= 0.5
	}

	recent := 0
	cutoff := now.Add(-recentSpan)
	for _, at := range accesses {
		if at.After(cutoff) {
			recent++
		}
	}
	ratio := float64(recent) / float64(len(accesses))
	return ratio > recencyThreshold
}

func (c *Adaptive) recordAccess(key string, now time.Time) {
	accesses := append(c.history[key], now)

	// Trim everything that fell out of the window.
	cutoff := now.Add(-historyWindow)
	start := 0
	for start < len(accesses) && !accesses[start].After(cutoff) {
		start++
	}
	c.history[key] = accesses[start:]
}

func (c *Adaptive) maybeReweight(now time.Time) {
	if now.Sub(c.lastReweight) < c.reweightInterval {
		return
	}
	c.lastReweight = now
	c.pruneHistory(now)

	if c.lruProbes == 0 || c.lfuProbes == 0 {
		return
	}

	lruRate := float64(c.lruHits) / float64(c.lruProbes)
	lfuRate := float64(c.lfuHits) / float64(c.lfuProbes)
	if lruRate+lfuRate == 0 {
		return
	}

	weight := lruRate / (lruRate + lfuRate)
	if weight < minSegmentWeight {
		weight = minSegmentWeight
	}
	if weight > maxSegmentWeight {
		weight = maxSegmentWeight
	}
	c.lruWeight = weight

	// Halve the counters so old behavior ages out instead of dominating.
	c.lruProbes /= 2
	c.lruHits /= 2
	c.lfuProbes /= 2
	c.lfuHits /= 2
}

func (c *Adaptive) pruneHistory(now time.Time) {
	cutoff := now.Add(-historyWindow)
	for key, accesses := range c.history {
		if len(accesses) == 0 || !accesses[len(accesses)-1].After(cutoff) {
			delete(c.history, key)
		}
	}
}
