package policy

import (
	"time"

	"github.com/tiercache/tiercache/pkg/types"
)

// LFU is a bounded map with least-frequently-used eviction. Each key carries
// a frequency counter starting at 1 on insert and bumped on every get (and
// on put of an existing key). A frequency→key-set index plus a minFreq
// pointer keeps eviction amortized O(1); the victim is an arbitrary member
// of the minimum-frequency bucket.
//
// LFU is not internally synchronized; the owning tier serializes access.
type LFU struct {
	capacity int
	items    map[string]*lfuItem
	buckets  map[int64]map[string]struct{}
	minFreq  int64
	bytes    int64

	now func() time.Time
}

type lfuItem struct {
	entry *types.Entry
	freq  int64
}

// NewLFU creates an LFU policy holding at most capacity entries.
func NewLFU(capacity int) *LFU {
	if capacity <= 0 {
		capacity = 1
	}
	return &LFU{
		capacity: capacity,
		items:    make(map[string]*lfuItem),
		buckets:  make(map[int64]map[string]struct{}),
		now:      time.Now,
	}
}

// Get returns the entry for key and bumps its frequency. Expired entries
// are dropped and reported as absent.
func (c *LFU) Get(key string) (*types.Entry, bool) {
	item, ok := c.items[key]
	if !ok {
		return nil, false
	}

	now := c.now()
	if item.entry.Expired(now) {
		c.remove(key, item)
		return nil, false
	}

	item.entry.Touch(now)
	c.bump(key, item)
	return item.entry, true
}

// Put inserts or replaces the entry and returns the evicted entry, if any.
// Putting an existing key replaces its value and bumps its frequency.
func (c *LFU) Put(key string, entry *types.Entry) *types.Entry {
	if item, ok := c.items[key]; ok {
		c.bytes += entry.Size - item.entry.Size
		item.entry = entry
		c.bump(key, item)
		return nil
	}

	var evicted *types.Entry
	if len(c.items) >= c.capacity {
		evicted = c.evictMin()
	}

	c.items[key] = &lfuItem{entry: entry, freq: 1}
	c.addToBucket(1, key)
	c.minFreq = 1
	c.bytes += entry.Size
	return evicted
}

// Remove deletes the key and reports whether it was present.
func (c *LFU) Remove(key string) bool {
	item, ok := c.items[key]
	if !ok {
		return false
	}
	c.remove(key, item)
	return true
}

// Clear drops all entries.
func (c *LFU) Clear() {
	c.items = make(map[string]*lfuItem)
	c.buckets = make(map[int64]map[string]struct{})
	c.minFreq = 0
	c.bytes = 0
}

// Len returns the current entry count.
func (c *LFU) Len() int {
	return len(c.items)
}

// Bytes returns the summed payload size of resident entries.
func (c *LFU) Bytes() int64 {
	return c.bytes
}

// Keys returns the current key set in unspecified order.
func (c *LFU) Keys() []string {
	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	return keys
}

// Freq returns the access frequency recorded for key, or 0 if absent.
func (c *LFU) Freq(key string) int64 {
	if item, ok := c.items[key]; ok {
		return item.freq
	}
	return 0
}

func (c *LFU) bump(key string, item *lfuItem) {
	c.removeFromBucket(item.freq, key)
	// minFreq only advances when its bucket empties; a new minimum is found
	// lazily here rather than by scanning.
	if item.freq == c.minFreq && len(c.buckets[item.freq]) == 0 {
		c.minFreq++
	}
	item.freq++
	c.addToBucket(item.freq, key)
}

func (c *LFU) evictMin() *types.Entry {
	if len(c.items) == 0 {
		return nil
	}

	bucket := c.buckets[c.minFreq]
	if len(bucket) == 0 {
		// Stale pointer after removals; rescan the occupied buckets.
		c.minFreq = c.findMinFreq()
		bucket = c.buckets[c.minFreq]
	}

	var victim string
	for key := range bucket {
		victim = key
		break
	}

	item := c.items[victim]
	c.remove(victim, item)
	return item.entry
}

func (c *LFU) findMinFreq() int64 {
	var min int64 = -1
	for freq := range c.buckets {
		if min < 0 || freq < min {
			min = freq
		}
	}
	return min
}

func (c *LFU) remove(key string, item *lfuItem) {
	c.removeFromBucket(item.freq, key)
	delete(c.items, key)
	c.bytes -= item.entry.Size
}

func (c *LFU) addToBucket(freq int64, key string) {
	bucket, ok := c.buckets[freq]
	if !ok {
		bucket = make(map[string]struct{})
		c.buckets[freq] = bucket
	}
	bucket[key] = struct{}{}
}

func (c *LFU) removeFromBucket(freq int64, key string) {
	if bucket, ok := c.buckets[freq]; ok {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(c.buckets, freq)
		}
	}
}
