package policy

import (
	"container/list"
	"time"

	"github.com/tiercache/tiercache/pkg/types"
)

// LRU is a bounded map with least-recently-used eviction. Recency order is
// kept in a doubly linked list with move-to-front on every touch, so get,
// put and remove are O(1).
//
// LRU is not internally synchronized; the owning tier serializes access.
type LRU struct {
	capacity  int
	items     map[string]*list.Element
	evictList *list.List
	bytes     int64

	now func() time.Time
}

type lruEntry struct {
	key   string
	entry *types.Entry
}

// NewLRU creates an LRU policy holding at most capacity entries.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		now:       time.Now,
	}
}

// Get returns the entry for key and marks it most recently used. Expired
// entries are dropped and reported as absent.
func (c *LRU) Get(key string) (*types.Entry, bool) {
	element, ok := c.items[key]
	if !ok {
		return nil, false
	}

	ent := element.Value.(*lruEntry).entry
	now := c.now()
	if ent.Expired(now) {
		c.removeElement(element)
		return nil, false
	}

	ent.Touch(now)
	c.evictList.MoveToFront(element)
	return ent, true
}

// Put inserts or replaces the entry and returns the evicted entry, if any.
// Replacing an existing key counts as a touch.
func (c *LRU) Put(key string, entry *types.Entry) *types.Entry {
	if element, ok := c.items[key]; ok {
		held := element.Value.(*lruEntry)
		c.bytes += entry.Size - held.entry.Size
		held.entry = entry
		c.evictList.MoveToFront(element)
		return nil
	}

	var evicted *types.Entry
	if c.evictList.Len() >= c.capacity {
		evicted = c.evictOldest()
	}

	element := c.evictList.PushFront(&lruEntry{key: key, entry: entry})
	c.items[key] = element
	c.bytes += entry.Size
	return evicted
}

// Remove deletes the key and reports whether it was present.
func (c *LRU) Remove(key string) bool {
	element, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(element)
	return true
}

// Clear drops all entries.
func (c *LRU) Clear() {
	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.bytes = 0
}

// Len returns the current entry count.
func (c *LRU) Len() int {
	return len(c.items)
}

// Bytes returns the summed payload size of resident entries.
func (c *LRU) Bytes() int64 {
	return c.bytes
}

// Keys returns the current key set, most recently used first.
func (c *LRU) Keys() []string {
	keys := make([]string, 0, len(c.items))
	for element := c.evictList.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*lruEntry).key)
	}
	return keys
}

func (c *LRU) evictOldest() *types.Entry {
	element := c.evictList.Back()
	if element == nil {
		return nil
	}
	ent := element.Value.(*lruEntry).entry
	c.removeElement(element)
	return ent
}

func (c *LRU) removeElement(element *list.Element) {
	held := element.Value.(*lruEntry)
	c.evictList.Remove(element)
	delete(c.items, held.key)
	c.bytes -= held.entry.Size
}
