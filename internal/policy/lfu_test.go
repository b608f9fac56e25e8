package policy

import (
	"testing"
	"time"

	"github.com/tiercache/tiercache/pkg/types"
)

func TestLFU_EvictionOrder(t *testing.T) {
	cache := NewLFU(2)

	cache.Put("a", newTestEntry("a", "1"))
	cache.Put("b", newTestEntry("b", "2"))

	// a reaches frequency 3, b stays at 1.
	cache.Get("a")
	cache.Get("a")

	evicted := cache.Put("c", newTestEntry("c", "3"))
	if evicted == nil {
		t.Fatal("expected an eviction at capacity")
	}
	if evicted.Key != "b" {
		t.Errorf("expected lowest-frequency key b evicted, got %s", evicted.Key)
	}

	if _, ok := cache.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestLFU_FrequencyAccounting(t *testing.T) {
	cache := NewLFU(4)

	cache.Put("a", newTestEntry("a", "1"))
	if freq := cache.Freq("a"); freq != 1 {
		t.Errorf("expected initial frequency 1, got %d", freq)
	}

	cache.Get("a")
	if freq := cache.Freq("a"); freq != 2 {
		t.Errorf("expected frequency 2 after get, got %d", freq)
	}

	// Put of an existing key also bumps frequency.
	cache.Put("a", newTestEntry("a", "1b"))
	if freq := cache.Freq("a"); freq != 3 {
		t.Errorf("expected frequency 3 after replace, got %d", freq)
	}

	entry, ok := cache.Get("a")
	if !ok || string(entry.Value) != "1b" {
		t.Errorf("expected replaced value, got %v", entry)
	}
}

func TestLFU_MinFreqRecomputation(t *testing.T) {
	cache := NewLFU(2)

	cache.Put("a", newTestEntry("a", "1"))
	cache.Put("b", newTestEntry("b", "2"))
	cache.Get("a")
	cache.Get("b")

	// Both at frequency 2; evicting drains the only occupied bucket and
	// forces the lazy minimum rescan on the next eviction.
	cache.Put("c", newTestEntry("c", "3"))
	if cache.Len() != 2 {
		t.Fatalf("expected len 2, got %d", cache.Len())
	}

	cache.Put("d", newTestEntry("d", "4"))
	if cache.Len() != 2 {
		t.Fatalf("expected len 2 after second eviction, got %d", cache.Len())
	}
	if _, ok := cache.Get("d"); !ok {
		t.Error("expected most recent insert to be present")
	}
}

func TestLFU_TTLExpiry(t *testing.T) {
	cache := NewLFU(4)
	base := time.Now()
	cache.now = func() time.Time { return base }

	cache.Put("k", types.NewEntry("k", []byte("v"), "string", time.Second))

	cache.now = func() time.Time { return base.Add(2 * time.Second) }

	if _, ok := cache.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry must not count toward size, len=%d", cache.Len())
	}
}

func TestLFU_RemoveClear(t *testing.T) {
	cache := NewLFU(4)

	cache.Put("a", newTestEntry("a", "1"))
	cache.Get("a")

	if !cache.Remove("a") {
		t.Error("expected remove to report presence")
	}
	if cache.Remove("a") {
		t.Error("expected second remove to be a no-op")
	}

	cache.Put("x", newTestEntry("x", "1"))
	cache.Put("y", newTestEntry("y", "2"))
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("expected empty cache after clear, len=%d", cache.Len())
	}
	if freq := cache.Freq("x"); freq != 0 {
		t.Errorf("expected no frequency after clear, got %d", freq)
	}
}
