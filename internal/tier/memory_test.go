package tier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiercache/tiercache/internal/policy"
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// recordingMonitor captures monitor calls for assertions.
type recordingMonitor struct {
	mu        sync.Mutex
	hits      map[string]int
	misses    map[string]int
	evictions map[string]int
	entries   map[string]int
	bytes     map[string]int64
}

func newRecordingMonitor() *recordingMonitor {
	return &recordingMonitor{
		hits:      make(map[string]int),
		misses:    make(map[string]int),
		evictions: make(map[string]int),
		entries:   make(map[string]int),
		bytes:     make(map[string]int64),
	}
}

func (r *recordingMonitor) RecordHit(tier string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits[tier]++
}

func (r *recordingMonitor) RecordMiss(tier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses[tier]++
}

func (r *recordingMonitor) RecordEviction(tier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictions[tier]++
}

func (r *recordingMonitor) UpdateSize(tier string, entries int, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[tier] = entries
	r.bytes[tier] = bytes
}

func (r *recordingMonitor) evictionCount(tier string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictions[tier]
}

func TestMemory_RoundTrip(t *testing.T) {
	mon := newRecordingMonitor()
	m, err := NewMemory(MemoryConfig{Strategy: policy.StrategyLRU, MaxSize: 8}, mon, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	payload := []byte("serialized payload")
	require.NoError(t, m.Put(ctx, "k", types.NewEntry("k", payload, "bytes", 0)))

	entry, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, payload, entry.Value)
	assert.Equal(t, int64(1), entry.AccessCount)

	_, err = m.Get(ctx, "absent")
	assert.True(t, errors.IsNotFound(err))
}

func TestMemory_CallersCannotMutateCachedState(t *testing.T) {
	m, err := NewMemory(MemoryConfig{Strategy: policy.StrategyLRU, MaxSize: 8}, nil, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	original := types.NewEntry("k", []byte("abc"), "bytes", 0)
	require.NoError(t, m.Put(ctx, "k", original))

	// Mutating the entry after Put must not affect the tier's copy.
	original.Value[0] = 'X'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got.Value)

	// Mutating the returned entry must not affect the next read.
	got.Value[1] = 'Y'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again.Value)
}

func TestMemory_EvictionReported(t *testing.T) {
	mon := newRecordingMonitor()
	m, err := NewMemory(MemoryConfig{Strategy: policy.StrategyLRU, MaxSize: 2}, mon, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, m.Put(ctx, key, types.NewEntry(key, []byte(key), "bytes", 0)))
	}

	assert.Equal(t, 1, mon.evictionCount(MemoryName))
	assert.Equal(t, 2, m.Len())
}

func TestMemory_TTLExpiry(t *testing.T) {
	m, err := NewMemory(MemoryConfig{Strategy: policy.StrategyLRU, MaxSize: 8}, nil, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	entry := types.NewEntry("k", []byte("v"), "bytes", 30*time.Millisecond)
	require.NoError(t, m.Put(ctx, "k", entry))

	time.Sleep(60 * time.Millisecond)

	_, err = m.Get(ctx, "k")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 0, m.Len(), "expired entry must not count toward size")
}

func TestMemory_RemoveIdempotent(t *testing.T) {
	m, err := NewMemory(MemoryConfig{Strategy: policy.StrategyLFU, MaxSize: 8}, nil, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "k", types.NewEntry("k", []byte("v"), "bytes", 0)))

	removed, err := m.Remove(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = m.Remove(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed, "remove of an absent key is a no-op")
}

func TestMemory_Clear(t *testing.T) {
	m, err := NewMemory(MemoryConfig{Strategy: policy.StrategyAdaptive, MaxSize: 8}, nil, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, m.Put(ctx, key, types.NewEntry(key, []byte(key), "bytes", 0)))
	}
	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, 0, m.Len())
}

func TestMemory_ClosedTierFails(t *testing.T) {
	m, err := NewMemory(MemoryConfig{Strategy: policy.StrategyLRU, MaxSize: 8}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	ctx := context.Background()
	err = m.Put(ctx, "k", types.NewEntry("k", []byte("v"), "bytes", 0))
	assert.Equal(t, errors.ErrCodeClosed, errors.CodeOf(err))
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m, err := NewMemory(MemoryConfig{Strategy: policy.StrategyLRU, MaxSize: 64}, nil, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%4))
			for j := 0; j < 100; j++ {
				_ = m.Put(ctx, key, types.NewEntry(key, []byte("v"), "bytes", 0))
				_, _ = m.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 4)
}

func TestMemory_InvalidConfig(t *testing.T) {
	_, err := NewMemory(MemoryConfig{Strategy: policy.StrategyLRU, MaxSize: 0}, nil, nil)
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))

	_, err = NewMemory(MemoryConfig{Strategy: "mru", MaxSize: 4}, nil, nil)
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
}
