package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntry_Expired(t *testing.T) {
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	entry := NewEntry("k", []byte("v"), "bytes", time.Minute)
	entry.CreatedAt = base

	assert.False(t, entry.Expired(base))
	assert.False(t, entry.Expired(base.Add(time.Minute)), "expiry is strict, not inclusive")
	assert.True(t, entry.Expired(base.Add(time.Minute+time.Nanosecond)))

	forever := NewEntry("k", []byte("v"), "bytes", 0)
	forever.CreatedAt = base
	assert.False(t, forever.Expired(base.Add(100*365*24*time.Hour)))
}

func TestEntry_Touch(t *testing.T) {
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	entry := NewEntry("k", []byte("v"), "bytes", 0)
	entry.LastAccessed = base

	entry.Touch(base.Add(time.Second))
	assert.Equal(t, int64(1), entry.AccessCount)
	assert.Equal(t, base.Add(time.Second), entry.LastAccessed)

	// A touch with an older clock still counts but does not move time back.
	entry.Touch(base)
	assert.Equal(t, int64(2), entry.AccessCount)
	assert.Equal(t, base.Add(time.Second), entry.LastAccessed)
}

func TestEntry_Clone(t *testing.T) {
	entry := NewEntry("k", []byte("original"), "bytes", time.Minute)

	clone := entry.Clone()
	clone.Value[0] = 'X'
	clone.AccessCount = 99

	assert.Equal(t, []byte("original"), entry.Value)
	assert.Equal(t, int64(0), entry.AccessCount)
}

func TestEntry_Size(t *testing.T) {
	entry := NewEntry("k", []byte("12345"), "bytes", 0)
	assert.Equal(t, int64(5), entry.Size)
}

func TestTierStats_RunningMean(t *testing.T) {
	var s TierStats

	s.RecordHit(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, s.AvgAccessTime)

	s.RecordHit(20 * time.Millisecond)
	assert.Equal(t, 15*time.Millisecond, s.AvgAccessTime)

	s.RecordHit(30 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, s.AvgAccessTime)
}

func TestTierStats_HitRate(t *testing.T) {
	var s TierStats
	assert.Equal(t, 0.0, s.HitRate)

	s.RecordHit(time.Millisecond)
	assert.Equal(t, 1.0, s.HitRate)

	s.RecordMiss()
	s.RecordMiss()
	s.RecordMiss()
	assert.Equal(t, 0.25, s.HitRate)
}
