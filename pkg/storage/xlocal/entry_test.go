package xlocal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntry_EffectiveTTL(t *testing.T) {
	e := newEntry("k", 1, 0, 0)
	assert.Equal(t, time.Minute, e.effectiveTTL(time.Minute))

	e = newEntry("k", 1, time.Second, 0)
	assert.Equal(t, time.Second, e.effectiveTTL(time.Minute))
}

func TestEntry_IsExpired(t *testing.T) {
	const start = int64(1_000)
	ttl := 10 * time.Nanosecond

	tests := []struct {
		name    string
		ttl     time.Duration
		def     time.Duration
		now     int64
		expired bool
	}{
		{"no ttl", 0, 0, math.MaxInt64, false},
		{"before deadline", ttl, 0, start + 9, false},
		{"at deadline", ttl, 0, start + 10, true},
		{"after deadline", ttl, 0, start + 11, true},
		{"default ttl applies", 0, ttl, start + 10, true},
		{"own ttl wins", time.Hour, ttl, start + 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEntry("k", 1, tt.ttl, start)
			assert.Equal(t, tt.expired, e.isExpired(tt.now, tt.def))
		})
	}
}

func TestEntry_DeadlineSaturates(t *testing.T) {
	e := newEntry("k", 1, time.Duration(math.MaxInt64), time.Now().UnixNano())
	assert.Equal(t, int64(math.MaxInt64), e.deadline(0))
	assert.False(t, e.isExpired(math.MaxInt64-1, 0))

	never := newEntry("k", 1, 0, 0)
	assert.Equal(t, int64(math.MaxInt64), never.deadline(0))
}

func TestEntry_Touch(t *testing.T) {
	e := newEntry("k", 1, 0, 100)

	e.touch(200, false)
	assert.Equal(t, int64(100), e.lastAccess.Load())
	assert.Equal(t, int64(1), e.accessCount.Load())

	e.touch(300, true)
	assert.Equal(t, int64(300), e.lastAccess.Load())
	assert.Equal(t, int64(2), e.accessCount.Load())
}

func TestEntry_Snapshot(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	e := newEntry("k", 7, time.Minute, now.UnixNano())
	e.touch(now.UnixNano(), true)

	s := e.snapshot(7, 0)
	assert.Equal(t, "k", s.Key)
	assert.Equal(t, 7, s.Value)
	assert.Equal(t, time.Minute, s.TTL)
	assert.Equal(t, int64(1), s.AccessCount)
	assert.True(t, s.LastAccess.Equal(now))
	assert.True(t, s.ExpiresAt().Equal(now.Add(time.Minute)))

	assert.True(t, Entry[string, int]{}.ExpiresAt().IsZero())
}

func TestEntry_LoadStrong(t *testing.T) {
	e := newEntry("k", "v", 0, 0)
	v, ok := e.load()
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, "v", e.peekValue())

	// 非弱引用条目的 release 是空操作
	e.release()
	assert.False(t, e.tracked)
}
