package xlocal

import (
	"bytes"
	"log/slog"
	"sync"
	"time"
)

// fakeClock 是可手动推进的时钟。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type removedEvent[K comparable, V any] struct {
	key   K
	value V
	cause RemovalCause
}

// removals 收集移除回调。
type removals[K comparable, V any] struct {
	mu     sync.Mutex
	events []removedEvent[K, V]
}

func (r *removals[K, V]) listener() RemovalListener[K, V] {
	return func(key K, value V, cause RemovalCause) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, removedEvent[K, V]{key: key, value: value, cause: cause})
	}
}

func (r *removals[K, V]) snapshot() []removedEvent[K, V] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]removedEvent[K, V](nil), r.events...)
}

func (r *removals[K, V]) keys() []K {
	var out []K
	for _, e := range r.snapshot() {
		out = append(out, e.key)
	}
	return out
}

// syncBuffer 是并发安全的日志缓冲区。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// allGuards 返回所有保护方式，用于表驱动测试。
func allGuards() []Guard {
	return []Guard{RWGuard{}, MutexGuard{}, OptimisticGuard{}}
}

func reorderingGuards() []ReorderingGuard {
	return []ReorderingGuard{MutexGuard{}, OptimisticGuard{}}
}
