package xlocal

import (
	"iter"
	"time"
)

// Noop 是关闭状态的缓存：Put 丢弃数据，Get 总是未命中，Len 总是 0。
// GetOrLoad 每次都调用 loader 并直接返回结果。
// 零值可用，所有方法并发安全且不记录任何统计。
type Noop[K comparable, V any] struct{}

// NewNoop 创建关闭状态的缓存。
func NewNoop[K comparable, V any]() *Noop[K, V] {
	return &Noop[K, V]{}
}

// Put 丢弃数据。
func (*Noop[K, V]) Put(K, V) {}

// PutWithTTL 丢弃数据。
func (*Noop[K, V]) PutWithTTL(K, V, time.Duration) {}

// Get 总是未命中。
func (*Noop[K, V]) Get(K) (V, bool) {
	var zero V
	return zero, false
}

// GetWithRefresh 总是未命中。
func (*Noop[K, V]) GetWithRefresh(K, bool) (V, bool) {
	var zero V
	return zero, false
}

// GetOrLoad 直接调用 loader。
func (n *Noop[K, V]) GetOrLoad(key K, loader func() (V, error)) (V, error) {
	return n.GetOrLoadWithTTL(key, 0, loader)
}

// GetOrLoadWithTTL 直接调用 loader。
func (*Noop[K, V]) GetOrLoadWithTTL(_ K, _ time.Duration, loader func() (V, error)) (V, error) {
	if loader == nil {
		var zero V
		return zero, ErrNilLoader
	}
	return loader()
}

// Contains 总是返回 false。
func (*Noop[K, V]) Contains(K) bool { return false }

// Remove 总是返回 false。
func (*Noop[K, V]) Remove(K) bool { return false }

// Clear 空操作。
func (*Noop[K, V]) Clear() {}

// Prune 总是返回 0。
func (*Noop[K, V]) Prune() int { return 0 }

// Len 总是返回 0。
func (*Noop[K, V]) Len() int { return 0 }

// IsEmpty 总是返回 true。
func (*Noop[K, V]) IsEmpty() bool { return true }

// IsFull 总是返回 false。
func (*Noop[K, V]) IsFull() bool { return false }

// Capacity 返回 0。
func (*Noop[K, V]) Capacity() int { return 0 }

// DefaultTTL 返回 0。
func (*Noop[K, V]) DefaultTTL() time.Duration { return 0 }

// Hits 返回 0。
func (*Noop[K, V]) Hits() uint64 { return 0 }

// Misses 返回 0。
func (*Noop[K, V]) Misses() uint64 { return 0 }

// Stats 返回零值。
func (*Noop[K, V]) Stats() Stats { return Stats{} }

// Iterator 返回空迭代器。
func (*Noop[K, V]) Iterator() *Iterator[K, V] { return emptyIterator[K, V]() }

// All 返回空序列。
func (*Noop[K, V]) All() iter.Seq2[K, V] {
	return func(func(K, V) bool) {}
}

// Keys 返回 nil。
func (*Noop[K, V]) Keys() []K { return nil }

// Close 空操作。
func (*Noop[K, V]) Close() error { return nil }

var _ Cache[string, int] = (*Noop[string, int])(nil)
