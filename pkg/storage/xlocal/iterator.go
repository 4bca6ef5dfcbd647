package xlocal

import (
	"iter"
	"time"
)

// Iterator 遍历某一时刻的条目快照，跳过已过期或已被回收的条目。
//
// 快照在锁内复制，迭代本身不持有任何锁，缓存的并发修改不会影响迭代，也不会报错。
// 迭代器不会删除过期条目，清理交给后续读取或 Prune。
// Iterator 不是并发安全的，应由单个 goroutine 使用。
type Iterator[K comparable, V any] struct {
	entries    []*entry[K, V]
	pos        int
	now        func() int64
	defaultTTL time.Duration

	next    Entry[K, V]
	hasNext bool
	scanned bool
}

func newIterator[K comparable, V any](entries []*entry[K, V], now func() int64, defaultTTL time.Duration) *Iterator[K, V] {
	return &Iterator[K, V]{
		entries:    entries,
		now:        now,
		defaultTTL: defaultTTL,
	}
}

// advance 向前扫描到下一个存活条目。
func (it *Iterator[K, V]) advance() {
	it.scanned = true
	it.hasNext = false
	for it.pos < len(it.entries) {
		e := it.entries[it.pos]
		it.pos++
		v, alive := e.load()
		if !alive || e.isExpired(it.now(), it.defaultTTL) {
			continue
		}
		it.next = e.snapshot(v, it.defaultTTL)
		it.hasNext = true
		return
	}
	var zero Entry[K, V]
	it.next = zero
}

// HasNext 报告是否还有未过期的条目。
func (it *Iterator[K, V]) HasNext() bool {
	if !it.scanned {
		it.advance()
	}
	return it.hasNext
}

// Next 返回下一个未过期的条目。耗尽时返回 ErrEndOfSequence。
func (it *Iterator[K, V]) Next() (Entry[K, V], error) {
	if !it.HasNext() {
		return Entry[K, V]{}, ErrEndOfSequence
	}
	out := it.next
	it.scanned = false
	return out, nil
}

// Remove 不受支持，总是返回 ErrUnsupportedOperation。
// 删除条目请调用缓存的 Remove。
func (it *Iterator[K, V]) Remove() error {
	return ErrUnsupportedOperation
}

// Seq 将迭代器转换为 range-over-func 序列。
func (it *Iterator[K, V]) Seq() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for it.HasNext() {
			e, err := it.Next()
			if err != nil {
				return
			}
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// emptyIterator 返回不含任何条目的迭代器。
func emptyIterator[K comparable, V any]() *Iterator[K, V] {
	return newIterator[K, V](nil, func() int64 { return 0 }, 0)
}
