package xlocal

import (
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// store 是有序的底层存储，基于 simplelru.LRU。
//
// 链表顺序即淘汰顺序：最旧在前。LRU 策略读取时调用 Get 把条目移到最新位置，
// 其他策略只用 Peek，链表保持插入顺序，正好满足 FIFO 的要求。
// Peek/Contains/Len/Keys/Values 只读不写，可以在共享读锁下并发调用。
//
// 容量控制由策略负责，底层 LRU 的 size 设为 math.MaxInt，不会自行淘汰。
type store[K comparable, V any] struct {
	lru     *simplelru.LRU[K, *entry[K, V]]
	reorder bool
}

func newStore[K comparable, V any](reorder bool) *store[K, V] {
	lru, err := simplelru.NewLRU[K, *entry[K, V]](math.MaxInt, nil)
	if err != nil {
		// size 为正数时 NewLRU 不会返回错误
		panic(err)
	}
	return &store[K, V]{lru: lru, reorder: reorder}
}

// lookup 查找条目。reorder 为 true 时会改变链表顺序，调用方必须持有写锁。
func (s *store[K, V]) lookup(key K) (*entry[K, V], bool) {
	if s.reorder {
		return s.lru.Get(key)
	}
	return s.lru.Peek(key)
}

// peek 查找条目且不改变顺序。
func (s *store[K, V]) peek(key K) (*entry[K, V], bool) {
	return s.lru.Peek(key)
}

// add 安装条目。已存在的 key 会被替换并移到最新位置。
func (s *store[K, V]) add(e *entry[K, V]) {
	s.lru.Add(e.key, e)
}

func (s *store[K, V]) remove(key K) {
	s.lru.Remove(key)
}

// oldest 返回最旧的条目。
func (s *store[K, V]) oldest() (*entry[K, V], bool) {
	_, e, ok := s.lru.GetOldest()
	return e, ok
}

func (s *store[K, V]) len() int {
	return s.lru.Len()
}

// entries 按最旧到最新的顺序返回条目切片（新分配）。
func (s *store[K, V]) entries() []*entry[K, V] {
	return s.lru.Values()
}

// purge 清空并返回被清除的条目。
func (s *store[K, V]) purge() []*entry[K, V] {
	all := s.lru.Values()
	s.lru.Purge()
	return all
}
