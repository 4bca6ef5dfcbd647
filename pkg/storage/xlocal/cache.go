package xlocal

import (
	"iter"
	"time"
)

// Cache 是本地缓存的统一接口，由 *Engine 和 *Noop 实现。
//
// 需要关闭缓存的调用点只需把实现替换为 Noop，无需分支判断。
type Cache[K comparable, V any] interface {
	// Put 写入或替换条目，使用缓存级默认 TTL。
	// 缓存已满且 key 不存在时，先按淘汰策略腾出空间。
	Put(key K, value V)

	// PutWithTTL 写入或替换条目。ttl > 0 时覆盖默认 TTL，0 或负数表示使用默认 TTL。
	PutWithTTL(key K, value V, ttl time.Duration)

	// Get 读取条目并刷新访问时间。命中计入 Hits，不存在或已过期计入 Misses，
	// 已过期的条目在返回前被移除。
	Get(key K) (V, bool)

	// GetWithRefresh 与 Get 相同，refresh 为 false 时不刷新访问时间（访问次数仍累加）。
	GetWithRefresh(key K, refresh bool) (V, bool)

	// GetOrLoad 读取条目，未命中时调用 loader 加载并写入。
	// 同一 key 并发未命中时只有一次 loader 调用的结果会被写入并返回给所有调用者。
	// loader 返回的错误原样返回，缓存不写入任何内容。
	GetOrLoad(key K, loader func() (V, error)) (V, error)

	// GetOrLoadWithTTL 与 GetOrLoad 相同，加载结果使用指定 TTL。
	GetOrLoadWithTTL(key K, ttl time.Duration, loader func() (V, error)) (V, error)

	// Contains 报告 key 是否存在且未过期。不影响计数和访问时间，但会移除发现的过期条目。
	Contains(key K) bool

	// Remove 删除条目，返回 key 是否存在。不影响计数，删除不存在的 key 是空操作。
	Remove(key K) bool

	// Clear 删除所有条目。
	Clear()

	// Prune 按淘汰策略清理，返回移除的条目数。
	Prune() int

	// Len 返回当前条目数，可能包含尚未被发现的过期条目。
	Len() int

	// IsEmpty 报告缓存是否为空。
	IsEmpty() bool

	// IsFull 报告缓存是否已达到容量上限。容量为 0 时总是 false。
	IsFull() bool

	// Capacity 返回容量上限，0 表示不限制。
	Capacity() int

	// DefaultTTL 返回缓存级默认 TTL。
	DefaultTTL() time.Duration

	// Hits 返回命中次数。
	Hits() uint64

	// Misses 返回未命中次数。
	Misses() uint64

	// Stats 返回统计快照。
	Stats() Stats

	// Iterator 返回当前条目的快照迭代器，迭代时跳过过期条目。
	Iterator() *Iterator[K, V]

	// All 返回当前条目快照的 range-over-func 序列。
	All() iter.Seq2[K, V]

	// Keys 返回未过期条目的 key 快照，按淘汰顺序从旧到新排列。
	Keys() []K

	// Close 停止定时清理并清空缓存。幂等。
	Close() error
}

// Stats 是缓存统计快照。
type Stats struct {
	// Hits 命中次数。
	Hits uint64
	// Misses 未命中次数。
	Misses uint64
	// HitRatio 命中率 (0.0 - 1.0)，没有任何读取时为 0。
	HitRatio float64
	// Size 当前条目数。
	Size int
	// Capacity 容量上限，0 表示不限制。
	Capacity int
	// Evictions 因容量被淘汰的条目数。
	Evictions uint64
	// Expirations 因过期或 GC 回收被移除的条目数。
	Expirations uint64
	// Guard 乐观读统计。
	Guard GuardStats
}

func hitRatio(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
