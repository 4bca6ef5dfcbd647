package xlocal

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"
)

// entry 是缓存条目。key 在创建后不可变，value 在条目生命周期内不被替换；
// Put 同一 key 会安装新条目而不是修改旧条目，因此快照迭代器持有的条目不会看到新值。
//
// lastAccess 和 accessCount 使用原子操作：RWGuard 的共享读锁下多个读者会同时刷新它们。
type entry[K comparable, V any] struct {
	key   K
	value V
	ttl   time.Duration // 0 表示使用缓存级默认 TTL

	// weak 非 nil 时 value 字段不使用，值通过弱引用获取。
	weak    func() (V, bool)
	cleanup runtime.Cleanup
	tracked bool // cleanup 已注册

	lastAccess  atomic.Int64 // UnixNano
	accessCount atomic.Int64 // 仅 LFU 使用，再平衡时可能被减到 0 以下
}

func newEntry[K comparable, V any](key K, value V, ttl time.Duration, now int64) *entry[K, V] {
	e := &entry[K, V]{key: key, value: value, ttl: ttl}
	e.lastAccess.Store(now)
	return e
}

// load 返回条目的值。弱引用值已被回收时返回 false。
func (e *entry[K, V]) load() (V, bool) {
	if e.weak == nil {
		return e.value, true
	}
	return e.weak()
}

// peekValue 返回值，弱引用已回收时返回零值。
func (e *entry[K, V]) peekValue() V {
	v, _ := e.load()
	return v
}

// effectiveTTL 返回条目实际生效的 TTL。
func (e *entry[K, V]) effectiveTTL(defaultTTL time.Duration) time.Duration {
	if e.ttl != 0 {
		return e.ttl
	}
	return defaultTTL
}

// deadline 返回过期时刻（UnixNano）。溢出时饱和到 math.MaxInt64，
// 避免超大 TTL 在回绕后看起来已经过期。永不过期返回 math.MaxInt64。
func (e *entry[K, V]) deadline(defaultTTL time.Duration) int64 {
	ttl := e.effectiveTTL(defaultTTL)
	if ttl <= 0 {
		return math.MaxInt64
	}
	last := e.lastAccess.Load()
	if last > math.MaxInt64-int64(ttl) {
		return math.MaxInt64
	}
	return last + int64(ttl)
}

// isExpired 判断条目在 now 时刻是否过期：ttl > 0 且 lastAccess + ttl <= now。
func (e *entry[K, V]) isExpired(now int64, defaultTTL time.Duration) bool {
	if e.effectiveTTL(defaultTTL) <= 0 {
		return false
	}
	return e.deadline(defaultTTL) <= now
}

// touch 记录一次成功读取。refresh 为 false 时只累加访问次数，不刷新访问时间。
func (e *entry[K, V]) touch(now int64, refresh bool) {
	if refresh {
		e.lastAccess.Store(now)
	}
	e.accessCount.Add(1)
}

// release 取消弱引用条目的回收回调。条目离开缓存后调用。
func (e *entry[K, V]) release() {
	if e.tracked {
		e.cleanup.Stop()
		e.tracked = false
	}
}

// Entry 是条目的只读副本，由快照迭代器返回。
type Entry[K comparable, V any] struct {
	Key   K
	Value V

	// TTL 是条目实际生效的 TTL，0 表示永不过期。
	TTL time.Duration

	// LastAccess 是最后一次刷新访问时间的时刻。
	LastAccess time.Time

	// AccessCount 是累计成功读取次数（LFU 再平衡后的值）。
	AccessCount int64
}

// ExpiresAt 返回过期时刻；永不过期返回零值。
func (e Entry[K, V]) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.LastAccess.Add(e.TTL)
}

func (e *entry[K, V]) snapshot(value V, defaultTTL time.Duration) Entry[K, V] {
	ttl := e.effectiveTTL(defaultTTL)
	if ttl < 0 {
		ttl = 0
	}
	return Entry[K, V]{
		Key:         e.key,
		Value:       value,
		TTL:         ttl,
		LastAccess:  time.Unix(0, e.lastAccess.Load()),
		AccessCount: e.accessCount.Load(),
	}
}
