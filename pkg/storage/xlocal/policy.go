package xlocal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Policy 是淘汰策略。策略集合是封闭的，所有分支在 pruneWith/evictForPut 中显式匹配。
type Policy int

const (
	// PolicyFIFO 先进先出：清理过期条目后若仍满，淘汰最早插入的条目。读取不影响顺序。
	PolicyFIFO Policy = iota
	// PolicyLRU 最近最少使用：读取会把条目移到最新位置，插入超出容量时淘汰最久未访问的条目。
	// 由于读操作会修改底层结构，只能与 MutexGuard 或 OptimisticGuard 组合。
	PolicyLRU
	// PolicyLFU 最少使用频率：清理过期条目的同时记录最小访问次数，若仍满，
	// 所有条目的访问次数减去该最小值，降到 0 及以下的条目被淘汰。
	PolicyLFU
	// PolicyTimed 仅按时间过期，没有容量限制。
	PolicyTimed
	// PolicyWeak 与 PolicyTimed 相同，但值通过弱引用持有，被 GC 回收后条目自动移除。
	PolicyWeak
)

// String 返回策略名称。
func (p Policy) String() string {
	switch p {
	case PolicyFIFO:
		return "fifo"
	case PolicyLRU:
		return "lru"
	case PolicyLFU:
		return "lfu"
	case PolicyTimed:
		return "timed"
	case PolicyWeak:
		return "weak"
	default:
		return "Policy(" + strconv.Itoa(int(p)) + ")"
	}
}

// MarshalText 实现 encoding.TextMarshaler。
func (p Policy) MarshalText() ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，便于直接从配置反序列化。
func (p *Policy) UnmarshalText(data []byte) error {
	parsed, err := ParsePolicy(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePolicy 解析策略名称（大小写不敏感）。
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo":
		return PolicyFIFO, nil
	case "lru":
		return PolicyLRU, nil
	case "lfu":
		return PolicyLFU, nil
	case "timed", "ttl":
		return PolicyTimed, nil
	case "weak":
		return PolicyWeak, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

func (p Policy) valid() bool {
	return p >= PolicyFIFO && p <= PolicyWeak
}

// ReordersOnRead 报告读取是否会修改底层顺序。
func (p Policy) ReordersOnRead() bool {
	return p == PolicyLRU
}

// bounded 报告策略是否有容量限制。
func (p Policy) bounded() bool {
	return p == PolicyFIFO || p == PolicyLRU || p == PolicyLFU
}

// =============================================================================
// 策略执行
// =============================================================================

// RemovalCause 表示条目被移除的原因。
type RemovalCause int

const (
	// RemovalExplicit 显式调用 Remove。
	RemovalExplicit RemovalCause = iota
	// RemovalExpired 读取或清理时发现已过期。
	RemovalExpired
	// RemovalEvicted 为满足容量约束而淘汰。
	RemovalEvicted
	// RemovalCleared 调用 Clear 或 Close。
	RemovalCleared
	// RemovalCollected 弱引用值已被 GC 回收。
	RemovalCollected
)

// String 返回原因名称，同时用作指标的 reason 属性。
func (c RemovalCause) String() string {
	switch c {
	case RemovalExplicit:
		return "explicit"
	case RemovalExpired:
		return "expired"
	case RemovalEvicted:
		return "evicted"
	case RemovalCleared:
		return "cleared"
	case RemovalCollected:
		return "collected"
	default:
		return "RemovalCause(" + strconv.Itoa(int(c)) + ")"
	}
}

// removal 记录锁内移除的条目，释放锁后统一通知。
type removal[K comparable, V any] struct {
	e     *entry[K, V]
	cause RemovalCause
}

// scope 是策略在写锁内可见的状态。
type scope[K comparable, V any] struct {
	store      *store[K, V]
	capacity   int
	defaultTTL time.Duration
	expiring   bool // 是否可能存在过期条目
	weak       bool // 是否可能存在已回收条目
	now        int64
	removed    []removal[K, V]
}

func (sc *scope[K, V]) full() bool {
	return sc.capacity > 0 && sc.store.len() >= sc.capacity
}

func (sc *scope[K, V]) drop(e *entry[K, V], cause RemovalCause) {
	sc.store.remove(e.key)
	e.release()
	sc.removed = append(sc.removed, removal[K, V]{e: e, cause: cause})
}

// dead 判断条目是否过期或值已被回收，并给出对应的移除原因。
func (sc *scope[K, V]) dead(e *entry[K, V]) (RemovalCause, bool) {
	if _, alive := e.load(); !alive {
		return RemovalCollected, true
	}
	if sc.expiring && e.isExpired(sc.now, sc.defaultTTL) {
		return RemovalExpired, true
	}
	return 0, false
}

// sweep 移除所有过期或已回收的条目。
func (sc *scope[K, V]) sweep() {
	if !sc.expiring && !sc.weak {
		return
	}
	for _, e := range sc.store.entries() {
		if cause, ok := sc.dead(e); ok {
			sc.drop(e, cause)
		}
	}
}

// pruneWith 执行策略的清理逻辑，在写锁内调用。
func pruneWith[K comparable, V any](p Policy, sc *scope[K, V]) {
	switch p {
	case PolicyFIFO:
		sc.sweep()
		if sc.full() {
			if e, ok := sc.store.oldest(); ok {
				sc.drop(e, RemovalEvicted)
			}
		}
	case PolicyLRU:
		sc.sweep()
	case PolicyLFU:
		pruneLFU(sc)
	case PolicyTimed, PolicyWeak:
		sc.sweep()
	default:
		panic(fmt.Sprintf("xlocal: unhandled policy %v", p))
	}
}

// pruneLFU 清理过期条目并记录存活条目的最小访问次数；若仍满则再平衡：
// 所有条目减去最小访问次数，降到 0 及以下的条目被淘汰。
// 新插入的条目访问次数从 0 开始，再平衡让它们不会永远处于劣势。
func pruneLFU[K comparable, V any](sc *scope[K, V]) {
	minCount := int64(math.MaxInt64)
	for _, e := range sc.store.entries() {
		if cause, ok := sc.dead(e); ok {
			sc.drop(e, cause)
			continue
		}
		if c := e.accessCount.Load(); c < minCount {
			minCount = c
		}
	}
	if !sc.full() || minCount == math.MaxInt64 {
		return
	}
	for _, e := range sc.store.entries() {
		if e.accessCount.Add(-minCount) <= 0 {
			sc.drop(e, RemovalEvicted)
		}
	}
}

// evictForPut 在插入新 key 前为其腾出空间。调用后 store.len() < capacity。
func evictForPut[K comparable, V any](p Policy, sc *scope[K, V]) {
	if !sc.full() {
		return
	}
	pruneWith(p, sc)
	// LRU 的 prune 只清理过期条目；其余策略在仍满时已经淘汰过，这里兜底保证容量不变量。
	for sc.full() {
		e, ok := sc.store.oldest()
		if !ok {
			return
		}
		sc.drop(e, RemovalEvicted)
	}
}
