package xlocal

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// GuardKind 标识并发保护方式，用于配置和日志。
type GuardKind int

const (
	// GuardRW 读写锁：纯读操作走共享锁，写操作走独占锁。
	GuardRW GuardKind = iota
	// GuardMutex 互斥锁：所有操作都走独占锁。
	GuardMutex
	// GuardOptimistic 乐观读：读操作先尝试非阻塞获取并校验写版本号，失败再退化为共享锁。
	GuardOptimistic
)

// String 返回保护方式名称。
func (k GuardKind) String() string {
	switch k {
	case GuardRW:
		return "rw"
	case GuardMutex:
		return "mutex"
	case GuardOptimistic:
		return "optimistic"
	default:
		return "GuardKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// MarshalText 实现 encoding.TextMarshaler。
func (k GuardKind) MarshalText() ([]byte, error) {
	if k < GuardRW || k > GuardOptimistic {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGuard, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler。
func (k *GuardKind) UnmarshalText(data []byte) error {
	parsed, err := ParseGuardKind(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseGuardKind 解析保护方式名称（大小写不敏感）。
func ParseGuardKind(s string) (GuardKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rw", "rwlock", "rwmutex":
		return GuardRW, nil
	case "mutex", "exclusive":
		return GuardMutex, nil
	case "optimistic", "stamped":
		return GuardOptimistic, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownGuard, s)
	}
}

// =============================================================================
// 选择器
// =============================================================================

// Guard 选择缓存使用的并发保护方式。每个 Engine 持有自己的锁实例，
// 选择器本身是零大小的值，可以随意复制。
//
// 集合是封闭的：只有 RWGuard、MutexGuard、OptimisticGuard 实现此接口。
type Guard interface {
	// Kind 返回保护方式。
	Kind() GuardKind

	newGuard() guard
}

// ReorderingGuard 是能够保护"会修改底层顺序的读操作"的 Guard。
// NewLRU 只接受此接口，因此 LRU 与 RWGuard 的组合在编译期即被拒绝。
type ReorderingGuard interface {
	Guard

	reorderingReads()
}

// RWGuard 选择读写锁。只适用于读操作不修改底层结构的策略（FIFO、LFU、Timed、Weak）。
type RWGuard struct{}

// Kind 返回 GuardRW。
func (RWGuard) Kind() GuardKind { return GuardRW }

func (RWGuard) newGuard() guard { return &rwGuard{} }

// MutexGuard 选择互斥锁，适用于所有策略。
type MutexGuard struct{}

// Kind 返回 GuardMutex。
func (MutexGuard) Kind() GuardKind { return GuardMutex }

func (MutexGuard) newGuard() guard { return &mutexGuard{} }

func (MutexGuard) reorderingReads() {}

// OptimisticGuard 选择乐观读保护，适用于写少读多的场景。
// 与 LRU 组合时，会修改顺序的读操作走独占锁，其余读操作仍走乐观路径。
type OptimisticGuard struct{}

// Kind 返回 GuardOptimistic。
func (OptimisticGuard) Kind() GuardKind { return GuardOptimistic }

func (OptimisticGuard) newGuard() guard { return &optimisticGuard{} }

func (OptimisticGuard) reorderingReads() {}

// guardFor 返回 kind 对应的选择器。
func guardFor(kind GuardKind) (Guard, error) {
	switch kind {
	case GuardRW:
		return RWGuard{}, nil
	case GuardMutex:
		return MutexGuard{}, nil
	case GuardOptimistic:
		return OptimisticGuard{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownGuard, int(kind))
	}
}

// =============================================================================
// 锁实现
// =============================================================================

// GuardStats 是乐观读的统计信息。其他保护方式的计数恒为 0。
type GuardStats struct {
	// OptimisticReads 乐观路径成功的读次数。
	OptimisticReads uint64
	// Fallbacks 乐观路径失败后退化为阻塞共享锁的次数。
	Fallbacks uint64
}

// guard 是锁的内部契约。read 的回调不得修改 store；write 的回调独占访问。
// 两者在实例已毒化时不执行回调，直接返回 ErrPoisoned。
type guard interface {
	read(fn func()) error
	write(fn func()) error
	poisoned() bool
	stats() GuardStats
	onPoison(fn func())
}

// poison 记录写临界区内的 panic。
//
// Go 的锁不会像某些运行时那样在持锁 panic 后自动毒化；写操作可能只完成了一半，
// 此后继续服务会破坏容量或过期约束，所以一旦发生就永久拒绝后续操作。
type poison struct {
	flag atomic.Bool
	hook func()
}

func (p *poison) poisoned() bool { return p.flag.Load() }

// onPoison 设置毒化时的回调，只能在构造期间调用。
func (p *poison) onPoison(fn func()) { p.hook = fn }

// run 执行写回调，回调 panic 时标记毒化并继续向上传播 panic。
func (p *poison) run(fn func()) {
	completed := false
	defer func() {
		if !completed && p.flag.CompareAndSwap(false, true) && p.hook != nil {
			p.hook()
		}
	}()
	fn()
	completed = true
}

type rwGuard struct {
	mu sync.RWMutex
	poison
}

func (g *rwGuard) read(fn func()) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.poisoned() {
		return ErrPoisoned
	}
	fn()
	return nil
}

func (g *rwGuard) write(fn func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.poisoned() {
		return ErrPoisoned
	}
	g.run(fn)
	return nil
}

func (g *rwGuard) stats() GuardStats { return GuardStats{} }

type mutexGuard struct {
	mu sync.Mutex
	poison
}

func (g *mutexGuard) read(fn func()) error {
	return g.write(fn)
}

func (g *mutexGuard) write(fn func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.poisoned() {
		return ErrPoisoned
	}
	g.run(fn)
	return nil
}

func (g *mutexGuard) stats() GuardStats { return GuardStats{} }

// optimisticGuard 用写版本号实现乐观读。
//
// stamp 在写者进入临界区时加一（变为奇数），离开时再加一（变回偶数）。
// 读者先记录 stamp，若为偶数则用 TryRLock 非阻塞地进入，并确认 stamp 未变化；
// 否则说明有写者正在或刚刚修改过结构，退化为阻塞的 RLock。
//
// Go 的内存模型不允许在无同步的情况下读取正在被写入的 map，因此乐观路径
// 仍然要拿到共享锁，只是不会排队等待，也不会阻塞其他读者。
type optimisticGuard struct {
	mu    sync.RWMutex
	stamp atomic.Uint64
	poison

	optimistic atomic.Uint64
	fallbacks  atomic.Uint64
}

func (g *optimisticGuard) read(fn func()) error {
	if s := g.stamp.Load(); s&1 == 0 && g.mu.TryRLock() {
		if g.stamp.Load() == s {
			defer g.mu.RUnlock()
			if g.poisoned() {
				return ErrPoisoned
			}
			g.optimistic.Add(1)
			fn()
			return nil
		}
		g.mu.RUnlock()
	}

	g.fallbacks.Add(1)
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.poisoned() {
		return ErrPoisoned
	}
	fn()
	return nil
}

func (g *optimisticGuard) write(fn func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.poisoned() {
		return ErrPoisoned
	}
	g.stamp.Add(1)
	defer g.stamp.Add(1)
	g.run(fn)
	return nil
}

func (g *optimisticGuard) stats() GuardStats {
	return GuardStats{
		OptimisticReads: g.optimistic.Load(),
		Fallbacks:       g.fallbacks.Load(),
	}
}
