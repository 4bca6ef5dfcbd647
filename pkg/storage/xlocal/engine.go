package xlocal

import (
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xkitcache/pkg/observability/xmetrics"
)

// Engine 是本地缓存的实现，组合了淘汰策略、并发保护和有序存储。
//
// 所有方法并发安全。移除回调和指标记录都在释放锁之后执行。
// 写临界区内发生 panic 后实例被毒化：返回 error 的方法返回 ErrPoisoned，
// 其余方法以 ErrPoisoned 为值 panic。
type Engine[K comparable, V any] struct {
	policy     Policy
	guardKind  GuardKind
	g          guard
	store      *store[K, V]
	capacity   int
	defaultTTL time.Duration
	opts       *options[K, V]

	// bind 非 nil 时由它把值装入条目（弱引用策略）。
	bind func(e *entry[K, V], v V)

	customTTL atomic.Bool

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once

	pruneMu sync.Mutex
	pruner  *Pruner
}

// NewFIFO 创建先进先出缓存。g 为 nil 时使用 RWGuard。
func NewFIFO[K comparable, V any](cfg Config, g Guard, opts ...Option[K, V]) (*Engine[K, V], error) {
	if g == nil {
		g = RWGuard{}
	}
	return newEngine(PolicyFIFO, g, cfg, opts)
}

// NewLFU 创建最少使用频率缓存。g 为 nil 时使用 RWGuard。
func NewLFU[K comparable, V any](cfg Config, g Guard, opts ...Option[K, V]) (*Engine[K, V], error) {
	if g == nil {
		g = RWGuard{}
	}
	return newEngine(PolicyLFU, g, cfg, opts)
}

// NewLRU 创建最近最少使用缓存。g 为 nil 时使用 MutexGuard。
//
// LRU 的读取会修改顺序，参数类型保证了它不能与 RWGuard 组合。
func NewLRU[K comparable, V any](cfg Config, g ReorderingGuard, opts ...Option[K, V]) (*Engine[K, V], error) {
	if g == nil {
		g = MutexGuard{}
	}
	return newEngine(PolicyLRU, g, cfg, opts)
}

// NewTimed 创建仅按时间过期、不限容量的缓存。g 为 nil 时使用 RWGuard。
func NewTimed[K comparable, V any](ttl time.Duration, g Guard, opts ...Option[K, V]) (*Engine[K, V], error) {
	if g == nil {
		g = RWGuard{}
	}
	return newEngine(PolicyTimed, g, Config{DefaultTTL: ttl}, opts)
}

func newEngine[K comparable, V any](p Policy, g Guard, cfg Config, opts []Option[K, V]) (*Engine[K, V], error) {
	if !p.valid() {
		return nil, ErrUnknownPolicy
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !p.bounded() {
		cfg.Capacity = 0
	}
	if _, ok := g.(ReorderingGuard); p.ReordersOnRead() && !ok {
		return nil, ErrIncompatibleGuard
	}

	o := defaultOptions[K, V]()
	for _, opt := range opts {
		opt(o)
	}
	if o.pruneInterval < 0 {
		return nil, ErrInvalidInterval
	}

	c := &Engine[K, V]{
		policy:     p,
		guardKind:  g.Kind(),
		g:          g.newGuard(),
		store:      newStore[K, V](p.ReordersOnRead()),
		capacity:   cfg.Capacity,
		defaultTTL: cfg.DefaultTTL,
		opts:       o,
	}
	c.g.onPoison(func() {
		o.logger.Error("xlocal: cache poisoned",
			"cache", o.name,
			"policy", p.String(),
			"guard", c.guardKind.String(),
		)
	})

	tracker, tracked := o.recorder.(xmetrics.SizeTracker)
	if tracked {
		if err := tracker.TrackSize(func() int64 { return int64(c.safeLen()) }); err != nil {
			return nil, err
		}
	}
	if o.pruneInterval > 0 {
		if _, err := c.SchedulePrune(o.pruneInterval); err != nil {
			if tracked {
				_ = tracker.UntrackSize()
			}
			return nil, err
		}
	}
	return c, nil
}

// Policy 返回淘汰策略。
func (c *Engine[K, V]) Policy() Policy { return c.policy }

// GuardKind 返回并发保护方式。
func (c *Engine[K, V]) GuardKind() GuardKind { return c.guardKind }

// Name 返回缓存名称。
func (c *Engine[K, V]) Name() string { return c.opts.name }

// Poisoned 报告缓存是否已被毒化。
func (c *Engine[K, V]) Poisoned() bool { return c.g.poisoned() }

// =============================================================================
// 写入
// =============================================================================

// Put 写入或替换条目，使用默认 TTL。
func (c *Engine[K, V]) Put(key K, value V) {
	c.PutWithTTL(key, value, 0)
}

// PutWithTTL 写入或替换条目。ttl <= 0 时使用默认 TTL。
//
// 替换已有 key 不会触发淘汰，新条目的访问时间和访问次数重新计算，并移到最新位置。
func (c *Engine[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if ttl > 0 {
		c.customTTL.Store(true)
	}
	var sc *scope[K, V]
	c.mustWrite(func() {
		sc = c.scope()
		if old, ok := sc.store.peek(key); ok {
			old.release()
		} else {
			evictForPut(c.policy, sc)
		}
		sc.store.add(c.newEntry(key, value, ttl, sc.now))
	})
	c.notify(sc.removed)
}

// =============================================================================
// 读取
// =============================================================================

// Get 读取条目并刷新访问时间。
func (c *Engine[K, V]) Get(key K) (V, bool) {
	return c.GetWithRefresh(key, true)
}

// GetWithRefresh 读取条目。refresh 为 false 时不刷新访问时间。
//
// 共享读锁下发现的过期条目会在释放读锁后以写锁移除；
// 移除前重新确认该条目仍是当前条目且仍已失效，避免误删并发写入的新值。
func (c *Engine[K, V]) GetWithRefresh(key K, refresh bool) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}

	if c.policy.ReordersOnRead() {
		var (
			v   V
			hit bool
			sc  *scope[K, V]
		)
		c.mustWrite(func() {
			sc = c.scope()
			e, ok := sc.store.lookup(key)
			if !ok {
				return
			}
			if cause, dead := sc.dead(e); dead {
				sc.drop(e, cause)
				return
			}
			v, hit = e.peekValue(), true
			e.touch(sc.now, refresh)
		})
		c.count(hit)
		c.notify(sc.removed)
		return v, hit
	}

	var (
		v     V
		hit   bool
		stale *entry[K, V]
	)
	c.mustRead(func() {
		now := c.nowNano()
		e, ok := c.store.peek(key)
		if !ok {
			return
		}
		val, alive := e.load()
		if !alive || (c.expiring() && e.isExpired(now, c.defaultTTL)) {
			stale = e
			return
		}
		e.touch(now, refresh)
		v, hit = val, true
	})
	c.count(hit)
	if stale != nil {
		c.dropIfStale(stale)
	}
	return v, hit
}

// Contains 报告 key 是否存在且未过期，不影响计数、访问时间和顺序。
func (c *Engine[K, V]) Contains(key K) bool {
	if c.closed.Load() {
		return false
	}
	var (
		found bool
		stale *entry[K, V]
	)
	c.mustRead(func() {
		e, ok := c.store.peek(key)
		if !ok {
			return
		}
		if _, alive := e.load(); !alive || (c.expiring() && e.isExpired(c.nowNano(), c.defaultTTL)) {
			stale = e
			return
		}
		found = true
	})
	if stale != nil {
		c.dropIfStale(stale)
	}
	return found
}

// dropIfStale 在写锁内移除 e，前提是它仍是 key 的当前条目并且仍已失效。
func (c *Engine[K, V]) dropIfStale(e *entry[K, V]) {
	var sc *scope[K, V]
	c.mustWrite(func() {
		sc = c.scope()
		cur, ok := sc.store.peek(e.key)
		if !ok || cur != e {
			return
		}
		if cause, dead := sc.dead(e); dead {
			sc.drop(e, cause)
		}
	})
	c.notify(sc.removed)
}

// =============================================================================
// 加载
// =============================================================================

// GetOrLoad 读取条目，未命中时调用 loader 并以默认 TTL 写入。
func (c *Engine[K, V]) GetOrLoad(key K, loader func() (V, error)) (V, error) {
	return c.GetOrLoadWithTTL(key, 0, loader)
}

// GetOrLoadWithTTL 读取条目，未命中时调用 loader 并以 ttl 写入。
//
// loader 在写锁内调用，同一缓存上的并发未命中会串行化：
// 后到的调用者在拿到写锁后重新检查，直接返回先到者写入的值，loader 每个 key 只执行一次。
// loader 不得回调同一缓存，否则会死锁。
//
// loader 返回错误时缓存不变，错误原样返回；loader panic 时缓存不会被毒化，
// panic 在释放锁后重新抛出。
func (c *Engine[K, V]) GetOrLoadWithTTL(key K, ttl time.Duration, loader func() (V, error)) (V, error) {
	var zero V
	if loader == nil {
		return zero, ErrNilLoader
	}
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if c.g.poisoned() {
		return zero, ErrPoisoned
	}
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	if ttl < 0 {
		ttl = 0
	}

	var (
		v        V
		err      error
		pv       any
		panicked bool
		sc       *scope[K, V]
	)
	werr := c.g.write(func() {
		sc = c.scope()
		if e, ok := sc.store.lookup(key); ok {
			if cause, dead := sc.dead(e); dead {
				sc.drop(e, cause)
			} else {
				v = e.peekValue()
				e.touch(sc.now, true)
				return
			}
		}

		v, pv, panicked, err = callLoader(loader)
		if err != nil || panicked {
			return
		}
		if ttl > 0 {
			c.customTTL.Store(true)
			sc.expiring = true
		}
		sc.now = c.nowNano()
		evictForPut(c.policy, sc)
		sc.store.add(c.newEntry(key, v, ttl, sc.now))
	})
	if werr != nil {
		return zero, werr
	}
	c.notify(sc.removed)
	if panicked {
		panic(pv)
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}

// callLoader 调用 loader 并捕获 panic，使写临界区能正常结束。
func callLoader[V any](fn func() (V, error)) (v V, pv any, panicked bool, err error) {
	panicked = true
	defer func() {
		if panicked {
			pv = recover()
		}
	}()
	v, err = fn()
	panicked = false
	return v, nil, false, err
}

// =============================================================================
// 删除与清理
// =============================================================================

// Remove 删除条目，返回 key 是否存在。
func (c *Engine[K, V]) Remove(key K) bool {
	if c.closed.Load() {
		return false
	}
	var (
		present bool
		sc      *scope[K, V]
	)
	c.mustWrite(func() {
		sc = c.scope()
		if e, ok := sc.store.peek(key); ok {
			sc.drop(e, RemovalExplicit)
			present = true
		}
	})
	c.notify(sc.removed)
	return present
}

// Clear 删除所有条目，移除回调的原因为 RemovalCleared。
func (c *Engine[K, V]) Clear() {
	if c.closed.Load() {
		return
	}
	c.clear()
}

func (c *Engine[K, V]) clear() {
	var removed []removal[K, V]
	c.mustWrite(func() {
		all := c.store.purge()
		removed = make([]removal[K, V], 0, len(all))
		for _, e := range all {
			e.release()
			removed = append(removed, removal[K, V]{e: e, cause: RemovalCleared})
		}
	})
	c.notify(removed)
}

// Prune 按淘汰策略清理，返回移除的条目数。
//
// FIFO 在清理过期条目后若仍满，额外淘汰最旧的条目；LFU 若仍满则再平衡访问次数；
// LRU、Timed、Weak 只移除过期或已回收的条目。
func (c *Engine[K, V]) Prune() int {
	if c.closed.Load() {
		return 0
	}
	var sc *scope[K, V]
	c.mustWrite(func() {
		sc = c.scope()
		pruneWith(c.policy, sc)
	})
	c.notify(sc.removed)
	return len(sc.removed)
}

// Close 停止定时清理任务并等待进行中的清理结束，然后清空缓存。
// 关闭后读取总是未命中且不计数，写入被忽略，GetOrLoad 返回 ErrClosed。
// 不要在移除回调中调用 Close。
func (c *Engine[K, V]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if ctx := c.CancelPrune(); ctx != nil {
			<-ctx.Done()
		}
		if !c.g.poisoned() {
			c.clear()
		}
		if t, ok := c.opts.recorder.(xmetrics.SizeTracker); ok {
			if err := t.UntrackSize(); err != nil {
				c.opts.logger.Warn("xlocal: untrack size failed", "cache", c.opts.name, "error", err)
			}
		}
		c.opts.logger.Debug("xlocal: cache closed", "cache", c.opts.name)
	})
	return nil
}

// Closed 报告缓存是否已关闭。
func (c *Engine[K, V]) Closed() bool { return c.closed.Load() }

// =============================================================================
// 查询
// =============================================================================

// Len 返回当前条目数。
func (c *Engine[K, V]) Len() int {
	var n int
	c.mustRead(func() { n = c.store.len() })
	return n
}

// safeLen 在已毒化时返回 0 而不是 panic，供指标回调使用。
func (c *Engine[K, V]) safeLen() int {
	var n int
	_ = c.g.read(func() { n = c.store.len() })
	return n
}

// IsEmpty 报告缓存是否为空。
func (c *Engine[K, V]) IsEmpty() bool { return c.Len() == 0 }

// IsFull 报告缓存是否已满。容量为 0 时总是 false。
func (c *Engine[K, V]) IsFull() bool {
	return c.capacity > 0 && c.Len() >= c.capacity
}

// Capacity 返回容量上限，0 表示不限制。
func (c *Engine[K, V]) Capacity() int { return c.capacity }

// DefaultTTL 返回默认 TTL。
func (c *Engine[K, V]) DefaultTTL() time.Duration { return c.defaultTTL }

// Hits 返回命中次数。
func (c *Engine[K, V]) Hits() uint64 { return c.hits.Load() }

// Misses 返回未命中次数。
func (c *Engine[K, V]) Misses() uint64 { return c.misses.Load() }

// GuardStats 返回乐观读统计。
func (c *Engine[K, V]) GuardStats() GuardStats { return c.g.stats() }

// Stats 返回统计快照。
func (c *Engine[K, V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	return Stats{
		Hits:        hits,
		Misses:      misses,
		HitRatio:    hitRatio(hits, misses),
		Size:        c.safeLen(),
		Capacity:    c.capacity,
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Guard:       c.g.stats(),
	}
}

// Iterator 返回快照迭代器。快照在读锁内复制，迭代期间不持有锁。
func (c *Engine[K, V]) Iterator() *Iterator[K, V] {
	if c.closed.Load() {
		return emptyIterator[K, V]()
	}
	var entries []*entry[K, V]
	c.mustRead(func() { entries = c.store.entries() })
	return newIterator(entries, c.nowNano, c.defaultTTL)
}

// All 返回快照的 range-over-func 序列。
func (c *Engine[K, V]) All() iter.Seq2[K, V] {
	return c.Iterator().Seq()
}

// Keys 返回未过期条目的 key，从旧到新。
func (c *Engine[K, V]) Keys() []K {
	var keys []K
	for k := range c.All() {
		keys = append(keys, k)
	}
	return keys
}

// =============================================================================
// 内部
// =============================================================================

func (c *Engine[K, V]) nowNano() int64 {
	return c.opts.clock().UnixNano()
}

// expiring 报告是否可能存在过期条目。默认 TTL 为 0 且从未使用过自定义 TTL 时跳过过期检查。
func (c *Engine[K, V]) expiring() bool {
	return c.defaultTTL > 0 || c.customTTL.Load()
}

func (c *Engine[K, V]) scope() *scope[K, V] {
	return &scope[K, V]{
		store:      c.store,
		capacity:   c.capacity,
		defaultTTL: c.defaultTTL,
		expiring:   c.expiring(),
		weak:       c.bind != nil,
		now:        c.nowNano(),
	}
}

func (c *Engine[K, V]) newEntry(key K, value V, ttl time.Duration, now int64) *entry[K, V] {
	if c.bind == nil {
		return newEntry(key, value, ttl, now)
	}
	var zero V
	e := newEntry(key, zero, ttl, now)
	c.bind(e, value)
	return e
}

func (c *Engine[K, V]) mustRead(fn func()) {
	if err := c.g.read(fn); err != nil {
		panic(err)
	}
}

func (c *Engine[K, V]) mustWrite(fn func()) {
	if err := c.g.write(fn); err != nil {
		panic(err)
	}
}

func (c *Engine[K, V]) count(hit bool) {
	if hit {
		c.hits.Add(1)
		c.opts.recorder.Hit()
		return
	}
	c.misses.Add(1)
	c.opts.recorder.Miss()
}

// notify 在锁外统计移除原因并调用移除回调。
func (c *Engine[K, V]) notify(removed []removal[K, V]) {
	if len(removed) == 0 {
		return
	}
	var byCause [RemovalCollected + 1]int
	for _, r := range removed {
		byCause[r.cause]++
	}
	c.evictions.Add(uint64(byCause[RemovalEvicted]))
	c.expirations.Add(uint64(byCause[RemovalExpired] + byCause[RemovalCollected]))
	for cause, n := range byCause {
		if n > 0 {
			c.opts.recorder.Removed(RemovalCause(cause).String(), n)
		}
	}

	if c.opts.onRemove == nil {
		return
	}
	for _, r := range removed {
		c.callListener(r)
	}
}

func (c *Engine[K, V]) callListener(r removal[K, V]) {
	defer func() {
		if p := recover(); p != nil {
			c.opts.logger.Warn("xlocal: removal listener panicked",
				"cache", c.opts.name,
				"cause", r.cause.String(),
				"panic", p,
			)
		}
	}()
	var v V
	if r.cause != RemovalCollected {
		v = r.e.peekValue()
	}
	c.opts.onRemove(r.e.key, v, r.cause)
}

var _ Cache[string, int] = (*Engine[string, int])(nil)
