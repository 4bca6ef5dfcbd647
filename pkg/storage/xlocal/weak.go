package xlocal

import (
	"runtime"
	"time"
	"weak"
)

// NewWeak 创建按时间过期、值通过弱引用持有的缓存。g 为 nil 时使用 RWGuard。
//
// 缓存不会阻止值被 GC 回收。值被回收后条目在下一次读取或 Prune 时被发现并移除，
// 若值在此之前仍在缓存中，也会由 runtime 的 cleanup 回调主动移除，移除原因为 RemovalCollected，
// 回调收到的 value 为 nil。
//
// nil 值按普通值强引用保存，永远不会被回收。
func NewWeak[K comparable, T any](ttl time.Duration, g Guard, opts ...Option[K, *T]) (*Engine[K, *T], error) {
	if g == nil {
		g = RWGuard{}
	}
	c, err := newEngine(PolicyWeak, g, Config{DefaultTTL: ttl}, opts)
	if err != nil {
		return nil, err
	}
	c.bind = func(e *entry[K, *T], v *T) {
		if v == nil {
			return
		}
		wp := weak.Make(v)
		e.weak = func() (*T, bool) {
			p := wp.Value()
			return p, p != nil
		}
		e.cleanup = runtime.AddCleanup(v, c.collect, e)
		e.tracked = true
	}
	return c, nil
}

// collect 在值被回收后移除对应条目。运行在 runtime 的 cleanup goroutine 中。
func (c *Engine[K, V]) collect(e *entry[K, V]) {
	if c.closed.Load() || c.g.poisoned() {
		return
	}
	var sc *scope[K, V]
	if err := c.g.write(func() {
		sc = c.scope()
		cur, ok := sc.store.peek(e.key)
		if !ok || cur != e {
			return
		}
		e.tracked = false
		sc.drop(e, RemovalCollected)
	}); err != nil {
		return
	}
	c.notify(sc.removed)
}
