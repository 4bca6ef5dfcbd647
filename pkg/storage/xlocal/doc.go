// Package xlocal 提供容量和时间双重约束的进程内缓存。
//
// 一个缓存由三部分组合而成：淘汰策略（Policy）、并发保护（Guard）和有序存储。
// 有序存储基于 github.com/hashicorp/golang-lru/v2/simplelru，链表顺序即淘汰顺序。
//
// # 淘汰策略
//
//   - FIFO：仍满时淘汰最早插入的条目，读取不影响顺序
//   - LRU：读取把条目移到最新位置，插入超出容量时淘汰最久未访问的条目
//   - LFU：仍满时所有条目的访问次数减去最小值，降到 0 及以下的条目被淘汰
//   - Timed：只按时间过期，不限容量
//   - Weak：与 Timed 相同，值通过 weak.Pointer 持有，被 GC 回收后自动移除
//
// 所有策略共享同一个不变量：插入完成后条目数不超过容量（容量为 0 表示不限制）。
//
// # 并发保护
//
//   - RWGuard：读写锁，纯读操作共享
//   - MutexGuard：互斥锁
//   - OptimisticGuard：写版本号 + 非阻塞共享锁，失败时退化为阻塞共享锁
//
// LRU 的读取会修改链表，NewLRU 只接受 ReorderingGuard，LRU 与 RWGuard 的组合无法通过编译。
// 从配置构建时（Build）该组合在运行期返回 ErrIncompatibleGuard。
//
// # 过期语义
//
// 条目在 ttl > 0 且 lastAccess + ttl <= now 时过期。Get 默认刷新 lastAccess，
// 因此 TTL 是空闲超时而非绝对寿命；GetWithRefresh(key, false) 不刷新。
// 过期条目在被读取、Contains 或 Prune 时移除，也可以用 SchedulePrune 定期清理。
//
// # 基本用法
//
//	cache, err := xlocal.NewLRU[string, *User](xlocal.Config{
//		Capacity:   10000,
//		DefaultTTL: 5 * time.Minute,
//	}, xlocal.MutexGuard{})
//	if err != nil {
//		return err
//	}
//	defer cache.Close()
//
//	cache.Put("u1", user)
//	if u, ok := cache.Get("u1"); ok {
//		// ...
//	}
//
// # 回源加载
//
// GetOrLoad 在写锁内调用 loader，同一缓存上的未命中串行执行，适合廉价的本地计算。
// 需要访问网络的回源使用 Loader：锁外执行，singleflight 合并，支持重试和熔断。
//
// # 注意事项
//
//   - 移除回调在锁外同步执行，可以回调缓存自身，但不要在回调中调用 Close
//   - GetOrLoad 的 loader 在锁内执行，不得回调同一缓存
//   - 写临界区内的 panic 会毒化缓存，之后的操作返回或 panic ErrPoisoned
//   - 使用完毕后调用 Close 停止定时清理任务
package xlocal
