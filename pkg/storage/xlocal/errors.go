package xlocal

import "errors"

// 构造相关错误。
var (
	// ErrInvalidCapacity 表示容量为负数。
	ErrInvalidCapacity = errors.New("xlocal: capacity must not be negative")

	// ErrCapacityExceedsMax 表示容量超过上限 (16,777,216)。
	ErrCapacityExceedsMax = errors.New("xlocal: capacity must not exceed 16777216")

	// ErrInvalidTTL 表示默认 TTL 为负数。
	ErrInvalidTTL = errors.New("xlocal: TTL must not be negative")

	// ErrInvalidInterval 表示定时清理间隔不是正数。
	ErrInvalidInterval = errors.New("xlocal: prune interval must be positive")

	// ErrIncompatibleGuard 表示读操作会改变顺序的策略（LRU）与共享读锁组合。
	ErrIncompatibleGuard = errors.New("xlocal: policy reorders on read and cannot run under a shared read lock")

	// ErrUnknownPolicy 表示无法识别的淘汰策略名称。
	ErrUnknownPolicy = errors.New("xlocal: unknown eviction policy")

	// ErrUnknownGuard 表示无法识别的并发保护名称。
	ErrUnknownGuard = errors.New("xlocal: unknown concurrency guard")

	// ErrWeakNotBuildable 表示 Build 无法为任意值类型创建弱引用缓存，需直接调用 NewWeak。
	ErrWeakNotBuildable = errors.New("xlocal: weak policy requires NewWeak with a pointer value type")
)

// 运行期错误。
var (
	// ErrEndOfSequence 表示迭代器已耗尽。这是正常的终止状态而非失败。
	ErrEndOfSequence = errors.New("xlocal: end of sequence")

	// ErrUnsupportedOperation 表示迭代器不支持修改操作。
	ErrUnsupportedOperation = errors.New("xlocal: unsupported operation")

	// ErrPoisoned 表示某次写操作在临界区内 panic，缓存状态可能已不满足容量或过期约束。
	// 毒化不可恢复，应丢弃该实例。
	ErrPoisoned = errors.New("xlocal: cache poisoned by a panic inside a critical section")

	// ErrClosed 表示缓存已关闭。
	ErrClosed = errors.New("xlocal: cache closed")

	// ErrPrunerRunning 表示定时清理任务已在运行。
	ErrPrunerRunning = errors.New("xlocal: prune task already scheduled")

	// ErrNilLoader 表示加载函数为 nil。
	ErrNilLoader = errors.New("xlocal: loader function cannot be nil")

	// ErrLoaderPanicked 表示 Loader 的回源函数 panic。
	ErrLoaderPanicked = errors.New("xlocal: load function panicked")

	// ErrNilCache 表示传入的缓存为 nil。
	ErrNilCache = errors.New("xlocal: cache cannot be nil")
)
