package xlocal

import (
	"log/slog"
	"time"

	"github.com/omeyang/xkitcache/pkg/observability/xmetrics"
)

// maxCapacity 缓存容量上限。
const maxCapacity = 1 << 24 // 16,777,216

// Config 定义缓存的基础配置。
type Config struct {
	// Capacity 最大条目数。0 表示不限制，不允许负值，上限 16,777,216。
	Capacity int

	// DefaultTTL 缓存级默认 TTL。0 表示条目默认永不过期，不允许负值。
	// 单次 Put 可以用非零 TTL 覆盖。
	DefaultTTL time.Duration
}

func (c Config) validate() error {
	if c.Capacity < 0 {
		return ErrInvalidCapacity
	}
	if c.Capacity > maxCapacity {
		return ErrCapacityExceedsMax
	}
	if c.DefaultTTL < 0 {
		return ErrInvalidTTL
	}
	return nil
}

// RemovalListener 在条目被移除后调用。
//
// 回调在所有锁之外同步执行，可以安全地回调缓存自身的方法。
// 弱引用条目因 GC 被移除时 value 为零值。
// 回调 panic 会被捕获并记录日志，不影响缓存。
type RemovalListener[K comparable, V any] func(key K, value V, cause RemovalCause)

// Option 定义缓存可选配置函数类型。
type Option[K comparable, V any] func(*options[K, V])

type options[K comparable, V any] struct {
	name          string
	onRemove      RemovalListener[K, V]
	clock         func() time.Time
	logger        *slog.Logger
	recorder      xmetrics.Recorder
	pruneInterval time.Duration
	scheduler     Scheduler
}

func defaultOptions[K comparable, V any]() *options[K, V] {
	return &options[K, V]{
		name:     "xlocal",
		clock:    time.Now,
		logger:   slog.Default(),
		recorder: xmetrics.NoopRecorder{},
	}
}

// WithName 设置缓存名称，用于日志和指标属性。默认 "xlocal"。
func WithName[K comparable, V any](name string) Option[K, V] {
	return func(o *options[K, V]) {
		if name != "" {
			o.name = name
		}
	}
}

// WithOnRemove 设置条目移除回调，覆盖显式删除、过期、淘汰、清空和 GC 回收。
func WithOnRemove[K comparable, V any](fn RemovalListener[K, V]) Option[K, V] {
	return func(o *options[K, V]) {
		o.onRemove = fn
	}
}

// WithClock 设置时钟，主要用于测试。nil 时忽略。
func WithClock[K comparable, V any](clock func() time.Time) Option[K, V] {
	return func(o *options[K, V]) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger 设置日志记录器。nil 时忽略，默认 slog.Default()。
func WithLogger[K comparable, V any](logger *slog.Logger) Option[K, V] {
	return func(o *options[K, V]) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder 设置指标记录器。nil 时忽略，默认不记录。
//
// 若记录器实现了 xmetrics.SizeTracker，构造时会注册容量观测回调。
func WithRecorder[K comparable, V any](r xmetrics.Recorder) Option[K, V] {
	return func(o *options[K, V]) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPruneInterval 在构造时启动定时清理任务，间隔必须为正数，0 表示不启动。
func WithPruneInterval[K comparable, V any](interval time.Duration) Option[K, V] {
	return func(o *options[K, V]) {
		o.pruneInterval = interval
	}
}

// WithScheduler 设置定时清理使用的调度器。默认每次启动清理任务时创建独立的 cron 调度器。
func WithScheduler[K comparable, V any](s Scheduler) Option[K, V] {
	return func(o *options[K, V]) {
		if s != nil {
			o.scheduler = s
		}
	}
}
