package xlocal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xkitcache/pkg/observability/xmetrics"
)

// defaultLoadTimeout 是脱离调用方取消链后的默认回源超时。
const defaultLoadTimeout = 30 * time.Second

// LoadFunc 是回源函数。
type LoadFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// BreakerSettings 是回源熔断配置。
type BreakerSettings struct {
	// ConsecutiveFailures 连续失败多少次后熔断，0 时取 5。
	ConsecutiveFailures uint32
	// Timeout 熔断后多久进入半开状态，0 时取 gobreaker 默认值 (60s)。
	Timeout time.Duration
	// MaxRequests 半开状态允许通过的请求数，0 时取 1。
	MaxRequests uint32
}

type loaderOptions struct {
	timeout  time.Duration
	attempts uint
	delay    time.Duration
	breaker  *BreakerSettings
	logger   *slog.Logger
	recorder xmetrics.Recorder
}

// LoaderOption 定义 Loader 的配置函数类型。
type LoaderOption func(*loaderOptions)

// WithLoadTimeout 设置单次回源超时（包含重试）。
//   - timeout == 0: 禁用超时
//   - timeout < 0: 使用默认超时 (30s)
//   - timeout > 0: 使用指定超时
func WithLoadTimeout(timeout time.Duration) LoaderOption {
	return func(o *loaderOptions) {
		o.timeout = timeout
	}
}

// WithRetry 设置回源重试。attempts 是总尝试次数，<= 1 表示不重试。
func WithRetry(attempts uint, delay time.Duration) LoaderOption {
	return func(o *loaderOptions) {
		o.attempts = attempts
		o.delay = delay
	}
}

// WithBreaker 为回源启用熔断。熔断打开期间 Load 直接返回 gobreaker.ErrOpenState，不再重试。
func WithBreaker(s BreakerSettings) LoaderOption {
	return func(o *loaderOptions) {
		o.breaker = &s
	}
}

// WithLoaderLogger 设置日志记录器。
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(o *loaderOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLoaderRecorder 设置回源观测记录器，记录 xlocal.load 跨度和耗时。
func WithLoaderRecorder(r xmetrics.Recorder) LoaderOption {
	return func(o *loaderOptions) {
		if r != nil {
			o.recorder = r
		}
	}
}

// Loader 在缓存之上提供带 context 的回源加载。
//
// 与 Cache.GetOrLoad 不同，回源在锁外执行：同一 key 的并发未命中通过 singleflight
// 合并为一次回源，不同 key 的回源互不阻塞，也不阻塞缓存的其他读写。
// 回源使用脱离调用方取消链的 context，首个调用者取消不影响其他等待者。
type Loader[K comparable, V any] struct {
	cache   Cache[K, V]
	fn      LoadFunc[K, V]
	opts    loaderOptions
	group   singleflight.Group
	breaker *gobreaker.CircuitBreaker[V]
}

// NewLoader 创建 Loader。
func NewLoader[K comparable, V any](cache Cache[K, V], fn LoadFunc[K, V], opts ...LoaderOption) (*Loader[K, V], error) {
	if cache == nil {
		return nil, ErrNilCache
	}
	if fn == nil {
		return nil, ErrNilLoader
	}
	o := loaderOptions{
		timeout:  -1,
		logger:   slog.Default(),
		recorder: xmetrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	l := &Loader[K, V]{cache: cache, fn: fn, opts: o}
	if o.breaker != nil {
		l.breaker = gobreaker.NewCircuitBreaker[V](l.breakerSettings(*o.breaker))
	}
	return l, nil
}

func (l *Loader[K, V]) breakerSettings(s BreakerSettings) gobreaker.Settings {
	threshold := s.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	maxReq := s.MaxRequests
	if maxReq == 0 {
		maxReq = 1
	}
	logger := l.opts.logger
	return gobreaker.Settings{
		Name:        "xlocal.loader",
		MaxRequests: maxReq,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("xlocal: loader breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
}

// Load 读取 key，未命中时回源并以缓存默认 TTL 写入。
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	return l.LoadWithTTL(ctx, key, 0)
}

// LoadWithTTL 读取 key，未命中时回源并以 ttl 写入。
//
// 调用方 ctx 取消时立即返回 ctx.Err()，后台回源继续完成并写入缓存，供其他等待者使用。
// 回源失败时缓存不变。
func (l *Loader[K, V]) LoadWithTTL(ctx context.Context, key K, ttl time.Duration) (V, error) {
	var zero V
	if ctx == nil {
		ctx = context.Background()
	}
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	ch := l.group.DoChan(flightKey(key), func() (any, error) {
		sfCtx, cancel := l.detach(ctx)
		defer cancel()
		v, err := l.fetch(sfCtx, key)
		if err != nil {
			return nil, err
		}
		l.cache.PutWithTTL(key, v, ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(V)
		if !ok && res.Val != nil {
			return zero, fmt.Errorf("xlocal: unexpected result type %T from singleflight", res.Val)
		}
		return v, nil
	}
}

// Forget 让 key 的下一次 Load 不再复用进行中的回源。
func (l *Loader[K, V]) Forget(key K) {
	l.group.Forget(flightKey(key))
}

// BreakerState 返回熔断器状态，未启用熔断时返回 "disabled"。
func (l *Loader[K, V]) BreakerState() string {
	if l.breaker == nil {
		return "disabled"
	}
	return l.breaker.State().String()
}

// detach 创建脱离调用方取消链、带独立超时的 context，保留 ctx 的 Value。
func (l *Loader[K, V]) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	timeout := l.opts.timeout
	if timeout == 0 {
		return context.WithCancel(detached)
	}
	if timeout < 0 {
		timeout = defaultLoadTimeout
	}
	return context.WithTimeout(detached, timeout)
}

// fetch 执行一次完整回源：观测跨度、重试、熔断。
func (l *Loader[K, V]) fetch(ctx context.Context, key K) (v V, err error) {
	ctx, end := xmetrics.StartLoad(ctx, l.opts.recorder)
	defer func() { end(err) }()

	if l.opts.attempts <= 1 {
		return l.call(ctx, key)
	}
	return retry.NewWithData[V](
		retry.Context(ctx),
		retry.Attempts(l.opts.attempts),
		retry.Delay(l.opts.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, gobreaker.ErrOpenState) &&
				!errors.Is(err, gobreaker.ErrTooManyRequests) &&
				!errors.Is(err, ErrLoaderPanicked)
		}),
		retry.OnRetry(func(n uint, err error) {
			l.opts.logger.Debug("xlocal: retrying load", "attempt", n+1, "error", err)
		}),
	).Do(func() (V, error) {
		return l.call(ctx, key)
	})
}

func (l *Loader[K, V]) call(ctx context.Context, key K) (V, error) {
	if l.breaker == nil {
		return l.invoke(ctx, key)
	}
	return l.breaker.Execute(func() (V, error) {
		return l.invoke(ctx, key)
	})
}

// invoke 调用回源函数，把 panic 转换为 ErrLoaderPanicked。
// singleflight.DoChan 会在新 goroutine 中重新抛出 panic 使进程退出，这里必须拦截。
func (l *Loader[K, V]) invoke(ctx context.Context, key K) (v V, err error) {
	defer func() {
		if p := recover(); p != nil {
			l.opts.logger.Error("xlocal: loader panicked", "key", flightKey(key), "panic", p)
			err = fmt.Errorf("%w: %v", ErrLoaderPanicked, p)
		}
	}()
	return l.fn(ctx, key)
}

// flightKey 把 key 转换为 singleflight 使用的字符串。
func flightKey[K comparable](key K) string {
	switch k := any(key).(type) {
	case string:
		return k
	default:
		return fmt.Sprintf("%#v", key)
	}
}
