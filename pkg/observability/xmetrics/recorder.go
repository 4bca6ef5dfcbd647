package xmetrics

import "context"

// Status 表示加载结果状态。
type Status string

const (
	// StatusOK 表示成功。
	StatusOK Status = "ok"
	// StatusError 表示失败。
	StatusError Status = "error"
)

// StatusOf 根据 err 推导状态。
func StatusOf(err error) Status {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Recorder 记录缓存事件。实现必须并发安全，且不能回调缓存本身。
type Recorder interface {
	// Hit 记录一次命中。
	Hit()
	// Miss 记录一次未命中。
	Miss()
	// Removed 记录 n 个因 reason 被移除的条目。
	Removed(reason string, n int)
	// StartLoad 开始一次加载观测，返回的 end 必须调用且只生效一次。
	StartLoad(ctx context.Context) (context.Context, func(err error))
}

// SizeTracker 是可选接口：实现了它的 Recorder 会在缓存构造时注册容量观测回调，
// 在缓存关闭时注销。
type SizeTracker interface {
	TrackSize(size func() int64) error
	UntrackSize() error
}

// NoopRecorder 是空实现。
type NoopRecorder struct{}

// Hit 空实现。
func (NoopRecorder) Hit() {}

// Miss 空实现。
func (NoopRecorder) Miss() {}

// Removed 空实现。
func (NoopRecorder) Removed(string, int) {}

// StartLoad 返回 ctx 和空的 end。若 ctx 为 nil，返回 context.Background()。
func (NoopRecorder) StartLoad(ctx context.Context) (context.Context, func(error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, func(error) {}
}

// StartLoad 使用 r 开始加载观测，nil r 时返回空的 end。
// 保证返回非 nil 的 context.Context 和非 nil 的 end。
func StartLoad(ctx context.Context, r Recorder) (context.Context, func(error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		return ctx, func(error) {}
	}
	retCtx, end := r.StartLoad(ctx)
	if retCtx == nil {
		retCtx = ctx
	}
	if end == nil {
		end = func(error) {}
	}
	return retCtx, end
}
