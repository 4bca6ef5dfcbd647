package xmetrics

import "errors"

// NewOTelRecorder 返回的错误。
var (
	// ErrCreateCounter 表示创建 OTel Counter 失败。
	ErrCreateCounter = errors.New("xmetrics: create counter failed")
	// ErrCreateHistogram 表示创建 OTel Histogram 失败。
	ErrCreateHistogram = errors.New("xmetrics: create histogram failed")
	// ErrCreateGauge 表示创建 OTel 异步 Gauge 失败。
	ErrCreateGauge = errors.New("xmetrics: create gauge failed")
	// ErrSizeTracked 表示容量观测回调已注册。
	ErrSizeTracked = errors.New("xmetrics: size callback already registered")
	// ErrNilSizeFunc 表示容量观测回调为 nil。
	ErrNilSizeFunc = errors.New("xmetrics: size callback cannot be nil")
)
