// Package xmetrics 提供本地缓存的可观测性接口（metrics + tracing）。
//
// # 设计理念
//
// 缓存只依赖最小化的 Recorder 接口，具体实现可替换。
// 默认实现 NoopRecorder 不记录任何内容；NewOTelRecorder 基于 OpenTelemetry。
//
// # 使用示例
//
//	rec, err := xmetrics.NewOTelRecorder("users",
//		xmetrics.WithMeterProvider(mp),
//		xmetrics.WithTracerProvider(tp),
//	)
//	cache, err := xlocal.NewLRU[string, *User](cfg, xlocal.MutexGuard{},
//		xlocal.WithRecorder[string, *User](rec),
//	)
//
// # 指标命名
//
//   - xkitcache.local.hits      命中次数
//   - xkitcache.local.misses    未命中次数
//   - xkitcache.local.removals  移除条目数，属性 reason
//   - xkitcache.local.load.duration  加载耗时（秒），属性 status
//   - xkitcache.local.size      当前条目数（异步观测）
//
// 所有指标带 cache 属性。加载跨度名为 xlocal.load。
package xmetrics
