// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 基于 log/slog 的日志构建，支持动态级别和文件轮转
//   - xmetrics: 缓存指标和回源追踪，基于 OpenTelemetry
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 未配置时使用 no-op 实现，调用方无需判空
package observability
