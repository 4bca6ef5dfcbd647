// Package xlog 构建 log/slog 日志实例。
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后，后续 Set 操作不会覆盖它）：
//
//	logger, level, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetAttrs(slog.String("service", "cache")).
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
// 也可以从配置文件段落创建：[FromConfig]。
//
// # 日志级别
//
// LevelDebug(-4)、LevelInfo(0)、LevelWarn(4)、LevelError(8)。
// Level 实现 encoding.TextMarshaler/TextUnmarshaler，配置文件可以直接写 "debug"。
// Build 返回的 *slog.LevelVar 支持运行时调整级别，配置热更新时使用。
//
// # 文件轮转
//
// [Builder.SetRotation] 使用 lumberjack 按文件大小轮转。
// 备份数量和保留天数至少有一个生效，避免备份无限增长。
// cleanup 关闭当前文件；lumberjack 的后台清理 goroutine 在进程退出前不会结束。
package xlog
