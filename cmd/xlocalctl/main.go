// xlocalctl 是本地缓存引擎的命令行工具。
//
// 用法:
//
//	xlocalctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config      配置文件路径（.yaml/.yml/.json）
//	    --log-level   日志级别，覆盖配置文件 (debug/info/warn/error)
//	    --log-format  日志格式，覆盖配置文件 (text/json)
//
// 命令:
//
//	validate       校验配置文件并打印每个缓存的配置
//	bench          对单个缓存做并发压测
//	run            按配置文件创建缓存并持续运行，配置变更时热更新日志级别
//	help           显示帮助信息
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败（配置无效、创建缓存失败等）
//	2: 参数错误（缺少 --config、未知策略、未知 flag 等）
//
// 示例:
//
//	xlocalctl -c cache.yaml validate
//	xlocalctl bench --policy lfu --guard optimistic --workers 8
//	xlocalctl -c cache.yaml --log-level debug run --traffic 500
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args, os.Stdout, os.Stderr)
}

// execute 运行 CLI 并把错误映射为退出码。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp()
	app.Writer = stdout
	app.ErrWriter = stderr

	if err := app.Run(ctx, args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xlocalctl",
		Usage:   "本地缓存引擎命令行工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别，覆盖配置文件",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "日志格式，覆盖配置文件",
			},
		},
		Commands:     createCommands(),
		OnUsageError: onUsageError,
		// 禁止 urfave/cli 直接调用 os.Exit，由 execute 统一映射退出码。
		ExitErrHandler: func(_ context.Context, cmd *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(cmd.Root().ErrWriter, err)
			}
		},
		Description: `xlocalctl 读取与服务相同的配置文件，用于上线前校验缓存配置、
比较不同淘汰策略和并发保护方式的性能，以及在本地观察缓存行为。

配置文件示例:
  log:
    level: info
  caches:
    sessions: {policy: lru, guard: mutex, capacity: 1000, default_ttl: 5m}
    tokens:   {policy: timed, guard: optimistic, default_ttl: 30s, prune_interval: 10s}`,
	}
}

// onUsageError 把 flag 解析错误转换为 usageError，对应退出码 2。
func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return &usageError{msg: err.Error()}
}
