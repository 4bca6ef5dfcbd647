package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xkitcache/pkg/config/xconf"
	"github.com/omeyang/xkitcache/pkg/observability/xlog"
	"github.com/omeyang/xkitcache/pkg/storage/xlocal"
)

// exitError 表示需要非零退出码但已完成输出的场景。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError 表示参数错误，对应退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createValidateCommand(),
		createBenchCommand(),
		createRunCommand(),
	}
}

func createValidateCommand() *cli.Command {
	return &cli.Command{
		Name:         "validate",
		Usage:        "校验配置文件",
		OnUsageError: onUsageError,
		Action: func(_ context.Context, cmd *cli.Command) error {
			return cmdValidate(cmd)
		},
	}
}

// cmdValidate 校验日志配置和所有缓存配置，成功时打印缓存列表。
func cmdValidate(cmd *cli.Command) error {
	f, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := validateLog(f.Log); err != nil {
		return err
	}
	specs, err := f.Specs()
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPOLICY\tGUARD\tCAPACITY\tDEFAULT_TTL\tPRUNE_INTERVAL\tDISABLED")
	for _, name := range f.Names() {
		s := specs[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%t\n",
			name, s.Policy, s.Guard, s.Capacity,
			formatDuration(s.DefaultTTL), formatDuration(s.PruneInterval), s.Disabled)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d caches OK\n", f.Path(), len(specs))
	return nil
}

// validateLog 校验日志段落，不创建日志文件。
func validateLog(c xlog.Config) error {
	if c.Rotation != nil {
		if err := c.Rotation.Validate(); err != nil {
			return fmt.Errorf("log.rotation: %w", err)
		}
	}
	_, _, cleanup, err := xlog.New().
		SetOutput(io.Discard).
		SetLevel(c.Level).
		SetFormat(c.Format).
		Build()
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return cleanup()
}

// =============================================================================
// 共用辅助函数
// =============================================================================

// loadConfig 加载 --config 指定的配置文件。
func loadConfig(cmd *cli.Command) (*xconf.File, error) {
	path := cmd.String("config")
	if path == "" {
		return nil, usagef("%s 命令需要通过 --config 指定配置文件", cmd.Name)
	}
	return xconf.Load(path)
}

// newLogger 按配置文件创建日志，--log-level/--log-format 优先。
// 未配置文件轮转时输出到 stderr。
func newLogger(cmd *cli.Command, c xlog.Config) (*slog.Logger, *slog.LevelVar, func() error, error) {
	b := xlog.FromConfig(c)
	if c.Rotation == nil {
		b = b.SetOutput(cmd.Root().ErrWriter)
	}
	if cmd.IsSet("log-level") {
		b = b.SetLevelString(cmd.String("log-level"))
	}
	if cmd.IsSet("log-format") {
		b = b.SetFormat(cmd.String("log-format"))
	}
	logger, level, cleanup, err := b.Build()
	if err != nil {
		if errors.Is(err, xlog.ErrUnknownLevel) || errors.Is(err, xlog.ErrUnknownFormat) {
			return nil, nil, nil, &usageError{msg: err.Error()}
		}
		return nil, nil, nil, err
	}
	return logger, level, cleanup, nil
}

// changedCaches 返回新旧配置中新增、删除或修改过的缓存名，按名称排序。
func changedCaches(old, updated map[string]xlocal.Spec) []string {
	var names []string
	for name, s := range updated {
		if prev, ok := old[name]; !ok || prev != s {
			names = append(names, name)
		}
	}
	for name := range old {
		if _, ok := updated[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.String()
}

// sortedKeys 按 key 排序返回 map 的键。
func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
