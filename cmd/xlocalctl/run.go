package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xkitcache/pkg/config/xconf"
	"github.com/omeyang/xkitcache/pkg/observability/xmetrics"
	"github.com/omeyang/xkitcache/pkg/storage/xlocal"
)

// trafficTick 模拟流量的发送周期。
const trafficTick = 100 * time.Millisecond

func createRunCommand() *cli.Command {
	return &cli.Command{
		Name:         "run",
		Usage:        "按配置文件创建缓存并持续运行",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "运行时长，0 表示直到收到信号"},
			&cli.DurationFlag{Name: "report-interval", Usage: "统计日志间隔", Value: 10 * time.Second},
			&cli.IntFlag{Name: "traffic", Usage: "每个缓存每秒的模拟读取次数，0 表示不产生流量"},
			&cli.IntFlag{Name: "keys", Usage: "模拟流量的 key 空间大小", Value: 1024},
		},
		Action: cmdRun,
	}
}

// payload 是 run 命令中缓存的值。
type payload struct {
	key  string
	data []byte
}

func fetchPayload(_ context.Context, key string) (*payload, error) {
	return &payload{key: key, data: make([]byte, 64)}, nil
}

// hostedCache 是 run 命令托管的一个缓存及其回源器。
type hostedCache struct {
	name   string
	cache  xlocal.Cache[string, *payload]
	loader *xlocal.Loader[string, *payload]
}

// cmdRun 创建配置文件中的所有缓存，定期输出统计，直到超时或收到信号。
//
// 配置文件变更时更新日志级别（--log-level 指定时除外）；缓存配置的变更只记录告警，
// 重启后生效。
func cmdRun(ctx context.Context, cmd *cli.Command) error {
	interval := cmd.Duration("report-interval")
	traffic := cmd.Int("traffic")
	keys := cmd.Int("keys")
	switch {
	case interval <= 0:
		return usagef("--report-interval 必须为正数: %s", interval)
	case traffic < 0:
		return usagef("--traffic 不能为负数: %d", traffic)
	case keys <= 0:
		return usagef("--keys 必须为正数: %d", keys)
	case cmd.Duration("duration") < 0:
		return usagef("--duration 不能为负数: %s", cmd.Duration("duration"))
	}

	f, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	specs, err := f.Specs()
	if err != nil {
		return err
	}
	logger, level, cleanup, err := newLogger(cmd, f.Log)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	if d := cmd.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.WithoutCancel(ctx)) }()

	caches, err := openCaches(specs, mp, logger)
	if err != nil {
		return err
	}
	defer closeCaches(caches)

	watcher, err := xconf.Watch(f.Path(), func(nf *xconf.File, err error) {
		if err != nil {
			logger.Warn("config reload failed", "path", f.Path(), "error", err)
			return
		}
		if !cmd.IsSet("log-level") {
			level.Set(nf.Log.Level.Slog())
		}
		for _, name := range changedCaches(specs, nf.Caches) {
			logger.Warn("cache config changed, restart to apply", "cache", name)
		}
		logger.Info("config reloaded", "path", nf.Path(), "log_level", nf.Log.Level)
	})
	if err != nil {
		return err
	}
	watcher.StartAsync()
	defer func() {
		if err := watcher.Stop(); err != nil {
			logger.Warn("stop config watcher failed", "error", err)
		}
	}()

	logger.Info("caches ready", "config", f.Path(), "count", len(caches))

	g, gctx := errgroup.WithContext(ctx)
	if traffic > 0 {
		for _, hc := range caches {
			g.Go(func() error { return hc.drive(gctx, logger, traffic, keys) })
		}
	}
	g.Go(func() error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				reportCaches(logger, caches)
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	reportCaches(logger, caches)
	logger.Info("shutting down")
	return writeMetrics(context.WithoutCancel(ctx), cmd.Root().Writer, reader)
}

// openCaches 按名称顺序创建缓存，任意一个失败时关闭已创建的缓存。
func openCaches(specs map[string]xlocal.Spec, mp *sdkmetric.MeterProvider, logger *slog.Logger) ([]*hostedCache, error) {
	caches := make([]*hostedCache, 0, len(specs))
	for _, name := range sortedKeys(specs) {
		hc, err := openCache(name, specs[name], mp, logger)
		if err != nil {
			closeCaches(caches)
			return nil, err
		}
		caches = append(caches, hc)
	}
	return caches, nil
}

func openCache(name string, spec xlocal.Spec, mp *sdkmetric.MeterProvider, logger *slog.Logger) (*hostedCache, error) {
	rec, err := xmetrics.NewOTelRecorder(name, xmetrics.WithMeterProvider(mp))
	if err != nil {
		return nil, err
	}
	c, err := xlocal.BuildWeak[string, payload](spec,
		xlocal.WithName[string, *payload](name),
		xlocal.WithRecorder[string, *payload](rec),
		xlocal.WithLogger[string, *payload](logger),
		xlocal.WithOnRemove[string, *payload](func(key string, _ *payload, cause xlocal.RemovalCause) {
			logger.Debug("cache entry removed", "cache", name, "key", key, "cause", cause)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("cache %q: %w", name, err)
	}
	loader, err := xlocal.NewLoader(c, fetchPayload,
		xlocal.WithLoadTimeout(time.Second),
		xlocal.WithRetry(3, 10*time.Millisecond),
		xlocal.WithBreaker(xlocal.BreakerSettings{}),
		xlocal.WithLoaderLogger(logger),
		xlocal.WithLoaderRecorder(rec),
	)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return &hostedCache{name: name, cache: c, loader: loader}, nil
}

func closeCaches(caches []*hostedCache) {
	for _, hc := range caches {
		_ = hc.cache.Close()
	}
}

// drive 每个周期通过回源器读取随机 key，约 5% 的操作改为删除。
func (hc *hostedCache) drive(ctx context.Context, logger *slog.Logger, perSecond, keys int) error {
	perTick := max(perSecond*int(trafficTick)/int(time.Second), 1)
	t := time.NewTicker(trafficTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		for range perTick {
			key := "k" + strconv.Itoa(rand.IntN(keys))
			if rand.IntN(20) == 0 {
				hc.cache.Remove(key)
				continue
			}
			if _, err := hc.loader.Load(ctx, key); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("load failed", "cache", hc.name, "key", key, "error", err)
			}
		}
	}
}

func reportCaches(logger *slog.Logger, caches []*hostedCache) {
	for _, hc := range caches {
		s := hc.cache.Stats()
		logger.Info("cache stats",
			"cache", hc.name,
			"size", s.Size,
			"capacity", s.Capacity,
			"hits", s.Hits,
			"misses", s.Misses,
			"hit_ratio", s.HitRatio,
			"evictions", s.Evictions,
			"expirations", s.Expirations,
			"optimistic_reads", s.Guard.OptimisticReads,
			"fallbacks", s.Guard.Fallbacks,
			"breaker", hc.loader.BreakerState(),
		)
	}
}
