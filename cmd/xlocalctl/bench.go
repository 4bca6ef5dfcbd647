package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xkitcache/pkg/observability/xlog"
	"github.com/omeyang/xkitcache/pkg/observability/xmetrics"
	"github.com/omeyang/xkitcache/pkg/storage/xlocal"
)

// benchSeed 固定随机种子，同样的参数得到同样的访问序列。
const benchSeed = 0x5eed

// benchLogConfig 压测只输出告警以上的日志，避免干扰结果。
var benchLogConfig = xlog.Config{Level: xlog.LevelWarn}

func createBenchCommand() *cli.Command {
	return &cli.Command{
		Name:         "bench",
		Usage:        "对单个缓存做并发压测",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "policy", Usage: "淘汰策略 (fifo/lru/lfu/timed/weak)", Value: "lru"},
			&cli.StringFlag{Name: "guard", Usage: "并发保护方式 (rw/mutex/optimistic)", Value: "mutex"},
			&cli.IntFlag{Name: "capacity", Usage: "容量上限，0 表示不限制", Value: 1024},
			&cli.DurationFlag{Name: "ttl", Usage: "默认 TTL，0 表示永不过期"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "并发 goroutine 数", Value: 4},
			&cli.IntFlag{Name: "ops", Aliases: []string{"n"}, Usage: "总操作数", Value: 100_000},
			&cli.IntFlag{Name: "keys", Usage: "key 空间大小", Value: 2048},
			&cli.FloatFlag{Name: "read-ratio", Usage: "读操作占比 (0-1)", Value: 0.9},
		},
		Action: cmdBench,
	}
}

type benchConfig struct {
	spec      xlocal.Spec
	workers   int
	ops       int
	keys      int
	readRatio float64
}

func parseBenchConfig(cmd *cli.Command) (benchConfig, error) {
	policy, err := xlocal.ParsePolicy(cmd.String("policy"))
	if err != nil {
		return benchConfig{}, &usageError{msg: err.Error()}
	}
	guard, err := xlocal.ParseGuardKind(cmd.String("guard"))
	if err != nil {
		return benchConfig{}, &usageError{msg: err.Error()}
	}
	cfg := benchConfig{
		spec: xlocal.Spec{
			Policy:     policy,
			Guard:      guard,
			Capacity:   cmd.Int("capacity"),
			DefaultTTL: cmd.Duration("ttl"),
		},
		workers:   cmd.Int("workers"),
		ops:       cmd.Int("ops"),
		keys:      cmd.Int("keys"),
		readRatio: cmd.Float("read-ratio"),
	}
	if err := cfg.spec.Validate(); err != nil {
		return benchConfig{}, &usageError{msg: err.Error()}
	}
	switch {
	case cfg.workers <= 0:
		return benchConfig{}, usagef("--workers 必须为正数: %d", cfg.workers)
	case cfg.ops <= 0:
		return benchConfig{}, usagef("--ops 必须为正数: %d", cfg.ops)
	case cfg.keys <= 0:
		return benchConfig{}, usagef("--keys 必须为正数: %d", cfg.keys)
	case cfg.readRatio < 0 || cfg.readRatio > 1:
		return benchConfig{}, usagef("--read-ratio 必须在 0 到 1 之间: %g", cfg.readRatio)
	}
	return cfg, nil
}

// cmdBench 按参数创建缓存，用固定种子的随机访问序列压测，最后打印统计和指标。
// 读未命中时写入，模拟旁路缓存。收到信号时提前结束并报告已完成的部分。
func cmdBench(ctx context.Context, cmd *cli.Command) error {
	cfg, err := parseBenchConfig(cmd)
	if err != nil {
		return err
	}
	logger, _, cleanup, err := newLogger(cmd, benchLogConfig)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.WithoutCancel(ctx)) }()

	rec, err := xmetrics.NewOTelRecorder("bench", xmetrics.WithMeterProvider(mp))
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	if cfg.spec.Policy == xlocal.PolicyWeak {
		c, err := xlocal.BuildWeak[int, int](cfg.spec,
			xlocal.WithName[int, *int]("bench"),
			xlocal.WithRecorder[int, *int](rec),
			xlocal.WithLogger[int, *int](logger),
		)
		if err != nil {
			return err
		}
		return runBench(ctx, w, c, func(i int) *int { return &i }, cfg, reader)
	}

	c, err := xlocal.Build[int, int](cfg.spec,
		xlocal.WithName[int, int]("bench"),
		xlocal.WithRecorder[int, int](rec),
		xlocal.WithLogger[int, int](logger),
	)
	if err != nil {
		return err
	}
	return runBench(ctx, w, c, func(i int) int { return i }, cfg, reader)
}

func runBench[V any](ctx context.Context, w io.Writer, c xlocal.Cache[int, V], value func(int) V,
	cfg benchConfig, reader *sdkmetric.ManualReader) error {
	defer func() { _ = c.Close() }()

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for i := range cfg.workers {
		n := cfg.ops / cfg.workers
		if i < cfg.ops%cfg.workers {
			n++
		}
		r := rand.New(rand.NewPCG(benchSeed, uint64(i)))
		g.Go(func() error {
			var local int64
			defer func() { done.Add(local) }()
			for j := range n {
				if j&1023 == 0 && gctx.Err() != nil {
					return nil
				}
				key := r.IntN(cfg.keys)
				if r.Float64() < cfg.readRatio {
					if _, ok := c.Get(key); !ok {
						c.Put(key, value(key))
					}
				} else {
					c.Put(key, value(key))
				}
				local++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := max(time.Since(start), time.Microsecond)

	s := c.Stats()
	ops := done.Load()
	fmt.Fprintf(w, "policy=%s guard=%s capacity=%d ttl=%s workers=%d keys=%d read-ratio=%g\n",
		cfg.spec.Policy, cfg.spec.Guard, cfg.spec.Capacity, formatDuration(cfg.spec.DefaultTTL),
		cfg.workers, cfg.keys, cfg.readRatio)
	fmt.Fprintf(w, "ops: %d in %s (%.0f ops/s)\n",
		ops, elapsed.Round(time.Microsecond), float64(ops)/elapsed.Seconds())
	fmt.Fprintf(w, "hits: %d misses: %d hit-ratio: %.2f%%\n", s.Hits, s.Misses, s.HitRatio*100)
	fmt.Fprintf(w, "size: %d evictions: %d expirations: %d\n", s.Size, s.Evictions, s.Expirations)
	fmt.Fprintf(w, "optimistic-reads: %d fallbacks: %d\n", s.Guard.OptimisticReads, s.Guard.Fallbacks)
	fmt.Fprintln(w, "metrics:")
	return writeMetrics(context.WithoutCancel(ctx), w, reader)
}

// writeMetrics 采集并逐个数据点打印指标，省略 cache 属性。
func writeMetrics(ctx context.Context, w io.Writer, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "  %s%s %d\n", m.Name, labels(dp.Attributes), dp.Value)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "  %s%s %d\n", m.Name, labels(dp.Attributes), dp.Value)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "  %s%s count=%d sum=%.6f\n", m.Name, labels(dp.Attributes), dp.Count, dp.Sum)
				}
			}
		}
	}
	return nil
}

func labels(set attribute.Set) string {
	var b strings.Builder
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		if kv.Key == "cache" {
			continue
		}
		if b.Len() == 0 {
			b.WriteByte('{')
		} else {
			b.WriteByte(',')
		}
		b.WriteString(string(kv.Key))
		b.WriteByte('=')
		b.WriteString(kv.Value.Emit())
	}
	if b.Len() > 0 {
		b.WriteByte('}')
	}
	return b.String()
}
