package xmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xkitcache/xlocal"
	unknownCache               = "unknown"

	metricHits         = "xkitcache.local.hits"
	metricMisses       = "xkitcache.local.misses"
	metricRemovals     = "xkitcache.local.removals"
	metricLoadDuration = "xkitcache.local.load.duration"
	metricSize         = "xkitcache.local.size"

	spanLoad = "xlocal.load"
)

type otelConfig struct {
	instrumentationName string
	tracerProvider      trace.TracerProvider
	meterProvider       metric.MeterProvider
}

// Option 定义 OTel Recorder 的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider。
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// WithMeterProvider 设置 MeterProvider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// OTelRecorder 是基于 OpenTelemetry 的 Recorder，同时实现 SizeTracker。
// 一个 OTelRecorder 对应一个缓存实例。
type OTelRecorder struct {
	cache  string
	tracer trace.Tracer
	meter  metric.Meter

	hits     metric.Int64Counter
	misses   metric.Int64Counter
	removals metric.Int64Counter
	duration metric.Float64Histogram
	size     metric.Int64ObservableGauge

	cacheAttr metric.MeasurementOption

	mu  sync.Mutex
	reg metric.Registration
}

// NewOTelRecorder 创建基于 OpenTelemetry 的 Recorder。cache 为空时使用 "unknown"。
func NewOTelRecorder(cache string, opts ...Option) (*OTelRecorder, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		tracerProvider:      otel.GetTracerProvider(),
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cache == "" {
		cache = unknownCache
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)
	r := &OTelRecorder{
		cache:     cache,
		tracer:    cfg.tracerProvider.Tracer(cfg.instrumentationName),
		meter:     meter,
		cacheAttr: metric.WithAttributeSet(attribute.NewSet(attribute.String("cache", cache))),
	}

	var err error
	if r.hits, err = meter.Int64Counter(metricHits,
		metric.WithDescription("cache hits"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	if r.misses, err = meter.Int64Counter(metricMisses,
		metric.WithDescription("cache misses"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	if r.removals, err = meter.Int64Counter(metricRemovals,
		metric.WithDescription("removed cache entries"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	if r.duration, err = meter.Float64Histogram(metricLoadDuration,
		metric.WithDescription("cache load duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateHistogram, err)
	}
	if r.size, err = meter.Int64ObservableGauge(metricSize,
		metric.WithDescription("current cache entries"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateGauge, err)
	}
	return r, nil
}

// Cache 返回缓存名称。
func (r *OTelRecorder) Cache() string { return r.cache }

// Hit 记录一次命中。
func (r *OTelRecorder) Hit() {
	r.hits.Add(context.Background(), 1, r.cacheAttr)
}

// Miss 记录一次未命中。
func (r *OTelRecorder) Miss() {
	r.misses.Add(context.Background(), 1, r.cacheAttr)
}

// Removed 记录 n 个因 reason 被移除的条目。
func (r *OTelRecorder) Removed(reason string, n int) {
	if n <= 0 {
		return
	}
	r.removals.Add(context.Background(), int64(n), metric.WithAttributes(
		attribute.String("cache", r.cache),
		attribute.String("reason", reason),
	))
}

// StartLoad 开始一次加载跨度。end 幂等，多次调用只记录一次。
func (r *OTelRecorder) StartLoad(ctx context.Context) (context.Context, func(error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := r.tracer.Start(ctx, spanLoad,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("cache", r.cache)),
	)
	start := time.Now()

	var once sync.Once
	return ctx, func(err error) {
		once.Do(func() {
			status := StatusOf(err)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()

			// 请求 context 可能已取消，指标仍需记录。
			metricsCtx := context.WithoutCancel(ctx)
			r.duration.Record(metricsCtx, time.Since(start).Seconds(), metric.WithAttributes(
				attribute.String("cache", r.cache),
				attribute.String("status", string(status)),
			))
		})
	}
}

// TrackSize 注册容量观测回调。每个 Recorder 同时只能注册一个。
func (r *OTelRecorder) TrackSize(size func() int64) error {
	if size == nil {
		return ErrNilSizeFunc
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg != nil {
		return ErrSizeTracked
	}
	reg, err := r.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(r.size, size(), r.cacheAttr)
		return nil
	}, r.size)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateGauge, err)
	}
	r.reg = reg
	return nil
}

// UntrackSize 注销容量观测回调。未注册时为空操作。
func (r *OTelRecorder) UntrackSize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg == nil {
		return nil
	}
	err := r.reg.Unregister()
	r.reg = nil
	return err
}

var (
	_ Recorder    = (*OTelRecorder)(nil)
	_ SizeTracker = (*OTelRecorder)(nil)
)
