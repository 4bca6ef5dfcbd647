package xmetrics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// ============================================================================
// 测试辅助函数
// ============================================================================

func newTestTracerProvider() (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return tp, exporter
}

func newTestMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return mp, reader
}

func newTestRecorder(t *testing.T, cache string) (*OTelRecorder, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	tp, exporter := newTestTracerProvider()
	mp, reader := newTestMeterProvider()
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	r, err := NewOTelRecorder(cache, WithTracerProvider(tp), WithMeterProvider(mp))
	require.NoError(t, err)
	return r, exporter, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumByAttr(t *testing.T, m metricdata.Metrics, key attribute.Key) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.AsString()] += dp.Value
	}
	return out
}

// ============================================================================
// NewOTelRecorder 测试
// ============================================================================

func TestNewOTelRecorder_Default(t *testing.T) {
	r, err := NewOTelRecorder("")
	require.NoError(t, err)
	assert.Equal(t, "unknown", r.Cache())
}

func TestNewOTelRecorder_WithOptions(t *testing.T) {
	tp, _ := newTestTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	mp, _ := newTestMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	r, err := NewOTelRecorder("users",
		WithInstrumentationName("test-instrumentation"),
		WithInstrumentationName(""),
		WithTracerProvider(tp),
		WithTracerProvider(nil),
		WithMeterProvider(mp),
		WithMeterProvider(nil),
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, "users", r.Cache())
}

// ============================================================================
// 计数器测试
// ============================================================================

func TestOTelRecorder_Counters(t *testing.T) {
	r, _, reader := newTestRecorder(t, "users")

	r.Hit()
	r.Hit()
	r.Miss()
	r.Removed("evicted", 3)
	r.Removed("expired", 1)
	r.Removed("cleared", 0)

	got := collect(t, reader)
	assert.Equal(t, map[string]int64{"users": 2}, sumByAttr(t, got[metricHits], "cache"))
	assert.Equal(t, map[string]int64{"users": 1}, sumByAttr(t, got[metricMisses], "cache"))
	assert.Equal(t, map[string]int64{"evicted": 3, "expired": 1}, sumByAttr(t, got[metricRemovals], "reason"))
}

// ============================================================================
// StartLoad 测试
// ============================================================================

func TestOTelRecorder_StartLoad_Success(t *testing.T) {
	r, exporter, reader := newTestRecorder(t, "users")

	ctx, end := r.StartLoad(context.Background())
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, spanLoad, spans[0].Name)
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("cache", "users"))

	got := collect(t, reader)
	hist, ok := got[metricLoadDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	status, _ := hist.DataPoints[0].Attributes.Value("status")
	assert.Equal(t, string(StatusOK), status.AsString())
}

func TestOTelRecorder_StartLoad_Error(t *testing.T) {
	r, exporter, _ := newTestRecorder(t, "users")

	_, end := r.StartLoad(context.Background())
	end(errors.New("backend down"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "backend down", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestOTelRecorder_StartLoad_EndOnce(t *testing.T) {
	r, exporter, reader := newTestRecorder(t, "users")

	//nolint:staticcheck // 测试 nil context 的兼容处理
	ctx, end := r.StartLoad(nil)
	require.NotNil(t, ctx)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			end(nil)
		}()
	}
	wg.Wait()

	assert.Len(t, exporter.GetSpans(), 1)
	hist := collect(t, reader)[metricLoadDuration].Data.(metricdata.Histogram[float64])
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestOTelRecorder_StartLoad_CanceledContext(t *testing.T) {
	r, _, reader := newTestRecorder(t, "users")

	ctx, cancel := context.WithCancel(context.Background())
	_, end := r.StartLoad(ctx)
	cancel()
	end(context.Canceled)

	hist := collect(t, reader)[metricLoadDuration].Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	status, _ := hist.DataPoints[0].Attributes.Value("status")
	assert.Equal(t, string(StatusError), status.AsString())
}

// ============================================================================
// SizeTracker 测试
// ============================================================================

func TestOTelRecorder_TrackSize(t *testing.T) {
	r, _, reader := newTestRecorder(t, "users")

	assert.ErrorIs(t, r.TrackSize(nil), ErrNilSizeFunc)
	require.NoError(t, r.UntrackSize(), "untrack without registration is a no-op")

	var size int64 = 7
	require.NoError(t, r.TrackSize(func() int64 { return size }))
	assert.ErrorIs(t, r.TrackSize(func() int64 { return 0 }), ErrSizeTracked)

	gauge, ok := collect(t, reader)[metricSize].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(7), gauge.DataPoints[0].Value)

	require.NoError(t, r.UntrackSize())
	if m, ok := collect(t, reader)[metricSize]; ok {
		assert.Empty(t, m.Data.(metricdata.Gauge[int64]).DataPoints, "no observation after untrack")
	}

	// 注销后可以重新注册
	require.NoError(t, r.TrackSize(func() int64 { return 1 }))
	require.NoError(t, r.UntrackSize())
}
