package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/streamcore/rollup/internal/observability"
)

func TestEndToEnd_TraceExported(t *testing.T) {
	t.Parallel()
	// Set up an in-memory span exporter to capture spans.
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("rollup")

	// Simulate a tick: root span with child phase spans.
	ctx, rootSpan := tracer.Start(context.Background(), "rollup.circuit.run_tick")

	_, windowSpan := tracer.Start(ctx, "rollup.window.filter")
	windowSpan.End()

	_, radixSpan := tracer.Start(ctx, "rollup.radix.build")
	radixSpan.End()

	_, rollupSpan := tracer.Start(ctx, "rollup.operator.aggregate")
	rollupSpan.End()

	rootSpan.End()

	// Verify spans were captured.
	spans := exporter.GetSpans()
	require.Len(t, spans, 4)

	// All child spans should share the root's trace ID.
	rootTraceID := spans[3].SpanContext.TraceID()
	for _, span := range spans[:3] {
		assert.Equal(t, rootTraceID, span.SpanContext.TraceID(),
			"child span %q should share root trace ID", span.Name)
	}

	// Verify span names.
	spanNames := make([]string, len(spans))
	for i, span := range spans {
		spanNames[i] = span.Name
	}

	assert.Contains(t, spanNames, "rollup.circuit.run_tick")
	assert.Contains(t, spanNames, "rollup.window.filter")
	assert.Contains(t, spanNames, "rollup.radix.build")
	assert.Contains(t, spanNames, "rollup.operator.aggregate")

	// Verify parent-child relationship: window/radix/rollup have root as parent.
	rootSpanID := spans[3].SpanContext.SpanID()
	for _, span := range spans[:3] {
		assert.Equal(t, rootSpanID, span.Parent.SpanID(),
			"child span %q should have root as parent", span.Name)
	}
}

func TestEndToEnd_MetricsExported(t *testing.T) {
	t.Parallel()
	// Set up an in-memory metric reader.
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("rollup")

	tm, err := observability.NewTickMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()

	// Simulate a successful tick.
	tm.RecordTick(ctx, "rollup", "ok", time.Second)

	// Simulate a faster tick (small delta batch).
	tm.RecordTick(ctx, "rollup", "ok", time.Millisecond*500)

	// Simulate a failed tick.
	tm.RecordTick(ctx, "rollup", "error", time.Second*2)

	// Collect metrics.
	var rm metricdata.ResourceMetrics

	err = reader.Collect(ctx, &rm)
	require.NoError(t, err)

	// Verify tick counter exists and has recordings.
	ticksTotal := findMetric(rm, "rollup.ticks.total")
	require.NotNil(t, ticksTotal, "rollup.ticks.total metric not found")

	// Verify duration histogram exists.
	tickDuration := findMetric(rm, "rollup.tick.duration.seconds")
	require.NotNil(t, tickDuration, "rollup.tick.duration.seconds metric not found")

	// Verify error counter exists.
	errTotal := findMetric(rm, "rollup.errors.total")
	require.NotNil(t, errTotal, "rollup.errors.total metric not found")
}

func TestEndToEnd_MiddlewareProducesSpans(t *testing.T) {
	t.Parallel()
	// Full integration: Init-like setup with in-memory exporter, HTTP
	// middleware creates spans, spans are captured.
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("rollup")

	// Wire middleware around a handler that creates a child span.
	inner := http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		_, child := tracer.Start(hr.Context(), "rollup.tick")
		child.End()

		rw.WriteHeader(http.StatusOK)
	})

	mw := observability.HTTPMiddleware(tracer, discardLogger, inner)

	req := httptest.NewRequest(http.MethodPost, "/v1/tick", http.NoBody)
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	// Verify parent-child: tick is child of middleware span.
	middlewareSpan := spans[1] // middleware span ends last.
	tickSpan := spans[0]

	assert.Equal(t, "POST /v1/tick", middlewareSpan.Name)
	assert.Equal(t, "rollup.tick", tickSpan.Name)
	assert.Equal(t, middlewareSpan.SpanContext.SpanID(), tickSpan.Parent.SpanID())
}
