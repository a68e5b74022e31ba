package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/streamcore/rollup/internal/observability"
)

func setupOperatorMeter(t *testing.T, boundFn observability.BoundSource, radixFn observability.RadixNodesSource) (*observability.OperatorMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	om, err := observability.NewOperatorMetrics(meter, boundFn, radixFn)
	require.NoError(t, err)

	return om, reader
}

func TestNewOperatorMetrics_NilSources(t *testing.T) {
	t.Parallel()

	om, _ := setupOperatorMeter(t, nil, nil)
	assert.NotNil(t, om)
}

func TestOperatorMetrics_RecordGCTruncation(t *testing.T) {
	t.Parallel()

	om, reader := setupOperatorMeter(t, nil, nil)
	ctx := context.Background()

	om.RecordGCTruncation(ctx, 42)

	rm := collectMetrics(t, reader)

	truncations := findMetric(rm, "rollup.gc.truncations.total")
	require.NotNil(t, truncations, "rollup.gc.truncations.total metric not found")

	dropped := findMetric(rm, "rollup.gc.dropped_entries.total")
	require.NotNil(t, dropped, "rollup.gc.dropped_entries.total metric not found")
}

func TestOperatorMetrics_RecordGCTruncation_NilReceiver(t *testing.T) {
	t.Parallel()

	var om *observability.OperatorMetrics

	// Should not panic.
	om.RecordGCTruncation(context.Background(), 10)
}

func TestOperatorMetrics_EffectiveBoundGaugePolled(t *testing.T) {
	t.Parallel()

	boundFn := func() (int64, bool) { return 7, true }
	om, reader := setupOperatorMeter(t, boundFn, nil)
	require.NotNil(t, om)

	rm := collectMetrics(t, reader)

	bound := findMetric(rm, "rollup.trace.effective_bound")
	require.NotNil(t, bound, "rollup.trace.effective_bound metric not found")
}

func TestOperatorMetrics_RadixNodesGaugePolled(t *testing.T) {
	t.Parallel()

	radixFn := func() int64 { return 128 }
	om, reader := setupOperatorMeter(t, nil, radixFn)
	require.NotNil(t, om)

	rm := collectMetrics(t, reader)

	nodes := findMetric(rm, "rollup.radix.nodes")
	require.NotNil(t, nodes, "rollup.radix.nodes metric not found")
}

func TestOperatorMetrics_EffectiveBoundGaugeSkippedWhenUnbounded(t *testing.T) {
	t.Parallel()

	boundFn := func() (int64, bool) { return 0, false }
	om, reader := setupOperatorMeter(t, boundFn, nil)
	require.NotNil(t, om)

	// Should not panic when the callback reports "unbounded".
	_ = collectMetrics(t, reader)
}
