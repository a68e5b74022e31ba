package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricTicksTotal    = "rollup.ticks.total"
	metricTickDuration  = "rollup.tick.duration.seconds"
	metricErrorsTotal   = "rollup.errors.total"
	metricInflightTicks = "rollup.inflight.ticks"

	attrOp     = "op"
	attrStatus = "status"

	statusError = "error"
)

// durationBucketBoundaries covers 10ms to 600s: from a single-shard tick
// over a small batch to a cold-start tick that rebuilds a large radix tree.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// TickMetrics holds the OTel instruments for Rate, Error, Duration metrics
// over the circuit's per-tick scheduling loop.
type TickMetrics struct {
	ticksTotal    metric.Int64Counter
	tickDuration  metric.Float64Histogram
	errorsTotal   metric.Int64Counter
	inflightTicks metric.Int64UpDownCounter
}

// NewTickMetrics creates RED metric instruments from the given meter.
func NewTickMetrics(mt metric.Meter) (*TickMetrics, error) {
	b := newMetricBuilder(mt)

	tm := &TickMetrics{
		ticksTotal:    b.counter(metricTicksTotal, "Total number of scheduler ticks run", "{tick}"),
		tickDuration:  b.histogram(metricTickDuration, "Tick duration in seconds", "s", durationBucketBoundaries...),
		errorsTotal:   b.counter(metricErrorsTotal, "Total number of tick errors", "{error}"),
		inflightTicks: b.upDownCounter(metricInflightTicks, "Number of in-flight ticks", "{tick}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return tm, nil
}

// RecordTick records a completed tick with its operation (e.g. the node
// name driving it), status, and duration.
func (tm *TickMetrics) RecordTick(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	tm.ticksTotal.Add(ctx, 1, attrs)
	tm.tickDuration.Record(ctx, duration.Seconds(), attrs)

	if status == statusError {
		tm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (tm *TickMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	tm.inflightTicks.Add(ctx, 1, attrs)

	return func() {
		tm.inflightTicks.Add(ctx, -1, attrs)
	}
}
