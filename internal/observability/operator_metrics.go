package observability

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricEffectiveBound  = "rollup.trace.effective_bound"
	metricRadixNodes      = "rollup.radix.nodes"
	metricGCTruncations   = "rollup.gc.truncations.total"
	metricGCDroppedWeight = "rollup.gc.dropped_entries.total"
)

// BoundSource reports the input trace's current effective GC bound — the
// minimum of all registered Bounds members, or false while unbounded.
type BoundSource func() (bound int64, ok bool)

// RadixNodesSource reports the current number of populated radix-tree
// nodes across all partitions.
type RadixNodesSource func() int64

// OperatorMetrics holds OTel instruments specific to the rolling-aggregate
// operator: polled gauges for trace/tree state, and a counter for GC
// truncations driven by watermark advance.
type OperatorMetrics struct {
	gcTruncations   metric.Int64Counter
	gcDroppedWeight metric.Int64Counter
}

// NewOperatorMetrics creates operator-specific metric instruments from the
// given meter. boundFn and radixFn are polled once per collection cycle by
// the meter's registered callback; either may be nil to skip that gauge.
func NewOperatorMetrics(mt metric.Meter, boundFn BoundSource, radixFn RadixNodesSource) (*OperatorMetrics, error) {
	b := newMetricBuilder(mt)

	om := &OperatorMetrics{
		gcTruncations:   b.counter(metricGCTruncations, "Total GC truncation passes driven by watermark advance", "{truncation}"),
		gcDroppedWeight: b.counter(metricGCDroppedWeight, "Total entries dropped by GC truncation", "{entry}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	if boundFn != nil {
		_, err := mt.Int64ObservableGauge(metricEffectiveBound,
			metric.WithDescription("Current effective GC bound on the input trace's TS axis"),
			metric.WithUnit("{timestamp}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				if bound, ok := boundFn(); ok {
					o.Observe(bound)
				}

				return nil
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	if radixFn != nil {
		_, err := mt.Int64ObservableGauge(metricRadixNodes,
			metric.WithDescription("Current number of populated radix-tree nodes across all partitions"),
			metric.WithUnit("{node}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(radixFn())

				return nil
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	return om, nil
}

// RecordGCTruncation records a completed GC truncation pass that dropped
// droppedEntries entries below the effective bound.
func (om *OperatorMetrics) RecordGCTruncation(ctx context.Context, droppedEntries int64) {
	if om == nil {
		return
	}

	om.gcTruncations.Add(ctx, 1)
	om.gcDroppedWeight.Add(ctx, droppedEntries)
}
