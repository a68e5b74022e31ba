package rollup

import (
	"github.com/streamcore/rollup/internal/option"
	"github.com/streamcore/rollup/internal/radix"
	"github.com/streamcore/rollup/internal/trace"
	"github.com/streamcore/rollup/internal/window"
)

// Output is the value half of an output trace's val axis: a timestamp
// paired with its (possibly absent) finalized aggregate.
type Output[TS any, O any] struct {
	TS  TS
	Agg option.Option[O]
}

// Operator is the partitioned rolling-aggregate operator: stateless
// across ticks (all state lives in the traces and tree passed to Tick),
// matching the fixedpoint(_) = true contract of a feedback-loop operator.
type Operator[PK comparable, TS window.Integer, V any, A any, O any] struct {
	Range      window.RelRange[TS]
	Aggregator Aggregator[V, A, O]
	ToKey      radix.ToKeyFunc[TS]
	CmpKey     trace.CmpFunc[PK]
}

// Tick computes one clock tick of the operator. delta is this tick's
// input changes; inputTrace must already include delta (the caller
// inserts it before calling Tick, since the trace is shared with other
// consumers); tree is rebuilt in place for every (partition, timestamp)
// touched by delta; outputTracePrev is last tick's output trace, fed back
// through a one-tick delay by the caller. Returns the output delta to
// append to the output trace for the next tick.
func (op *Operator[PK, TS, V, A, O]) Tick(
	delta []trace.Entry[PK, TS, V],
	inputTrace *trace.Trace[PK, TS, V],
	tree *radix.Tree[PK, A],
	outputTracePrev *trace.Trace[PK, TS, Output[TS, O]],
) []trace.Entry[PK, TS, Output[TS, O]] {
	changed := op.changedTimestamps(delta)

	var outputDelta []trace.Entry[PK, TS, Output[TS, O]]

	for _, pk := range op.sortedPartitions(changed) {
		timestamps := changed[pk]

		op.rebuildTreeLeaves(pk, timestamps, inputTrace, tree)

		affected := op.affectedRanges(timestamps)

		outputDelta = append(outputDelta, op.retractOldOutputs(pk, affected, outputTracePrev)...)
		outputDelta = append(outputDelta, op.computeNewOutputs(pk, affected, inputTrace, tree)...)
	}

	return outputDelta
}

// changedTimestamps groups delta by partition key, collecting the
// distinct timestamps each partition saw a change at.
func (op *Operator[PK, TS, V, A, O]) changedTimestamps(delta []trace.Entry[PK, TS, V]) map[PK]map[TS]struct{} {
	changed := make(map[PK]map[TS]struct{})

	for _, e := range delta {
		byTS, ok := changed[e.Key]
		if !ok {
			byTS = make(map[TS]struct{})
			changed[e.Key] = byTS
		}

		byTS[e.Val.TS] = struct{}{}
	}

	return changed
}

func (op *Operator[PK, TS, V, A, O]) sortedPartitions(changed map[PK]map[TS]struct{}) []PK {
	partitions := make([]PK, 0, len(changed))
	for pk := range changed {
		partitions = append(partitions, pk)
	}

	sortSlice(partitions, op.CmpKey)

	return partitions
}

// rebuildTreeLeaves re-aggregates the input trace's entries at each
// touched timestamp within partition and installs the result as that
// leaf's accumulator, propagating the change to every ancestor.
func (op *Operator[PK, TS, V, A, O]) rebuildTreeLeaves(
	pk PK,
	timestamps map[TS]struct{},
	inputTrace *trace.Trace[PK, TS, V],
	tree *radix.Tree[PK, A],
) {
	for ts := range timestamps {
		entries := valuesAtTimestamp(inputTrace, pk, ts, op.CmpKey)
		tree.SetLeaf(pk, op.ToKey(ts), op.Aggregator.Aggregate(entries))
	}
}

// affectedRanges is the union of range.AffectedRangeOf(ts) for every
// changed ts, merged with the singleton [ts, ts] to force emission when
// ts is itself newly populated.
func (op *Operator[PK, TS, V, A, O]) affectedRanges(timestamps map[TS]struct{}) []window.Range[TS] {
	var ranges []window.Range[TS]

	for ts := range timestamps {
		ranges = append(ranges, window.Range[TS]{From: ts, To: ts})

		if r, ok := op.Range.AffectedRangeOf(ts); ok {
			ranges = append(ranges, r)
		}
	}

	return mergeRanges(ranges)
}

// retractOldOutputs emits a -weight entry for every previously-emitted
// (partition, ts, prevAgg) whose ts falls within affected.
func (op *Operator[PK, TS, V, A, O]) retractOldOutputs(
	pk PK,
	affected []window.Range[TS],
	outputTracePrev *trace.Trace[PK, TS, Output[TS, O]],
) []trace.Entry[PK, TS, Output[TS, O]] {
	var retractions []trace.Entry[PK, TS, Output[TS, O]]

	cursor := outputTracePrev.Cursor()
	cursor.SeekKey(pk)

	if !cursor.KeyValid() || op.CmpKey(cursor.Key(), pk) != 0 {
		return nil
	}

	for _, r := range affected {
		cursor.SeekVal(trace.Tuple[TS, Output[TS, O]]{TS: r.From})

		for cursor.ValValid() && cursor.Val().TS <= r.To {
			weight := cursor.Weight()
			if weight != 0 {
				retractions = append(retractions, trace.Entry[PK, TS, Output[TS, O]]{
					Key:    pk,
					Val:    cursor.Val(),
					Weight: -weight,
				})
			}

			cursor.StepVal()
		}
	}

	return retractions
}

// computeNewOutputs emits a +1 entry for every timestamp within affected
// that now has at least one non-negatively-weighted payload, with its
// freshly-queried aggregate. A ts whose surviving entries are all
// zero-or-negative-weighted (net-retracted, even though trace.NewBatch
// only collapses entries to exactly zero) is treated the same as an
// empty ts and produces no output row.
func (op *Operator[PK, TS, V, A, O]) computeNewOutputs(
	pk PK,
	affected []window.Range[TS],
	inputTrace *trace.Trace[PK, TS, V],
	tree *radix.Tree[PK, A],
) []trace.Entry[PK, TS, Output[TS, O]] {
	var insertions []trace.Entry[PK, TS, Output[TS, O]]

	cursor := inputTrace.Cursor()
	cursor.SeekKey(pk)

	if !cursor.KeyValid() || op.CmpKey(cursor.Key(), pk) != 0 {
		return nil
	}

	for _, r := range affected {
		cursor.SeekVal(trace.Tuple[TS, V]{TS: r.From})

		for cursor.ValValid() && cursor.Val().TS <= r.To {
			ts := cursor.Val().TS

			if !advancePastTSTrackingPositiveWeight(cursor, ts) {
				continue
			}

			q, ok := op.Range.RangeOf(ts)
			if !ok {
				continue
			}

			acc := tree.AggregateRange(pk, op.ToKey(q.From), op.ToKey(q.To))
			agg := option.Map(acc, op.Aggregator.Finalize)

			insertions = append(insertions, trace.Entry[PK, TS, Output[TS, O]]{
				Key:    pk,
				Val:    trace.Tuple[TS, Output[TS, O]]{TS: ts, Payload: Output[TS, O]{TS: ts, Agg: agg}},
				Weight: 1,
			})
		}
	}

	return insertions
}

// advancePastTSTrackingPositiveWeight steps the cursor past every
// remaining val sharing ts, so at most one output row is emitted per
// (partition, ts) regardless of how many distinct payloads share it, and
// reports whether any of those vals carried a positive weight.
func advancePastTSTrackingPositiveWeight[PK any, TS window.Integer, V any](c *trace.Cursor[PK, TS, V], ts TS) bool {
	positive := false

	for c.ValValid() && c.Val().TS == ts {
		if c.Weight() > 0 {
			positive = true
		}

		c.StepVal()
	}

	return positive
}

// valuesAtTimestamp seeks a fresh cursor over inputTrace to (pk, ts) and
// collects every entry sharing that exact timestamp as a WeightedValue.
func valuesAtTimestamp[PK any, TS window.Integer, V any](
	inputTrace *trace.Trace[PK, TS, V],
	pk PK,
	ts TS,
	cmpKey trace.CmpFunc[PK],
) []WeightedValue[V] {
	cursor := inputTrace.Cursor()
	cursor.SeekKey(pk)

	if !cursor.KeyValid() || cmpKey(cursor.Key(), pk) != 0 {
		return nil
	}

	cursor.SeekVal(trace.Tuple[TS, V]{TS: ts})

	var entries []WeightedValue[V]

	for cursor.ValValid() && cursor.Val().TS == ts {
		entries = append(entries, WeightedValue[V]{Value: cursor.Val().Payload, Weight: cursor.Weight()})
		cursor.StepVal()
	}

	return entries
}

// sortSlice insertion-sorts s by cmp; partition counts per tick are small
// enough that this beats pulling in sort.Slice's reflection overhead.
func sortSlice[T any](s []T, cmp func(a, b T) int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && cmp(s[j-1], s[j]) > 0; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
