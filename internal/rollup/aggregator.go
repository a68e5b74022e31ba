// Package rollup implements the partitioned rolling-aggregate operator:
// the quaternary join of an input delta, the integrated input trace, the
// partitioned radix tree built over it, and the previous tick's output
// trace, producing an output delta of (partition, timestamp) -> finalized
// aggregate.
package rollup

import "github.com/streamcore/rollup/internal/option"

// WeightedValue is one payload carrying its signed Z-set weight, the unit
// an Aggregator folds over.
type WeightedValue[V any] struct {
	Value  V
	Weight int64
}

// Aggregator summarizes the weighted payloads sharing one (partition,
// timestamp) leaf into an associative Accumulator, then projects that
// accumulator to the emitted Output type.
type Aggregator[V any, A any, O any] interface {
	// Combine is the accumulator's associative semigroup operation, used
	// both to fold a leaf's entries and to combine leaves into the radix
	// tree's interior nodes.
	Combine(a, b A) A

	// Aggregate folds entries (all sharing one partition and timestamp)
	// into an accumulator, or None if entries is empty.
	Aggregate(entries []WeightedValue[V]) option.Option[A]

	// Finalize projects an accumulator to the emitted output type.
	Finalize(a A) O
}

// LinearAggregator implements Aggregator for a linear function f: V -> A,
// i.e. one satisfying f(a+b) = f(a) + f(b): the accumulator is exactly
// Σ f(vᵢ)·wᵢ using the ring's Add and Scale operations. Produces correct
// results only when F truly is linear.
type LinearAggregator[V any, A any, O any] struct {
	F      func(V) A
	Output func(A) O
	Add    func(a, b A) A
	Scale  func(a A, weight int64) A
}

// Combine implements Aggregator.
func (l LinearAggregator[V, A, O]) Combine(a, b A) A {
	return l.Add(a, b)
}

// Aggregate implements Aggregator.
func (l LinearAggregator[V, A, O]) Aggregate(entries []WeightedValue[V]) option.Option[A] {
	var acc option.Option[A]

	for _, e := range entries {
		contribution := l.Scale(l.F(e.Value), e.Weight)
		acc = option.Combine(l.Add, acc, option.Some(contribution))
	}

	return acc
}

// Finalize implements Aggregator.
func (l LinearAggregator[V, A, O]) Finalize(a A) O {
	return l.Output(a)
}
