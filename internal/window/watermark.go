package window

import "github.com/streamcore/rollup/internal/trace"

// Watermark wraps a RelRange with the shared state needed to bound the
// rolling-aggregate operator's input trace against a monotonically
// growing watermark: it restricts retained input timestamps to the
// smallest trailing window that could still affect any output still
// subject to revision.
type Watermark[TS Integer] struct {
	rng   RelRange[TS]
	bound *trace.Bound[TS]
}

// NewWatermark constructs a Watermark wrapper around rng. The returned
// Bound should be registered with the input trace's Bounds so its GC pass
// truncates timestamps below the same floor this wrapper computes.
func NewWatermark[TS Integer](rng RelRange[TS], less func(a, b TS) bool) *Watermark[TS] {
	return &Watermark[TS]{
		rng:   rng,
		bound: trace.NewBound[TS](less),
	}
}

// Bound returns the shared lower-bound cell, to register with a
// Bounds for the operator's input trace.
func (w *Watermark[TS]) Bound() *trace.Bound[TS] {
	return w.bound
}

// Advance computes the input window for a new watermark value and
// updates the shared bound. The returned range is [lb, max(TS)], where
// lb = watermark - (rng.To - rng.From), the lower bound on input
// timestamps that may still change a not-yet-finalized output, clamped
// to TS's minimum value on underflow.
func (w *Watermark[TS]) Advance(watermark TS) Range[TS] {
	shifted := RelRange[TS]{
		From: widthBefore(w.rng.From, w.rng.To),
		To:   Before(0),
	}

	lb := minValue[TS]()
	if r, ok := shifted.RangeOf(watermark); ok {
		lb = r.From
	}

	w.bound.Set(lb)

	return Range[TS]{From: lb, To: maxValue[TS]()}
}

// widthBefore returns a Before(n) offset whose magnitude is the distance
// between from and to on the signed offset line (Before(n) = -n,
// After(n) = +n), or BeforeInfinite if either endpoint is unbounded. It is
// always non-negative: a from that is already "after" to yields Before(0).
func widthBefore(from, to RelOffset) RelOffset {
	if from.kind == offsetBeforeInfinite || to.kind == offsetAfterInfinite {
		return BeforeInfinite()
	}

	value := func(o RelOffset) int64 {
		switch o.kind {
		case offsetBefore:
			return -int64(o.n)
		case offsetAfter:
			return int64(o.n)
		default:
			return 0
		}
	}

	delta := value(from) - value(to)
	if delta >= 0 {
		return Before(0)
	}

	return Before(uint64(-delta))
}
