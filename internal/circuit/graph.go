package circuit

import (
	"github.com/streamcore/rollup/internal/radix"
	"github.com/streamcore/rollup/internal/rollup"
	"github.com/streamcore/rollup/internal/trace"
	"github.com/streamcore/rollup/internal/window"
)

// Fixed node identities for the topology this package schedules.
const (
	NodeInput  NodeID = "input"
	NodeWindow NodeID = "window"
	NodeRadix  NodeID = "radix"
	NodeRollup NodeID = "rollup"
)

// Graph is the fixed four-node dataflow this package runs: input ->
// window -> radix build -> rollup, with a Z-1 feedback edge from
// rollup's output back into the next tick's retraction pass. One Graph
// is built per validated dataflow-graph document by internal/graph; this
// type does not implement arbitrary operator wiring.
type Graph[PK comparable, TS window.Integer, V any, A any, O any] struct {
	Watermark *window.Watermark[TS]
	Operator  *rollup.Operator[PK, TS, V, A, O]

	InputTrace  *trace.Trace[PK, TS, V]
	Tree        *radix.Tree[PK, A]
	OutputTrace *trace.Trace[PK, TS, rollup.Output[TS, O]]

	// OutputBounds is the registry of every consumer's lower bound on the
	// TS axis; its effective (minimum) value gates how far GC may
	// truncate. The watermark operator's own bound is registered here at
	// construction, matching spec.md §4.E's "effective bound = min of
	// registered bounds".
	OutputBounds *trace.Bounds[TS]

	cache *TraceCache
}

// NewGraph wires the four nodes together, registering wm's bound with a
// fresh Bounds so Clock.RunTick's GC step has an effective bound to act
// on even with only the watermark operator as a consumer. Additional
// consumers of the output trace may call OutputBounds.Add to extend the
// set before the first tick.
func NewGraph[PK comparable, TS window.Integer, V any, A any, O any](
	wm *window.Watermark[TS],
	op *rollup.Operator[PK, TS, V, A, O],
	inputTrace *trace.Trace[PK, TS, V],
	tree *radix.Tree[PK, A],
	outputTrace *trace.Trace[PK, TS, rollup.Output[TS, O]],
	lessTS func(a, b TS) bool,
) *Graph[PK, TS, V, A, O] {
	bounds := trace.NewBounds[TS](lessTS)
	bounds.Add(wm.Bound())

	g := &Graph[PK, TS, V, A, O]{
		Watermark:    wm,
		Operator:     op,
		InputTrace:   inputTrace,
		Tree:         tree,
		OutputTrace:  outputTrace,
		OutputBounds: bounds,
		cache:        NewTraceCache(),
	}

	g.cache.Set(NodeInput, TraceKindTrace, inputTrace)
	g.cache.Set(NodeRollup, TraceKindDelayed, outputTrace)
	g.cache.Set(NodeRadix, TraceKindTrace, tree)

	return g
}

// Cache returns the graph's TraceCache, letting a serve-style caller
// look up NodeInput/NodeRollup's traces between ticks without holding a
// reference to the Graph itself.
func (g *Graph[PK, TS, V, A, O]) Cache() *TraceCache { return g.cache }

// Clock runs a Graph one tick at a time: single-threaded, step-
// synchronous per spec.md §5 — every node advances exactly once per
// RunTick call, in the fixed topological order input -> window -> radix
// -> rollup. No scheduler DAG solver is implemented since the topology
// never varies.
type Clock[PK comparable, TS window.Integer, V any, A any, O any] struct {
	graph *Graph[PK, TS, V, A, O]
	step  uint64

	cmpKey    trace.CmpFunc[PK]
	cmpVal    trace.CmpFunc[trace.Tuple[TS, V]]
	cmpOutVal trace.CmpFunc[trace.Tuple[TS, rollup.Output[TS, O]]]

	gcSink         GCSink[PK, TS, V, O]
	onGCTruncation func(dropped int)
}

// GCSink receives the entries a GC truncation pass drops from each trace,
// letting a caller archive them (e.g. to a checkpoint spill file) before
// they're discarded for good. A Clock with no sink configured just lets
// dropped entries fall away, matching the pre-checkpoint behavior.
type GCSink[PK any, TS any, V any, O any] interface {
	SpillInput(dropped []trace.Entry[PK, TS, V])
	SpillOutput(dropped []trace.Entry[PK, TS, rollup.Output[TS, O]])
}

// SetGCSink installs sink to receive every tick's dropped entries. Pass
// nil to stop archiving and resume discarding them.
func (c *Clock[PK, TS, V, A, O]) SetGCSink(sink GCSink[PK, TS, V, O]) {
	c.gcSink = sink
}

// SetGCMetrics installs onTruncation to be called once per tick that
// performs a GC truncation, with the total number of entries dropped
// across both traces (0 is never reported; the hook only fires when a
// truncation pass actually ran).
func (c *Clock[PK, TS, V, A, O]) SetGCMetrics(onTruncation func(dropped int)) {
	c.onGCTruncation = onTruncation
}

// NewClock constructs a Clock over graph. cmpKey/cmpVal/cmpOutVal must
// agree with the comparators the graph's traces were themselves built
// with, since RunTick inserts new batches into both traces every tick.
func NewClock[PK comparable, TS window.Integer, V any, A any, O any](
	graph *Graph[PK, TS, V, A, O],
	cmpKey trace.CmpFunc[PK],
	cmpVal trace.CmpFunc[trace.Tuple[TS, V]],
	cmpOutVal trace.CmpFunc[trace.Tuple[TS, rollup.Output[TS, O]]],
) *Clock[PK, TS, V, A, O] {
	return &Clock[PK, TS, V, A, O]{
		graph:     graph,
		cmpKey:    cmpKey,
		cmpVal:    cmpVal,
		cmpOutVal: cmpOutVal,
	}
}

// Step returns the number of ticks run so far.
func (c *Clock[PK, TS, V, A, O]) Step() uint64 { return c.step }

// RunTick advances the graph by one step:
//
//  1. window: advances the watermark to watermark, computing this tick's
//     admissible range and registering the new lower bound with the
//     graph's OutputBounds (§4.E); entries in delta outside the range are
//     dropped as late data before they reach the input trace.
//  2. input: the filtered delta is appended to the input trace.
//  3. radix + rollup: Operator.Tick rebuilds the touched radix-tree
//     leaves and recomputes the affected output rows against the Z-1
//     delayed output trace.
//  4. rollup (feedback): the new output delta is appended to the output
//     trace, becoming next tick's Z-1 delayed view.
//  5. GC: history behind OutputBounds' effective bound is truncated from
//     both traces on the TS axis.
//
// Returns the output delta produced by this tick.
func (c *Clock[PK, TS, V, A, O]) RunTick(
	delta []trace.Entry[PK, TS, V],
	watermark TS,
) []trace.Entry[PK, TS, rollup.Output[TS, O]] {
	g := c.graph

	admissible := g.Watermark.Advance(watermark)
	filtered := filterByWindow(delta, admissible)

	g.InputTrace.Insert(trace.NewBatch(filtered, c.cmpKey, c.cmpVal))

	outputDelta := g.Operator.Tick(filtered, g.InputTrace, g.Tree, g.OutputTrace)

	if len(outputDelta) > 0 {
		g.OutputTrace.Insert(trace.NewBatch(outputDelta, c.cmpKey, c.cmpOutVal))
	}

	if lb, ok := g.OutputBounds.Effective(); ok {
		droppedIn := trace.TruncateValsBelow(g.InputTrace, lb)
		droppedOut := trace.TruncateValsBelow(g.OutputTrace, lb)

		if c.gcSink != nil {
			if len(droppedIn) > 0 {
				c.gcSink.SpillInput(droppedIn)
			}

			if len(droppedOut) > 0 {
				c.gcSink.SpillOutput(droppedOut)
			}
		}

		if total := len(droppedIn) + len(droppedOut); total > 0 && c.onGCTruncation != nil {
			c.onGCTruncation(total)
		}
	}

	c.step++

	return outputDelta
}

// filterByWindow drops every entry whose timestamp falls outside r,
// implementing the window node's late-data filter.
func filterByWindow[PK any, TS window.Integer, V any](delta []trace.Entry[PK, TS, V], r window.Range[TS]) []trace.Entry[PK, TS, V] {
	if len(delta) == 0 {
		return delta
	}

	filtered := make([]trace.Entry[PK, TS, V], 0, len(delta))

	for _, e := range delta {
		if e.Val.TS >= r.From && e.Val.TS <= r.To {
			filtered = append(filtered, e)
		}
	}

	return filtered
}
