// Package circuit implements the minimum concrete scheduler behind the
// circuit builder spec.md treats as an external collaborator: a fixed
// four-node topology (input -> window -> radix build -> rollup, closed
// over a Z-1 feedback edge) and a single-threaded, step-synchronous tick
// loop that advances every node in that topology exactly once per tick.
// It is not a general incremental-dataflow engine; the topology is fixed
// and known at compile time.
package circuit

import "sync"

// NodeID names one node in a circuit's dataflow graph.
type NodeID string

// TraceKind distinguishes the different traces a node's output may be
// cached under, mirroring the DelayedTraceId/IntegrateTraceId/TraceId
// distinction named in spec.md's external-interfaces section.
type TraceKind int

const (
	// TraceKindTrace is a node's own accumulated trace.
	TraceKindTrace TraceKind = iota
	// TraceKindDelayed is a node's output trace as seen through a Z-1
	// feedback delay: last tick's value, not this tick's.
	TraceKindDelayed
	// TraceKindIntegrate is the fully integrated (all-time) trace derived
	// from a node's output stream.
	TraceKindIntegrate
)

func (k TraceKind) String() string {
	switch k {
	case TraceKindTrace:
		return "trace"
	case TraceKindDelayed:
		return "delayed"
	case TraceKindIntegrate:
		return "integrate"
	default:
		return "unknown"
	}
}

// OwnershipPreference mirrors the scheduler hint spec.md's glossary names
// for how strongly an operator wants exclusive ownership of a batch
// rather than a shared reference to it, trading a copy for in-place
// consumption. This package's fixed single-threaded scheduler never
// shares a batch across concurrent consumers, so the preference is
// advisory metadata only — it is not enforced by Clock.RunTick.
type OwnershipPreference int

const (
	// OwnershipIndifferent means the node has no preference.
	OwnershipIndifferent OwnershipPreference = iota
	// OwnershipPreferOwned means the node would rather own its input but
	// can tolerate a shared reference.
	OwnershipPreferOwned
	// OwnershipStronglyPreferOwned means the node requires ownership;
	// handing it a shared reference forces a copy upstream.
	OwnershipStronglyPreferOwned
)

type traceCacheKey struct {
	node NodeID
	kind TraceKind
}

// TraceCache backs the (NodeID, TraceKind) lookups spec.md's external
// interfaces describe: a per-graph cache (NewGraph creates one for each
// Graph) so repeated lookups for a node share the same underlying trace
// instead of reconstructing it from the spine on every call. Values are stored as
// any since a cache instance is shared across nodes whose trace types
// differ; callers are expected to know the concrete type they put in.
type TraceCache struct {
	mu      sync.Mutex
	entries map[traceCacheKey]any
}

// NewTraceCache constructs an empty TraceCache.
func NewTraceCache() *TraceCache {
	return &TraceCache{entries: make(map[traceCacheKey]any)}
}

// Get returns the cached value for (node, kind), if any.
func (c *TraceCache) Get(node NodeID, kind TraceKind) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[traceCacheKey{node: node, kind: kind}]

	return v, ok
}

// Set installs v as the cached value for (node, kind).
func (c *TraceCache) Set(node NodeID, kind TraceKind, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[traceCacheKey{node: node, kind: kind}] = v
}
