// Package radix implements the partitioned radix tree used to accelerate
// range-aggregate queries over a partition's timestamped values: for each
// partition, a conceptual complete binary tree over the full timestamp
// address space, stored sparsely as a map from node path to accumulator,
// with absent nodes standing for the semigroup identity.
package radix

import (
	"sync"

	"github.com/streamcore/rollup/internal/option"
)

// width is the bit-width of the Key address space every partition's tree
// spans; every timestamp type is mapped into this space via a ToKeyFunc.
const width = 64

// Key is the unsigned, order-preserving encoding of a timestamp used to
// address leaves and interior nodes.
type Key = uint64

// ToKeyFunc converts a timestamp into its order-preserving Key encoding.
// Implementations must be strictly order-preserving: ts1 < ts2 iff
// ToKeyFunc(ts1) < ToKeyFunc(ts2).
type ToKeyFunc[TS any] func(TS) Key

// Uint64Key is the identity ToKeyFunc for an already-unsigned timestamp
// type.
func Uint64Key[TS ~uint64](ts TS) Key {
	return Key(ts)
}

// Int64Key flips the sign bit of a signed 64-bit timestamp so its
// two's-complement bit pattern sorts identically under unsigned Key
// comparison.
func Int64Key[TS ~int64](ts TS) Key {
	return Key(ts) ^ (1 << 63)
}

// nodePath addresses one node of the conceptual tree: depth 0 is the
// root (covering the whole Key space), depth `width` is a leaf (covering
// exactly one Key). index ranges over [0, 2^depth).
type nodePath struct {
	depth uint8
	index Key
}

func leafPath(k Key) nodePath {
	return nodePath{depth: width, index: k}
}

func (p nodePath) parent() nodePath {
	return nodePath{depth: p.depth - 1, index: p.index >> 1}
}

func (p nodePath) leftChild() nodePath {
	return nodePath{depth: p.depth + 1, index: p.index << 1}
}

func (p nodePath) rightChild() nodePath {
	return nodePath{depth: p.depth + 1, index: p.index<<1 | 1}
}

// Tree is a partitioned radix tree over accumulators of type A, combined
// with an associative, commutative-not-required combine function.
type Tree[PK comparable, A any] struct {
	mu      sync.Mutex
	combine func(a, b A) A
	nodes   map[PK]map[nodePath]option.Option[A]
}

// New constructs an empty Tree using combine as the accumulator
// semigroup's associative operation.
func New[PK comparable, A any](combine func(a, b A) A) *Tree[PK, A] {
	return &Tree[PK, A]{
		combine: combine,
		nodes:   make(map[PK]map[nodePath]option.Option[A]),
	}
}

// SetLeaf sets the accumulator at key k under partition to v (removing it
// if v is None), then recomputes every ancestor on the path to the root
// as the semigroup combination of its two children. Call this once per
// distinct (partition, key) whenever the aggregated value at that key
// changes — typically after re-aggregating the input trace's entries at
// that timestamp.
func (t *Tree[PK, A]) SetLeaf(partition PK, k Key, v option.Option[A]) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nodes := t.nodes[partition]
	if nodes == nil {
		nodes = make(map[nodePath]option.Option[A])
		t.nodes[partition] = nodes
	}

	path := leafPath(k)
	setOrDelete(nodes, path, v)

	for path.depth > 0 {
		parent := path.parent()
		combined := option.Combine(t.combine, nodes[parent.leftChild()], nodes[parent.rightChild()])
		setOrDelete(nodes, parent, combined)
		path = parent
	}

	if len(nodes) == 0 {
		delete(t.nodes, partition)
	}
}

func setOrDelete[A any](nodes map[nodePath]option.Option[A], path nodePath, v option.Option[A]) {
	if v.Valid {
		nodes[path] = v
		return
	}

	delete(nodes, path)
}

// AggregateRange returns the semigroup combination of every leaf in
// [from, to] under partition. Returns None if from > to, if the
// partition holds no data, or if no leaf in range is populated.
//
// Walks two boundary paths inward from the leaf level, the standard
// iterative segment-tree range-query technique: at each depth, at most
// one node per side is combined in directly before halving toward the
// root, visiting O(width) nodes in the worst case.
func (t *Tree[PK, A]) AggregateRange(partition PK, from, to Key) option.Option[A] {
	if from > to {
		return option.None[A]()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	nodes := t.nodes[partition]
	if len(nodes) == 0 {
		return option.None[A]()
	}

	if from == 0 && to == ^Key(0) {
		return nodes[nodePath{depth: 0, index: 0}]
	}

	// to+1 overflows when to is the maximum Key (e.g. an AfterInfinite
	// window's upper bound), wrapping r to 0 and skipping the loop
	// entirely. The right boundary never needs a partial-node combine in
	// that case anyway — at every depth >= 1, one-past-the-max-leaf is an
	// even index, so the standard loop's r&1 branch would never fire even
	// without overflow — so walk the left boundary only.
	if to == ^Key(0) {
		l := from

		var result option.Option[A]

		for depth := uint8(width); depth > 0; depth-- {
			if l&1 == 1 {
				result = option.Combine(t.combine, result, nodes[nodePath{depth: depth, index: l}])
				l++
			}

			l >>= 1
		}

		return result
	}

	l, r := from, to+1

	var result option.Option[A]

	for depth := uint8(width); depth > 0 && l < r; depth-- {
		if l&1 == 1 {
			result = option.Combine(t.combine, result, nodes[nodePath{depth: depth, index: l}])
			l++
		}

		if r&1 == 1 {
			r--
			result = option.Combine(t.combine, result, nodes[nodePath{depth: depth, index: r}])
		}

		l >>= 1
		r >>= 1
	}

	return result
}

// Root returns the whole tree's accumulated value for partition, i.e.
// AggregateRange(partition, 0, ^Key(0)).
func (t *Tree[PK, A]) Root(partition PK) option.Option[A] {
	return t.AggregateRange(partition, 0, ^Key(0))
}

// NodeCount returns the number of populated nodes (leaves and interior)
// across all partitions, a cheap proxy for the tree's memory footprint.
func (t *Tree[PK, A]) NodeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, nodes := range t.nodes {
		total += len(nodes)
	}

	return total
}

// DropPartition discards every node under partition, used when a
// partition's keys fall entirely below a trace's effective bound.
func (t *Tree[PK, A]) DropPartition(partition PK) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.nodes, partition)
}
