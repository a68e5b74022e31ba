package trace

import "sort"

// Batch is an immutable, sorted, consolidated set of weighted entries:
// one tick's input delta, or the result of merging a trace's spine.
// Entries are ordered first by Key, then by Val; no two entries share the
// same (Key, Val) pair, and no entry carries a zero weight.
type Batch[PK any, TS any, Payload any] struct {
	entries []Entry[PK, TS, Payload]
	cmpKey  CmpFunc[PK]
	cmpVal  CmpFunc[Tuple[TS, Payload]]
}

// NewBatch builds a Batch from entries, consolidating duplicate
// (Key, Val) pairs by summing weights and dropping the zero-weight
// results.
func NewBatch[PK any, TS any, Payload any](
	entries []Entry[PK, TS, Payload],
	cmpKey CmpFunc[PK],
	cmpVal CmpFunc[Tuple[TS, Payload]],
) *Batch[PK, TS, Payload] {
	sorted := append([]Entry[PK, TS, Payload](nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if c := cmpKey(sorted[i].Key, sorted[j].Key); c != 0 {
			return c < 0
		}

		return cmpVal(sorted[i].Val, sorted[j].Val) < 0
	})

	consolidated := make([]Entry[PK, TS, Payload], 0, len(sorted))

	for _, e := range sorted {
		if n := len(consolidated); n > 0 &&
			cmpKey(consolidated[n-1].Key, e.Key) == 0 &&
			cmpVal(consolidated[n-1].Val, e.Val) == 0 {
			consolidated[n-1].Weight += e.Weight
			continue
		}

		consolidated = append(consolidated, e)
	}

	nonZero := consolidated[:0]

	for _, e := range consolidated {
		if e.Weight != 0 {
			nonZero = append(nonZero, e)
		}
	}

	return &Batch[PK, TS, Payload]{entries: nonZero, cmpKey: cmpKey, cmpVal: cmpVal}
}

// MergeBatches consolidates every entry across batches into a single
// Batch, as NewBatch would from their combined entries.
func MergeBatches[PK any, TS any, Payload any](
	batches []*Batch[PK, TS, Payload],
	cmpKey CmpFunc[PK],
	cmpVal CmpFunc[Tuple[TS, Payload]],
) *Batch[PK, TS, Payload] {
	var all []Entry[PK, TS, Payload]

	for _, b := range batches {
		all = append(all, b.entries...)
	}

	return NewBatch(all, cmpKey, cmpVal)
}

// Len returns the number of distinct (Key, Val) entries in the batch.
func (b *Batch[PK, TS, Payload]) Len() int {
	return len(b.entries)
}
