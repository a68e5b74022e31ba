package trace

import (
	"cmp"
	"sync"
)

// Trace is an append-only spine of immutable batches representing the
// accumulated history of a partitioned indexed Z-set. Cursor rebuilds and
// returns a consolidated view lazily: Insert only appends to the spine and
// marks that view stale, the same dirty-flag-then-rebuild pattern used
// elsewhere in this codebase for other derived indexes.
type Trace[PK any, TS any, Payload any] struct {
	mu     sync.Mutex
	cmpKey CmpFunc[PK]
	cmpVal CmpFunc[Tuple[TS, Payload]]
	spine  []*Batch[PK, TS, Payload]
	merged *Batch[PK, TS, Payload]
	dirty  bool
}

// NewTrace constructs an empty Trace ordered by cmpKey then cmpVal.
func NewTrace[PK any, TS any, Payload any](cmpKey CmpFunc[PK], cmpVal CmpFunc[Tuple[TS, Payload]]) *Trace[PK, TS, Payload] {
	return &Trace[PK, TS, Payload]{cmpKey: cmpKey, cmpVal: cmpVal}
}

// Insert appends batch to the spine. Empty batches are ignored.
func (t *Trace[PK, TS, Payload]) Insert(batch *Batch[PK, TS, Payload]) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if batch == nil || batch.Len() == 0 {
		return
	}

	t.spine = append(t.spine, batch)
	t.dirty = true
}

// Dirty reports whether the spine has changed since the consolidated view
// was last rebuilt.
func (t *Trace[PK, TS, Payload]) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.dirty
}

// ClearDirtyFlag marks the trace clean without forcing a rebuild.
func (t *Trace[PK, TS, Payload]) ClearDirtyFlag() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dirty = false
}

func (t *Trace[PK, TS, Payload]) ensureMerged() *Batch[PK, TS, Payload] {
	if t.dirty || t.merged == nil {
		t.merged = MergeBatches(t.spine, t.cmpKey, t.cmpVal)
		t.dirty = false
	}

	return t.merged
}

// Cursor rebuilds (if stale) and returns a Cursor over the trace's
// consolidated contents.
func (t *Trace[PK, TS, Payload]) Cursor() *Cursor[PK, TS, Payload] {
	t.mu.Lock()
	defer t.mu.Unlock()

	return NewCursor(t.ensureMerged())
}

// Len returns the number of distinct (Key, Val) entries in the
// consolidated view, rebuilding it first if stale.
func (t *Trace[PK, TS, Payload]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ensureMerged().Len()
}

// TruncateKeysBelow drops every entry whose key sorts below bound. It is
// the monotone fast path used by the garbage-collection protocol once a
// Bounds' effective bound has advanced past bound: callers must never
// call it with a bound lower than any previous call, since that could
// resurrect retained history under a false impression of monotonicity.
// It returns the dropped entries so a caller can archive them before
// they're gone; discard the slice if that accounting isn't needed.
func (t *Trace[PK, TS, Payload]) TruncateKeysBelow(bound PK) []Entry[PK, TS, Payload] {
	return t.RetainKeys(func(k PK) bool { return t.cmpKey(k, bound) >= 0 })
}

// RetainKeys drops every entry whose key does not satisfy keep, returning
// the dropped entries. Unlike TruncateKeysBelow, keep need not be monotone
// across calls.
func (t *Trace[PK, TS, Payload]) RetainKeys(keep func(PK) bool) []Entry[PK, TS, Payload] {
	t.mu.Lock()
	defer t.mu.Unlock()

	newSpine := make([]*Batch[PK, TS, Payload], 0, len(t.spine))

	var dropped []Entry[PK, TS, Payload]

	for _, b := range t.spine {
		var kept []Entry[PK, TS, Payload]

		for _, e := range b.entries {
			if keep(e.Key) {
				kept = append(kept, e)
			} else {
				dropped = append(dropped, e)
			}
		}

		if len(kept) > 0 {
			newSpine = append(newSpine, &Batch[PK, TS, Payload]{
				entries: kept,
				cmpKey:  t.cmpKey,
				cmpVal:  t.cmpVal,
			})
		}
	}

	t.spine = newSpine
	t.dirty = true

	return dropped
}

// RetainVals drops every entry whose value does not satisfy keep,
// returning the dropped entries. This is the val-axis analog of
// RetainKeys, used by the watermark-GC protocol to forget history behind
// a bound registered on the TS axis rather than the key axis.
func (t *Trace[PK, TS, Payload]) RetainVals(keep func(Tuple[TS, Payload]) bool) []Entry[PK, TS, Payload] {
	t.mu.Lock()
	defer t.mu.Unlock()

	newSpine := make([]*Batch[PK, TS, Payload], 0, len(t.spine))

	var dropped []Entry[PK, TS, Payload]

	for _, b := range t.spine {
		var kept []Entry[PK, TS, Payload]

		for _, e := range b.entries {
			if keep(e.Val) {
				kept = append(kept, e)
			} else {
				dropped = append(dropped, e)
			}
		}

		if len(kept) > 0 {
			newSpine = append(newSpine, &Batch[PK, TS, Payload]{
				entries: kept,
				cmpKey:  t.cmpKey,
				cmpVal:  t.cmpVal,
			})
		}
	}

	t.spine = newSpine
	t.dirty = true

	return dropped
}

// TruncateValsBelow drops every entry whose timestamp sorts below bound,
// returning the dropped entries so a caller (e.g. a checkpoint spiller)
// can archive them before they're gone. It requires TS be genuinely
// ordered (cmp.Ordered), unlike the rest of this package which only needs
// the caller-supplied CmpFunc; that's fine since every concrete TS a
// watermark operates over is some fixed-width integer type.
func TruncateValsBelow[PK any, TS cmp.Ordered, Payload any](t *Trace[PK, TS, Payload], bound TS) []Entry[PK, TS, Payload] {
	return t.RetainVals(func(v Tuple[TS, Payload]) bool { return v.TS >= bound })
}

// RecedeTo forgets time-coordinate detail older than t while preserving
// the trace's aggregate semantics. This trace keeps no logical-time
// dimension separate from its consolidated (Key, Val, Weight) contents,
// so the only detail there is to forget is spine structure: RecedeTo is
// Compact under another name, kept distinct to match the trace contract
// callers expect.
func (t *Trace[PK, TS, Payload]) RecedeTo(_ TS) {
	t.Compact()
}

// Compact merges the entire spine into a single consolidated batch,
// bounding the number of batches a cursor rebuild has to merge. Safe to
// call at any time; it never changes the trace's logical contents.
func (t *Trace[PK, TS, Payload]) Compact() {
	t.mu.Lock()
	defer t.mu.Unlock()

	merged := t.ensureMerged()
	if merged.Len() == 0 {
		t.spine = nil
		return
	}

	t.spine = []*Batch[PK, TS, Payload]{merged}
}
