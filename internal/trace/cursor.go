package trace

import "github.com/streamcore/rollup/internal/advance"

// Cursor iterates a Batch hierarchically: an outer position over distinct
// keys (partitions) and, for the current key, an inner position over its
// distinct vals. This mirrors the key_valid/key/val_valid/val/weight/
// step_key/step_val/seek_key/rewind_keys cursor contract that the rest of
// this module's operators are written against.
type Cursor[PK any, TS any, Payload any] struct {
	batch  *Batch[PK, TS, Payload]
	keyPos int
	keyEnd int
	valPos int
}

// NewCursor returns a Cursor positioned at b's first key.
func NewCursor[PK any, TS any, Payload any](b *Batch[PK, TS, Payload]) *Cursor[PK, TS, Payload] {
	c := &Cursor[PK, TS, Payload]{batch: b}
	c.setKeyRun(0)

	return c
}

func (c *Cursor[PK, TS, Payload]) setKeyRun(start int) {
	c.keyPos = start
	c.valPos = start

	if start >= len(c.batch.entries) {
		c.keyEnd = start
		return
	}

	end := start + 1
	for end < len(c.batch.entries) && c.batch.cmpKey(c.batch.entries[start].Key, c.batch.entries[end].Key) == 0 {
		end++
	}

	c.keyEnd = end
}

// KeyValid reports whether the cursor is positioned at a valid key.
func (c *Cursor[PK, TS, Payload]) KeyValid() bool {
	return c.keyPos < len(c.batch.entries)
}

// Key returns the current key. Only valid when KeyValid is true.
func (c *Cursor[PK, TS, Payload]) Key() PK {
	return c.batch.entries[c.keyPos].Key
}

// ValValid reports whether the cursor is positioned at a valid val within
// the current key.
func (c *Cursor[PK, TS, Payload]) ValValid() bool {
	return c.valPos < c.keyEnd
}

// Val returns the current val. Only valid when ValValid is true.
func (c *Cursor[PK, TS, Payload]) Val() Tuple[TS, Payload] {
	return c.batch.entries[c.valPos].Val
}

// Weight returns the weight of the current (Key, Val) entry.
func (c *Cursor[PK, TS, Payload]) Weight() Weight {
	return c.batch.entries[c.valPos].Weight
}

// StepKey advances to the next key, resetting the val position to its
// start.
func (c *Cursor[PK, TS, Payload]) StepKey() {
	c.setKeyRun(c.keyEnd)
}

// StepVal advances to the next val within the current key.
func (c *Cursor[PK, TS, Payload]) StepVal() {
	c.valPos++
}

// RewindKeys returns the cursor to the batch's first key.
func (c *Cursor[PK, TS, Payload]) RewindKeys() {
	c.setKeyRun(0)
}

// RewindVals returns the cursor to the current key's first val.
func (c *Cursor[PK, TS, Payload]) RewindVals() {
	c.valPos = c.keyPos
}

// SeekKey advances the cursor to the first key not less than target,
// using advance.Search since keys are sorted ascending.
func (c *Cursor[PK, TS, Payload]) SeekKey(target PK) {
	entries := c.batch.entries
	offset := c.keyPos

	idx := advance.Search(entries[offset:], func(e Entry[PK, TS, Payload]) bool {
		return c.batch.cmpKey(e.Key, target) < 0
	})

	c.setKeyRun(offset + idx)
}

// SeekVal advances the val position to the first val, within the current
// key, not less than target.
func (c *Cursor[PK, TS, Payload]) SeekVal(target Tuple[TS, Payload]) {
	entries := c.batch.entries[:c.keyEnd]
	offset := c.valPos

	idx := advance.Search(entries[offset:], func(e Entry[PK, TS, Payload]) bool {
		return c.batch.cmpVal(e.Val, target) < 0
	})

	c.valPos = offset + idx
}

// RangeCursor restricts an underlying Cursor's val iteration to
// [lower, upper], used to walk a single partition's tuples within a
// bounded time window without visiting entries outside it.
type RangeCursor[PK any, TS any, Payload any] struct {
	*Cursor[PK, TS, Payload]

	upper Tuple[TS, Payload]
}

// NewRangeCursor seeks c to lower and returns a RangeCursor that reports
// ValValid as false past upper.
func NewRangeCursor[PK any, TS any, Payload any](
	c *Cursor[PK, TS, Payload],
	lower, upper Tuple[TS, Payload],
) *RangeCursor[PK, TS, Payload] {
	c.SeekVal(lower)

	return &RangeCursor[PK, TS, Payload]{Cursor: c, upper: upper}
}

// ValValid reports whether the cursor is positioned at a valid val that
// does not exceed the range's upper bound.
func (rc *RangeCursor[PK, TS, Payload]) ValValid() bool {
	return rc.Cursor.ValValid() && rc.Cursor.batch.cmpVal(rc.Cursor.Val(), rc.upper) <= 0
}
