package trace

// Weight is the signed integer ring element attached to every Z-set tuple:
// positive for an insertion, negative for a retraction.
type Weight = int64

// CmpFunc is a strict three-way ordering over T, as used to keep a Batch's
// entries sorted by key and, within a key, by val.
type CmpFunc[T any] func(a, b T) int

// Tuple is one (timestamp, payload) pair making up the value axis of a
// partitioned indexed Z-set.
type Tuple[TS any, Payload any] struct {
	TS      TS
	Payload Payload
}

// Entry is one partition-key-indexed delta: a signed weight attached to a
// tuple under partition key PK.
type Entry[PK any, TS any, Payload any] struct {
	Key    PK
	Val    Tuple[TS, Payload]
	Weight Weight
}
