package checkpoint

import "github.com/streamcore/rollup/internal/trace"

// Store pairs an input-trace archive with an output-trace archive under
// one base directory, giving circuit.Clock.SetGCSink a single value that
// satisfies circuit.GCSink[PK, TS, V, O] for a concrete graph
// instantiation (the caller supplies V and the already-wrapped output
// payload type as type parameters).
type Store[PK any, TS any, V any, O any] struct {
	Input  *Archive[PK, TS, V]
	Output *Archive[PK, TS, O]

	// OnError, if set, is called with any write failure from a Spill*
	// call. A checkpoint write failure must never block or fail the tick
	// that triggered it, so SpillInput/SpillOutput swallow the error
	// themselves; OnError is the only way to observe it.
	OnError func(error)
}

// NewStore constructs a Store whose archives write "<label>_input_NNN.lz4"
// and "<label>_output_NNN.lz4" chunks under dir, each batching threshold
// entries before flushing.
func NewStore[PK any, TS any, V any, O any](dir, label string, threshold int) *Store[PK, TS, V, O] {
	return &Store[PK, TS, V, O]{
		Input:  NewArchive[PK, TS, V](dir, label+"_input", threshold),
		Output: NewArchive[PK, TS, O](dir, label+"_output", threshold),
	}
}

// SpillInput implements circuit.GCSink.
func (s *Store[PK, TS, V, O]) SpillInput(dropped []trace.Entry[PK, TS, V]) {
	if err := s.Input.Spill(dropped); err != nil && s.OnError != nil {
		s.OnError(err)
	}
}

// SpillOutput implements circuit.GCSink.
func (s *Store[PK, TS, V, O]) SpillOutput(dropped []trace.Entry[PK, TS, O]) {
	if err := s.Output.Spill(dropped); err != nil && s.OnError != nil {
		s.OnError(err)
	}
}

// Flush forces both archives to write any buffered entries to disk.
func (s *Store[PK, TS, V, O]) Flush() error {
	if err := s.Input.Flush(); err != nil {
		return err
	}

	return s.Output.Flush()
}
