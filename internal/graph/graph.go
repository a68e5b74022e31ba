// Package graph builds a circuit.Graph from a JSON dataflow-graph
// document, validating it against an embedded JSON Schema first. This is
// the §6 "process boundary" front end spec.md names: everything upstream
// of a validated document (how it's produced, transported, or edited) is
// out of scope, and everything downstream is a fixed circuit.Graph over
// one concrete instantiation — partition keys are strings, timestamps
// and values are int64 — since a JSON document has no way to name an
// arbitrary Go generic type parameter. Richer instantiations remain
// available to callers that construct a circuit.Graph directly in Go.
package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/xeipuuv/gojsonschema"

	"github.com/streamcore/rollup/internal/circuit"
	"github.com/streamcore/rollup/internal/radix"
	"github.com/streamcore/rollup/internal/rollup"
	"github.com/streamcore/rollup/internal/trace"
	"github.com/streamcore/rollup/internal/window"
)

//go:embed schema.json
var schemaJSON []byte

var schema = gojsonschema.NewBytesLoader(schemaJSON)

type offsetDoc struct {
	Kind string `json:"kind"`
	N    uint64 `json:"n"`
}

type rangeDoc struct {
	From offsetDoc `json:"from"`
	To   offsetDoc `json:"to"`
}

// Document is the JSON shape this package accepts: a relative window and
// a named built-in aggregator.
type Document struct {
	Range      rangeDoc `json:"range"`
	Aggregator string   `json:"aggregator"`
}

// ValidationError reports the JSON Schema violations found in a
// document, one string per violation in gojsonschema's own format.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid dataflow graph document: %s", strings.Join(e.Errors, "; "))
}

// Validate checks raw against the embedded schema without attempting to
// build a Graph from it.
func Validate(raw []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}

	return &ValidationError{Errors: errs}
}

func toOffset(o offsetDoc) (window.RelOffset, error) {
	switch o.Kind {
	case "before":
		return window.Before(o.N), nil
	case "after":
		return window.After(o.N), nil
	case "before_infinite":
		return window.BeforeInfinite(), nil
	case "after_infinite":
		return window.AfterInfinite(), nil
	default:
		return window.RelOffset{}, fmt.Errorf("unknown offset kind %q", o.Kind)
	}
}

func toAggregator(name string) (rollup.Aggregator[int64, int64, int64], error) {
	switch name {
	case "sum":
		return rollup.LinearAggregator[int64, int64, int64]{
			F:      func(v int64) int64 { return v },
			Add:    func(a, b int64) int64 { return a + b },
			Scale:  func(a int64, weight int64) int64 { return a * weight },
			Output: func(a int64) int64 { return a },
		}, nil
	case "count":
		return rollup.LinearAggregator[int64, int64, int64]{
			F:      func(int64) int64 { return 1 },
			Add:    func(a, b int64) int64 { return a + b },
			Scale:  func(a int64, weight int64) int64 { return a * weight },
			Output: func(a int64) int64 { return a },
		}, nil
	default:
		return nil, fmt.Errorf("unknown aggregator %q", name)
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpTSOnly[P any](a, b trace.Tuple[int64, P]) int {
	switch {
	case a.TS < b.TS:
		return -1
	case a.TS > b.TS:
		return 1
	default:
		return 0
	}
}

func lessInt64(a, b int64) bool { return a < b }

// Build validates raw against the embedded schema and, if valid,
// constructs a fresh circuit.Graph over the fixed (string, int64, int64,
// int64, int64) instantiation: partition keys are strings, timestamps,
// values, accumulators, and outputs are all int64.
func Build(raw []byte) (*circuit.Graph[string, int64, int64, int64, int64], error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding dataflow graph document: %w", err)
	}

	from, err := toOffset(doc.Range.From)
	if err != nil {
		return nil, fmt.Errorf("range.from: %w", err)
	}

	to, err := toOffset(doc.Range.To)
	if err != nil {
		return nil, fmt.Errorf("range.to: %w", err)
	}

	aggregator, err := toAggregator(doc.Aggregator)
	if err != nil {
		return nil, err
	}

	rng := window.RelRange[int64]{From: from, To: to}

	op := &rollup.Operator[string, int64, int64, int64, int64]{
		Range:      rng,
		Aggregator: aggregator,
		ToKey:      radix.Int64Key[int64],
		CmpKey:     cmpString,
	}

	inputTrace := trace.NewTrace[string, int64, int64](cmpString, cmpTSOnly[int64])
	tree := radix.New[string, int64](aggregator.Combine)
	outputTrace := trace.NewTrace[string, int64, rollup.Output[int64, int64]](cmpString, cmpTSOnly[rollup.Output[int64, int64]])

	wm := window.NewWatermark[int64](rng, lessInt64)

	g := circuit.NewGraph(wm, op, inputTrace, tree, outputTrace, lessInt64)

	return g, nil
}

// NewClock builds a circuit.Clock over g using this package's fixed
// comparators, letting cmd/rollup drive ticks without reaching into
// internal/trace itself.
func NewClock(g *circuit.Graph[string, int64, int64, int64, int64]) *circuit.Clock[string, int64, int64, int64, int64] {
	return circuit.NewClock[string, int64, int64, int64, int64](g, cmpString, cmpTSOnly[int64], cmpTSOnly[rollup.Output[int64, int64]])
}
