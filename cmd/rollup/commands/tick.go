package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/streamcore/rollup/internal/circuit"
	"github.com/streamcore/rollup/internal/graph"
	"github.com/streamcore/rollup/internal/rollup"
	"github.com/streamcore/rollup/internal/trace"
)

type (
	rollupGraph   = circuit.Graph[string, int64, int64, int64, int64]
	rollupClock   = circuit.Clock[string, int64, int64, int64, int64]
	outputPayload = rollup.Output[int64, int64]
)

// deltaEntry is the JSON shape of one entry in a --delta file, mirroring
// trace.Entry[string, int64, int64].
type deltaEntry struct {
	Key    string `json:"key"`
	TS     int64  `json:"ts"`
	Value  int64  `json:"value"`
	Weight int64  `json:"weight"`
}

// NewTickCommand creates the tick subcommand.
func NewTickCommand() *cobra.Command {
	var (
		graphPath string
		deltaPath string
		watermark int64
		stats     bool
	)

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Drive a dataflow graph through one tick and print the output delta",
		Long: `tick builds a fresh circuit.Graph from --graph, applies the entries in
--delta at --watermark, and prints the resulting output delta as a table.

Example:
  rollup tick --graph graph.json --delta delta.json --watermark 100
`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTick(graphPath, deltaPath, watermark, stats)
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "path to the dataflow-graph JSON document (required)")
	cmd.Flags().StringVar(&deltaPath, "delta", "", "path to a JSON array of delta entries (optional, defaults to empty)")
	cmd.Flags().Int64Var(&watermark, "watermark", 0, "new watermark for this tick")
	cmd.Flags().BoolVar(&stats, "stats", false, "print trace size statistics after the tick")

	_ = cmd.MarkFlagRequired("graph")

	return cmd
}

func runTick(graphPath, deltaPath string, watermark int64, stats bool) error {
	raw, _, err := readDocument(graphPath)
	if err != nil {
		return err
	}

	g, err := graph.Build(raw)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	clock := graph.NewClock(g)

	delta, err := loadDelta(deltaPath)
	if err != nil {
		return err
	}

	outputDelta := clock.RunTick(delta, watermark)

	printOutputDelta(outputDelta)

	if stats {
		printStats(g, clock)
	}

	return nil
}

func loadDelta(path string) ([]trace.Entry[string, int64, int64], error) {
	if path == "" {
		return nil, nil
	}

	raw, _, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	var entries []deltaEntry

	if jsonErr := json.Unmarshal(raw, &entries); jsonErr != nil {
		return nil, fmt.Errorf("decode delta %s: %w", path, jsonErr)
	}

	return entriesFromDeltaEntries(entries), nil
}

func entriesFromDeltaEntries(entries []deltaEntry) []trace.Entry[string, int64, int64] {
	out := make([]trace.Entry[string, int64, int64], 0, len(entries))
	for _, e := range entries {
		out = append(out, trace.Entry[string, int64, int64]{
			Key:    e.Key,
			Val:    trace.Tuple[int64, int64]{TS: e.TS, Payload: e.Value},
			Weight: e.Weight,
		})
	}

	return out
}

func printOutputDelta(outputDelta []trace.Entry[string, int64, rollup.Output[int64, int64]]) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"partition", "ts", "aggregate", "valid", "weight"})

	for _, e := range outputDelta {
		agg := "-"
		if e.Val.Payload.Agg.Valid {
			agg = fmt.Sprintf("%d", e.Val.Payload.Agg.Value)
		}

		tbl.AppendRow(table.Row{e.Key, e.Val.TS, agg, e.Val.Payload.Agg.Valid, e.Weight})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d rows", len(outputDelta))})
	tbl.Render()
}

func printStats(g *rollupGraph, clock *rollupClock) {
	fmt.Fprintf(os.Stdout, "\nstep: %d\n", clock.Step())
	fmt.Fprintf(os.Stdout, "input trace entries:  %s\n", humanize.Comma(int64(g.InputTrace.Len())))
	fmt.Fprintf(os.Stdout, "output trace entries: %s\n", humanize.Comma(int64(g.OutputTrace.Len())))
}
