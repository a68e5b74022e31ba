package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"

	"github.com/streamcore/rollup/internal/graph"
	"github.com/streamcore/rollup/internal/trace"
)

// NewPlotCommand creates the plot subcommand.
func NewPlotCommand() *cobra.Command {
	var (
		graphPath string
		deltaPath string
		watermark int64
		partition string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render an HTML line chart of one partition's rolling aggregate",
		Long: `plot drives a single tick the same way "rollup tick" does, then renders
the chosen partition's output-trace history (timestamp -> aggregate
value) as a standalone HTML line chart.

Example:
  rollup plot --graph graph.json --delta delta.json --watermark 100 --partition a --out chart.html
`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPlot(graphPath, deltaPath, watermark, partition, outPath)
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "path to the dataflow-graph JSON document (required)")
	cmd.Flags().StringVar(&deltaPath, "delta", "", "path to a JSON array of delta entries")
	cmd.Flags().Int64Var(&watermark, "watermark", 0, "new watermark for this tick")
	cmd.Flags().StringVar(&partition, "partition", "", "partition key to chart (required)")
	cmd.Flags().StringVar(&outPath, "out", "rollup-chart.html", "output HTML file path")

	_ = cmd.MarkFlagRequired("graph")
	_ = cmd.MarkFlagRequired("partition")

	return cmd
}

func runPlot(graphPath, deltaPath string, watermark int64, partition, outPath string) error {
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

	clock.RunTick(delta, watermark)

	rows := partitionOutputRows(g.OutputTrace, partition)

	line := buildRollingAggregateChart(partition, rows)

	f, createErr := os.Create(outPath)
	if createErr != nil {
		return fmt.Errorf("create %s: %w", outPath, createErr)
	}
	defer f.Close()

	if renderErr := line.Render(f); renderErr != nil {
		return fmt.Errorf("render chart: %w", renderErr)
	}

	fmt.Fprintf(os.Stdout, "wrote %s\n", outPath)

	return nil
}

func partitionOutputRows(
	tr *trace.Trace[string, int64, outputPayload],
	partition string,
) []trace.Tuple[int64, outputPayload] {
	c := tr.Cursor()

	var rows []trace.Tuple[int64, outputPayload]

	for c.KeyValid() {
		if c.Key() != partition {
			c.StepKey()

			continue
		}

		for c.ValValid() {
			rows = append(rows, c.Val())
			c.StepVal()
		}

		c.StepKey()
	}

	return rows
}

func buildRollingAggregateChart(partition string, rows []trace.Tuple[int64, outputPayload]) *charts.Line {
	labels := make([]string, len(rows))
	data := make([]opts.LineData, len(rows))

	for i, r := range rows {
		labels[i] = strconv.FormatInt(r.TS, 10)

		if r.Payload.Agg.Valid {
			data[i] = opts.LineData{Value: r.Payload.Agg.Value}
		} else {
			data[i] = opts.LineData{Value: "-"}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Rolling aggregate: %s", partition)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "timestamp"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "aggregate"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("aggregate", data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
	)

	return line
}
