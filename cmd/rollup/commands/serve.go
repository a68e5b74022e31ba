package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamcore/rollup/internal/graph"
	"github.com/streamcore/rollup/internal/observability"
	"github.com/streamcore/rollup/pkg/config"
)

// tickRequest is one line of the newline-delimited JSON stream serve
// reads from stdin: a delta batch paired with the watermark to advance to.
type tickRequest struct {
	Delta     []deltaEntry `json:"delta"`
	Watermark int64        `json:"watermark"`
}

// NewServeCommand creates the serve subcommand.
func NewServeCommand() *cobra.Command {
	var (
		graphPath  string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a continuous tick loop, reading NDJSON tick requests from stdin",
		Long: `serve builds a circuit.Graph from --graph and drives it tick by tick,
reading one JSON {"delta": [...], "watermark": N} object per line from
stdin until EOF or SIGINT/SIGTERM. A diagnostics HTTP server (/healthz,
/readyz, /metrics) runs alongside it for the duration.
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), graphPath, configPath)
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "path to the dataflow-graph JSON document (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a server config file (optional)")

	_ = cmd.MarkFlagRequired("graph")

	return cmd
}

func runServe(ctx context.Context, graphPath, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Mode = observability.ModeServe
	obsCfg.LogJSON = cfg.Logging.Format == "json"

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer providers.Shutdown(ctx)

	raw, _, err := readDocument(graphPath)
	if err != nil {
		return err
	}

	g, err := graph.Build(raw)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	clock := graph.NewClock(g)

	tickMetrics, err := observability.NewTickMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init tick metrics: %w", err)
	}

	operatorMetrics, err := observability.NewOperatorMetrics(providers.Meter,
		func() (int64, bool) {
			bound, ok := g.OutputBounds.Effective()

			return bound, ok
		},
		func() int64 { return int64(g.Tree.NodeCount()) },
	)
	if err != nil {
		return fmt.Errorf("init operator metrics: %w", err)
	}

	graph.WireGCMetrics(clock, operatorMetrics)

	if cfg.Checkpoint.Enabled {
		graph.WireCheckpoint(clock, cfg.Checkpoint, providers.Logger)
	}

	diag, err := observability.NewDiagnosticsServer(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), providers.Meter,
	)
	if err != nil {
		return fmt.Errorf("start diagnostics server: %w", err)
	}
	defer diag.Close()

	providers.Logger.Info("serving", "addr", diag.Addr())

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return serveTickLoop(runCtx, os.Stdin, clock, tickMetrics, providers)
}

func serveTickLoop(
	ctx context.Context,
	r io.Reader,
	clock *rollupClock,
	tickMetrics *observability.TickMetrics,
	providers observability.Providers,
) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if tickErr := applyTickLine(ctx, line, clock, tickMetrics); tickErr != nil {
			providers.Logger.Error("tick failed", "error", tickErr)
		}
	}

	if scanErr := scanner.Err(); scanErr != nil && !errors.Is(scanErr, io.EOF) {
		return fmt.Errorf("read stdin: %w", scanErr)
	}

	return nil
}

func applyTickLine(ctx context.Context, line []byte, clock *rollupClock, tickMetrics *observability.TickMetrics) error {
	var req tickRequest

	if err := json.Unmarshal(line, &req); err != nil {
		tickMetrics.RecordTick(ctx, "tick", "error", 0)

		return fmt.Errorf("decode tick request: %w", err)
	}

	done := tickMetrics.TrackInflight(ctx, "tick")
	defer done()

	started := time.Now()
	clock.RunTick(entriesFromDeltaEntries(req.Delta), req.Watermark)
	tickMetrics.RecordTick(ctx, "tick", "ok", time.Since(started))

	return nil
}
