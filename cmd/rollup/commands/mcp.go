package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamcore/rollup/internal/mcpserver"
	"github.com/streamcore/rollup/internal/observability"
	"github.com/streamcore/rollup/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug          bool
		checkpointDir  string
		spillThreshold int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP server exposing the rolling-aggregate operator",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes two tools AI agents can discover and invoke:
  - rollup_tick: advance a dataflow graph session by one tick
  - rollup_inspect_trace: inspect a session's live or checkpoint-archived trace`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			providers, err := initMCPObservability(debug)
			if err != nil {
				return err
			}

			defer func() {
				if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			tickMetrics, err := observability.NewTickMetrics(providers.Meter)
			if err != nil {
				return err
			}

			deps := mcpserver.ServerDeps{
				Logger:         providers.Logger,
				Metrics:        tickMetrics,
				Tracer:         providers.Tracer,
				CheckpointDir:  checkpointDir,
				SpillThreshold: spillThreshold,
			}

			srv := mcpserver.NewServer(deps)

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "enable checkpoint archiving of GC'd trace entries under this directory")
	cmd.Flags().IntVar(&spillThreshold, "spill-threshold", 0, "pending-entry count at which a checkpoint archive flushes to disk")

	return cmd
}

func initMCPObservability(debug bool) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = observability.ModeMCP
	cfg.LogJSON = true

	if debug {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
	}

	return observability.Init(cfg)
}
