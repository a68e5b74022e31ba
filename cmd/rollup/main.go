// Package main provides the entry point for the rollup CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamcore/rollup/cmd/rollup/commands"
	"github.com/streamcore/rollup/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "rollup",
		Short: "Partitioned rolling-aggregate dataflow operator",
		Long: `rollup drives a partitioned rolling-aggregate operator over an
incremental Z-set dataflow graph.

Commands:
  validate  Check a dataflow-graph JSON document against the embedded schema
  tick      Drive a graph through one tick from a JSON delta file
  serve     Run a continuous tick loop with a /metrics and /healthz endpoint
  plot      Render an HTML chart of a partition's rolling aggregate
  mcp       Expose the operator as a Model Context Protocol server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewTickCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewPlotCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "rollup %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
