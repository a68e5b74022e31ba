package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunPlot_WritesHTMLFile(t *testing.T) {
	t.Parallel()

	graphPath := writeTempFile(t, validDoc)
	deltaPath := filepath.Join(t.TempDir(), "delta.json")
	require.NoError(t, os.WriteFile(deltaPath, []byte(
		`[{"key":"a","ts":10,"value":5,"weight":1}]`,
	), 0o600))

	outPath := filepath.Join(t.TempDir(), "chart.html")

	err := runPlot(graphPath, deltaPath, 10, "a", outPath)
	require.NoError(t, err)

	contents, readErr := os.ReadFile(outPath)
	require.NoError(t, readErr)
	require.Contains(t, string(contents), "echarts")
}

func TestRunPlot_UnknownPartitionProducesEmptyChart(t *testing.T) {
	t.Parallel()

	graphPath := writeTempFile(t, validDoc)
	deltaPath := filepath.Join(t.TempDir(), "delta.json")
	require.NoError(t, os.WriteFile(deltaPath, []byte(
		`[{"key":"a","ts":10,"value":5,"weight":1}]`,
	), 0o600))

	outPath := filepath.Join(t.TempDir(), "chart.html")

	err := runPlot(graphPath, deltaPath, 10, "nonexistent", outPath)
	require.NoError(t, err)
}
