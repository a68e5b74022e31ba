package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func tickOnce(t *testing.T, s *Server, graphID string, delta []DeltaEntry, wm int64) string {
	t.Helper()

	_, out, err := s.handleTick(context.Background(), &mcpsdk.CallToolRequest{}, TickInput{
		GraphID:   graphID,
		Document:  testDoc,
		Delta:     delta,
		Watermark: wm,
	})
	require.NoError(t, err)

	tickOut, ok := out.Data.(TickOutput)
	require.True(t, ok)

	return tickOut.GraphID
}

func TestHandleInspect_LiveInputTrace(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	graphID := tickOnce(t, s, "", []DeltaEntry{{Key: "a", TS: 10, Value: 5, Weight: 1}}, 10)

	result, out, err := s.handleInspect(context.Background(), &mcpsdk.CallToolRequest{}, InspectInput{
		GraphID: graphID,
		Which:   "input",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	inspectOut, ok := out.Data.(InspectOutput)
	require.True(t, ok)
	require.Len(t, inspectOut.Input, 1)
	assert.Equal(t, int64(5), inspectOut.Input[0].Value)
}

func TestHandleInspect_LiveOutputTrace(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	graphID := tickOnce(t, s, "", []DeltaEntry{{Key: "a", TS: 10, Value: 5, Weight: 1}}, 10)

	_, out, err := s.handleInspect(context.Background(), &mcpsdk.CallToolRequest{}, InspectInput{
		GraphID: graphID,
		Which:   "output",
	})
	require.NoError(t, err)

	inspectOut, ok := out.Data.(InspectOutput)
	require.True(t, ok)
	require.Len(t, inspectOut.Output, 1)
	assert.Equal(t, int64(5), inspectOut.Output[0].Agg)
}

func TestHandleInspect_UnknownGraphIDErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	result, _, err := s.handleInspect(context.Background(), &mcpsdk.CallToolRequest{}, InspectInput{
		GraphID: "graph-999",
		Which:   "input",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleInspect_InvalidWhichErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	graphID := tickOnce(t, s, "", nil, 10)

	result, _, err := s.handleInspect(context.Background(), &mcpsdk.CallToolRequest{}, InspectInput{
		GraphID: graphID,
		Which:   "sideways",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleInspect_ArchivedWithoutCheckpointingErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	graphID := tickOnce(t, s, "", nil, 10)

	result, _, err := s.handleInspect(context.Background(), &mcpsdk.CallToolRequest{}, InspectInput{
		GraphID: graphID,
		Which:   "input",
		Source:  "archived",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleInspect_ArchivedEntriesAfterGC(t *testing.T) {
	t.Parallel()

	s := NewServer(ServerDeps{CheckpointDir: t.TempDir(), SpillThreshold: 1})

	narrowDoc := `{
	  "range": {"from": {"kind": "before", "n": 100}, "to": {"kind": "before", "n": 0}},
	  "aggregator": "sum"
	}`

	_, out, err := s.handleTick(context.Background(), &mcpsdk.CallToolRequest{}, TickInput{
		Document:  narrowDoc,
		Delta:     []DeltaEntry{{Key: "a", TS: 10, Value: 1, Weight: 1}},
		Watermark: 10,
	})
	require.NoError(t, err)

	graphID := out.Data.(TickOutput).GraphID

	_, _, err = s.handleTick(context.Background(), &mcpsdk.CallToolRequest{}, TickInput{
		GraphID:   graphID,
		Delta:     []DeltaEntry{{Key: "a", TS: 1000, Value: 1, Weight: 1}},
		Watermark: 1000,
	})
	require.NoError(t, err)

	result, inspectOut, err := s.handleInspect(context.Background(), &mcpsdk.CallToolRequest{}, InspectInput{
		GraphID: graphID,
		Which:   "input",
		Source:  "archived",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	out2, ok := inspectOut.Data.(InspectOutput)
	require.True(t, ok)
	require.Len(t, out2.Input, 1)
	assert.Equal(t, int64(10), out2.Input[0].TS)
}

func TestHandleInspect_LimitTruncatesRows(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	graphID := tickOnce(t, s, "", []DeltaEntry{
		{Key: "a", TS: 10, Value: 1, Weight: 1},
		{Key: "b", TS: 10, Value: 1, Weight: 1},
	}, 10)

	_, out, err := s.handleInspect(context.Background(), &mcpsdk.CallToolRequest{}, InspectInput{
		GraphID: graphID,
		Which:   "input",
		Limit:   1,
	})
	require.NoError(t, err)

	inspectOut, ok := out.Data.(InspectOutput)
	require.True(t, ok)
	assert.Len(t, inspectOut.Input, 1)
}
