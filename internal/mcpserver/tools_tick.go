package mcpserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/streamcore/rollup/internal/trace"
)

// TickInput is the input schema for the rollup_tick tool.
type TickInput struct {
	GraphID   string       `json:"graph_id,omitempty" jsonschema:"existing graph session id; omit alongside document to start a new session"`
	Document  string       `json:"document,omitempty" jsonschema:"dataflow graph document JSON; required when graph_id is omitted"`
	Delta     []DeltaEntry `json:"delta,omitempty"    jsonschema:"entries to apply this tick"`
	Watermark int64        `json:"watermark"          jsonschema:"new watermark value for this tick"`
}

// TickOutput is the structured result of a rollup_tick call.
type TickOutput struct {
	GraphID string      `json:"graph_id"`
	Step    uint64      `json:"step"`
	Output  []OutputRow `json:"output"`
}

func (s *Server) handleTick(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input TickInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	graphID, sess, err := s.resolveOrCreateSession(input.GraphID, input.Document)
	if err != nil {
		return errorResult(err)
	}

	delta := make([]trace.Entry[string, int64, int64], 0, len(input.Delta))
	for _, d := range input.Delta {
		delta = append(delta, trace.Entry[string, int64, int64]{
			Key:    d.Key,
			Val:    trace.Tuple[int64, int64]{TS: d.TS, Payload: d.Value},
			Weight: d.Weight,
		})
	}

	sess.mu.Lock()
	outDelta := sess.clock.RunTick(delta, input.Watermark)
	step := sess.clock.Step()
	sess.mu.Unlock()

	rows := make([]OutputRow, 0, len(outDelta))
	for _, e := range outDelta {
		agg, valid := e.Val.Payload.Agg.Value, e.Val.Payload.Agg.Valid
		rows = append(rows, OutputRow{Key: e.Key, TS: e.Val.TS, Agg: agg, Valid: valid})
	}

	return jsonResult(TickOutput{GraphID: graphID, Step: step, Output: rows})
}

func (s *Server) resolveOrCreateSession(graphID, document string) (string, *graphSession, error) {
	if graphID != "" {
		sess, ok := s.sessions.get(graphID)
		if !ok {
			return "", nil, ErrUnknownGraphID
		}

		return graphID, sess, nil
	}

	if document == "" {
		return "", nil, ErrMissingDocument
	}

	return s.sessions.create([]byte(document))
}
