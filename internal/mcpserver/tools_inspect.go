package mcpserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/streamcore/rollup/internal/rollup"
	"github.com/streamcore/rollup/internal/trace"
)

// InspectInput is the input schema for the rollup_inspect_trace tool.
type InspectInput struct {
	GraphID string `json:"graph_id"         jsonschema:"graph session id returned by a prior rollup_tick call"`
	Which   string `json:"which"            jsonschema:"\"input\" or \"output\" trace"`
	Source  string `json:"source,omitempty" jsonschema:"\"live\" (default) or \"archived\" (checkpoint-archived, GC'd history)"`
	Limit   int    `json:"limit,omitempty"  jsonschema:"maximum rows to return; 0 means unlimited"`
}

// InspectOutput is the structured result of a rollup_inspect_trace call.
// Exactly one of Input/Output is populated, matching the requested Which.
type InspectOutput struct {
	Input  []InputRow  `json:"input,omitempty"`
	Output []OutputRow `json:"output,omitempty"`
}

func (s *Server) handleInspect(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input InspectInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	sess, ok := s.sessions.get(input.GraphID)
	if !ok {
		return errorResult(ErrUnknownGraphID)
	}

	source := input.Source
	if source == "" {
		source = "live"
	}

	switch input.Which {
	case "input":
		return s.inspectInput(sess, source, input.Limit)
	case "output":
		return s.inspectOutput(sess, source, input.Limit)
	default:
		return errorResult(ErrInvalidWhich)
	}
}

func (s *Server) inspectInput(sess *graphSession, source string, limit int) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var entries []trace.Entry[string, int64, int64]

	switch source {
	case "live":
		entries = cursorEntries(sess.graph.InputTrace)
	case "archived":
		if sess.store == nil {
			return errorResult(ErrArchivingDisabled)
		}

		archived, err := sess.store.Input.Inspect()
		if err != nil {
			return errorResult(err)
		}

		entries = archived
	default:
		return errorResult(ErrInvalidSource)
	}

	rows := make([]InputRow, 0, len(entries))

	for _, e := range applyLimit(entries, limit) {
		rows = append(rows, InputRow{Key: e.Key, TS: e.Val.TS, Value: e.Val.Payload, Weight: e.Weight})
	}

	return jsonResult(InspectOutput{Input: rows})
}

func (s *Server) inspectOutput(sess *graphSession, source string, limit int) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var entries []trace.Entry[string, int64, rollup.Output[int64, int64]]

	switch source {
	case "live":
		entries = cursorEntries(sess.graph.OutputTrace)
	case "archived":
		if sess.store == nil {
			return errorResult(ErrArchivingDisabled)
		}

		archived, err := sess.store.Output.Inspect()
		if err != nil {
			return errorResult(err)
		}

		entries = archived
	default:
		return errorResult(ErrInvalidSource)
	}

	rows := make([]OutputRow, 0, len(entries))

	for _, e := range applyLimit(entries, limit) {
		rows = append(rows, OutputRow{Key: e.Key, TS: e.Val.TS, Agg: e.Val.Payload.Agg.Value, Valid: e.Val.Payload.Agg.Valid})
	}

	return jsonResult(InspectOutput{Output: rows})
}

// cursorEntries walks tr's consolidated view in full, for display only;
// it never mutates the trace.
func cursorEntries[Payload any](tr *trace.Trace[string, int64, Payload]) []trace.Entry[string, int64, Payload] {
	c := tr.Cursor()

	var entries []trace.Entry[string, int64, Payload]

	for c.KeyValid() {
		key := c.Key()

		for c.ValValid() {
			entries = append(entries, trace.Entry[string, int64, Payload]{
				Key: key, Val: c.Val(), Weight: c.Weight(),
			})
			c.StepVal()
		}

		c.StepKey()
	}

	return entries
}

func applyLimit[T any](items []T, limit int) []T {
	if limit > 0 && limit < len(items) {
		return items[:limit]
	}

	return items
}
