package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameTick    = "rollup_tick"
	ToolNameInspect = "rollup_inspect_trace"
)

// Tool description constants.
const (
	tickToolDescription = "Advance a partitioned rolling-aggregate dataflow graph by one tick: " +
		"apply a batch of partition-key-indexed entries and a new watermark, returning the " +
		"resulting output delta. Omit graph_id with a document to start a new graph session."

	inspectToolDescription = "Inspect a dataflow graph session's input or output trace, either its " +
		"current live contents or (when checkpointing is enabled) its checkpoint-archived history " +
		"already dropped by watermark GC. Read-only: archived entries are never reinserted."
)

// Sentinel errors for tool input validation.
var (
	ErrUnknownGraphID    = errors.New("no graph session with that graph_id")
	ErrMissingDocument   = errors.New("document is required to start a new graph session")
	ErrInvalidWhich      = errors.New(`which must be "input" or "output"`)
	ErrInvalidSource     = errors.New(`source must be "live" or "archived"`)
	ErrArchivingDisabled = errors.New("archived inspection requested but checkpointing is not enabled for this session")
)

// DeltaEntry is one partition-key-indexed entry in a rollup_tick request,
// mirroring trace.Entry[string, int64, int64] in JSON.
type DeltaEntry struct {
	Key    string `json:"key"    jsonschema:"partition key"`
	TS     int64  `json:"ts"     jsonschema:"timestamp"`
	Value  int64  `json:"value"  jsonschema:"payload value"`
	Weight int64  `json:"weight" jsonschema:"signed weight; positive for insertion, negative for retraction"`
}

// OutputRow is one output-trace row in a tool response.
type OutputRow struct {
	Key   string `json:"key"`
	TS    int64  `json:"ts"`
	Agg   int64  `json:"agg"`
	Valid bool   `json:"valid"`
}

// InputRow is one input-trace row in a tool response.
type InputRow struct {
	Key    string `json:"key"`
	TS     int64  `json:"ts"`
	Value  int64  `json:"value"`
	Weight int64  `json:"weight"`
}

// ToolOutput is a generic wrapper for structured tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}
