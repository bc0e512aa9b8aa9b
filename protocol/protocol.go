package protocol

import (
	"time"

	"github.com/jonwraymond/toolscript/script"
)

// ExecuteRequest is a remote request to run a script. Unset limit fields
// fall back to the server's defaults.
type ExecuteRequest struct {
	// Script is the source to run.
	Script string `json:"script" jsonschema:"the Lua script to execute"`

	// MaxOperations overrides the operation budget.
	MaxOperations *uint64 `json:"max_operations,omitempty" jsonschema:"maximum number of operations (prevents infinite loops)"`

	// MaxToolCalls overrides the tool-call budget.
	MaxToolCalls *int `json:"max_tool_calls,omitempty" jsonschema:"maximum number of tool calls allowed"`

	// TimeoutMs overrides the wall-clock budget, in milliseconds.
	TimeoutMs *uint64 `json:"timeout_ms,omitempty" jsonschema:"timeout in milliseconds"`
}

// Limits applies the request's overrides to base.
func (r ExecuteRequest) Limits(base script.ExecutionLimits) script.ExecutionLimits {
	limits := base
	if r.MaxOperations != nil {
		limits = limits.WithMaxOperations(*r.MaxOperations)
	}
	if r.MaxToolCalls != nil {
		limits = limits.WithMaxToolCalls(*r.MaxToolCalls)
	}
	if r.TimeoutMs != nil {
		limits = limits.WithTimeoutMs(*r.TimeoutMs)
	}
	return limits
}

// ExecuteResponse is the remote projection of an execution.
type ExecuteResponse struct {
	Success         bool   `json:"success" jsonschema:"whether the script completed"`
	Output          string `json:"output" jsonschema:"the script's final value as text"`
	ToolCallsCount  int    `json:"tool_calls_count" jsonschema:"number of recorded tool calls"`
	ExecutionTimeMs uint64 `json:"execution_time_ms" jsonschema:"wall-clock execution time in milliseconds"`
	Error           string `json:"error,omitempty" jsonschema:"failure message when success is false"`
}

// NewExecuteResponse projects an execution result. A non-nil err always
// produces success=false with err's message.
func NewExecuteResponse(res script.ExecutionResult, err error) ExecuteResponse {
	resp := ExecuteResponse{
		Success:         res.Success,
		Output:          res.Output,
		ToolCallsCount:  res.ToolCallsCount(),
		ExecutionTimeMs: durationMs(res.Duration),
		Error:           res.Error,
	}
	if err != nil {
		resp.Success = false
		resp.Error = err.Error()
	}
	return resp
}

func durationMs(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}

// RegisterToolRequest registers a shell command as a tool.
type RegisterToolRequest struct {
	Name        string   `json:"name" jsonschema:"name of the tool"`
	Description string   `json:"description" jsonschema:"description of what the tool does"`
	Command     string   `json:"command" jsonschema:"shell command to run; the JSON input is available as $input and on stdin"`
	Tags        []string `json:"tags,omitempty" jsonschema:"search tags"`
}

// RegisterToolResponse acknowledges a registration.
type RegisterToolResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// UnregisterToolRequest removes a tool.
type UnregisterToolRequest struct {
	Name string `json:"name" jsonschema:"name of the tool to unregister"`
}

// UnregisterToolResponse reports whether the tool existed.
type UnregisterToolResponse struct {
	Name    string `json:"name"`
	Removed bool   `json:"removed"`
	Message string `json:"message"`
}

// ToolInfo summarizes a registered tool.
type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// ListToolsResponse lists registered tools sorted by name.
type ListToolsResponse struct {
	Tools []ToolInfo `json:"tools"`
}

// SearchToolsRequest searches the catalog.
type SearchToolsRequest struct {
	Query string `json:"query" jsonschema:"free-text query; empty lists all tools"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

// SearchToolsResponse holds search hits in rank order.
type SearchToolsResponse struct {
	Tools []ToolInfo `json:"tools"`
}

// DescribeToolRequest asks for one tool's documentation.
type DescribeToolRequest struct {
	Name string `json:"name" jsonschema:"name of the tool"`
}

// DescribeToolResponse is a tool's documentation.
type DescribeToolResponse struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Summary     string   `json:"summary,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Kind        string   `json:"kind"`
}

// InvokeRequest calls a tool directly, outside a script.
type InvokeRequest struct {
	Input any `json:"input"`
}

// InvokeResponse is the outcome of a direct call.
type InvokeResponse struct {
	Tool       string `json:"tool"`
	Output     string `json:"output"`
	Success    bool   `json:"success"`
	DurationMs uint64 `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NewInvokeResponse projects a tool call record.
func NewInvokeResponse(rec script.ToolCallRecord, err error) InvokeResponse {
	resp := InvokeResponse{
		Tool:       rec.ToolName,
		Output:     rec.Output,
		Success:    rec.Success && err == nil,
		DurationMs: durationMs(rec.Duration),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
