package script

import "time"

// ToolCallRecord captures a single admitted tool invocation. Records are
// created once, appended to the execution's log in invocation order, and
// never modified afterwards.
type ToolCallRecord struct {
	// ToolName is the registered name the script called.
	ToolName string `json:"tool_name"`

	// Input is the call argument converted to the JSON model.
	Input any `json:"input"`

	// Output is the text returned to the script. For failed calls it is the
	// "Tool error: ..." string.
	Output string `json:"output"`

	// Success is false when the handler returned an error or panicked.
	Success bool `json:"success"`

	// Duration is the handler's wall-clock time.
	Duration time.Duration `json:"duration"`
}

// ExecutionResult is produced exactly once per Execute call.
type ExecutionResult struct {
	// ID uniquely identifies the execution.
	ID string `json:"id"`

	// Success reports whether the script produced a value.
	Success bool `json:"success"`

	// Output is the final script value normalized to text.
	Output string `json:"output"`

	// Calls is the ordered audit log of admitted tool calls.
	Calls []ToolCallRecord `json:"calls"`

	// Duration is the total wall-clock time of the execution.
	Duration time.Duration `json:"duration"`

	// Stdout holds lines written by the script's print builtin.
	Stdout string `json:"stdout,omitempty"`

	// Error is the failure text when Success is false.
	Error string `json:"error,omitempty"`
}

// ToolCallsCount returns the number of recorded tool calls.
func (r ExecutionResult) ToolCallsCount() int { return len(r.Calls) }

// FailedCalls returns the number of recorded calls whose handler failed.
func (r ExecutionResult) FailedCalls() int {
	n := 0
	for _, c := range r.Calls {
		if !c.Success {
			n++
		}
	}
	return n
}
