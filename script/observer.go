package script

// Observer receives execution events, typically to export metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: observers must not panic; they cannot fail an execution.
// - Ownership: arguments are read-only.
type Observer interface {
	// ToolCalled is invoked after each admitted tool call is recorded.
	ToolCalled(rec ToolCallRecord)

	// ExecutionFinished is invoked once per Execute call with the result
	// and the typed error, if any.
	ExecutionFinished(res ExecutionResult, err error)
}

// Observers fans events out to each observer in order.
type Observers []Observer

// ToolCalled forwards rec.
func (o Observers) ToolCalled(rec ToolCallRecord) {
	for _, ob := range o {
		ob.ToolCalled(rec)
	}
}

// ExecutionFinished forwards res and err.
func (o Observers) ExecutionFinished(res ExecutionResult, err error) {
	for _, ob := range o {
		ob.ExecutionFinished(res, err)
	}
}

type nopObserver struct{}

func (nopObserver) ToolCalled(ToolCallRecord)                {}
func (nopObserver) ExecutionFinished(ExecutionResult, error) {}
