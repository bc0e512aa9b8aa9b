package script

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for error classification.
var (
	// ErrCompilation indicates the script failed to compile.
	ErrCompilation = errors.New("compilation error")

	// ErrExecution indicates a runtime failure during evaluation.
	ErrExecution = errors.New("execution error")

	// ErrMaxOperations indicates the operation budget was exhausted.
	ErrMaxOperations = errors.New("maximum operations exceeded")

	// ErrTimeout indicates the wall-clock budget was exhausted.
	ErrTimeout = errors.New("timeout")

	// ErrLimitExceeded matches any runaway-script error: ErrMaxOperations
	// or ErrTimeout.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrToolNotFound indicates a dispatch to a name that is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolFailed indicates a handler reported failure to a host caller.
	ErrToolFailed = errors.New("tool failed")

	// ErrConfiguration indicates an invalid or incomplete configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Engine-side sentinels. Engines return these (wrapped) from Evaluate so the
// orchestrator can classify aborts.
var (
	// ErrOperationLimit is returned by an engine when EngineConfig.MaxOperations
	// is exceeded.
	ErrOperationLimit = errors.New("operation limit reached")

	// ErrSizeLimit is returned by an engine when a string, array or map
	// exceeds its configured cap.
	ErrSizeLimit = errors.New("size limit reached")
)

// AbortError is returned by an engine when its ProgressFunc requested early
// termination. Cause is the error the ProgressFunc returned.
type AbortError struct {
	Cause error
}

// Error returns the abort message.
func (e *AbortError) Error() string {
	if e.Cause == nil {
		return "evaluation aborted"
	}
	return "evaluation aborted: " + e.Cause.Error()
}

// Unwrap returns the cause.
func (e *AbortError) Unwrap() error { return e.Cause }

// ErrorKind identifies the variant of an Error.
type ErrorKind int

// Error kinds.
const (
	KindCompilation ErrorKind = iota
	KindExecution
	KindMaxOperations
	KindTimeout
	KindToolNotFound
	KindTool
)

// String returns a snake_case name for the kind, suitable for metric labels.
func (k ErrorKind) String() string {
	switch k {
	case KindCompilation:
		return "compilation_error"
	case KindExecution:
		return "execution_error"
	case KindMaxOperations:
		return "max_operations_exceeded"
	case KindTimeout:
		return "timeout"
	case KindToolNotFound:
		return "tool_not_found"
	case KindTool:
		return "tool_error"
	}
	return fmt.Sprintf("error_kind(%d)", int(k))
}

// ErrorClass groups error kinds by the remediation they call for.
type ErrorClass string

// Error classes.
const (
	// ClassScript means the script is malformed or buggy: fix the script.
	ClassScript ErrorClass = "script"
	// ClassRunaway means a resource limit tripped: raise limits or simplify.
	ClassRunaway ErrorClass = "runaway"
	// ClassMisconfiguration means the tool set does not match the script.
	ClassMisconfiguration ErrorClass = "misconfiguration"
	// ClassTool means a handler failed when invoked directly by a host.
	ClassTool ErrorClass = "tool"
)

// Class returns the remediation class for k.
func (k ErrorKind) Class() ErrorClass {
	switch k {
	case KindMaxOperations, KindTimeout:
		return ClassRunaway
	case KindToolNotFound:
		return ClassMisconfiguration
	case KindTool:
		return ClassTool
	default:
		return ClassScript
	}
}

// Error is the typed failure returned by Orchestrator.Execute and
// Orchestrator.Invoke.
type Error struct {
	// Kind identifies the variant.
	Kind ErrorKind

	// Message carries the detail for compilation, execution and tool errors.
	Message string

	// Limit is the operation cap for KindMaxOperations and the timeout in
	// milliseconds for KindTimeout.
	Limit uint64

	// Tool is the missing tool name for KindToolNotFound.
	Tool string

	// Err is the underlying error, if any.
	Err error
}

// CompilationError returns a KindCompilation error.
func CompilationError(msg string) *Error {
	return &Error{Kind: KindCompilation, Message: msg}
}

// ExecutionError returns a KindExecution error.
func ExecutionError(msg string) *Error {
	return &Error{Kind: KindExecution, Message: msg}
}

// MaxOperationsExceeded returns a KindMaxOperations error for the given cap.
func MaxOperationsExceeded(limit uint64) *Error {
	return &Error{Kind: KindMaxOperations, Limit: limit}
}

// Timeout returns a KindTimeout error for the given budget.
func Timeout(limit time.Duration) *Error {
	return &Error{Kind: KindTimeout, Limit: uint64(limit / time.Millisecond)}
}

// ToolNotFound returns a KindToolNotFound error.
func ToolNotFound(name string) *Error {
	return &Error{Kind: KindToolNotFound, Tool: name}
}

// ToolError returns a KindTool error.
func ToolError(msg string) *Error {
	return &Error{Kind: KindTool, Message: msg}
}

// Error returns the error message.
func (e *Error) Error() string {
	switch e.Kind {
	case KindCompilation:
		return "script compilation failed: " + e.Message
	case KindExecution:
		return "script execution failed: " + e.Message
	case KindMaxOperations:
		return fmt.Sprintf("script exceeded maximum operations (%d)", e.Limit)
	case KindTimeout:
		return fmt.Sprintf("script execution timed out after %dms", e.Limit)
	case KindToolNotFound:
		return "tool not found: " + e.Tool
	case KindTool:
		return "tool execution failed: " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether this error matches the target sentinel.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrCompilation:
		return e.Kind == KindCompilation
	case ErrExecution:
		return e.Kind == KindExecution
	case ErrMaxOperations:
		return e.Kind == KindMaxOperations
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrLimitExceeded:
		return e.Kind == KindMaxOperations || e.Kind == KindTimeout
	case ErrToolNotFound:
		return e.Kind == KindToolNotFound
	case ErrToolFailed:
		return e.Kind == KindTool
	}
	return false
}

// wrap records the cause on e and returns it.
func (e *Error) wrap(err error) *Error {
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
