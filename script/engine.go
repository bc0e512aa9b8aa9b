package script

// EngineConfig carries the numeric caps a fresh engine must enforce. Zero
// means unbounded for every field except MaxCallDepth, which the
// orchestrator always sets.
type EngineConfig struct {
	MaxOperations uint64
	MaxCallDepth  int
	MaxStringSize int
	MaxArraySize  int
	MaxMapSize    int
}

// HostFunc is a host function bound into an engine's namespace. args are
// the script-side call arguments. A returned error aborts evaluation; the
// engine must surface it from Evaluate so that errors.As still finds it.
type HostFunc func(args []Value) (Value, error)

// ProgressFunc is polled by the engine at fine evaluation granularity with
// the running operation count. A non-nil return aborts evaluation with an
// *AbortError wrapping it.
type ProgressFunc func(ops uint64) error

// Program is an opaque compiled script. It is only valid for the Engine
// that produced it.
type Program interface{}

// Engine compiles and evaluates scripts.
//
// Contract:
// - Concurrency: an Engine is used by a single goroutine for one execution.
// - Isolation: engines share no state with each other.
// - Errors: compile failures come from Compile; operation-cap breaches wrap
// ErrOperationLimit; progress aborts return *AbortError; size-cap breaches
// wrap ErrSizeLimit; errors returned by a HostFunc stay reachable via errors.As.
// - Ownership: Close releases all engine resources; the engine is unusable afterwards.
type Engine interface {
	// Bind exposes fn to scripts under name.
	Bind(name string, fn HostFunc)

	// OnProgress installs the abort-poll hook.
	OnProgress(fn ProgressFunc)

	// Compile parses source into a Program.
	Compile(source string) (Program, error)

	// Evaluate runs a Program and returns the script's final value.
	Evaluate(p Program) (Value, error)

	// Close releases the engine.
	Close() error
}

// EngineFactory creates isolated engines.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: configuration problems are returned from NewEngine.
type EngineFactory interface {
	// NewEngine creates a fresh engine enforcing cfg.
	NewEngine(cfg EngineConfig) (Engine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory.
type EngineFactoryFunc func(cfg EngineConfig) (Engine, error)

// NewEngine calls f.
func (f EngineFactoryFunc) NewEngine(cfg EngineConfig) (Engine, error) {
	return f(cfg)
}
