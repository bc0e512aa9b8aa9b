package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Builtin host functions bound into every execution. Registered tools with
// the same name replace them.
const (
	// BuiltinPrint appends its arguments, tab-separated, to ExecutionResult.Stdout.
	BuiltinPrint = "print"

	// BuiltinCallTool dispatches to a registered tool by name:
	// call_tool(name, input). An unknown name fails the execution with
	// ToolNotFound.
	BuiltinCallTool = "call_tool"
)

// ctxPollInterval is how many operations pass between checks of the
// caller's context.
const ctxPollInterval = 1024

// errWallClock is the progress-hook cause used when the timeout elapses.
var errWallClock = errors.New("wall-clock budget exhausted")

// Orchestrator runs scripts against a registry of host tools.
//
// Contract:
// - Concurrency: safe for concurrent use; each Execute call gets its own
// engine and Session.
// - Context: ctx cancellation is observed while the script runs and is
// propagated to handlers together with the execution deadline.
// - Errors: Execute returns *Error; tool-call overflow and handler failures
// are reported in-band to the script and never returned.
// - Ownership: returned results are caller-owned.
type Orchestrator struct {
	cfg      Config
	registry *Registry
	newStore func() AccountingStore
}

// New creates an Orchestrator with the given configuration.
// Returns ErrConfiguration if any required field is missing.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:      cfg,
		registry: NewRegistry(),
		newStore: cfg.Accounting.storeFactory(),
	}, nil
}

// Register adds or replaces a tool and reports whether it was added. An
// empty name or nil handler is ignored. In-flight executions keep the
// handlers they started with.
func (o *Orchestrator) Register(name string, h Handler) bool {
	if !o.registry.Register(name, h) {
		return false
	}
	o.cfg.Logger.Logf("registered tool %s", name)
	return true
}

// RegisterFunc registers fn as a tool.
func (o *Orchestrator) RegisterFunc(name string, fn func(ctx context.Context, input any) (string, error)) bool {
	if fn == nil {
		return false
	}
	return o.Register(name, HandlerFunc(fn))
}

// Unregister removes a tool and reports whether it existed.
func (o *Orchestrator) Unregister(name string) bool {
	ok := o.registry.Unregister(name)
	if ok {
		o.cfg.Logger.Logf("unregistered tool %s", name)
	}
	return ok
}

// RegisteredNames returns the registered tool names, sorted.
func (o *Orchestrator) RegisteredNames() []string {
	return o.registry.Names()
}

// Execute compiles and evaluates source under limits.
//
// On success the result carries the script's final value as text. On
// failure Execute returns the partial result (calls made so far, error
// text) together with a typed *Error. The timeout is checked between
// instructions and after each tool call; a script whose last instruction
// ran inside the budget succeeds even if Execute returns after it.
func (o *Orchestrator) Execute(ctx context.Context, source string, limits ExecutionLimits) (ExecutionResult, error) {
	sess := NewSession(o.newStore(), limits)
	x := &execution{
		o:        o,
		sess:     sess,
		parent:   ctx,
		handlers: o.registry.snapshot(),
	}

	value, err := x.run(source)

	res := ExecutionResult{
		ID:       uuid.NewString(),
		Calls:    sess.Calls(),
		Duration: sess.Elapsed(),
		Stdout:   x.stdout.String(),
	}
	if err != nil {
		_ = sess.Transition(PhaseFailed)
		res.Error = err.Error()
		o.cfg.Logger.Logf("execution %s failed after %d tool calls in %dms: %v",
			res.ID, len(res.Calls), res.Duration.Milliseconds(), err)
		o.cfg.Observer.ExecutionFinished(res, err)
		return res, err
	}

	_ = sess.Transition(PhaseCompleted)
	res.Success = true
	res.Output = value.Text()
	o.cfg.Logger.Logf("execution %s executed %d tool calls in %dms",
		res.ID, len(res.Calls), res.Duration.Milliseconds())
	o.cfg.Observer.ExecutionFinished(res, nil)
	return res, nil
}

// Invoke calls a registered tool directly, outside any script. It returns
// ToolNotFound for unknown names and ToolError when the handler fails; the
// returned record is filled in either way once the handler ran.
func (o *Orchestrator) Invoke(ctx context.Context, name string, input any) (ToolCallRecord, error) {
	h, ok := o.registry.Lookup(name)
	if !ok {
		return ToolCallRecord{ToolName: name, Input: input}, ToolNotFound(name)
	}
	rec, err := callHandler(ctx, name, h, input)
	o.cfg.Observer.ToolCalled(rec)
	if err != nil {
		return rec, ToolError(err.Error()).wrap(err)
	}
	return rec, nil
}

// execution is the state of one Execute call. It is driven by a single
// goroutine: the engine calls back into it synchronously.
type execution struct {
	o        *Orchestrator
	sess     *Session
	parent   context.Context
	toolCtx  context.Context
	handlers map[string]Handler
	stdout   strings.Builder

	// fatal is the first fatal error raised from a host function. It is
	// kept here because scripts can trap errors raised into the engine.
	fatal *Error

	// overran is set when a tool call returned after the deadline.
	overran bool
}

func (x *execution) run(source string) (Value, error) {
	if err := x.parent.Err(); err != nil {
		return Unit(), ExecutionError(err.Error()).wrap(err)
	}
	limits := x.sess.Limits()

	toolCtx, cancel := context.WithDeadline(x.parent, x.sess.Deadline())
	defer cancel()
	x.toolCtx = toolCtx

	engine, err := x.o.cfg.Engine.NewEngine(limits.engineConfig())
	if err != nil {
		return Unit(), ExecutionError(err.Error()).wrap(err)
	}
	defer func() { _ = engine.Close() }()

	engine.OnProgress(x.progress)
	engine.Bind(BuiltinPrint, x.print)
	engine.Bind(BuiltinCallTool, x.callTool)
	for name, h := range x.handlers {
		engine.Bind(name, x.bindTool(name, h))
	}

	_ = x.sess.Transition(PhaseCompiling)
	prog, err := engine.Compile(source)
	if err != nil {
		return Unit(), CompilationError(err.Error()).wrap(err)
	}

	_ = x.sess.Transition(PhaseEvaluating)
	value, err := engine.Evaluate(prog)
	if err != nil {
		return Unit(), x.classify(err)
	}
	if x.fatal != nil {
		return Unit(), x.fatal
	}
	if x.overran {
		return Unit(), Timeout(limits.Timeout)
	}
	return value, nil
}

// progress is the engine's abort-poll hook.
func (x *execution) progress(ops uint64) error {
	if x.sess.TimedOut() {
		return errWallClock
	}
	if ops%ctxPollInterval == 0 {
		if err := x.parent.Err(); err != nil {
			return err
		}
	}
	return nil
}

// classify maps an evaluation failure to the error taxonomy.
func (x *execution) classify(err error) *Error {
	if x.fatal != nil {
		return x.fatal
	}
	limits := x.sess.Limits()
	if errors.Is(err, ErrOperationLimit) {
		return MaxOperationsExceeded(limits.MaxOperations).wrap(err)
	}
	var abort *AbortError
	if errors.As(err, &abort) {
		if errors.Is(abort.Cause, errWallClock) {
			return Timeout(limits.Timeout).wrap(err)
		}
		return ExecutionError(abort.Error()).wrap(err)
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return ExecutionError(err.Error()).wrap(err)
}

// bindTool returns the script-side callable for a registered tool.
func (x *execution) bindTool(name string, h Handler) HostFunc {
	return func(args []Value) (Value, error) {
		return String(x.dispatch(name, h, packArgs(args))), nil
	}
}

// dispatch admits, runs and records one tool call and returns the text
// handed back to the script.
func (x *execution) dispatch(name string, h Handler, arg Value) string {
	if !x.sess.Admit() {
		limit := x.sess.Limits().MaxToolCalls
		x.o.cfg.Logger.Logf("tool %s rejected: maximum tool calls (%d) reached", name, limit)
		return fmt.Sprintf("ERROR: Maximum tool calls (%d) exceeded", limit)
	}
	rec, _ := callHandler(x.toolCtx, name, h, arg.ToJSON())
	if x.sess.TimedOut() {
		x.overran = true
	}
	x.sess.Record(rec)
	x.o.cfg.Observer.ToolCalled(rec)
	x.o.cfg.Logger.Logf("tool %s finished in %v (success=%t)", name, rec.Duration, rec.Success)
	return rec.Output
}

func (x *execution) callTool(args []Value) (Value, error) {
	if len(args) == 0 || args[0].Kind() != KindString {
		return Unit(), fmt.Errorf("%s: first argument must be a tool name", BuiltinCallTool)
	}
	name := args[0].Str()
	h, ok := x.handlers[name]
	if !ok {
		if x.fatal == nil {
			x.fatal = ToolNotFound(name)
		}
		return Unit(), x.fatal
	}
	return String(x.dispatch(name, h, packArgs(args[1:]))), nil
}

func (x *execution) print(args []Value) (Value, error) {
	for i, a := range args {
		if i > 0 {
			x.stdout.WriteByte('\t')
		}
		x.stdout.WriteString(a.Text())
	}
	x.stdout.WriteByte('\n')
	return Unit(), nil
}

// callHandler runs h and builds its record. Handler panics are reported as
// handler errors.
func callHandler(ctx context.Context, name string, h Handler, input any) (rec ToolCallRecord, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		rec = ToolCallRecord{
			ToolName: name,
			Input:    input,
			Output:   rec.Output,
			Success:  err == nil,
			Duration: time.Since(start),
		}
		if err != nil {
			rec.Output = "Tool error: " + err.Error()
		}
	}()
	rec.Output, err = h.Call(ctx, input)
	return rec, err
}

// packArgs folds script call arguments into the single tool input: none is
// Unit, one is passed through, several become an array.
func packArgs(args []Value) Value {
	switch len(args) {
	case 0:
		return Unit()
	case 1:
		return args[0]
	default:
		return Array(args...)
	}
}
