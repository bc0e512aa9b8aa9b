package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// fakeScript is the behavior of a compiled fake program.
type fakeScript func(rt *fakeRuntime) (Value, error)

// fakeFactory implements EngineFactory for testing. Sources are looked up
// in scripts; unknown sources fail to compile.
type fakeFactory struct {
	mu sync.Mutex

	// Configurable behavior
	scripts map[string]fakeScript
	newErr  error

	// Call tracking
	engines []*fakeEngine
}

func newFakeFactory(scripts map[string]fakeScript) *fakeFactory {
	return &fakeFactory{scripts: scripts}
}

func (f *fakeFactory) NewEngine(cfg EngineConfig) (Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	e := &fakeEngine{cfg: cfg, funcs: make(map[string]HostFunc), scripts: f.scripts}
	f.engines = append(f.engines, e)
	return e, nil
}

func (f *fakeFactory) lastEngine() *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}

// fakeEngine implements Engine for testing.
type fakeEngine struct {
	cfg      EngineConfig
	funcs    map[string]HostFunc
	progress ProgressFunc
	scripts  map[string]fakeScript
	closed   bool
}

func (e *fakeEngine) Bind(name string, fn HostFunc) { e.funcs[name] = fn }

func (e *fakeEngine) OnProgress(fn ProgressFunc) { e.progress = fn }

func (e *fakeEngine) Compile(source string) (Program, error) {
	s, ok := e.scripts[source]
	if !ok {
		return nil, fmt.Errorf("unexpected symbol near %q", source)
	}
	return s, nil
}

func (e *fakeEngine) Evaluate(p Program) (Value, error) {
	s, ok := p.(fakeScript)
	if !ok {
		return Unit(), errors.New("foreign program")
	}
	return s(&fakeRuntime{e: e})
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

// fakeRuntime is what a fakeScript sees while evaluating.
type fakeRuntime struct {
	e   *fakeEngine
	ops uint64
}

// call invokes a bound host function, counting one operation first.
func (r *fakeRuntime) call(name string, args ...Value) (Value, error) {
	if err := r.tick(1); err != nil {
		return Unit(), err
	}
	fn, ok := r.e.funcs[name]
	if !ok {
		return Unit(), fmt.Errorf("function not found: %s", name)
	}
	return fn(args)
}

// tick performs n operations, honoring the operation cap and progress hook
// the way a real engine does.
func (r *fakeRuntime) tick(n int) error {
	for i := 0; i < n; i++ {
		r.ops++
		if r.e.cfg.MaxOperations > 0 && r.ops > r.e.cfg.MaxOperations {
			return fmt.Errorf("loop: %w", ErrOperationLimit)
		}
		if r.e.progress != nil {
			if err := r.e.progress(r.ops); err != nil {
				return &AbortError{Cause: err}
			}
		}
	}
	return nil
}

// recordingLogger implements Logger for testing.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

// recordingObserver implements Observer for testing.
type recordingObserver struct {
	mu       sync.Mutex
	calls    []ToolCallRecord
	finished []ExecutionResult
	errs     []error
}

func (o *recordingObserver) ToolCalled(rec ToolCallRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, rec)
}

func (o *recordingObserver) ExecutionFinished(res ExecutionResult, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, res)
	o.errs = append(o.errs, err)
}

// greetHandler returns "Hello, <input>!".
func greetHandler(_ context.Context, input any) (string, error) {
	return fmt.Sprintf("Hello, %v!", input), nil
}

// newTestOrchestrator builds an orchestrator over a fake engine.
func newTestOrchestrator(scripts map[string]fakeScript, opts ...func(*Config)) (*Orchestrator, *fakeFactory) {
	f := newFakeFactory(scripts)
	cfg := Config{Engine: f}
	for _, opt := range opts {
		opt(&cfg)
	}
	o, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return o, f
}
