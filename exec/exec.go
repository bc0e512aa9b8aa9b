package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/toolscript/catalog"
	"github.com/jonwraymond/toolscript/luaengine"
	"github.com/jonwraymond/toolscript/protocol"
	"github.com/jonwraymond/toolscript/script"
	"github.com/jonwraymond/toolscript/shelltool"
)

// Exec is the unified facade for script execution.
// It keeps the orchestrator's tool registry and the search catalog in step
// and holds the default limits applied to remote requests.
type Exec struct {
	orch    *script.Orchestrator
	catalog *catalog.Catalog
	opts    Options

	// mu serializes registry changes so the orchestrator and the catalog
	// always agree, and guards limits.
	mu     sync.RWMutex
	limits script.ExecutionLimits
}

// New creates a new Exec instance with the given options.
func New(opts Options) (*Exec, error) {
	opts.applyDefaults()

	engine := opts.Engine
	if engine == nil {
		engine = luaengine.NewFactory()
	}
	orch, err := script.New(script.Config{
		Engine:     engine,
		Accounting: opts.Accounting,
		Logger:     opts.Logger,
		Observer:   opts.observer(),
	})
	if err != nil {
		return nil, err
	}

	return &Exec{
		orch:    orch,
		catalog: catalog.New(catalog.Options{Namespace: opts.Namespace}),
		opts:    opts,
		limits:  opts.DefaultLimits,
	}, nil
}

// Execute runs a remote request against the default limits and projects
// the result.
func (e *Exec) Execute(ctx context.Context, req protocol.ExecuteRequest) protocol.ExecuteResponse {
	res, err := e.ExecuteScript(ctx, req.Script, req.Limits(e.DefaultLimits()))
	return protocol.NewExecuteResponse(res, err)
}

// ExecuteScript runs source under limits.
func (e *Exec) ExecuteScript(ctx context.Context, source string, limits script.ExecutionLimits) (script.ExecutionResult, error) {
	return e.orch.Execute(ctx, source, limits)
}

// RegisterTool adds or replaces a tool and its catalog entry.
func (e *Exec) RegisterTool(entry catalog.Entry, h script.Handler) error {
	if h == nil {
		return fmt.Errorf("exec: tool %q has no handler", entry.Name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.catalog.Add(entry); err != nil {
		return err
	}
	e.orch.Register(entry.Name, h)
	e.toolsChanged()
	return nil
}

// RegisterFunc registers fn as a tool with a description.
func (e *Exec) RegisterFunc(name, description string, fn func(ctx context.Context, input any) (string, error)) error {
	return e.RegisterTool(catalog.Entry{Name: name, Description: description}, script.HandlerFunc(fn))
}

// RegisterShellTool registers a shell-command tool.
func (e *Exec) RegisterShellTool(t shelltool.Tool, tags []string) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return e.RegisterTool(catalog.Entry{
		Name:        t.Name,
		Description: t.Description,
		Notes:       "Runs: " + t.Command,
		Tags:        tags,
		Kind:        catalog.KindShell,
	}, t.Handler())
}

// UnregisterTool removes a tool and reports whether it existed.
func (e *Exec) UnregisterTool(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := e.catalog.Remove(name)
	if e.orch.Unregister(name) {
		removed = true
	}
	if removed {
		e.toolsChanged()
	}
	return removed
}

// ListTools returns all registered tools sorted by name.
func (e *Exec) ListTools() []catalog.Entry {
	return e.catalog.List()
}

// SearchTools finds tools matching a query. An empty query lists tools.
func (e *Exec) SearchTools(ctx context.Context, query string, limit int) ([]catalog.Entry, error) {
	_ = ctx // reserved for context-aware search
	return e.catalog.Search(query, limit)
}

// DescribeTool returns a tool's documentation.
func (e *Exec) DescribeTool(ctx context.Context, name string) (catalog.Description, error) {
	_ = ctx // reserved for context-aware doc retrieval
	return e.catalog.Describe(name)
}

// Invoke calls a tool directly, outside any script.
func (e *Exec) Invoke(ctx context.Context, name string, input any) (script.ToolCallRecord, error) {
	return e.orch.Invoke(ctx, name, input)
}

// DefaultLimits returns the limits applied to requests without overrides.
func (e *Exec) DefaultLimits() script.ExecutionLimits {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limits
}

// SetDefaultLimits replaces the default limits. In-flight executions keep
// the limits they started with.
func (e *Exec) SetDefaultLimits(l script.ExecutionLimits) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limits = l
}

// Orchestrator returns the underlying orchestrator.
func (e *Exec) Orchestrator() *script.Orchestrator {
	return e.orch
}

// Catalog returns the underlying tool catalog.
func (e *Exec) Catalog() *catalog.Catalog {
	return e.catalog
}

// toolsChanged updates the registered-tools gauge. Callers hold mu.
func (e *Exec) toolsChanged() {
	if e.opts.Metrics != nil {
		e.opts.Metrics.SetRegisteredTools(e.catalog.Len())
	}
}
