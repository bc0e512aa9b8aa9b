package script

import (
	"context"
	"sort"
	"sync"
)

// Handler is a host-provided tool implementation.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; parallel
// executions share the same handler.
// - Context: ctx carries the execution deadline; long-running handlers should honor it.
// - Errors: a returned error is reported to the script in-band and never aborts the execution.
// - Ownership: input is read-only and must not be retained after Call returns.
// - Re-entrancy: handlers must not call back into the orchestrator that invoked them.
type Handler interface {
	// Call runs the tool with the JSON-model input and returns its text output.
	Call(ctx context.Context, input any) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, input any) (string, error)

// Call invokes f.
func (f HandlerFunc) Call(ctx context.Context, input any) (string, error) {
	return f(ctx, input)
}

// Registry maps unique tool names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds or replaces the handler for name and reports whether it
// did. An empty name or nil handler is ignored. Last write wins.
func (r *Registry) Register(name string, h Handler) bool {
	if name == "" || h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return true
}

// Unregister removes name and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; !ok {
		return false
	}
	delete(r.handlers, name)
	return true
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// snapshot copies the current mapping. Executions bind from a snapshot so
// later registrations do not affect them.
func (r *Registry) snapshot() map[string]Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Handler, len(r.handlers))
	for n, h := range r.handlers {
		out[n] = h
	}
	return out
}
