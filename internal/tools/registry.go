// Package tools provides the registry of named operations that subtasks
// invoke, along with the built-in workspace operations.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownOperation is reported when an operation name is not registered.
var ErrUnknownOperation = errors.New("unknown operation")

// Result is the outcome of one operation invocation.
type Result struct {
	Success bool
	Output  string
	Error   string
}

// Handler implements one operation. Returned errors become a failed Result.
type Handler func(ctx context.Context, params json.RawMessage) (string, error)

// Invoker runs named operations.
type Invoker interface {
	// Invoke runs the operation. It never panics on an unknown name; it
	// returns a failed Result mentioning ErrUnknownOperation instead.
	Invoke(ctx context.Context, name string, params json.RawMessage) Result
	// Has reports whether name is registered.
	Has(name string) bool
}

// Registry maps operation names to handlers. Operations are registered
// explicitly at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Registering the same name twice is an error.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("register operation: name and handler are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("register operation: %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered operation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named operation.
func (r *Registry) Invoke(ctx context.Context, name string, params json.RawMessage) Result {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return Result{Error: fmt.Sprintf("%s: %s", ErrUnknownOperation, name)}
	}

	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	out, err := h(ctx, params)
	if err != nil {
		return Result{Output: out, Error: err.Error()}
	}
	return Result{Success: true, Output: out}
}

var _ Invoker = (*Registry)(nil)
