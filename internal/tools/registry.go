package tools

import (
	"context"
	"fmt"
	"sync"
)

// Registry holds the executors available to the agent, in registration order.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	executors map[string]Executor
}

// NewRegistry registers executors in order. Duplicate names are rejected.
func NewRegistry(executors ...Executor) (*Registry, error) {
	r := &Registry{executors: make(map[string]Executor, len(executors))}
	for _, exec := range executors {
		if err := r.Register(exec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an executor after construction, e.g. the sub-agent tool
// which needs the rest of the registry to exist first.
func (r *Registry) Register(exec Executor) error {
	if exec == nil {
		return fmt.Errorf("tool executor is nil")
	}
	name := exec.Definition().Name
	if name == "" {
		return fmt.Errorf("tool executor has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.executors[name] = exec
	r.order = append(r.order, name)
	return nil
}

// Get returns the executor registered under name.
func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return exec, nil
}

// List returns the definitions of all registered tools.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.executors[name].Definition())
	}
	return defs
}

// Executors returns the registered executors in order.
func (r *Registry) Executors() []Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Executor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.executors[name])
	}
	return out
}

// Without returns the executors whose names are not in exclude.
func (r *Registry) Without(exclude ...string) []Executor {
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}
	var out []Executor
	for _, exec := range r.Executors() {
		if _, ok := skip[exec.Definition().Name]; ok {
			continue
		}
		out = append(out, exec)
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Invoke runs the named tool. Unknown tools and executors that return
// nothing become failures rather than errors.
func (r *Registry) Invoke(ctx context.Context, call Call) *Result {
	exec, err := r.Get(call.Name)
	if err != nil {
		return Fail(FailureNotFound, "Error: Unknown tool '%s'.", call.Name)
	}
	result := exec.Execute(ctx, call)
	if result == nil {
		result = Fail(FailureInternal, "Unexpected error: tool %s returned no result", call.Name)
	}
	result.CallID = call.ID
	return result
}
