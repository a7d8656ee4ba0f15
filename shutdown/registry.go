package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func releases one resource during shutdown. It should return promptly once
// ctx is done.
type Func func(ctx context.Context) error

// Priorities for the handlers the application registers. Lower runs first.
const (
	PriorityServer   = 10
	PriorityUpscaler = 20
	PriorityDatabase = 30
	PriorityFiles    = 40
	PriorityLogger   = 90
)

type handler struct {
	name     string
	priority int
	fn       Func
}

// Registry holds cleanup handlers and runs them once, in priority order.
// Handlers with equal priority run in registration order.
type Registry struct {
	mu       sync.Mutex
	handlers []handler
	ran      bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn. Handlers registered after Run are ignored.
func (r *Registry) Register(name string, priority int, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ran {
		return
	}
	r.handlers = append(r.handlers, handler{name: name, priority: priority, fn: fn})
}

// Run executes every handler, even after one fails, and returns the
// failures. Only the first call does anything.
func (r *Registry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil
	}
	r.ran = true
	handlers := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, h := range handlers {
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errs
}

// Names lists handlers in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	handlers := r.sorted()
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = h.name
	}
	return names
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

// sorted must be called with r.mu held.
func (r *Registry) sorted() []handler {
	out := make([]handler, len(r.handlers))
	copy(out, r.handlers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].priority < out[j].priority
	})
	return out
}
