// File: internal/concurrency/registry.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Core → executor registry. Populated once during runtime start,
// before any executor thread runs, then read-only until full shutdown:
// a write-once table, not a general mutable singleton.

package concurrency

// Registry maps core indices to executors so remote spawn and the
// cross-core primitives can locate any core's injection queue.
type Registry struct {
	byCore map[int]*Executor
	cores  []int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byCore: make(map[int]*Executor)}
}

// Add registers an executor. Startup only, single-threaded.
func (r *Registry) Add(e *Executor) {
	r.byCore[e.core] = e
	r.cores = append(r.cores, e.core)
}

// Lookup resolves a core index.
func (r *Registry) Lookup(core int) (*Executor, bool) {
	e, ok := r.byCore[core]
	return e, ok
}

// Cores returns the managed core indices in registration order.
func (r *Registry) Cores() []int { return r.cores }

// Executors returns all registered executors in registration order.
func (r *Registry) Executors() []*Executor {
	out := make([]*Executor, 0, len(r.cores))
	for _, c := range r.cores {
		out = append(out, r.byCore[c])
	}
	return out
}
