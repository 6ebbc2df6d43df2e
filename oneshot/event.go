// File: oneshot/event.go
// Package oneshot
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One-time broadcast event: Unset → Set(value), never reset. Late
// waiters observe the value immediately, so it composes safely with
// arbitrary registration orders across cores.

package oneshot

import (
	"sync"

	"github.com/momentics/percore/api"
	"github.com/momentics/percore/task"
)

// Event is a write-once broadcast cell. Any number of waiters may
// register before Set; all are woken when it fires, and every wait
// after Set returns the stored value without blocking.
type Event[T any] struct {
	mu      sync.Mutex
	set     bool
	value   T
	waiters []*task.Waker
	notify  chan struct{}
}

// NewEvent creates an event in the Unset state.
func NewEvent[T any]() *Event[T] {
	return &Event[T]{notify: make(chan struct{})}
}

// Set transitions Unset→Set exactly once and wakes every registered
// waiter. A second call fails with api.ErrAlreadySet.
func (e *Event[T]) Set(v T) error {
	e.mu.Lock()
	if e.set {
		e.mu.Unlock()
		return api.ErrAlreadySet
	}
	e.set = true
	e.value = v
	waiters := e.waiters
	e.waiters = nil
	e.mu.Unlock()

	close(e.notify)
	for _, w := range waiters {
		w.Wake()
	}
	return nil
}

// Wait blocks the calling thread until the event is set. On an
// already-set event it returns immediately. Intended for threads
// outside the runtime; task code should use Poll.
func (e *Event[T]) Wait() T {
	<-e.notify
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Poll implements task.Future: value if Set, otherwise registers the
// task's waker and suspends.
func (e *Event[T]) Poll(ctx *task.Ctx) (T, bool, error) {
	e.mu.Lock()
	if e.set {
		v := e.value
		e.mu.Unlock()
		return v, true, nil
	}
	e.waiters = append(e.waiters, ctx.Waker())
	e.mu.Unlock()
	var zero T
	return zero, false, nil
}

// TryGet returns the value without blocking; ok is false while Unset.
func (e *Event[T]) TryGet() (v T, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, e.set
}
