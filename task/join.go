// File: task/join.go
// Package task
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// JoinHandle: the caller-facing side of a spawned task. Works both from
// foreign threads (blocking AwaitResult) and from inside other tasks
// (JoinHandle is itself a Future).

package task

import "sync"

// JoinHandle observes the result of one spawned task and supports
// cooperative cancellation. All methods are safe from any thread.
type JoinHandle[T any] struct {
	t *Task

	mu        sync.Mutex
	completed bool
	value     T
	err       error
	waiters   []*Waker
	done      chan struct{}
}

// complete delivers the terminal result exactly once.
func (h *JoinHandle[T]) complete(v T, err error) {
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		return
	}
	h.completed = true
	h.value = v
	h.err = err
	waiters := h.waiters
	h.waiters = nil
	h.mu.Unlock()

	close(h.done)
	for _, w := range waiters {
		w.Wake()
	}
}

// AwaitResult blocks the calling thread until the task completes and
// returns its result. Intended for threads outside the runtime; task
// code should poll the handle instead (see Poll).
func (h *JoinHandle[T]) AwaitResult() (T, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.err
}

// TryResult returns the result without blocking. ok is false while the
// task is still live.
func (h *JoinHandle[T]) TryResult() (v T, err error, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.err, h.completed
}

// Done is closed when the task reaches a terminal state.
func (h *JoinHandle[T]) Done() <-chan struct{} { return h.done }

// Cancel requests cooperative cancellation. The task transitions to
// Cancelled at its next poll opportunity; if it is blocked on an I/O
// operation, OS-level cancellation is requested first and resources are
// held until the OS acknowledges through a completion.
func (h *JoinHandle[T]) Cancel() { h.t.RequestCancel() }

// Poll implements Future so one task can await another. Registers the
// polling task's waker until completion.
func (h *JoinHandle[T]) Poll(ctx *Ctx) (T, bool, error) {
	h.mu.Lock()
	if h.completed {
		v, err := h.value, h.err
		h.mu.Unlock()
		return v, true, err
	}
	h.waiters = append(h.waiters, ctx.Waker())
	h.mu.Unlock()
	var zero T
	return zero, false, nil
}
