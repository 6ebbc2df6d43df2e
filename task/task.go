// File: task/task.go
// Package task implements the poll-based unit of work scheduled by a
// per-core executor: the task state machine, the waker that re-queues a
// suspended task, and the typed JoinHandle observed by callers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package task

import (
	"errors"
	"sync/atomic"

	"github.com/momentics/percore/api"
)

// State is the scheduling state of a task. It is the single source of
// truth for queue membership: a task never sits in more than one queue.
type State int32

const (
	// StateQueued: the task sits in a ready or injection queue.
	StateQueued State = iota
	// StateRunning: the owning executor is inside the task's poll step.
	StateRunning
	// StateRunningWoken: a wake fired while the task was being polled;
	// the executor re-queues it instead of parking it.
	StateRunningWoken
	// StateWaiting: suspended; a waker is registered with some resource.
	StateWaiting
	// StateCompleted: terminal, result delivered to the JoinHandle.
	StateCompleted
	// StateCancelled: terminal, cancellation delivered to the JoinHandle.
	StateCancelled
)

// Exec is the owning executor as seen by tasks and wakers. Wake and
// Inject are safe from any thread; SpawnLocal only from the executor's
// own loop.
type Exec interface {
	// Core returns the logical CPU this executor is pinned to.
	Core() int
	// Wake re-queues a task that a waker moved to StateQueued.
	Wake(t *Task)
	// SpawnLocal places a freshly created task on the local ready queue.
	SpawnLocal(t *Task)
	// Inject places a freshly created task on the remote injection queue.
	Inject(t *Task)
	// Peer resolves another core's executor through the runtime registry.
	Peer(core int) (Exec, bool)
	// IO returns the core-local I/O driver.
	IO() any
}

// Future is one resumable computation. Poll either completes with
// (value, true, err) or returns done=false after registering the
// context's waker with whatever resource blocks it.
type Future[T any] interface {
	Poll(ctx *Ctx) (value T, done bool, err error)
}

// FutureFunc adapts a plain function to the Future interface.
type FutureFunc[T any] func(ctx *Ctx) (T, bool, error)

func (f FutureFunc[T]) Poll(ctx *Ctx) (T, bool, error) { return f(ctx) }

// PendingOp is an in-flight I/O operation a blocked task may hold. The
// executor uses it to drive OS-level cancellation before releasing the
// task's resources.
type PendingOp interface {
	// InFlight reports whether the OS still owns the operation's buffer.
	InFlight() bool
	// CancelPending requests OS-level cancellation. Idempotent. The
	// operation retires only through a completion, never synchronously.
	CancelPending()
	// Release returns the operation's buffer to its pool after the
	// completion was observed but the result will never be consumed.
	Release()
}

// Task is a type-erased spawned computation. It is owned by exactly one
// executor; only the atomic state and cancel flag are touched by other
// threads.
type Task struct {
	exec      Exec
	state     atomic.Int32
	cancelReq atomic.Bool
	faulted   bool

	step         func(ctx *Ctx) bool
	fault        func(p any)
	finishCancel func()

	// pending is only accessed by the owning executor's thread.
	pending PendingOp
}

// New creates a task executing f, in StateQueued, plus the handle for
// observing its result. The caller is responsible for enqueueing it on
// ex (SpawnLocal or Inject).
func New[T any](ex Exec, f Future[T]) (*Task, *JoinHandle[T]) {
	h := &JoinHandle[T]{done: make(chan struct{})}
	t := &Task{exec: ex}
	t.state.Store(int32(StateQueued))
	t.step = func(ctx *Ctx) bool {
		v, done, err := f.Poll(ctx)
		if !done {
			return false
		}
		if err != nil && errors.Is(err, api.ErrTaskCancelled) {
			t.state.Store(int32(StateCancelled))
		} else {
			t.state.Store(int32(StateCompleted))
		}
		h.complete(v, err)
		return true
	}
	t.fault = func(p any) {
		t.faulted = true
		t.state.Store(int32(StateCompleted))
		var zero T
		h.complete(zero, &api.TaskError{Panic: p})
	}
	t.finishCancel = func() {
		t.state.Store(int32(StateCancelled))
		var zero T
		h.complete(zero, &api.TaskError{Cancelled: true})
	}
	h.t = t
	return t, h
}

// State returns the current scheduling state.
func (t *Task) State() State { return State(t.state.Load()) }

// Exec returns the owning executor.
func (t *Task) Exec() Exec { return t.exec }

// BeginRun transitions Queued→Running. Owning executor only.
func (t *Task) BeginRun() { t.state.Store(int32(StateRunning)) }

// RunPoll advances the task one step, isolating poll faults to the
// task's own JoinHandle. Owning executor only.
func (t *Task) RunPoll(ctx *Ctx) (done bool) {
	defer func() {
		if p := recover(); p != nil {
			t.fault(p)
			done = true
		}
	}()
	return t.step(ctx)
}

// Park transitions Running→Waiting after a pending poll. Returns false
// if a wake fired during the poll, in which case the caller must
// re-queue the task instead.
func (t *Task) Park() bool {
	if t.state.CompareAndSwap(int32(StateRunning), int32(StateWaiting)) {
		return true
	}
	// RunningWoken: consume the wake.
	t.state.Store(int32(StateQueued))
	return false
}

// RequestCancel marks the task for cancellation at its next poll
// opportunity and schedules it. Safe from any thread.
func (t *Task) RequestCancel() {
	t.cancelReq.Store(true)
	(&Waker{t: t}).Wake()
}

// CancelRequested reports whether cancellation is pending.
func (t *Task) CancelRequested() bool { return t.cancelReq.Load() }

// Faulted reports whether the task terminated through a poll panic.
// Owning executor only.
func (t *Task) Faulted() bool { return t.faulted }

// FinishCancelled completes the task as cancelled: by the owning
// executor once no in-flight operation references the task's buffers,
// or by a producer whose spawn was refused before the task entered any
// queue.
func (t *Task) FinishCancelled() { t.finishCancel() }

// Pending returns the in-flight operation the task is blocked on, if
// any. Owning executor only.
func (t *Task) Pending() PendingOp { return t.pending }

// SetPending records the operation the task is about to suspend on.
// Owning executor only (called from inside a poll).
func (t *Task) SetPending(op PendingOp) { t.pending = op }

// ClearPending forgets the recorded operation once its result was
// consumed. Owning executor only.
func (t *Task) ClearPending() { t.pending = nil }

// Waker re-queues a waiting task. Wakes are idempotent: however many
// times it fires while the task is Waiting, the task is queued exactly
// once. Firing it on a task that is not Waiting is a no-op (a wake
// during Running is folded into the post-poll re-queue).
type Waker struct {
	t *Task
}

// Wake schedules the task for a re-poll. Safe from any thread.
func (w *Waker) Wake() {
	t := w.t
	for {
		switch State(t.state.Load()) {
		case StateWaiting:
			if t.state.CompareAndSwap(int32(StateWaiting), int32(StateQueued)) {
				t.exec.Wake(t)
				return
			}
		case StateRunning:
			if t.state.CompareAndSwap(int32(StateRunning), int32(StateRunningWoken)) {
				return
			}
		default:
			// Queued, RunningWoken or terminal: nothing to do.
			return
		}
	}
}

// Ctx is the per-poll context handed to futures by the owning
// executor. It identifies the executor and the task being polled; it
// must not be retained across polls or moved to another thread.
type Ctx struct {
	exec Exec
	t    *Task
}

// NewCtx builds a poll context. Executor use only.
func NewCtx(ex Exec, t *Task) *Ctx { return &Ctx{exec: ex, t: t} }

// Core returns the executing core's index.
func (c *Ctx) Core() int { return c.exec.Core() }

// Exec returns the executing core's executor.
func (c *Ctx) Exec() Exec { return c.exec }

// Task returns the task being polled.
func (c *Ctx) Task() *Task { return c.t }

// Waker returns a wake handle for the task being polled.
func (c *Ctx) Waker() *Waker { return &Waker{t: c.t} }

// IO returns the core-local I/O driver.
func (c *Ctx) IO() any { return c.exec.IO() }

// Cancelled reports whether cancellation was requested, so long polls
// can bail out cooperatively.
func (c *Ctx) Cancelled() bool { return c.t.CancelRequested() }

// Spawn places a new task on the current core's local ready queue.
// This is the synchronization-free fast path: the caller is by
// construction running on the target executor's thread.
func Spawn[T any](ctx *Ctx, f Future[T]) *JoinHandle[T] {
	t, h := New(ctx.exec, f)
	ctx.exec.SpawnLocal(t)
	return h
}

// SpawnOn routes a new task to the given core: local queue when the
// caller already runs there, remote injection otherwise.
func SpawnOn[T any](ctx *Ctx, core int, f Future[T]) (*JoinHandle[T], error) {
	if core == ctx.Core() {
		return Spawn(ctx, f), nil
	}
	ex, ok := ctx.exec.Peer(core)
	if !ok {
		return nil, api.ErrUnknownCore
	}
	t, h := New(ex, f)
	ex.Inject(t)
	return h, nil
}
