// File: internal/concurrency/executor.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The per-core executor: an event loop pinned to one CPU that
// alternates between running ready tasks and polling the I/O driver's
// completion port. The loop itself is the core's park mechanism; there
// is no separate OS wait primitive for idleness.

package concurrency

import (
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/percore/affinity"
	"github.com/momentics/percore/control"
	"github.com/momentics/percore/driver"
	"github.com/momentics/percore/task"
)

// ExecState is the lifecycle state of an executor.
type ExecState int32

const (
	ExecIdle ExecState = iota
	ExecRunning
	ExecDraining
	ExecStopped
)

// Executor runs one core's tasks. Everything except the inbox, the
// parked flag and the atomic state is confined to its own OS thread.
type Executor struct {
	core int
	drv  *driver.Driver
	reg  *Registry

	// ready holds tasks in StateQueued, FIFO, owner-thread only.
	ready *queue.Queue
	inbox *Inbox

	parked      atomic.Int32
	state       atomic.Int32
	shutdownReq atomic.Bool
	force       atomic.Bool

	idlePollMs int
	log        *zap.Logger
	stats      *control.CoreStats

	// resident tasks, owner-thread only.
	tasks    map[*task.Task]struct{}
	drainBuf []inboxEntry
	fatal    error
}

// NewExecutor creates an executor for core over drv. idlePollMs is the
// blocking completion-poll timeout used when the ready queue is empty;
// -1 blocks indefinitely.
func NewExecutor(core int, drv *driver.Driver, reg *Registry, idlePollMs int, log *zap.Logger, stats *control.CoreStats) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	if stats == nil {
		stats = &control.CoreStats{Core: core}
	}
	if idlePollMs == 0 {
		idlePollMs = -1
	}
	return &Executor{
		core:       core,
		drv:        drv,
		reg:        reg,
		ready:      queue.New(),
		inbox:      &Inbox{},
		idlePollMs: idlePollMs,
		log:        log,
		stats:      stats,
		tasks:      make(map[*task.Task]struct{}),
	}
}

// Core implements task.Exec.
func (e *Executor) Core() int { return e.core }

// IO implements task.Exec.
func (e *Executor) IO() any { return e.drv }

// Driver returns the executor's I/O driver.
func (e *Executor) Driver() *driver.Driver { return e.drv }

// Stats returns the executor's counters.
func (e *Executor) Stats() *control.CoreStats { return e.stats }

// State returns the executor's lifecycle state.
func (e *Executor) State() ExecState { return ExecState(e.state.Load()) }

// Wake implements task.Exec: re-queues a task whose waker fired. The
// waker already moved it to StateQueued, so this only routes it to the
// inbox and unparks the loop. Safe from any thread.
func (e *Executor) Wake(t *task.Task) {
	e.stats.Wakes.Add(1)
	if !e.inbox.Push(t, false) {
		// Loop is gone. Resident tasks were completed as cancelled
		// before the inbox closed, so this wake targets a terminal
		// task and can be dropped.
		return
	}
	e.unpark()
}

// SpawnLocal implements task.Exec: owner-thread fast path, no
// synchronization.
func (e *Executor) SpawnLocal(t *task.Task) {
	e.stats.Spawned.Add(1)
	if e.State() != ExecRunning {
		t.FinishCancelled()
		e.stats.Cancelled.Add(1)
		return
	}
	e.tasks[t] = struct{}{}
	e.ready.Add(t)
}

// Inject implements task.Exec: remote spawn from a foreign thread. A
// spawn routed to an executor that is draining or already stopped
// (including one stopped by a completion-port failure) completes as
// cancelled instead of sitting in a queue nobody drains, so the
// caller's handle always resolves.
func (e *Executor) Inject(t *task.Task) {
	if st := e.State(); st == ExecDraining || st == ExecStopped {
		t.FinishCancelled()
		e.stats.Cancelled.Add(1)
		return
	}
	e.stats.Injected.Add(1)
	if !e.inbox.Push(t, true) {
		t.FinishCancelled()
		e.stats.Cancelled.Add(1)
		return
	}
	e.unpark()
}

// Peer implements task.Exec.
func (e *Executor) Peer(core int) (task.Exec, bool) {
	ex, ok := e.reg.Lookup(core)
	if !ok {
		return nil, false
	}
	return ex, true
}

// unpark posts one coalesced synthetic wake when the loop is blocked in
// its completion poll. Whichever producer flips the flag posts; the
// rest see it already cleared and post nothing.
func (e *Executor) unpark() {
	if e.parked.Swap(0) == 1 {
		e.stats.SyntheticWakes.Add(1)
		e.drv.PostWake()
	}
}

// SignalShutdown asks the executor to drain and stop. Safe from any
// thread.
func (e *Executor) SignalShutdown() {
	e.shutdownReq.Store(true)
	e.unpark()
	// The loop may be about to park with the flag not yet set; a direct
	// post covers that window at the cost of one spurious wake.
	e.drv.PostWake()
}

// ForceStop abandons draining after a shutdown timeout. Safe from any
// thread.
func (e *Executor) ForceStop() {
	e.force.Store(true)
	e.unpark()
	e.drv.PostWake()
}

// Run is the executor loop. It owns the calling goroutine, locks it to
// an OS thread pinned to the executor's core, and returns only from
// ExecStopped. A non-nil return means the completion port failed out
// from under the loop.
func (e *Executor) Run() error {
	if err := affinity.Pin(e.core); err != nil {
		e.log.Warn("cpu pinning unavailable, thread stays locked but unpinned",
			zap.Int("core", e.core), zap.Error(err))
	}
	e.state.Store(int32(ExecRunning))
	e.log.Debug("executor running", zap.Int("core", e.core))
	defer func() {
		e.state.Store(int32(ExecStopped))
		// Entries that raced past the Inject state check land here;
		// closing the inbox makes every later push fail back to its
		// producer, so no spawn can be accepted and never resolved.
		for _, en := range e.inbox.Close() {
			if en.spawn {
				en.t.FinishCancelled()
				e.stats.Cancelled.Add(1)
			}
		}
		_ = e.drv.Close()
		e.log.Debug("executor stopped", zap.Int("core", e.core))
	}()

	for {
		if e.force.Load() {
			e.forceDrop()
			return e.fatal
		}
		e.drainInbox()
		if e.shutdownReq.Load() && e.State() == ExecRunning {
			e.beginDrain()
		}
		e.runReady()

		if e.State() == ExecDraining && len(e.tasks) == 0 && e.drv.InFlight() == 0 {
			return e.fatal
		}

		timeout := 0
		if e.ready.Length() == 0 {
			timeout = e.idlePollMs
			e.parked.Store(1)
			if e.inbox.Len() > 0 || e.force.Load() ||
				(e.shutdownReq.Load() && e.State() == ExecRunning) {
				// Work arrived between the drain and the park.
				e.parked.Store(0)
				timeout = 0
			}
		}
		n, err := e.drv.PollCompletions(timeout)
		e.parked.Store(0)
		if n > 0 {
			e.stats.Completions.Add(int64(n))
		}
		if err != nil {
			// Port exhaustion or closure: fatal to this executor only.
			e.fatal = err
			e.log.Warn("completion port failed, draining executor",
				zap.Int("core", e.core), zap.Error(err))
			e.forceDrop()
			return e.fatal
		}
	}
}

// drainInbox folds remote entries into local state. Spawns arriving
// during drain are refused: their handles complete as cancelled.
func (e *Executor) drainInbox() {
	drained := e.inbox.Drain(e.drainBuf)
	e.drainBuf = drained
	for i := range drained {
		en := drained[i]
		if en.spawn {
			if e.State() != ExecRunning {
				en.t.FinishCancelled()
				e.stats.Cancelled.Add(1)
				continue
			}
			e.tasks[en.t] = struct{}{}
		}
		e.ready.Add(en.t)
	}
}

// runReady runs one pass over the tasks that were ready at entry.
// Tasks re-queued during the pass wait for the next iteration so
// completion polling is never starved.
func (e *Executor) runReady() {
	for n := e.ready.Length(); n > 0; n-- {
		t := e.ready.Remove().(*task.Task)
		e.runTask(t)
	}
}

func (e *Executor) runTask(t *task.Task) {
	t.BeginRun()

	if t.CancelRequested() {
		if op := t.Pending(); op != nil && op.InFlight() {
			// The OS may still write to the task's buffer: request
			// cancellation and keep the task parked until the
			// completion acknowledges it.
			op.CancelPending()
			if !t.Park() {
				e.ready.Add(t)
			}
			return
		}
		if op := t.Pending(); op != nil {
			op.Release()
			t.ClearPending()
		}
		delete(e.tasks, t)
		t.FinishCancelled()
		e.stats.Cancelled.Add(1)
		return
	}

	e.stats.Polls.Add(1)
	ctx := task.NewCtx(e, t)
	if t.RunPoll(ctx) {
		if t.Faulted() {
			e.stats.Faulted.Add(1)
			e.log.Warn("task faulted during poll", zap.Int("core", e.core))
		}
		delete(e.tasks, t)
		return
	}
	if !t.Park() {
		// A wake fired mid-poll; run again next pass.
		e.ready.Add(t)
	}
}

// beginDrain stops accepting work and cancels every resident task.
func (e *Executor) beginDrain() {
	e.state.Store(int32(ExecDraining))
	e.log.Debug("executor draining",
		zap.Int("core", e.core),
		zap.Int("tasks", len(e.tasks)),
		zap.Int("inflight", e.drv.InFlight()))
	for t := range e.tasks {
		t.RequestCancel()
	}
}

// forceDrop completes every remaining task as cancelled without waiting
// for outstanding completions. Only reached on shutdown timeout or port
// failure; the runtime reports the condition to the caller.
func (e *Executor) forceDrop() {
	e.drainInbox()
	for t := range e.tasks {
		delete(e.tasks, t)
		t.FinishCancelled()
		e.stats.Cancelled.Add(1)
	}
	for e.ready.Length() > 0 {
		e.ready.Remove()
	}
}
