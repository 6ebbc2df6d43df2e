// File: driver/operation.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Operation descriptors: one in-flight OS-level asynchronous operation
// each. A descriptor is created on submission, retired only through a
// completion observed by PollCompletions (even for cancellations), and
// recycled when its result is consumed or abandoned.

package driver

import (
	"sync/atomic"

	"github.com/momentics/percore/api"
	"github.com/momentics/percore/task"
)

type opState uint8

const (
	opFree opState = iota
	opInFlight
	opCompleted
	opConsumed
)

// Operation is one asynchronous I/O operation. The sys field must stay
// first: the native port recovers the descriptor from the OVERLAPPED
// pointer embedded there. Descriptors live in the driver's arena and
// never move while in flight.
type Operation struct {
	sys sysOp

	drv  *Driver
	slot uint32
	kind api.OpKind
	h    *Handle
	buf  *Buffer
	off  int64

	state     opState
	cancelled bool
	bytes     uint32
	err       error
	waker     *task.Waker
	owner     *task.Task

	// Endpoint-backed submissions report through these; the Post that
	// follows the stores publishes them to the owning thread.
	simCancel atomic.Bool
	simBytes  uint32
	simErr    error
}

func (o *Operation) reset() {
	*o = Operation{slot: o.slot}
}

// Result is the outcome of a completed operation. The buffer rides
// along even on failure so it can be inspected or reused.
type Result struct {
	Buf *Buffer
	N   int
}

// Kind returns the operation's class.
func (o *Operation) Kind() api.OpKind { return o.kind }

// Poll implements task.Future[Result]. While in flight it registers the
// polling task's waker and records itself as the task's pending
// operation so cancellation can reach the OS. On completion it returns
// buffer ownership to the caller together with the byte count.
func (o *Operation) Poll(ctx *task.Ctx) (Result, bool, error) {
	if ctx.Core() != o.drv.core {
		panic("driver: operation polled from a foreign executor")
	}
	switch o.state {
	case opInFlight:
		o.waker = ctx.Waker()
		o.owner = ctx.Task()
		ctx.Task().SetPending(o)
		return Result{}, false, nil
	case opCompleted:
		o.state = opConsumed
		ctx.Task().ClearPending()
		buf, n, err := o.buf, int(o.bytes), o.err
		buf.inFlight = false
		if o.kind == api.OpRead && err == nil {
			buf.n = n
		}
		o.drv.arena.release(o)
		return Result{Buf: buf, N: n}, true, err
	default:
		return Result{}, true, &api.IoError{Kind: o.kind, Err: api.ErrOperationAborted}
	}
}

// completeFrom applies a retired completion. Owning executor only.
func (o *Operation) completeFrom(c Completion) {
	if o.state != opInFlight {
		return
	}
	o.state = opCompleted
	if o.h != nil && o.h.ep != nil {
		o.bytes = o.simBytes
		o.err = o.simErr
	} else {
		o.bytes = c.Bytes
		if c.Err != nil {
			o.err = &api.IoError{Kind: o.kind, Code: c.Code, Err: c.Err}
		}
	}
	o.drv.inflight--
	if w := o.waker; w != nil {
		o.waker = nil
		w.Wake()
	}
}

// InFlight implements task.PendingOp.
func (o *Operation) InFlight() bool { return o.state == opInFlight }

// CancelPending implements task.PendingOp: requests OS cancellation.
// The descriptor retires only through a later completion.
func (o *Operation) CancelPending() { o.drv.Cancel(o) }

// Release implements task.PendingOp: abandons a completed result that
// will never be consumed, returning the buffer to its pool.
func (o *Operation) Release() {
	if o.state != opCompleted {
		return
	}
	o.state = opConsumed
	buf := o.buf
	buf.inFlight = false
	buf.Release()
	o.drv.arena.release(o)
}
