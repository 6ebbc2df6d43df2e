// File: driver/driver.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The per-core I/O driver. Registration and submission failures come
// back to the issuing task as typed errors; completion failures are
// delivered as the result of the one operation that failed. Nothing in
// here aborts the executor loop except a port that can no longer wait.

package driver

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/percore/api"
)

// bound tracks which driver owns each registered handle, process-wide,
// so a handle bound on one core cannot be re-bound on another.
var bound sync.Map // uintptr -> *Driver

// Driver owns one core's completion port, its descriptor arena and its
// buffer pool. All methods except PostWake are owner-thread only.
type Driver struct {
	core     int
	port     CompletionPort
	pool     *BufferPool
	arena    *arena
	handles  map[uintptr]*Handle
	batch    []Completion
	inflight int
	log      *zap.Logger
}

// New creates a driver for the given core over the given port.
func New(core int, port CompletionPort, pool *BufferPool, maxEvents int, log *zap.Logger) *Driver {
	if maxEvents <= 0 {
		maxEvents = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	if pool == nil {
		pool = NewBufferPool(0, 0)
	}
	return &Driver{
		core:    core,
		port:    port,
		pool:    pool,
		arena:   newArena(),
		handles: make(map[uintptr]*Handle),
		batch:   make([]Completion, maxEvents),
		log:     log,
	}
}

// Core returns the core index this driver serves.
func (d *Driver) Core() int { return d.core }

// Pool returns the driver's pinned buffer pool.
func (d *Driver) Pool() *BufferPool { return d.pool }

// InFlight returns the number of submitted, not yet retired operations.
func (d *Driver) InFlight() int { return d.inflight }

// Register associates a handle with this core's completion port. Fails
// with a RegistrationError when the handle is already bound here or on
// another core, or when the OS refuses the association.
func (d *Driver) Register(h *Handle) error {
	if _, dup := bound.LoadOrStore(h.id, d); dup {
		return &api.RegistrationError{Handle: h.id, Reason: "handle already bound to a completion port"}
	}
	if h.ep == nil {
		if err := d.port.Associate(h.fd); err != nil {
			bound.Delete(h.id)
			return &api.RegistrationError{Handle: h.id, Reason: "completion port association failed", Err: err}
		}
	}
	h.drv = d
	d.handles[h.id] = h
	return nil
}

// Unregister detaches a handle with no in-flight operations.
func (d *Driver) Unregister(h *Handle) {
	if h.drv != d {
		return
	}
	h.drv = nil
	delete(d.handles, h.id)
	bound.Delete(h.id)
}

// Read submits an asynchronous read into buf at the given offset and
// transfers buffer ownership to the OS until the completion is
// observed. Offset is ignored by stream handles.
func (d *Driver) Read(h *Handle, buf *Buffer, off int64) (*Operation, error) {
	return d.start(api.OpRead, h, buf, off)
}

// Write submits an asynchronous write of buf's valid bytes.
func (d *Driver) Write(h *Handle, buf *Buffer, off int64) (*Operation, error) {
	return d.start(api.OpWrite, h, buf, off)
}

func (d *Driver) start(kind api.OpKind, h *Handle, buf *Buffer, off int64) (*Operation, error) {
	if h.drv != d {
		return nil, &api.RegistrationError{Handle: h.id, Reason: "handle not registered with this driver"}
	}
	buf.assertOwned()
	op := d.arena.alloc()
	op.drv = d
	op.kind = kind
	op.h = h
	op.buf = buf
	op.off = off
	buf.inFlight = true

	var err error
	if h.ep != nil {
		err = d.submitEndpoint(op)
	} else {
		err = d.submitNative(op)
	}
	if err != nil {
		// Immediate OS rejection: ownership never left the caller.
		buf.inFlight = false
		d.arena.release(op)
		return nil, &api.IoError{Kind: kind, Code: errCode(err), Err: err}
	}
	op.state = opInFlight
	d.inflight++
	return op, nil
}

// Cancel requests OS-level cancellation of an in-flight operation. The
// operation is retired only once a completion (typically reporting an
// aborted status) is observed through PollCompletions; a synchronous
// retire would race the OS mid-write.
func (d *Driver) Cancel(op *Operation) {
	if op.state != opInFlight || op.cancelled {
		return
	}
	op.cancelled = true
	if op.h != nil && op.h.ep != nil {
		op.simCancel.Store(true)
		if c, ok := op.h.ep.(Cancellable); ok {
			c.CancelIO()
		}
		return
	}
	d.cancelNative(op)
}

// PollCompletions retrieves retired operations from the port within the
// timeout, restores buffer ownership, and wakes the waiting tasks. The
// executor calls it with a zero timeout while it still has ready tasks
// and with a blocking timeout when idle, which makes this call the
// core's park mechanism.
func (d *Driver) PollCompletions(timeoutMs int) (int, error) {
	n, err := d.port.Wait(d.batch, timeoutMs)
	woken := 0
	for i := 0; i < n; i++ {
		c := d.batch[i]
		if c.Slot == WakeSlot {
			continue
		}
		op := d.arena.get(c.Slot)
		op.completeFrom(c)
		woken++
	}
	if err != nil {
		return woken, fmt.Errorf("driver: completion wait on core %d: %w", d.core, err)
	}
	return woken, nil
}

// PostWake enqueues a synthetic completion that unparks the executor
// blocked in PollCompletions. Safe from any thread.
func (d *Driver) PostWake() {
	if err := d.port.Post(Completion{Slot: WakeSlot}); err != nil {
		d.log.Debug("synthetic wake dropped", zap.Int("core", d.core), zap.Error(err))
	}
}

// Close releases the port and unbinds remaining handles. Outstanding
// operations must already be retired; the executor guarantees that by
// draining before it stops.
func (d *Driver) Close() error {
	for id, h := range d.handles {
		h.drv = nil
		delete(d.handles, id)
		bound.Delete(id)
	}
	return d.port.Close()
}
