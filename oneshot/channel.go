// File: oneshot/channel.go
// Package oneshot provides the two cross-core handoff primitives of the
// runtime: a single-value channel (exactly one send, one receive) and a
// one-time broadcast event. Both are safe to move between cores and are
// the only sanctioned way to establish happens-before edges between
// tasks on different executors.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package oneshot

import (
	"sync"

	"github.com/momentics/percore/api"
	"github.com/momentics/percore/task"
)

// cell is the shared state of one channel: Empty → Full → consumed,
// with the sender's discard tracked separately so a receive on a
// consumed channel can wait for it. Critical sections are a handful of
// loads/stores; there is no unbounded blocking under the lock.
type cell[T any] struct {
	mu         sync.Mutex
	value      T
	sent       bool
	consumed   bool
	senderGone bool
	waiter     *task.Waker
	notify     chan struct{} // closed on send, or on a drop before any send
	gone       chan struct{} // closed when the sender is discarded
}

// takeWaiter clears and returns the registered waker. Caller holds mu.
func (c *cell[T]) takeWaiter() *task.Waker {
	w := c.waiter
	c.waiter = nil
	return w
}

// Sender is the producing half of a single-value channel.
type Sender[T any] struct {
	c *cell[T]
}

// Receiver is the consuming half of a single-value channel.
type Receiver[T any] struct {
	c *cell[T]
}

// New creates a connected sender/receiver pair with an Empty cell.
func New[T any]() (*Sender[T], *Receiver[T]) {
	c := &cell[T]{
		notify: make(chan struct{}),
		gone:   make(chan struct{}),
	}
	return &Sender[T]{c: c}, &Receiver[T]{c: c}
}

// Send transitions Empty→Full and wakes a registered receiver. A second
// send, or a send after Drop, fails with api.ErrAlreadySent.
func (s *Sender[T]) Send(v T) error {
	c := s.c
	c.mu.Lock()
	if c.sent || c.senderGone {
		c.mu.Unlock()
		return api.ErrAlreadySent
	}
	c.value = v
	c.sent = true
	w := c.takeWaiter()
	c.mu.Unlock()
	close(c.notify)
	if w != nil {
		w.Wake()
	}
	return nil
}

// Drop discards the sender. Before a send, a blocked receiver observes
// api.ErrSenderDropped; after the value was sent and consumed, Drop
// resolves a receiver suspended waiting for a second value that can
// never come. Idempotent.
func (s *Sender[T]) Drop() {
	c := s.c
	c.mu.Lock()
	if c.senderGone {
		c.mu.Unlock()
		return
	}
	c.senderGone = true
	wasSent := c.sent
	w := c.takeWaiter()
	c.mu.Unlock()
	if !wasSent {
		close(c.notify)
	}
	close(c.gone)
	if w != nil {
		w.Wake()
	}
}

// Recv blocks the calling thread until the value arrives or the sender
// is dropped. Intended for threads outside the runtime; task code
// should use Poll.
func (r *Receiver[T]) Recv() (T, error) {
	c := r.c
	<-c.notify
	c.mu.Lock()
	if c.sent && !c.consumed {
		c.consumed = true
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()
	// Nothing deliverable: the sender never sent, or the value was
	// already consumed. Either way the receive resolves only through
	// the sender's discard.
	<-c.gone
	var zero T
	return zero, api.ErrSenderDropped
}

// Poll implements task.Future: returns the value if Full, fails with
// api.ErrSenderDropped if the sender was discarded with nothing left to
// deliver, and otherwise registers the task's waker and suspends. A
// receive after the value was consumed suspends while the sender is
// still held (a value is never delivered twice) and resolves with
// api.ErrSenderDropped once it is discarded.
func (r *Receiver[T]) Poll(ctx *task.Ctx) (T, bool, error) {
	c := r.c
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if c.sent && !c.consumed {
		c.consumed = true
		return c.value, true, nil
	}
	if c.senderGone {
		return zero, true, api.ErrSenderDropped
	}
	c.waiter = ctx.Waker()
	return zero, false, nil
}

// TryRecv returns the value without blocking; ok is false while the
// receive would suspend.
func (r *Receiver[T]) TryRecv() (v T, err error, ok bool) {
	c := r.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent && !c.consumed {
		c.consumed = true
		return c.value, nil, true
	}
	if c.senderGone {
		return v, api.ErrSenderDropped, true
	}
	return v, nil, false
}
