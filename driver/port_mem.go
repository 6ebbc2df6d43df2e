// File: driver/port_mem.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory completion port. Used on builds without a native completion
// port and by tests on every platform. Matches IOCP semantics: blocking
// retrieval with timeout, cross-thread posting, FIFO delivery.

package driver

import (
	"sync/atomic"
	"time"

	"github.com/momentics/percore/api"
)

type memPort struct {
	ch     chan Completion
	done   chan struct{}
	closed atomic.Bool
}

// NewMemPort creates an in-memory completion port with the given queue
// depth. Posting blocks when the queue is full, which backpressures
// submission helpers rather than dropping completions.
func NewMemPort(depth int) CompletionPort {
	if depth <= 0 {
		depth = 1024
	}
	return &memPort{
		ch:   make(chan Completion, depth),
		done: make(chan struct{}),
	}
}

func (p *memPort) Associate(fd uintptr) error {
	return &api.RegistrationError{
		Handle: fd,
		Reason: "native handles are not supported by the in-memory port",
	}
}

func (p *memPort) Post(c Completion) error {
	if p.closed.Load() {
		return api.ErrPortClosed
	}
	if c.Slot == WakeSlot {
		// Synthetic wakes never block: a full queue already guarantees
		// the next Wait returns immediately.
		select {
		case <-p.done:
			return api.ErrPortClosed
		case p.ch <- c:
			return nil
		default:
			return nil
		}
	}
	select {
	case <-p.done:
		return api.ErrPortClosed
	case p.ch <- c:
		return nil
	}
}

func (p *memPort) Wait(out []Completion, timeoutMs int) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	switch {
	case timeoutMs == 0:
		select {
		case c := <-p.ch:
			out[0] = c
		case <-p.done:
			return 0, api.ErrPortClosed
		default:
			return 0, nil
		}
	case timeoutMs < 0:
		select {
		case c := <-p.ch:
			out[0] = c
		case <-p.done:
			return 0, api.ErrPortClosed
		}
	default:
		t := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer t.Stop()
		select {
		case c := <-p.ch:
			out[0] = c
		case <-p.done:
			return 0, api.ErrPortClosed
		case <-t.C:
			return 0, nil
		}
	}
	n := 1
	for n < len(out) {
		select {
		case c := <-p.ch:
			out[n] = c
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (p *memPort) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		close(p.done)
	}
	return nil
}
