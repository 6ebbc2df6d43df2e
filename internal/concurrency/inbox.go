// File: internal/concurrency/inbox.go
// Package concurrency implements the per-core executor and its
// cross-thread entry points: the remote-injection inbox and the
// write-once executor registry.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The inbox is the only cross-thread mutation path into an executor:
// remote spawns, wakes fired from other cores, and cancellation
// notices all land here. Multi-producer, single-consumer; the consumer
// drains by buffer swap so producers never contend with iteration.

package concurrency

import (
	"sync"

	"github.com/momentics/percore/task"
)

type inboxEntry struct {
	t     *task.Task
	spawn bool
}

// Inbox is the executor's concurrent injection queue. Push is safe from
// any thread; Drain and Close only from the owning executor.
type Inbox struct {
	mu      sync.Mutex
	closed  bool
	entries []inboxEntry
}

// Push appends an entry, preserving producer FIFO order per producer.
// Returns false once the inbox is closed; the entry was not accepted
// and the producer must resolve the task itself.
func (in *Inbox) Push(t *task.Task, spawn bool) bool {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return false
	}
	in.entries = append(in.entries, inboxEntry{t: t, spawn: spawn})
	in.mu.Unlock()
	return true
}

// Len reports the current backlog.
func (in *Inbox) Len() int {
	in.mu.Lock()
	n := len(in.entries)
	in.mu.Unlock()
	return n
}

// Drain swaps the backlog for the caller's recycled buffer and returns
// it. The caller owns the returned slice until the next Drain.
func (in *Inbox) Drain(spare []inboxEntry) []inboxEntry {
	in.mu.Lock()
	drained := in.entries
	in.entries = spare[:0]
	in.mu.Unlock()
	return drained
}

// Close rejects all further pushes and returns the final backlog so the
// executor can resolve stranded entries on its way out. An entry is
// either accepted before Close and returned here, or refused by Push;
// nothing can be accepted and never drained.
func (in *Inbox) Close() []inboxEntry {
	in.mu.Lock()
	in.closed = true
	drained := in.entries
	in.entries = nil
	in.mu.Unlock()
	return drained
}
