// File: driver/arena.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-slot arena for in-flight operation descriptors. Descriptors
// must stay at stable addresses for the whole lifetime of the OS-level
// operation, so they live inside chunk arrays that are allocated once
// and never reallocated; the arena grows by appending chunks, never by
// moving existing ones. Slots are identified by a stable index and
// recycled through a free list. Owner-thread only: no locking.

package driver

const arenaChunkSize = 128

type opChunk struct {
	ops [arenaChunkSize]Operation
}

type arena struct {
	chunks []*opChunk
	free   []uint32
	live   int
}

func newArena() *arena {
	return &arena{}
}

// alloc returns a reset descriptor and its slot index, growing the
// arena by one chunk when the free list is empty.
func (a *arena) alloc() *Operation {
	if len(a.free) == 0 {
		a.grow()
	}
	slot := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	op := a.get(slot)
	op.reset()
	op.slot = slot
	a.live++
	return op
}

func (a *arena) grow() {
	base := uint32(len(a.chunks)) * arenaChunkSize
	a.chunks = append(a.chunks, &opChunk{})
	// Push in reverse so low slots are handed out first.
	for i := arenaChunkSize - 1; i >= 0; i-- {
		a.free = append(a.free, base+uint32(i))
	}
}

// get resolves a slot index to its descriptor.
func (a *arena) get(slot uint32) *Operation {
	return &a.chunks[slot/arenaChunkSize].ops[slot%arenaChunkSize]
}

// release recycles a retired slot. The descriptor must not be in
// flight: the OS may still write through its overlapped region.
func (a *arena) release(op *Operation) {
	if op.state == opInFlight {
		panic("driver: releasing an in-flight operation descriptor")
	}
	op.state = opFree
	a.free = append(a.free, op.slot)
	a.live--
}

// Live returns the number of allocated (not yet recycled) slots.
func (a *arena) Live() int { return a.live }
