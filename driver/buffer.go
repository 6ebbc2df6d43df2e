// File: driver/buffer.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pinned buffers and their slab pool. While an operation referencing a
// buffer is submitted, the OS holds the only valid mutable view of the
// region: the buffer refuses access until the completion is observed.

package driver

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Buffer is a fixed-capacity memory region drawn from a BufferPool.
// Ownership alternates between the task and the OS: Submit transfers it
// to the OS, the matching completion delivery returns it.
type Buffer struct {
	data     []byte
	n        int
	pool     *BufferPool
	inFlight bool
}

// Bytes returns the valid region of the buffer (for reads, the bytes
// the last completed operation transferred). Panics while the buffer is
// owned by an in-flight operation.
func (b *Buffer) Bytes() []byte {
	b.assertOwned()
	return b.data[:b.n]
}

// Data returns the full capacity of the buffer for filling before a
// write. Panics while the buffer is owned by an in-flight operation.
func (b *Buffer) Data() []byte {
	b.assertOwned()
	return b.data
}

// Cap returns the buffer's capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Len returns the current valid byte count.
func (b *Buffer) Len() int { return b.n }

// SetLen marks the first n bytes as valid, typically before a write.
func (b *Buffer) SetLen(n int) {
	b.assertOwned()
	if n < 0 || n > len(b.data) {
		panic(fmt.Sprintf("driver: SetLen(%d) out of range [0, %d]", n, len(b.data)))
	}
	b.n = n
}

// Fill copies p into the buffer and sets its length. Convenience for
// write submissions.
func (b *Buffer) Fill(p []byte) {
	b.assertOwned()
	if len(p) > len(b.data) {
		panic(fmt.Sprintf("driver: Fill of %d bytes exceeds capacity %d", len(p), len(b.data)))
	}
	copy(b.data, p)
	b.n = len(p)
}

// Release returns the buffer to its pool. The buffer must not be used
// afterwards.
func (b *Buffer) Release() {
	b.assertOwned()
	if b.pool != nil {
		b.pool.put(b)
	}
}

func (b *Buffer) assertOwned() {
	if b.inFlight {
		panic("driver: buffer is owned by an in-flight operation")
	}
}

// BufferPool hands out fixed-size pinned buffers for one core. Slabs
// are recycled up to the pool's capacity; beyond that they fall back to
// the allocator.
type BufferPool struct {
	size     int
	capacity int

	mu   sync.Mutex
	free [][]byte

	totalAlloc atomic.Int64
	totalFree  atomic.Int64
	inUse      atomic.Int64
}

// BufferPoolStats aggregates allocation and reuse counters.
type BufferPoolStats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
}

// NewBufferPool creates a pool of size-byte buffers retaining up to
// capacity free slabs.
func NewBufferPool(size, capacity int) *BufferPool {
	if size <= 0 {
		size = 64 * 1024
	}
	if capacity <= 0 {
		capacity = 1024
	}
	return &BufferPool{size: size, capacity: capacity}
}

// BufferSize returns the fixed slab size of this pool.
func (p *BufferPool) BufferSize() int { return p.size }

// Get returns a zero-length buffer of the pool's slab size.
func (p *BufferPool) Get() *Buffer {
	p.mu.Lock()
	var data []byte
	if n := len(p.free); n > 0 {
		data = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()
	if data == nil {
		data = make([]byte, p.size)
		p.totalAlloc.Add(1)
	}
	p.inUse.Add(1)
	return &Buffer{data: data, pool: p}
}

func (p *BufferPool) put(b *Buffer) {
	data := b.data
	b.data = nil
	b.pool = nil
	b.n = 0
	p.inUse.Add(-1)
	p.totalFree.Add(1)
	p.mu.Lock()
	if len(p.free) < p.capacity {
		p.free = append(p.free, data)
	}
	p.mu.Unlock()
}

// Stats exposes accounting counters for observability.
func (p *BufferPool) Stats() BufferPoolStats {
	return BufferPoolStats{
		TotalAlloc: p.totalAlloc.Load(),
		TotalFree:  p.totalFree.Load(),
		InUse:      p.inUse.Load(),
	}
}
