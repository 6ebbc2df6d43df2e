// File: fake/endpoint.go
// Package fake provides deterministic test doubles for consumer code:
// scripted I/O endpoints usable with any driver on any platform.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"errors"
	"io"
	"sync"
)

// Endpoint is a scripted driver.Endpoint: reads pop queued payloads,
// writes are recorded. Reads past the script return io.EOF.
type Endpoint struct {
	mu      sync.Mutex
	reads   [][]byte
	writes  [][]byte
	readErr error
}

// NewEndpoint creates an endpoint preloaded with the given read
// payloads, delivered in order.
func NewEndpoint(payloads ...[]byte) *Endpoint {
	e := &Endpoint{}
	for _, p := range payloads {
		e.QueueRead(p)
	}
	return e
}

// QueueRead appends one payload to the read script.
func (e *Endpoint) QueueRead(p []byte) {
	e.mu.Lock()
	e.reads = append(e.reads, append([]byte(nil), p...))
	e.mu.Unlock()
}

// FailReads makes every subsequent read return err.
func (e *Endpoint) FailReads(err error) {
	e.mu.Lock()
	e.readErr = err
	e.mu.Unlock()
}

func (e *Endpoint) ReadAt(p []byte, _ int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readErr != nil {
		return 0, e.readErr
	}
	if len(e.reads) == 0 {
		return 0, io.EOF
	}
	next := e.reads[0]
	e.reads = e.reads[1:]
	return copy(p, next), nil
}

func (e *Endpoint) WriteAt(p []byte, _ int64) (int, error) {
	e.mu.Lock()
	e.writes = append(e.writes, append([]byte(nil), p...))
	e.mu.Unlock()
	return len(p), nil
}

// Writes returns copies of the recorded write payloads.
func (e *Endpoint) Writes() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.writes))
	for i, w := range e.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// ErrInterrupted is returned by a BlockingEndpoint read aborted through
// CancelIO.
var ErrInterrupted = errors.New("fake: read interrupted")

// BlockingEndpoint blocks every read until Release or, when
// honorCancel is set, until the runtime requests cancellation. With
// honorCancel false it models a handle whose pending operation the OS
// never retires.
type BlockingEndpoint struct {
	payload     []byte
	honorCancel bool

	releaseOnce sync.Once
	release     chan struct{}
	cancelOnce  sync.Once
	cancel      chan struct{}
}

// NewBlockingEndpoint creates a blocking endpoint that serves payload
// once released.
func NewBlockingEndpoint(payload []byte, honorCancel bool) *BlockingEndpoint {
	return &BlockingEndpoint{
		payload:     append([]byte(nil), payload...),
		honorCancel: honorCancel,
		release:     make(chan struct{}),
		cancel:      make(chan struct{}),
	}
}

// Release unblocks pending and future reads.
func (e *BlockingEndpoint) Release() {
	e.releaseOnce.Do(func() { close(e.release) })
}

// CancelIO implements driver.Cancellable.
func (e *BlockingEndpoint) CancelIO() {
	if !e.honorCancel {
		return
	}
	e.cancelOnce.Do(func() { close(e.cancel) })
}

func (e *BlockingEndpoint) ReadAt(p []byte, _ int64) (int, error) {
	select {
	case <-e.release:
		return copy(p, e.payload), nil
	case <-e.cancel:
		return 0, ErrInterrupted
	}
}

func (e *BlockingEndpoint) WriteAt(p []byte, _ int64) (int, error) {
	return len(p), nil
}
