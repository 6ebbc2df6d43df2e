// File: driver/handle.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// I/O handles. A handle wraps either a native OS handle (associated
// with the completion port directly) or an Endpoint, whose operations
// execute on helper goroutines and report through the same port. A
// handle belongs to at most one driver at a time.

package driver

import (
	"net"
	"sync/atomic"
	"time"
)

// Endpoint backs a handle on builds without native completion-port I/O
// and in tests. Calls may block; they run outside the executor thread.
type Endpoint interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
}

// Cancellable is optionally implemented by endpoints that can abort a
// blocked call when the runtime requests cancellation.
type Cancellable interface {
	CancelIO()
}

// Handle is one registered I/O primitive.
type Handle struct {
	id  uintptr
	fd  uintptr
	ep  Endpoint
	drv *Driver
}

// Synthetic handle ids start far above any plausible OS handle value.
const syntheticBase = uintptr(1) << 30

var epSeq atomic.Uint64

// FromFD wraps a native OS handle (file, socket). Only meaningful on
// builds with a native completion port.
func FromFD(fd uintptr) *Handle {
	return &Handle{id: fd, fd: fd}
}

// FromEndpoint wraps an Endpoint-backed handle, usable on any build.
func FromEndpoint(ep Endpoint) *Handle {
	return &Handle{id: syntheticBase + uintptr(epSeq.Add(1)), ep: ep}
}

// ID returns the handle's registration identity.
func (h *Handle) ID() uintptr { return h.id }

// StreamEndpoint adapts a net.Conn to the Endpoint contract. Offsets
// are ignored; reads and writes follow the stream position.
type StreamEndpoint struct {
	C net.Conn
}

func (s StreamEndpoint) ReadAt(p []byte, _ int64) (int, error)  { return s.C.Read(p) }
func (s StreamEndpoint) WriteAt(p []byte, _ int64) (int, error) { return s.C.Write(p) }

// CancelIO aborts blocked calls by expiring the connection deadline.
func (s StreamEndpoint) CancelIO() {
	_ = s.C.SetDeadline(time.Unix(1, 0))
}
