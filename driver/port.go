// File: driver/port.go
// Package driver bridges OS completion notifications to task wakes and
// guarantees buffer-lifetime safety for in-flight operations. Each
// executor owns exactly one Driver; each Driver owns one completion
// port.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

// Completion is one retired operation retrieved from a port.
type Completion struct {
	Slot  uint32  // descriptor arena slot, or WakeSlot for a synthetic wake
	Bytes uint32  // transferred byte count
	Code  uintptr // raw OS status, opaque; 0 when successful
	Err   error   // mapped error, nil on success
}

// WakeSlot marks a synthetic completion posted by the remote-injection
// path to unpark an idle executor. It carries no operation.
const WakeSlot = ^uint32(0)

// CompletionPort abstracts the per-core OS completion queue. The
// Windows implementation is an I/O completion port; other builds and
// tests use an in-memory port with identical semantics. Wait is called
// only by the owning executor thread; Post is safe from any thread.
type CompletionPort interface {
	// Associate binds a native OS handle so its completions arrive here.
	Associate(fd uintptr) error

	// Post enqueues a completion from an arbitrary thread. Used for
	// synthetic wakes and by endpoint-backed submissions.
	Post(c Completion) error

	// Wait retrieves up to len(out) completions. timeoutMs semantics:
	// 0 drains without blocking, -1 blocks indefinitely, otherwise
	// blocks up to the given duration. Returns the number retrieved;
	// a timeout is (0, nil), not an error.
	Wait(out []Completion, timeoutMs int) (int, error)

	// Close releases the port. Subsequent Post/Wait fail with
	// api.ErrPortClosed.
	Close() error
}
