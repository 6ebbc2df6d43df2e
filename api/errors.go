// File: api/errors.go
// Package api defines the shared contracts and error taxonomy of the
// percore runtime.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the runtime.
var (
	// ErrAlreadySent reports a second send on a single-value channel.
	ErrAlreadySent = errors.New("oneshot: value already sent")
	// ErrSenderDropped reports a receive on a channel whose sender was
	// discarded without sending.
	ErrSenderDropped = errors.New("oneshot: sender dropped without sending")
	// ErrAlreadySet reports a second set on a one-time event.
	ErrAlreadySet = errors.New("oneshot: event already set")
	// ErrShutdownTimeout reports that draining did not finish in time.
	// Remaining tasks were force-dropped.
	ErrShutdownTimeout = errors.New("runtime: shutdown timed out")
	// ErrRuntimeStopped reports an operation against a runtime that has
	// already shut down or is draining.
	ErrRuntimeStopped = errors.New("runtime: stopped")
	// ErrUnknownCore reports a spawn targeting a core the runtime does
	// not manage.
	ErrUnknownCore = errors.New("runtime: core not managed by this runtime")
	// ErrPortClosed reports use of a completion port after Close.
	ErrPortClosed = errors.New("driver: completion port closed")
	// ErrOperationAborted is the mapped status of a cancelled operation.
	ErrOperationAborted = errors.New("driver: operation aborted")
)

// RegistrationError reports a failed handle registration with the
// completion port: the handle is already bound, invalid, or the OS
// refused the association.
type RegistrationError struct {
	Handle uintptr
	Reason string
	Err    error
}

func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("driver: register handle %#x: %s: %v", e.Handle, e.Reason, e.Err)
	}
	return fmt.Sprintf("driver: register handle %#x: %s", e.Handle, e.Reason)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// IoError reports a failed submission or completion of one asynchronous
// operation. Code carries the raw OS status and is treated as opaque.
type IoError struct {
	Kind OpKind
	Code uintptr
	Err  error
}

func (e *IoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("driver: %s failed (code %#x): %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("driver: %s failed (code %#x)", e.Kind, e.Code)
}

func (e *IoError) Unwrap() error { return e.Err }

// TaskError is the terminal error of a task that was cancelled or
// faulted during a poll. It is delivered through the task's JoinHandle
// and never terminates the executor loop.
type TaskError struct {
	Cancelled bool
	Panic     any
}

// ErrTaskCancelled matches any cancellation TaskError via errors.Is.
var ErrTaskCancelled = &TaskError{Cancelled: true}

func (e *TaskError) Error() string {
	if e.Cancelled {
		return "task: cancelled"
	}
	return fmt.Sprintf("task: faulted during poll: %v", e.Panic)
}

// Is reports cancellation equivalence so callers can use
// errors.Is(err, api.ErrTaskCancelled).
func (e *TaskError) Is(target error) bool {
	t, ok := target.(*TaskError)
	return ok && t.Cancelled == e.Cancelled && t.Panic == nil
}
