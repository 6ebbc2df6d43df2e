//go:build windows
// +build windows

// File: driver/native_windows.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Native completion port and overlapped submission for Windows. The
// OVERLAPPED structure lives at offset zero of the arena-resident
// Operation, so the port recovers the descriptor straight from the
// pointer GetQueuedCompletionStatus hands back.

package driver

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/percore/api"
)

// sysOp is the OS-owned portion of a descriptor. ov must stay first.
type sysOp struct {
	ov windows.Overlapped
}

// Skip signaling the file handle's event on completion; notifications
// arrive only through the port.
const fileSkipSetEventOnHandle = 0x2

// wakeKey marks synthetic wake posts, which carry no OVERLAPPED.
const wakeKey = ^uintptr(0)

type iocpPort struct {
	h windows.Handle
}

// NewDefaultPort creates the native IOCP port, dedicated to a single
// polling thread.
func NewDefaultPort(depth int) (CompletionPort, error) {
	h, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("driver: create completion port: %w", err)
	}
	return &iocpPort{h: h}, nil
}

func (p *iocpPort) Associate(fd uintptr) error {
	if _, err := windows.CreateIoCompletionPort(windows.Handle(fd), p.h, 0, 0); err != nil {
		return err
	}
	return windows.SetFileCompletionNotificationModes(windows.Handle(fd), fileSkipSetEventOnHandle)
}

func (p *iocpPort) Post(c Completion) error {
	key := uintptr(c.Slot)
	if c.Slot == WakeSlot {
		key = wakeKey
	}
	return windows.PostQueuedCompletionStatus(p.h, c.Bytes, key, nil)
}

func (p *iocpPort) Wait(out []Completion, timeoutMs int) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	timeout := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}
	n := 0
	for n < len(out) {
		var bytes uint32
		var key uintptr
		var ov *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(p.h, &bytes, &key, &ov, timeout)
		if err != nil {
			if ov == nil {
				if err == windows.WAIT_TIMEOUT {
					return n, nil
				}
				if err == windows.ERROR_ABANDONED_WAIT_0 || err == windows.ERROR_INVALID_HANDLE {
					return n, api.ErrPortClosed
				}
				return n, err
			}
			// A failed operation still delivers its OVERLAPPED.
			out[n] = completionFromOverlapped(ov, bytes, err)
			n++
		} else if ov != nil {
			out[n] = completionFromOverlapped(ov, bytes, nil)
			n++
		} else if key == wakeKey {
			out[n] = Completion{Slot: WakeSlot}
			n++
		} else {
			out[n] = Completion{Slot: uint32(key), Bytes: bytes}
			n++
		}
		// Drain without blocking after the first retrieval.
		timeout = 0
	}
	return n, nil
}

func (p *iocpPort) Close() error {
	return windows.CloseHandle(p.h)
}

func completionFromOverlapped(ov *windows.Overlapped, bytes uint32, err error) Completion {
	op := (*Operation)(unsafe.Pointer(ov))
	c := Completion{Slot: op.slot, Bytes: bytes}
	if err != nil {
		c.Code = errCode(err)
		if err == windows.ERROR_OPERATION_ABORTED {
			c.Err = api.ErrOperationAborted
		} else {
			c.Err = err
		}
	}
	return c
}

func (d *Driver) submitNative(op *Operation) error {
	op.sys.ov = windows.Overlapped{
		Offset:     uint32(op.off),
		OffsetHigh: uint32(op.off >> 32),
	}
	h := windows.Handle(op.h.fd)
	var err error
	switch op.kind {
	case api.OpRead:
		err = windows.ReadFile(h, op.buf.data, nil, &op.sys.ov)
	case api.OpWrite:
		err = windows.WriteFile(h, op.buf.data[:op.buf.n], nil, &op.sys.ov)
	default:
		return fmt.Errorf("driver: %s not supported on native handles", op.kind)
	}
	if err != nil && err != windows.ERROR_IO_PENDING {
		return err
	}
	return nil
}

func (d *Driver) cancelNative(op *Operation) {
	_ = windows.CancelIoEx(windows.Handle(op.h.fd), &op.sys.ov)
}

func errCode(err error) uintptr {
	if errno, ok := err.(windows.Errno); ok {
		return uintptr(errno)
	}
	return 0
}
