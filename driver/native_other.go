//go:build !windows
// +build !windows

// File: driver/native_other.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Builds without a native completion port: the default port is the
// in-memory one and only endpoint-backed handles can submit.

package driver

import "errors"

// sysOp has no OS-owned portion on these builds.
type sysOp struct{}

// NewDefaultPort returns the in-memory completion port.
func NewDefaultPort(depth int) (CompletionPort, error) {
	return NewMemPort(depth), nil
}

func (d *Driver) submitNative(op *Operation) error {
	return errors.New("driver: native handle submission not supported on this platform")
}

func (d *Driver) cancelNative(op *Operation) {}

func errCode(err error) uintptr { return 0 }
