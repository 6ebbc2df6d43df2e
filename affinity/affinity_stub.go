//go:build !linux && !windows
// +build !linux,!windows

// File: affinity/affinity_stub.go
// Package affinity
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub for platforms without thread affinity control.

package affinity

import "errors"

var errUnsupported = errors.New("affinity: not supported on this platform")

func setAffinityPlatform(cpuID int) error { return errUnsupported }

func clearAffinityPlatform() error { return errUnsupported }
