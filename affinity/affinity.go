// File: affinity/affinity.go
// Package affinity pins OS threads to logical CPUs. Platform-specific
// implementations live in separate files guarded by build tags.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity

import "runtime"

// Pin locks the calling goroutine to its OS thread and binds that
// thread to the given logical CPU. On unsupported platforms the thread
// stays locked but unpinned, and an error is returned so the caller can
// log the degradation.
func Pin(cpuID int) error {
	runtime.LockOSThread()
	return setAffinityPlatform(cpuID)
}

// Unpin releases the calling thread's CPU constraint. The OS thread
// stays locked to the goroutine.
func Unpin() error {
	return clearAffinityPlatform()
}

// NumCPUs returns the number of logical CPUs visible to the process.
func NumCPUs() int { return runtime.NumCPU() }
