//go:build windows
// +build windows

// File: affinity/affinity_windows.go
// Package affinity
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows thread affinity via SetThreadAffinityMask.

package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/windows"
)

var (
	modkernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadAffinityMask = modkernel32.NewProc("SetThreadAffinityMask")
	procGetCurrentThread      = modkernel32.NewProc("GetCurrentThread")
)

func setAffinityPlatform(cpuID int) error {
	if cpuID < 0 || cpuID >= 64 {
		return fmt.Errorf("affinity: cpu index %d outside mask range [0, 63]", cpuID)
	}
	thread, _, _ := procGetCurrentThread.Call()
	mask := uintptr(1) << uint(cpuID)
	old, _, err := procSetThreadAffinityMask.Call(thread, mask)
	if old == 0 {
		return fmt.Errorf("affinity: SetThreadAffinityMask: %v", err)
	}
	return nil
}

func clearAffinityPlatform() error {
	total := runtime.NumCPU()
	if total > 64 {
		total = 64
	}
	mask := (uintptr(1) << uint(total)) - 1
	thread, _, _ := procGetCurrentThread.Call()
	old, _, err := procSetThreadAffinityMask.Call(thread, mask)
	if old == 0 {
		return fmt.Errorf("affinity: SetThreadAffinityMask(unpin): %v", err)
	}
	return nil
}
