// File: affinity/affinity_test.go
// Package affinity tests
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity_test

import (
	"runtime"
	"testing"

	"github.com/momentics/percore/affinity"
)

func TestNumCPUs(t *testing.T) {
	if affinity.NumCPUs() < 1 {
		t.Fatalf("NumCPUs = %d", affinity.NumCPUs())
	}
}

func TestPinAndUnpinCurrentThread(t *testing.T) {
	defer runtime.UnlockOSThread()
	if err := affinity.Pin(0); err != nil {
		// Containers and restricted schedulers may refuse affinity
		// changes; pinning is best effort there.
		t.Skipf("pinning unavailable: %v", err)
	}
	if err := affinity.Unpin(); err != nil {
		t.Fatal(err)
	}
}
