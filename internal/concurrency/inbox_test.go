// File: internal/concurrency/inbox_test.go
// Package concurrency tests
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"sync"
	"testing"

	"github.com/momentics/percore/task"
)

func TestInboxDrainSwapsBuffers(t *testing.T) {
	in := &Inbox{}
	in.Push(nil, true)
	in.Push(nil, false)
	if in.Len() != 2 {
		t.Fatalf("Len = %d, want 2", in.Len())
	}

	drained := in.Drain(nil)
	if len(drained) != 2 || !drained[0].spawn || drained[1].spawn {
		t.Fatalf("drained = %+v", drained)
	}
	if in.Len() != 0 {
		t.Fatalf("Len = %d after drain, want 0", in.Len())
	}

	// The drained buffer is recycled on the next swap.
	in.Push(nil, true)
	again := in.Drain(drained)
	if len(again) != 1 || cap(again) < 2 {
		t.Fatalf("recycled drain = len %d cap %d", len(again), cap(again))
	}
}

func TestInboxCloseReturnsBacklogAndRefusesPushes(t *testing.T) {
	in := &Inbox{}
	if !in.Push(nil, true) {
		t.Fatal("push refused on an open inbox")
	}
	stranded := in.Close()
	if len(stranded) != 1 || !stranded[0].spawn {
		t.Fatalf("stranded = %+v, want the accepted spawn", stranded)
	}
	if in.Push(nil, false) {
		t.Fatal("push accepted after close")
	}
	if got := in.Close(); len(got) != 0 {
		t.Fatalf("second close drained %d entries", len(got))
	}
}

func TestInboxConcurrentProducers(t *testing.T) {
	in := &Inbox{}
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				in.Push(&task.Task{}, i%2 == 0)
			}
		}()
	}
	wg.Wait()

	total := 0
	var spare []inboxEntry
	for {
		drained := in.Drain(spare)
		if len(drained) == 0 {
			break
		}
		total += len(drained)
		spare = drained
	}
	if total != producers*perProducer {
		t.Fatalf("drained %d entries, want %d", total, producers*perProducer)
	}
}
