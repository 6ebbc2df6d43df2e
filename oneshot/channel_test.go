// File: oneshot/channel_test.go
// Package oneshot tests
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package oneshot_test

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/percore/api"
	"github.com/momentics/percore/oneshot"
	"github.com/momentics/percore/task"
)

// pump drives a single future to completion on the calling goroutine,
// standing in for an executor.
type pump struct {
	queue []*task.Task
}

func (p *pump) Core() int                  { return 0 }
func (p *pump) Wake(t *task.Task)          { p.queue = append(p.queue, t) }
func (p *pump) SpawnLocal(t *task.Task)    { p.queue = append(p.queue, t) }
func (p *pump) Inject(t *task.Task)        { p.queue = append(p.queue, t) }
func (p *pump) Peer(int) (task.Exec, bool) { return nil, false }
func (p *pump) IO() any                    { return nil }

// step polls every queued task once and reports whether any ran.
func (p *pump) step() bool {
	ran := false
	for len(p.queue) > 0 {
		t := p.queue[0]
		p.queue = p.queue[1:]
		ran = true
		t.BeginRun()
		if t.RunPoll(task.NewCtx(p, t)) {
			continue
		}
		if !t.Park() {
			p.queue = append(p.queue, t)
		}
	}
	return ran
}

func TestSendThenRecv(t *testing.T) {
	tx, rx := oneshot.New[int]()
	if err := tx.Send(42); err != nil {
		t.Fatal(err)
	}
	v, err := rx.Recv()
	if err != nil || v != 42 {
		t.Fatalf("Recv = (%d, %v), want (42, nil)", v, err)
	}
}

func TestSecondSendFails(t *testing.T) {
	tx, _ := oneshot.New[int]()
	if err := tx.Send(1); err != nil {
		t.Fatal(err)
	}
	if err := tx.Send(2); !errors.Is(err, api.ErrAlreadySent) {
		t.Fatalf("second send err = %v, want ErrAlreadySent", err)
	}
}

func TestDropFailsReceiver(t *testing.T) {
	tx, rx := oneshot.New[string]()
	tx.Drop()
	if _, err := rx.Recv(); !errors.Is(err, api.ErrSenderDropped) {
		t.Fatalf("err = %v, want ErrSenderDropped", err)
	}
	// Send after drop is refused too.
	if err := tx.Send("late"); !errors.Is(err, api.ErrAlreadySent) {
		t.Fatalf("send after drop err = %v", err)
	}
}

func TestRecvBlocksUntilSend(t *testing.T) {
	tx, rx := oneshot.New[int]()

	got := make(chan int, 1)
	go func() {
		v, err := rx.Recv()
		if err != nil {
			t.Error(err)
		}
		got <- v
	}()

	if _, _, ok := rx.TryRecv(); ok {
		t.Fatal("TryRecv succeeded on an empty channel")
	}
	if err := tx.Send(9); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-got:
		if v != 9 {
			t.Fatalf("received %d, want 9", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receiver never woke")
	}
}

func TestPollSuspendsThenDeliversOnce(t *testing.T) {
	tx, rx := oneshot.New[int]()
	p := &pump{}

	tk, h := task.New[int](p, rx)
	p.queue = append(p.queue, tk)
	p.step()
	if _, _, ok := h.TryResult(); ok {
		t.Fatal("receiver completed with nothing sent")
	}
	if tk.State() != task.StateWaiting {
		t.Fatalf("state = %v, want Waiting", tk.State())
	}

	if err := tx.Send(5); err != nil {
		t.Fatal(err)
	}
	// Send wakes the parked task through its registered waker.
	if len(p.queue) != 1 {
		t.Fatalf("queued %d tasks after send, want 1", len(p.queue))
	}
	p.step()
	v, err, ok := h.TryResult()
	if !ok || err != nil || v != 5 {
		t.Fatalf("result = (%d, %v, %v), want (5, nil, true)", v, err, ok)
	}

	// A second receive can never observe the value again. It suspends
	// while the sender is still held and resolves once it is dropped.
	tk2, h2 := task.New[int](p, rx)
	p.queue = append(p.queue, tk2)
	p.step()
	if _, _, ok := h2.TryResult(); ok {
		t.Fatal("duplicate receive completed while the sender was live")
	}
	if tk2.State() != task.StateWaiting {
		t.Fatalf("duplicate receive state = %v, want Waiting", tk2.State())
	}
	tx.Drop()
	p.step()
	_, err, ok = h2.TryResult()
	if !ok || !errors.Is(err, api.ErrSenderDropped) {
		t.Fatalf("duplicate receive = (%v, %v), want ErrSenderDropped", err, ok)
	}
}

func TestTryRecvAfterConsumedReportsDrop(t *testing.T) {
	tx, rx := oneshot.New[int]()
	if err := tx.Send(1); err != nil {
		t.Fatal(err)
	}
	if v, err, ok := rx.TryRecv(); !ok || err != nil || v != 1 {
		t.Fatalf("TryRecv = (%d, %v, %v)", v, err, ok)
	}
	if _, _, ok := rx.TryRecv(); ok {
		t.Fatal("TryRecv resolved a consumed channel with the sender live")
	}
	tx.Drop()
	if _, err, ok := rx.TryRecv(); !ok || !errors.Is(err, api.ErrSenderDropped) {
		t.Fatalf("TryRecv after drop = (%v, %v), want ErrSenderDropped", err, ok)
	}
}
