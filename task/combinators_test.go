// File: task/combinators_test.go
// Package task tests
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package task_test

import (
	"errors"
	"testing"

	"github.com/momentics/percore/task"
)

// pump is a single-threaded scheduler stand-in driving one task to
// completion.
type pump struct {
	stubExec
	queue []*task.Task
}

func (p *pump) Wake(t *task.Task)       { p.queue = append(p.queue, t) }
func (p *pump) SpawnLocal(t *task.Task) { p.queue = append(p.queue, t) }

func runFuture[T any](t *testing.T, f task.Future[T]) (T, error) {
	t.Helper()
	p := &pump{}
	tk, h := task.New[T](p, f)
	p.queue = append(p.queue, tk)
	for steps := 0; len(p.queue) > 0; steps++ {
		if steps > 1000 {
			t.Fatal("future did not settle within 1000 steps")
		}
		next := p.queue[0]
		p.queue = p.queue[1:]
		next.BeginRun()
		if next.RunPoll(task.NewCtx(p, next)) {
			break
		}
		if !next.Park() {
			p.queue = append(p.queue, next)
		}
	}
	v, err, ok := h.TryResult()
	if !ok {
		t.Fatal("future parked with no pending wake source")
	}
	return v, err
}

func TestReadyAndFail(t *testing.T) {
	if v, err := runFuture(t, task.Ready(41)); v != 41 || err != nil {
		t.Fatalf("Ready = (%d, %v)", v, err)
	}
	sentinel := errors.New("nope")
	if _, err := runFuture(t, task.Fail[int](sentinel)); !errors.Is(err, sentinel) {
		t.Fatalf("Fail err = %v", err)
	}
}

func TestYieldResumesOnNextPass(t *testing.T) {
	polls := 0
	f := task.Then(task.Yield(), func(struct{}) task.Future[int] {
		return task.FutureFunc[int](func(*task.Ctx) (int, bool, error) {
			polls++
			return polls, true, nil
		})
	})
	v, err := runFuture(t, f)
	if err != nil || v != 1 {
		t.Fatalf("got (%d, %v), want (1, nil)", v, err)
	}
}

func TestThenShortCircuitsOnError(t *testing.T) {
	sentinel := errors.New("first failed")
	ran := false
	f := task.Then(task.Fail[int](sentinel), func(int) task.Future[string] {
		ran = true
		return task.Ready("unreachable")
	})
	_, err := runFuture(t, f)
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if ran {
		t.Fatal("continuation built despite upstream error")
	}
}

func TestJoin2WaitsForBoth(t *testing.T) {
	f := task.Join2(
		task.Then(task.Yield(), func(struct{}) task.Future[int] { return task.Ready(1) }),
		task.Ready("two"),
	)
	v, err := runFuture(t, f)
	if err != nil {
		t.Fatal(err)
	}
	if v.First != 1 || v.Second != "two" {
		t.Fatalf("Join2 = %+v", v)
	}
}

func TestSelect2PicksFirstReady(t *testing.T) {
	f := task.Select2(
		task.Then(task.Yield(), func(struct{}) task.Future[int] { return task.Ready(1) }),
		task.Ready("fast"),
	)
	v, err := runFuture(t, f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Index != 1 || v.Second != "fast" {
		t.Fatalf("Select2 = %+v", v)
	}
}
