// File: driver/driver_test.go
// Package driver tests
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver_test

import (
	"errors"
	"io"
	"testing"

	"github.com/momentics/percore/api"
	"github.com/momentics/percore/driver"
	"github.com/momentics/percore/fake"
	"github.com/momentics/percore/task"
)

// stubExec satisfies task.Exec for single-threaded driver tests.
type stubExec struct {
	core  int
	drv   *driver.Driver
	woken []*task.Task
}

func (s *stubExec) Core() int                  { return s.core }
func (s *stubExec) Wake(t *task.Task)          { s.woken = append(s.woken, t) }
func (s *stubExec) SpawnLocal(t *task.Task)    {}
func (s *stubExec) Inject(t *task.Task)        {}
func (s *stubExec) Peer(int) (task.Exec, bool) { return nil, false }
func (s *stubExec) IO() any                    { return s.drv }

func newTestDriver(t *testing.T) (*driver.Driver, *stubExec) {
	t.Helper()
	d := driver.New(0, driver.NewMemPort(64), driver.NewBufferPool(1024, 8), 16, nil)
	t.Cleanup(func() { _ = d.Close() })
	return d, &stubExec{drv: d}
}

// pollOp drives one operation future a single step on the stub
// executor.
func pollOp(ex *stubExec, op *driver.Operation) (*task.Task, *task.JoinHandle[driver.Result]) {
	tk, h := task.New[driver.Result](ex, op)
	tk.BeginRun()
	if !tk.RunPoll(task.NewCtx(ex, tk)) {
		tk.Park()
	}
	return tk, h
}

func TestEndpointReadRoundTrip(t *testing.T) {
	d, ex := newTestDriver(t)
	h := driver.FromEndpoint(fake.NewEndpoint([]byte("hello")))
	if err := d.Register(h); err != nil {
		t.Fatal(err)
	}

	buf := d.Pool().Get()
	op, err := d.Read(h, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if d.InFlight() != 1 {
		t.Fatalf("InFlight = %d, want 1", d.InFlight())
	}

	// Ownership moved to the operation: any access must panic.
	func() {
		defer func() {
			if recover() == nil {
				t.Error("buffer readable while operation in flight")
			}
		}()
		_ = buf.Bytes()
	}()

	if _, err := d.PollCompletions(2000); err != nil {
		t.Fatal(err)
	}
	if d.InFlight() != 0 {
		t.Fatalf("InFlight = %d after completion, want 0", d.InFlight())
	}

	_, jh := pollOp(ex, op)
	res, err, ok := jh.TryResult()
	if !ok || err != nil {
		t.Fatalf("result = (%v, %v)", err, ok)
	}
	if res.N != 5 || string(res.Buf.Bytes()) != "hello" {
		t.Fatalf("read %d bytes %q", res.N, res.Buf.Bytes())
	}
	res.Buf.Release()
}

func TestEndpointWriteDeliversPayload(t *testing.T) {
	d, ex := newTestDriver(t)
	ep := fake.NewEndpoint()
	h := driver.FromEndpoint(ep)
	if err := d.Register(h); err != nil {
		t.Fatal(err)
	}

	buf := d.Pool().Get()
	buf.Fill([]byte("payload"))
	op, err := d.Write(h, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.PollCompletions(2000); err != nil {
		t.Fatal(err)
	}
	_, jh := pollOp(ex, op)
	res, err, ok := jh.TryResult()
	if !ok || err != nil || res.N != 7 {
		t.Fatalf("write result = (%+v, %v, %v)", res, err, ok)
	}
	w := ep.Writes()
	if len(w) != 1 || string(w[0]) != "payload" {
		t.Fatalf("endpoint recorded %q", w)
	}
	res.Buf.Release()
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	d, _ := newTestDriver(t)
	d2 := driver.New(1, driver.NewMemPort(8), nil, 4, nil)
	defer d2.Close()

	h := driver.FromEndpoint(fake.NewEndpoint())
	if err := d.Register(h); err != nil {
		t.Fatal(err)
	}
	var re *api.RegistrationError
	if err := d2.Register(h); !errors.As(err, &re) {
		t.Fatalf("cross-core rebind err = %v, want RegistrationError", err)
	}
	if err := d.Register(h); !errors.As(err, &re) {
		t.Fatalf("same-core rebind err = %v, want RegistrationError", err)
	}
	d.Unregister(h)
	if err := d.Register(h); err != nil {
		t.Fatalf("rebind after unregister: %v", err)
	}
}

func TestSubmitOnForeignDriverRejected(t *testing.T) {
	d, _ := newTestDriver(t)
	d2 := driver.New(1, driver.NewMemPort(8), nil, 4, nil)
	defer d2.Close()

	h := driver.FromEndpoint(fake.NewEndpoint())
	if err := d.Register(h); err != nil {
		t.Fatal(err)
	}
	var re *api.RegistrationError
	if _, err := d2.Read(h, d2.Pool().Get(), 0); !errors.As(err, &re) {
		t.Fatalf("foreign submit err = %v, want RegistrationError", err)
	}
}

func TestReadErrorReturnsBufferWithResult(t *testing.T) {
	d, ex := newTestDriver(t)
	ep := fake.NewEndpoint()
	sentinel := errors.New("device gone")
	ep.FailReads(sentinel)
	h := driver.FromEndpoint(ep)
	if err := d.Register(h); err != nil {
		t.Fatal(err)
	}

	buf := d.Pool().Get()
	op, err := d.Read(h, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.PollCompletions(2000); err != nil {
		t.Fatal(err)
	}
	_, jh := pollOp(ex, op)
	res, err, ok := jh.TryResult()
	if !ok {
		t.Fatal("operation did not complete")
	}
	var ioe *api.IoError
	if !errors.As(err, &ioe) || !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want IoError wrapping the endpoint failure", err)
	}
	// The buffer rides along with the failure and is reusable.
	if res.Buf == nil {
		t.Fatal("failed result lost its buffer")
	}
	res.Buf.Release()
}

func TestReadPastScriptReportsEOF(t *testing.T) {
	d, ex := newTestDriver(t)
	h := driver.FromEndpoint(fake.NewEndpoint())
	if err := d.Register(h); err != nil {
		t.Fatal(err)
	}
	op, err := d.Read(h, d.Pool().Get(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.PollCompletions(2000); err != nil {
		t.Fatal(err)
	}
	_, jh := pollOp(ex, op)
	_, err, _ = jh.TryResult()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestCancelRetiresThroughCompletion(t *testing.T) {
	d, ex := newTestDriver(t)
	ep := fake.NewBlockingEndpoint([]byte("never"), true)
	h := driver.FromEndpoint(ep)
	if err := d.Register(h); err != nil {
		t.Fatal(err)
	}

	op, err := d.Read(h, d.Pool().Get(), 0)
	if err != nil {
		t.Fatal(err)
	}
	// Suspend a task on the operation, then cancel.
	tk, jh := pollOp(ex, op)
	if !op.InFlight() {
		t.Fatal("operation retired before any completion")
	}
	op.CancelPending()
	op.CancelPending() // idempotent

	if _, err := d.PollCompletions(2000); err != nil {
		t.Fatal(err)
	}
	if op.InFlight() {
		t.Fatal("completion did not retire the cancelled operation")
	}
	// The cancellation wake re-queued the suspended task.
	if len(ex.woken) != 1 || ex.woken[0] != tk {
		t.Fatalf("woken = %v", ex.woken)
	}
	tk.BeginRun()
	tk.RunPoll(task.NewCtx(ex, tk))
	_, err, ok := jh.TryResult()
	if !ok || !errors.Is(err, api.ErrOperationAborted) {
		t.Fatalf("cancelled read err = %v, want ErrOperationAborted", err)
	}
}

func TestSyntheticWakeUnblocksWait(t *testing.T) {
	d, _ := newTestDriver(t)
	go d.PostWake()
	n, err := d.PollCompletions(2000)
	if err != nil {
		t.Fatal(err)
	}
	// Wake completions unpark the loop without waking any task.
	if n != 0 {
		t.Fatalf("woken = %d, want 0", n)
	}
}
