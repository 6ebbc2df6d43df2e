// File: rt/runtime.go
// Package rt is the runtime manager: it creates one executor per
// selected core, pins their threads, and routes spawned work to the
// correct core's queue from any thread.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rt

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/percore/api"
	"github.com/momentics/percore/control"
	"github.com/momentics/percore/driver"
	"github.com/momentics/percore/internal/concurrency"
	"github.com/momentics/percore/task"
)

type runtimeState int32

const (
	stateRunning runtimeState = iota
	stateStopping
	stateStopped
)

// Runtime owns one executor per selected core.
type Runtime struct {
	cfg     Config
	reg     *concurrency.Registry
	metrics *control.MetricsRegistry
	log     *zap.Logger

	state    atomic.Int32
	spawnSeq atomic.Uint64
	done     chan struct{}
	runErr   error
}

// Start brings up one pinned executor per core in cfg.Cores and returns
// once all executor threads are launched. Executors begin accepting
// work immediately.
func Start(cfg Config) (*Runtime, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	r := &Runtime{
		cfg:     cfg,
		reg:     concurrency.NewRegistry(),
		metrics: control.NewMetricsRegistry(),
		log:     log,
		done:    make(chan struct{}),
	}

	for _, core := range cfg.Cores {
		port, err := driver.NewDefaultPort(cfg.PortDepth)
		if err != nil {
			for _, ex := range r.reg.Executors() {
				_ = ex.Driver().Close()
			}
			return nil, fmt.Errorf("rt: core %d: %w", core, err)
		}
		pool := driver.NewBufferPool(cfg.BufferSize, cfg.PoolCapacity)
		drv := driver.New(core, port, pool, cfg.MaxEvents, log)
		stats := &control.CoreStats{Core: core}
		ex := concurrency.NewExecutor(core, drv, r.reg, cfg.IdlePollMs, log, stats)
		r.reg.Add(ex)
	}

	g := new(errgroup.Group)
	for _, ex := range r.reg.Executors() {
		g.Go(ex.Run)
	}
	go func() {
		r.runErr = g.Wait()
		close(r.done)
	}()

	log.Info("runtime started", zap.Ints("cores", cfg.Cores))
	return r, nil
}

// Cores returns the managed core indices.
func (r *Runtime) Cores() []int { return r.reg.Cores() }

// Driver returns the I/O driver serving the given core, used to
// register handles and submit operations from that core's tasks.
func (r *Runtime) Driver(core int) (*driver.Driver, error) {
	ex, ok := r.reg.Lookup(core)
	if !ok {
		return nil, api.ErrUnknownCore
	}
	return ex.Driver(), nil
}

// Stats refreshes and returns the per-core metric snapshots.
func (r *Runtime) Stats() map[string]any {
	for _, ex := range r.reg.Executors() {
		r.metrics.Set(fmt.Sprintf("core_%d", ex.Core()), ex.Stats().Snapshot())
		r.metrics.Set(fmt.Sprintf("core_%d_buffers", ex.Core()), ex.Driver().Pool().Stats())
	}
	return r.metrics.GetSnapshot()
}

// Shutdown triggers draining on every executor and blocks until all
// reach Stopped or the timeout elapses. On timeout remaining tasks are
// force-dropped and api.ErrShutdownTimeout is returned; a nil return
// means every outstanding operation was observed and retired cleanly.
func (r *Runtime) Shutdown(timeout time.Duration) error {
	if !r.state.CompareAndSwap(int32(stateRunning), int32(stateStopping)) {
		<-r.done
		return api.ErrRuntimeStopped
	}
	for _, ex := range r.reg.Executors() {
		ex.SignalShutdown()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-r.done:
		r.state.Store(int32(stateStopped))
		r.log.Info("runtime stopped")
		return r.runErr
	case <-timer.C:
	}

	r.log.Warn("shutdown timeout, force-dropping remaining tasks",
		zap.Duration("timeout", timeout))
	for _, ex := range r.reg.Executors() {
		ex.ForceStop()
	}
	<-r.done
	r.state.Store(int32(stateStopped))
	return api.ErrShutdownTimeout
}

// running reports whether spawns are still accepted.
func (r *Runtime) running() bool {
	return runtimeState(r.state.Load()) == stateRunning
}

// Spawn places a new task on one of the runtime's cores (round-robin)
// and returns its handle. Callable from any thread.
func Spawn[T any](r *Runtime, f task.Future[T]) (*task.JoinHandle[T], error) {
	cores := r.reg.Cores()
	core := cores[int(r.spawnSeq.Add(1))%len(cores)]
	return SpawnOn(r, core, f)
}

// SpawnOn places a new task on the given core's queue. From a foreign
// thread this goes through the core's injection queue; task code
// already running on the target core should prefer task.Spawn /
// task.SpawnOn, which take the synchronization-free local path.
func SpawnOn[T any](r *Runtime, core int, f task.Future[T]) (*task.JoinHandle[T], error) {
	if !r.running() {
		return nil, api.ErrRuntimeStopped
	}
	ex, ok := r.reg.Lookup(core)
	if !ok {
		return nil, api.ErrUnknownCore
	}
	t, h := task.New(ex, f)
	ex.Inject(t)
	return h, nil
}
