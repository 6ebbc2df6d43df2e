// File: driver/ctx.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

import "github.com/momentics/percore/task"

// FromCtx returns the I/O driver of the executor currently polling the
// task. Panics if the executor carries no driver, which cannot happen
// for executors started by the runtime.
func FromCtx(ctx *task.Ctx) *Driver {
	d, ok := ctx.IO().(*Driver)
	if !ok {
		panic("driver: executor has no I/O driver attached")
	}
	return d
}
