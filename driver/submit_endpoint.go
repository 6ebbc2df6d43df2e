// File: driver/submit_endpoint.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint-backed submission: the blocking call runs on a helper
// goroutine and its outcome is published through the completion port,
// so the executor observes it exactly like a native completion.

package driver

import (
	"fmt"
	"io"

	"github.com/momentics/percore/api"
)

func (d *Driver) submitEndpoint(op *Operation) error {
	var data []byte
	switch op.kind {
	case api.OpRead:
		data = op.buf.data
	case api.OpWrite:
		data = op.buf.data[:op.buf.n]
	default:
		return fmt.Errorf("driver: %s not supported on endpoint handles", op.kind)
	}
	ep := op.h.ep
	off := op.off
	port := d.port
	go func() {
		if op.simCancel.Load() {
			op.simErr = &api.IoError{Kind: op.kind, Err: api.ErrOperationAborted}
			_ = port.Post(Completion{Slot: op.slot})
			return
		}
		var n int
		var err error
		switch op.kind {
		case api.OpRead:
			n, err = ep.ReadAt(data, off)
		case api.OpWrite:
			n, err = ep.WriteAt(data, off)
		}
		// A read that returns data along with EOF is a success; EOF
		// surfaces on the next, empty read.
		if err == io.EOF && n > 0 {
			err = nil
		}
		if err != nil && op.simCancel.Load() {
			err = api.ErrOperationAborted
		}
		op.simBytes = uint32(n)
		if err != nil {
			op.simErr = &api.IoError{Kind: op.kind, Err: err}
		}
		_ = port.Post(Completion{Slot: op.slot})
	}()
	return nil
}
