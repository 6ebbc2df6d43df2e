// File: api/kinds.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Operation kinds shared between the I/O driver and the error taxonomy.

package api

// OpKind identifies the class of an asynchronous I/O operation.
type OpKind uint8

const (
	OpNone OpKind = iota
	OpRead
	OpWrite
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "none"
	}
}
