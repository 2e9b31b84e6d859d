// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

// ReduceOp is the reduction applied by collective operations.
type ReduceOp int

const (
	ReduceOpSum ReduceOp = iota
	ReduceOpProd
	ReduceOpMin
	ReduceOpMax
)

// String implements fmt.Stringer.
func (op ReduceOp) String() string {
	switch op {
	case ReduceOpSum:
		return "sum"
	case ReduceOpProd:
		return "prod"
	case ReduceOpMin:
		return "min"
	case ReduceOpMax:
		return "max"
	}
	return "invalid"
}

// Distributed is the interface for collective operations, that is, operations executed across multiple ranks.
//
// Every rank must call the collective operations in the same order, with buffers of the same type.
type Distributed interface {
	// Rank of this participant, in [0, WorldSize).
	Rank() int

	// WorldSize is the number of participants.
	WorldSize() int

	// AllReduce reduces in across all ranks with op, and stores the result in out on every rank.
	// It blocks until all ranks contributed. in and out must have the same element type and dimensions.
	AllReduce(in, out *Buffer, op ReduceOp) error
}
