// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/pkg/errors"
)

// ReduceType selects the reduction of a collective operation.
type ReduceType int

const (
	ReduceTypeSum ReduceType = iota
	ReduceTypeProd
	ReduceTypeMin
	ReduceTypeMax
)

// String implements fmt.Stringer.
func (r ReduceType) String() string {
	switch r {
	case ReduceTypeSum:
		return "sum"
	case ReduceTypeProd:
		return "prod"
	case ReduceTypeMin:
		return "min"
	case ReduceTypeMax:
		return "max"
	}
	return "invalid"
}

// AllReduce v0 reduces its operand across all the ranks of a distributed computation. Every rank
// gets the reduced value.
type AllReduce struct {
	ReduceType ReduceType
}

// TypeInfo implements graph.Operator.
func (op *AllReduce) TypeInfo() graph.TypeInfo { return v0("AllReduce") }

// Clone implements graph.Operator.
func (op *AllReduce) Clone() graph.Operator { return &AllReduce{ReduceType: op.ReduceType} }

// Attributes implements graph.Attributer.
func (op *AllReduce) Attributes() map[string]any {
	return map[string]any{"reduce_type": op.ReduceType.String()}
}

// Infer implements graph.Operator.
func (op *AllReduce) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	if op.ReduceType < ReduceTypeSum || op.ReduceType > ReduceTypeMax {
		return nil, errors.Errorf("invalid AllReduce reduce type %d", op.ReduceType)
	}
	operand := inputs[0]
	if err := requireNumber("AllReduce operand", operand.ElementType()); err != nil {
		return nil, err
	}
	return single(operand.ElementType(), operand.Shape()), nil
}
