// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package local

import (
	"github.com/gp1322719830/ngraph/backends"
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// reduction accumulates the contributions of all ranks to one collective operation.
type reduction struct {
	op       backends.ReduceOp
	template *backends.Buffer
	acc      any
	result   []byte
	err      error
}

func (red *reduction) add(in *backends.Buffer, values any, op backends.ReduceOp) {
	if red.err != nil {
		return
	}
	if op != red.op || !in.SameType(red.template) {
		red.err = errors.Errorf("ranks disagree on AllReduce: %s with %s vs %s with %s", red.op, red.template, op, in)
		return
	}
	if red.acc == nil {
		red.acc = values
		return
	}
	red.err = accumulate(red.acc, values, op)
}

func (red *reduction) finish() {
	if red.err != nil {
		return
	}
	red.result, red.err = encode(red.template.ElementType, red.acc)
}

// decode converts the buffer to a flat slice. Half precision floats are widened to float64.
func decode(b *backends.Buffer) (any, error) {
	switch b.ElementType {
	case element.F16, element.BF16:
		return element.DecodeFloat64(b.ElementType, b.Data, b.Size())
	case element.Boolean, element.U1:
		return nil, errors.Errorf("AllReduce doesn't support element type %s", b.ElementType)
	}
	return element.Decode(b.ElementType, b.Data, b.Size())
}

func encode(elementType element.Type, flat any) ([]byte, error) {
	switch elementType {
	case element.F16, element.BF16:
		return element.EncodeFloat64(elementType, flat.([]float64))
	}
	_, data, err := element.Encode(flat)
	return data, err
}

type number interface {
	constraints.Integer | constraints.Float
}

func reduceInto[T number](acc, values []T, op backends.ReduceOp) {
	for i, v := range values {
		switch op {
		case backends.ReduceOpSum:
			acc[i] += v
		case backends.ReduceOpProd:
			acc[i] *= v
		case backends.ReduceOpMin:
			acc[i] = min(acc[i], v)
		case backends.ReduceOpMax:
			acc[i] = max(acc[i], v)
		}
	}
}

func accumulate(acc, values any, op backends.ReduceOp) error {
	switch acc := acc.(type) {
	case []float32:
		reduceInto(acc, values.([]float32), op)
	case []float64:
		reduceInto(acc, values.([]float64), op)
	case []int8:
		reduceInto(acc, values.([]int8), op)
	case []int16:
		reduceInto(acc, values.([]int16), op)
	case []int32:
		reduceInto(acc, values.([]int32), op)
	case []int64:
		reduceInto(acc, values.([]int64), op)
	case []uint8:
		reduceInto(acc, values.([]uint8), op)
	case []uint16:
		reduceInto(acc, values.([]uint16), op)
	case []uint32:
		reduceInto(acc, values.([]uint32), op)
	case []uint64:
		reduceInto(acc, values.([]uint64), op)
	default:
		return errors.Errorf("AllReduce doesn't support values of type %T", acc)
	}
	return nil
}
