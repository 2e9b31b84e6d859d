// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"math"

	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Evaluator is implemented by operators that can compute their outputs when all their inputs are
// constants. It is used by constant folding.
//
// outputs are the specs inferred for the node, always static for constant inputs.
type Evaluator interface {
	Evaluate(inputs []*graph.Constant, outputs []graph.TensorSpec) ([]*graph.Constant, error)
}

var (
	_ Evaluator = (*Abs)(nil)
	_ Evaluator = (*Add)(nil)
	_ Evaluator = (*Convert)(nil)
)

// errNotFoldable is returned when an evaluation is not supported for the given values.
var errNotFoldable = errors.New("not foldable")

type number interface {
	constraints.Integer | constraints.Float
}

// arithmetic computes a binary arithmetic operation. It returns false if the result is undefined,
// e.g. integer division by zero.
func arithmetic[T number](kind Kind, a, b T) (T, bool) {
	switch kind {
	case KindAdd:
		return a + b, true
	case KindSubtract:
		return a - b, true
	case KindMultiply:
		return a * b, true
	case KindDivide:
		var zero T
		if b == zero {
			if _, isFloat := any(a).(float64); !isFloat {
				return zero, false
			}
		}
		return a / b, true
	case KindMaximum:
		return max(a, b), true
	case KindMinimum:
		return min(a, b), true
	case KindSquaredDifference:
		return (a - b) * (a - b), true
	case KindPower:
		switch x := any(a).(type) {
		case float64:
			return T(math.Pow(x, float64(b))), true
		case int64:
			if b < 0 {
				break
			}
			return T(intPower(x, int64(b))), true
		case uint64:
			return T(intPower(x, uint64(b))), true
		}
	case KindAtan2:
		return T(math.Atan2(float64(a), float64(b))), true
	}
	var zero T
	return zero, false
}

// compare computes a comparison or logical operation over 0/1 values.
func compare[T constraints.Ordered](kind Kind, a, b T) bool {
	switch kind {
	case KindEqual:
		return a == b
	case KindNotEqual:
		return a != b
	case KindGreater:
		return a > b
	case KindGreaterEqual:
		return a >= b
	case KindLess:
		return a < b
	case KindLessEqual:
		return a <= b
	}
	var zero T
	aTrue, bTrue := a != zero, b != zero
	switch kind {
	case KindAnd:
		return aTrue && bTrue
	case KindOr:
		return aTrue || bTrue
	case KindXor:
		return aTrue != bTrue
	}
	return false
}

// unaryFloat computes unary operations in float64.
func unaryFloat(kind Kind, x float64) (float64, bool) {
	switch kind {
	case KindAbs:
		return math.Abs(x), true
	case KindAcos:
		return math.Acos(x), true
	case KindAsin:
		return math.Asin(x), true
	case KindAtan:
		return math.Atan(x), true
	case KindCeiling:
		return math.Ceil(x), true
	case KindCos:
		return math.Cos(x), true
	case KindCosh:
		return math.Cosh(x), true
	case KindErf:
		return math.Erf(x), true
	case KindExp:
		return math.Exp(x), true
	case KindFloor:
		return math.Floor(x), true
	case KindLog:
		return math.Log(x), true
	case KindNegative:
		return -x, true
	case KindRelu:
		return max(x, 0), true
	case KindSigmoid:
		return 1 / (1 + math.Exp(-x)), true
	case KindSign:
		switch {
		case x > 0:
			return 1, true
		case x < 0:
			return -1, true
		}
		return 0, true
	case KindSin:
		return math.Sin(x), true
	case KindSinh:
		return math.Sinh(x), true
	case KindSqrt:
		return math.Sqrt(x), true
	case KindTan:
		return math.Tan(x), true
	case KindTanh:
		return math.Tanh(x), true
	case KindNot, KindLogicalNot:
		if x == 0 {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// intPower computes a^b for b >= 0 by repeated squaring, wrapping around on overflow.
func intPower[T constraints.Integer](a, b T) T {
	result := T(1)
	for b > 0 {
		if b%2 == 1 {
			result *= a
		}
		a *= a
		b /= 2
	}
	return result
}

// unaryInt computes the unary operations that are exact over integers. It returns false for the
// operations only defined over floating point values.
func unaryInt[T constraints.Integer](kind Kind, x T) (T, bool) {
	var zero T
	switch kind {
	case KindAbs:
		if x < zero {
			return -x, true
		}
		return x, true
	case KindNegative:
		return -x, true
	case KindRelu:
		return max(x, zero), true
	case KindSign:
		switch {
		case x > zero:
			return 1, true
		case x < zero:
			return zero - 1, true
		}
		return zero, true
	case KindCeiling, KindFloor:
		return x, true
	case KindNot, KindLogicalNot:
		if x == zero {
			return 1, true
		}
		return zero, true
	}
	return zero, false
}

// broadcastIndices returns, for each element of an output with outDims, the flat index of the
// corresponding element of an operand with inDims, using numpy broadcasting.
func broadcastIndices(outDims, inDims []int) []int {
	size := 1
	for _, dim := range outDims {
		size *= dim
	}
	offset := len(outDims) - len(inDims)
	strides := make([]int, len(outDims))
	stride := 1
	for axis := len(inDims) - 1; axis >= 0; axis-- {
		if inDims[axis] != 1 {
			strides[axis+offset] = stride
		}
		stride *= inDims[axis]
	}
	indices := make([]int, size)
	counter := make([]int, len(outDims))
	flat := 0
	for i := range indices {
		indices[i] = flat
		for axis := len(outDims) - 1; axis >= 0; axis-- {
			counter[axis]++
			flat += strides[axis]
			if counter[axis] < outDims[axis] {
				break
			}
			flat -= strides[axis] * counter[axis]
			counter[axis] = 0
		}
	}
	return indices
}

// decode converts a constant to the domain it is evaluated in: []float64 for floating point,
// []uint64 for u64 and []int64 for the other integers and booleans.
func decode(c *graph.Constant) (any, error) {
	switch {
	case c.ElementType().IsFloat():
		return c.Float64s()
	case c.ElementType() == element.U64:
		return c.Values()
	}
	return c.Int64s()
}

// newConstant encodes values of any evaluation domain as a constant of the spec.
func newConstant[T number](spec graph.TensorSpec, values []T) (*graph.Constant, error) {
	var data []byte
	var err error
	switch values := any(values).(type) {
	case []float64:
		data, err = element.EncodeFloat64(spec.ElementType, values)
	case []int64:
		data, err = element.EncodeInt64(spec.ElementType, values)
	case []uint64:
		if spec.ElementType != element.U64 {
			return nil, errNotFoldable
		}
		_, data, err = element.Encode(values)
	default:
		return nil, errors.Errorf("unsupported evaluation values %T", values)
	}
	if err != nil {
		return nil, err
	}
	return graph.NewConstant(spec.ElementType, spec.Shape, data, true)
}

func newBoolConstant(spec graph.TensorSpec, values []bool) (*graph.Constant, error) {
	ints := make([]int64, len(values))
	for i, b := range values {
		if b {
			ints[i] = 1
		}
	}
	return newConstant(spec, ints)
}

// Evaluate implements Evaluator.
func (op *Unary[T]) Evaluate(inputs []*graph.Constant, outputs []graph.TensorSpec) ([]*graph.Constant, error) {
	kind := op.Kind()
	if !UnaryKinds.Has(kind) {
		return nil, errNotFoldable
	}
	values, err := decode(inputs[0])
	if err != nil {
		return nil, err
	}
	var c *graph.Constant
	switch values := values.(type) {
	case []float64:
		c, err = evalUnary(outputs[0], values, func(x float64) (float64, bool) { return unaryFloat(kind, x) })
	case []int64:
		c, err = evalUnary(outputs[0], values, func(x int64) (int64, bool) { return unaryInt(kind, x) })
	case []uint64:
		c, err = evalUnary(outputs[0], values, func(x uint64) (uint64, bool) { return unaryInt(kind, x) })
	default:
		return nil, errNotFoldable
	}
	if err != nil {
		return nil, err
	}
	return []*graph.Constant{c}, nil
}

func evalUnary[T number](spec graph.TensorSpec, values []T, fn func(x T) (T, bool)) (*graph.Constant, error) {
	results := make([]T, len(values))
	for i, x := range values {
		var ok bool
		if results[i], ok = fn(x); !ok {
			return nil, errNotFoldable
		}
	}
	return newConstant(spec, results)
}

// Evaluate implements Evaluator.
func (op *Binary[T]) Evaluate(inputs []*graph.Constant, outputs []graph.TensorSpec) ([]*graph.Constant, error) {
	spec := outputs[0]
	outDims := spec.Shape.Dimensions()
	lhsIdx := broadcastIndices(outDims, inputs[0].Shape().Dimensions())
	rhsIdx := broadcastIndices(outDims, inputs[1].Shape().Dimensions())
	lhs, err := decode(inputs[0])
	if err != nil {
		return nil, err
	}
	rhs, err := decode(inputs[1])
	if err != nil {
		return nil, err
	}
	var c *graph.Constant
	switch lhs := lhs.(type) {
	case []float64:
		c, err = evalBinary(op.Kind(), spec, lhs, rhs, lhsIdx, rhsIdx)
	case []int64:
		c, err = evalBinary(op.Kind(), spec, lhs, rhs, lhsIdx, rhsIdx)
	case []uint64:
		c, err = evalBinary(op.Kind(), spec, lhs, rhs, lhsIdx, rhsIdx)
	default:
		return nil, errNotFoldable
	}
	if err != nil {
		return nil, err
	}
	return []*graph.Constant{c}, nil
}

// evalBinary evaluates a binary operation with both operands in the same domain T.
func evalBinary[T number](kind Kind, spec graph.TensorSpec, lhs []T, rhsValues any, lhsIdx, rhsIdx []int) (*graph.Constant, error) {
	rhs, ok := rhsValues.([]T)
	if !ok {
		return nil, errNotFoldable
	}
	if !ArithmeticKinds.Has(kind) {
		bools := make([]bool, len(lhsIdx))
		for i := range bools {
			bools[i] = compare(kind, lhs[lhsIdx[i]], rhs[rhsIdx[i]])
		}
		return newBoolConstant(spec, bools)
	}
	values := make([]T, len(lhsIdx))
	for i := range values {
		if values[i], ok = arithmetic(kind, lhs[lhsIdx[i]], rhs[rhsIdx[i]]); !ok {
			return nil, errNotFoldable
		}
	}
	return newConstant(spec, values)
}

// Evaluate implements Evaluator.
func (op *Convert) Evaluate(inputs []*graph.Constant, outputs []graph.TensorSpec) ([]*graph.Constant, error) {
	spec := outputs[0]
	var c *graph.Constant
	var err error
	source := inputs[0]
	switch {
	case source.ElementType().IsFloat() || spec.ElementType.IsFloat():
		var values []float64
		if values, err = source.Float64s(); err == nil {
			c, err = newConstant(spec, values)
		}
	default:
		// Integer conversions keep the low bits, so u64 sources can go through int64.
		var values []int64
		if values, err = source.Int64s(); err == nil {
			c, err = newConstant(spec, values)
		}
	}
	if err != nil {
		return nil, err
	}
	return []*graph.Constant{c}, nil
}

// IsNotFoldable returns whether an Evaluator error means the values can't be folded, as opposed to
// an unexpected failure.
func IsNotFoldable(err error) bool { return errors.Is(err, errNotFoldable) }
