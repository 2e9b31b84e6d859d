// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"slices"

	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// reducedShape removes (or sets to 1, if keepDims) the reduced axes of shape.
func reducedShape(shape shapes.PartialShape, axes []int, keepDims bool) (shapes.PartialShape, error) {
	if shape.RankIsDynamic() {
		return shapes.DynamicRank(), nil
	}
	normalized, err := normalizeAxes(axes, shape.Rank())
	if err != nil {
		return shapes.PartialShape{}, err
	}
	dims := make([]int, 0, shape.Rank())
	for axis, dim := range shape.Dimensions() {
		switch {
		case !slices.Contains(normalized, axis):
			dims = append(dims, dim)
		case keepDims:
			dims = append(dims, 1)
		}
	}
	return shapes.Make(dims...), nil
}

// Sum v0 adds the values along ReductionAxes, removing those axes.
type Sum struct {
	ReductionAxes []int
}

// TypeInfo implements graph.Operator.
func (op *Sum) TypeInfo() graph.TypeInfo { return v0("Sum") }

// Clone implements graph.Operator.
func (op *Sum) Clone() graph.Operator { return &Sum{ReductionAxes: slices.Clone(op.ReductionAxes)} }

// Attributes implements graph.Attributer.
func (op *Sum) Attributes() map[string]any {
	return map[string]any{"axes": slices.Clone(op.ReductionAxes)}
}

// Infer implements graph.Operator.
func (op *Sum) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	operand := inputs[0]
	if err := requireNumber("Sum operand", operand.ElementType()); err != nil {
		return nil, err
	}
	for _, axis := range op.ReductionAxes {
		if axis < 0 {
			return nil, errors.Errorf("Sum reduction axes must be non-negative, got %v", op.ReductionAxes)
		}
	}
	shape, err := reducedShape(operand.Shape(), op.ReductionAxes, false)
	if err != nil {
		return nil, err
	}
	return single(operand.ElementType(), shape), nil
}

// Reducer enumerates the reductions of the v1 Reduce* operators.
type Reducer int

const (
	ReducerSum Reducer = iota
	ReducerMax
	ReducerMin
	ReducerMean
	ReducerProd
)

type reductionTag interface {
	typeInfo() graph.TypeInfo
	reducer() Reducer
}

// Reduction is a v1 reduction operator (ReduceSum, ReduceMax, ...). Negative axes count from the
// end, and KeepDims keeps reduced axes with dimension 1.
type Reduction[T reductionTag] struct {
	Axes     []int
	KeepDims bool
}

// TypeInfo implements graph.Operator.
func (op *Reduction[T]) TypeInfo() graph.TypeInfo {
	var tag T
	return tag.typeInfo()
}

// Reducer returns which reduction the operator computes.
func (op *Reduction[T]) Reducer() Reducer {
	var tag T
	return tag.reducer()
}

// Clone implements graph.Operator.
func (op *Reduction[T]) Clone() graph.Operator {
	return &Reduction[T]{Axes: slices.Clone(op.Axes), KeepDims: op.KeepDims}
}

// Attributes implements graph.Attributer.
func (op *Reduction[T]) Attributes() map[string]any {
	return map[string]any{"axes": slices.Clone(op.Axes), "keep_dims": op.KeepDims}
}

// Infer implements graph.Operator.
func (op *Reduction[T]) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	operand := inputs[0]
	if err := requireNumber(op.TypeInfo().Name+" operand", operand.ElementType()); err != nil {
		return nil, err
	}
	shape, err := reducedShape(operand.Shape(), op.Axes, op.KeepDims)
	if err != nil {
		return nil, err
	}
	return single(operand.ElementType(), shape), nil
}

type (
	reduceSumTag  struct{}
	reduceMaxTag  struct{}
	reduceMinTag  struct{}
	reduceMeanTag struct{}
	reduceProdTag struct{}
)

func (reduceSumTag) typeInfo() graph.TypeInfo  { return v1("ReduceSum") }
func (reduceMaxTag) typeInfo() graph.TypeInfo  { return v1("ReduceMax") }
func (reduceMinTag) typeInfo() graph.TypeInfo  { return v1("ReduceMin") }
func (reduceMeanTag) typeInfo() graph.TypeInfo { return v1("ReduceMean") }
func (reduceProdTag) typeInfo() graph.TypeInfo { return v1("ReduceProd") }
func (reduceSumTag) reducer() Reducer          { return ReducerSum }
func (reduceMaxTag) reducer() Reducer          { return ReducerMax }
func (reduceMinTag) reducer() Reducer          { return ReducerMin }
func (reduceMeanTag) reducer() Reducer         { return ReducerMean }
func (reduceProdTag) reducer() Reducer         { return ReducerProd }

// Reduction operators of the v1 operator set.
type (
	ReduceSum  = Reduction[reduceSumTag]
	ReduceMax  = Reduction[reduceMaxTag]
	ReduceMin  = Reduction[reduceMinTag]
	ReduceMean = Reduction[reduceMeanTag]
	ReduceProd = Reduction[reduceProdTag]
)

// IndexReduction is the common implementation of ArgMax and ArgMin.
type IndexReduction struct {
	Axis int

	// IndexElementType of the output, I32 or I64. Undefined defaults to I64.
	IndexElementType element.Type
}

// IndexType returns the resolved element type of the output indices.
func (op IndexReduction) IndexType() element.Type {
	if op.IndexElementType == element.Undefined {
		return element.I64
	}
	return op.IndexElementType
}

func (op IndexReduction) infer(name string, inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	if indexType := op.IndexType(); indexType != element.I32 && indexType != element.I64 {
		return nil, errors.Errorf("%s index element type must be i32 or i64, got %s", name, indexType)
	}
	operand := inputs[0]
	if err := requireNumber(name+" operand", operand.ElementType()); err != nil {
		return nil, err
	}
	shape := operand.Shape()
	if shape.RankIsDynamic() {
		return single(op.IndexType(), shapes.DynamicRank()), nil
	}
	if shape.IsScalar() {
		return nil, errors.Errorf("%s operand must have rank >= 1", name)
	}
	out, err := reducedShape(shape, []int{op.Axis}, false)
	if err != nil {
		return nil, err
	}
	return single(op.IndexType(), out), nil
}

func (op IndexReduction) attributes() map[string]any {
	return map[string]any{"axis": op.Axis, "index_element_type": op.IndexType().String()}
}

// ArgMax v0 returns the indices of the maximum values along Axis.
type ArgMax struct{ IndexReduction }

// TypeInfo implements graph.Operator.
func (op *ArgMax) TypeInfo() graph.TypeInfo { return v0("ArgMax") }

// Clone implements graph.Operator.
func (op *ArgMax) Clone() graph.Operator { return &ArgMax{op.IndexReduction} }

// Infer implements graph.Operator.
func (op *ArgMax) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	return op.infer("ArgMax", inputs)
}

// Attributes implements graph.Attributer.
func (op *ArgMax) Attributes() map[string]any { return op.attributes() }

// ArgMin v0 returns the indices of the minimum values along Axis.
type ArgMin struct{ IndexReduction }

// TypeInfo implements graph.Operator.
func (op *ArgMin) TypeInfo() graph.TypeInfo { return v0("ArgMin") }

// Clone implements graph.Operator.
func (op *ArgMin) Clone() graph.Operator { return &ArgMin{op.IndexReduction} }

// Infer implements graph.Operator.
func (op *ArgMin) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	return op.infer("ArgMin", inputs)
}

// Attributes implements graph.Attributer.
func (op *ArgMin) Attributes() map[string]any { return op.attributes() }
