// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"slices"

	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Convert v0 converts its operand to DestinationType.
type Convert struct {
	DestinationType element.Type
}

// TypeInfo implements graph.Operator.
func (op *Convert) TypeInfo() graph.TypeInfo { return v0("Convert") }

// Clone implements graph.Operator.
func (op *Convert) Clone() graph.Operator { return &Convert{DestinationType: op.DestinationType} }

// Attributes implements graph.Attributer.
func (op *Convert) Attributes() map[string]any {
	return map[string]any{"destination_type": op.DestinationType.String()}
}

// Infer implements graph.Operator.
func (op *Convert) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	if !op.DestinationType.IsValid() || op.DestinationType == element.Undefined {
		return nil, errors.Errorf("invalid destination type %s", op.DestinationType)
	}
	return single(op.DestinationType, inputs[0].Shape()), nil
}

// Reshape v1 reshapes its operand to Shape, keeping the number of elements.
//
// One dimension of Shape can be -1, and is inferred from the others. If SpecialZero is set,
// a 0 in Shape copies the operand dimension of the same axis.
type Reshape struct {
	Shape       []int
	SpecialZero bool
}

// TypeInfo implements graph.Operator.
func (op *Reshape) TypeInfo() graph.TypeInfo { return v1("Reshape") }

// Clone implements graph.Operator.
func (op *Reshape) Clone() graph.Operator {
	return &Reshape{Shape: slices.Clone(op.Shape), SpecialZero: op.SpecialZero}
}

// Attributes implements graph.Attributer.
func (op *Reshape) Attributes() map[string]any {
	return map[string]any{"shape": slices.Clone(op.Shape), "special_zero": op.SpecialZero}
}

// Infer implements graph.Operator.
func (op *Reshape) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	operand := inputs[0]
	in := operand.Shape()
	dims := slices.Clone(op.Shape)
	inferAxis := -1
	known := 1
	for axis, dim := range dims {
		switch {
		case dim == -1:
			if inferAxis >= 0 {
				return nil, errors.Errorf("Reshape shape %v has more than one -1 dimension", op.Shape)
			}
			inferAxis = axis
			continue
		case dim == 0 && op.SpecialZero:
			if in.RankIsDynamic() || axis >= in.Rank() {
				if !in.RankIsDynamic() {
					return nil, errors.Errorf("Reshape shape %v copies axis %d, but operand has shape %s", op.Shape, axis, in)
				}
				dims[axis] = shapes.Dynamic
			} else {
				dims[axis] = in.Dim(axis)
			}
		case dim < 0:
			return nil, errors.Errorf("Reshape shape %v has invalid dimension %d", op.Shape, dim)
		}
		if dims[axis] == shapes.Dynamic || known == shapes.Dynamic {
			known = shapes.Dynamic
		} else {
			known *= dims[axis]
		}
	}
	size := in.Size()
	if inferAxis >= 0 {
		switch {
		case size == shapes.Dynamic || known == shapes.Dynamic:
			dims[inferAxis] = shapes.Dynamic
		case known == 0 || size%known != 0:
			return nil, errors.Errorf("Reshape cannot infer dimension of shape %v from operand %s", op.Shape, in)
		default:
			dims[inferAxis] = size / known
		}
	} else if size != shapes.Dynamic && known != shapes.Dynamic && size != known {
		return nil, errors.Errorf("Reshape of %s to %v changes the number of elements", in, op.Shape)
	}
	return single(operand.ElementType(), shapes.Make(dims...)), nil
}

// Concat v0 concatenates its operands along Axis.
type Concat struct {
	Axis int
}

// TypeInfo implements graph.Operator.
func (op *Concat) TypeInfo() graph.TypeInfo { return v0("Concat") }

// Clone implements graph.Operator.
func (op *Concat) Clone() graph.Operator { return &Concat{Axis: op.Axis} }

// Attributes implements graph.Attributer.
func (op *Concat) Attributes() map[string]any { return map[string]any{"axis": op.Axis} }

// Infer implements graph.Operator.
func (op *Concat) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if len(inputs) == 0 {
		return nil, errors.New("Concat requires at least one input")
	}
	elementType := element.Dynamic
	rank := shapes.Dynamic
	for i, input := range inputs {
		var ok bool
		elementType, ok = elementType.Merge(input.ElementType())
		if !ok {
			return nil, errors.Errorf("Concat input #%d has element type %s, incompatible with %s", i, input.ElementType(), elementType)
		}
		if r := input.Shape().Rank(); r != shapes.Dynamic {
			if rank != shapes.Dynamic && r != rank {
				return nil, errors.Errorf("Concat inputs must have the same rank, input #%d has shape %s", i, input.Shape())
			}
			rank = r
		}
	}
	if rank == shapes.Dynamic {
		return single(elementType, shapes.DynamicRank()), nil
	}
	if rank == 0 {
		return nil, errors.New("Concat inputs cannot be scalars")
	}
	axis, err := normalizeAxis(op.Axis, rank)
	if err != nil {
		return nil, err
	}
	dims := make([]int, rank)
	for i := range dims {
		dims[i] = shapes.Dynamic
	}
	concatDim := 0
	for i, input := range inputs {
		shape := input.Shape()
		if shape.RankIsDynamic() {
			concatDim = shapes.Dynamic
			continue
		}
		for a, dim := range shape.Dimensions() {
			if a == axis {
				if concatDim != shapes.Dynamic && dim != shapes.Dynamic {
					concatDim += dim
				} else {
					concatDim = shapes.Dynamic
				}
				continue
			}
			merged, ok := mergeDims(dims[a], dim)
			if !ok {
				return nil, errors.Errorf("Concat input #%d shape %s doesn't match other inputs on axis %d", i, shape, a)
			}
			dims[a] = merged
		}
	}
	dims[axis] = concatDim
	return single(elementType, shapes.Make(dims...)), nil
}

// Split v1 splits its operand in NumSplits equal parts along Axis.
type Split struct {
	Axis      int
	NumSplits int
}

// TypeInfo implements graph.Operator.
func (op *Split) TypeInfo() graph.TypeInfo { return v1("Split") }

// Clone implements graph.Operator.
func (op *Split) Clone() graph.Operator { return &Split{Axis: op.Axis, NumSplits: op.NumSplits} }

// Attributes implements graph.Attributer.
func (op *Split) Attributes() map[string]any {
	return map[string]any{"axis": op.Axis, "num_splits": op.NumSplits}
}

// Infer implements graph.Operator.
func (op *Split) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	if op.NumSplits <= 0 {
		return nil, errors.Errorf("Split requires a positive number of splits, got %d", op.NumSplits)
	}
	operand := inputs[0]
	out := shapes.DynamicRank()
	if shape := operand.Shape(); !shape.RankIsDynamic() {
		axis, err := normalizeAxis(op.Axis, shape.Rank())
		if err != nil {
			return nil, err
		}
		dims := shape.Dimensions()
		if dims[axis] != shapes.Dynamic {
			if dims[axis]%op.NumSplits != 0 {
				return nil, errors.Errorf("Split of axis %d of shape %s in %d parts is not exact", axis, shape, op.NumSplits)
			}
			dims[axis] /= op.NumSplits
		}
		out = shapes.Make(dims...)
	}
	specs := make([]graph.TensorSpec, op.NumSplits)
	for i := range specs {
		specs[i] = graph.TensorSpec{ElementType: operand.ElementType(), Shape: out.Clone()}
	}
	return specs, nil
}

// Softmax v1 normalizes its operand with the softmax function along Axis.
type Softmax struct {
	Axis int
}

// TypeInfo implements graph.Operator.
func (op *Softmax) TypeInfo() graph.TypeInfo { return v1("Softmax") }

// Clone implements graph.Operator.
func (op *Softmax) Clone() graph.Operator { return &Softmax{Axis: op.Axis} }

// Attributes implements graph.Attributer.
func (op *Softmax) Attributes() map[string]any { return map[string]any{"axis": op.Axis} }

// Infer implements graph.Operator.
func (op *Softmax) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	operand := inputs[0]
	if et := operand.ElementType(); !et.IsDynamic() && !et.IsFloat() {
		return nil, errors.Errorf("Softmax requires a floating point operand, got %s", et)
	}
	if shape := operand.Shape(); !shape.RankIsDynamic() {
		if _, err := normalizeAxis(op.Axis, shape.Rank()); err != nil {
			return nil, err
		}
	}
	return single(operand.ElementType(), operand.Shape()), nil
}

// Select v1 picks, for each element, the value of the second (condition true) or third operand.
type Select struct {
	AutoBroadcast AutoBroadcast
}

// TypeInfo implements graph.Operator.
func (op *Select) TypeInfo() graph.TypeInfo { return v1("Select") }

// Clone implements graph.Operator.
func (op *Select) Clone() graph.Operator { return &Select{AutoBroadcast: op.AutoBroadcast} }

// Attributes implements graph.Attributer.
func (op *Select) Attributes() map[string]any {
	return map[string]any{"auto_broadcast": op.AutoBroadcast.resolve(1).String()}
}

// Infer implements graph.Operator.
func (op *Select) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 3, 3); err != nil {
		return nil, err
	}
	condition, onTrue, onFalse := inputs[0], inputs[1], inputs[2]
	if et := condition.ElementType(); !et.IsDynamic() && et != element.Boolean {
		return nil, errors.Errorf("Select condition must be boolean, got %s", et)
	}
	elementType, ok := onTrue.ElementType().Merge(onFalse.ElementType())
	if !ok {
		return nil, errors.Errorf("Select values must have the same element type, got %s and %s",
			onTrue.ElementType(), onFalse.ElementType())
	}
	mode := op.AutoBroadcast.resolve(1)
	shape, err := broadcastShapes(mode, onTrue.Shape(), onFalse.Shape())
	if err != nil {
		return nil, err
	}
	shape, err = broadcastShapes(mode, condition.Shape(), shape)
	if err != nil {
		return nil, err
	}
	return single(elementType, shape), nil
}

// Clamp v0 limits the values of its operand to [Min, Max].
type Clamp struct {
	Min, Max float64
}

// TypeInfo implements graph.Operator.
func (op *Clamp) TypeInfo() graph.TypeInfo { return v0("Clamp") }

// Clone implements graph.Operator.
func (op *Clamp) Clone() graph.Operator { return &Clamp{Min: op.Min, Max: op.Max} }

// Attributes implements graph.Attributer.
func (op *Clamp) Attributes() map[string]any { return map[string]any{"min": op.Min, "max": op.Max} }

// Infer implements graph.Operator.
func (op *Clamp) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	if op.Min > op.Max {
		return nil, errors.Errorf("Clamp min (%g) must not be greater than max (%g)", op.Min, op.Max)
	}
	operand := inputs[0]
	if err := requireNumber("Clamp operand", operand.ElementType()); err != nil {
		return nil, err
	}
	return single(operand.ElementType(), operand.Shape()), nil
}

// StopGradient v0 is the identity in the forward computation.
type StopGradient struct{}

// TypeInfo implements graph.Operator.
func (op *StopGradient) TypeInfo() graph.TypeInfo { return v0("StopGradient") }

// Clone implements graph.Operator.
func (op *StopGradient) Clone() graph.Operator { return &StopGradient{} }

// Infer implements graph.Operator.
func (op *StopGradient) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	return single(inputs[0].ElementType(), inputs[0].Shape()), nil
}
