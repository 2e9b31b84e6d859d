// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// mergeNumeric merges the element types of two numeric operands.
func mergeNumeric(name string, a, b *graph.Tensor) (element.Type, error) {
	elementType, ok := a.ElementType().Merge(b.ElementType())
	if !ok {
		return element.Undefined, errors.Errorf("%s arguments do not have the same element type (%s, %s)",
			name, a.ElementType(), b.ElementType())
	}
	if err := requireNumber(name+" arguments", elementType); err != nil {
		return element.Undefined, err
	}
	return elementType, nil
}

// Dot v0 is the generalized dot product: it contracts the last ReductionAxesCount axes of the
// first operand with the first ReductionAxesCount axes of the second. With 0 it is the tensor
// (outer) product.
type Dot struct {
	ReductionAxesCount int
}

// TypeInfo implements graph.Operator.
func (op *Dot) TypeInfo() graph.TypeInfo { return v0("Dot") }

// Clone implements graph.Operator.
func (op *Dot) Clone() graph.Operator { return &Dot{ReductionAxesCount: op.ReductionAxesCount} }

// Attributes implements graph.Attributer.
func (op *Dot) Attributes() map[string]any {
	return map[string]any{"reduction_axes_count": op.ReductionAxesCount}
}

// Infer implements graph.Operator.
func (op *Dot) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 2, 2); err != nil {
		return nil, err
	}
	elementType, err := mergeNumeric("Dot", inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	n := op.ReductionAxesCount
	if n < 0 {
		return nil, errors.Errorf("Dot reduction axes count must be non-negative, got %d", n)
	}
	a, b := inputs[0].Shape(), inputs[1].Shape()
	if a.RankIsDynamic() || b.RankIsDynamic() {
		return single(elementType, shapes.DynamicRank()), nil
	}
	if a.Rank() < n || b.Rank() < n {
		return nil, errors.Errorf("Dot reduction axes count (%d) is larger than the rank of %s or %s", n, a, b)
	}
	aDims, bDims := a.Dimensions(), b.Dimensions()
	for i := range n {
		aDim, bDim := aDims[len(aDims)-n+i], bDims[i]
		if _, ok := mergeDims(aDim, bDim); !ok {
			return nil, errors.Errorf("Dot paired axes of %s and %s do not match (%d != %d)", a, b, aDim, bDim)
		}
	}
	dims := append(aDims[:len(aDims)-n:len(aDims)-n], bDims[n:]...)
	return single(elementType, shapes.Make(dims...)), nil
}

// MatMul v0 is the numpy style matrix multiplication, with batch axes broadcast. 1-D operands
// are promoted to matrices and the added axis removed from the output.
type MatMul struct {
	TransposeA, TransposeB bool
}

// TypeInfo implements graph.Operator.
func (op *MatMul) TypeInfo() graph.TypeInfo { return v0("MatMul") }

// Clone implements graph.Operator.
func (op *MatMul) Clone() graph.Operator { return &MatMul{TransposeA: op.TransposeA, TransposeB: op.TransposeB} }

// Attributes implements graph.Attributer.
func (op *MatMul) Attributes() map[string]any {
	return map[string]any{"transpose_a": op.TransposeA, "transpose_b": op.TransposeB}
}

// Infer implements graph.Operator.
func (op *MatMul) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 2, 2); err != nil {
		return nil, err
	}
	elementType, err := mergeNumeric("MatMul", inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	a, b := inputs[0].Shape(), inputs[1].Shape()
	if a.RankIsDynamic() || b.RankIsDynamic() {
		return single(elementType, shapes.DynamicRank()), nil
	}
	if a.IsScalar() || b.IsScalar() {
		return nil, errors.Errorf("MatMul operands cannot be scalars, got %s and %s", a, b)
	}
	aDims, bDims := a.Dimensions(), b.Dimensions()
	aVector, bVector := len(aDims) == 1, len(bDims) == 1
	if aVector {
		aDims = []int{1, aDims[0]}
	} else if op.TransposeA {
		aDims[len(aDims)-2], aDims[len(aDims)-1] = aDims[len(aDims)-1], aDims[len(aDims)-2]
	}
	if bVector {
		bDims = []int{bDims[0], 1}
	} else if op.TransposeB {
		bDims[len(bDims)-2], bDims[len(bDims)-1] = bDims[len(bDims)-1], bDims[len(bDims)-2]
	}
	rows, k := aDims[len(aDims)-2], aDims[len(aDims)-1]
	kb, cols := bDims[len(bDims)-2], bDims[len(bDims)-1]
	if _, ok := mergeDims(k, kb); !ok {
		return nil, errors.Errorf("MatMul contracting dimensions of %s and %s do not match (%d != %d)", a, b, k, kb)
	}
	batch, ok := shapes.BroadcastMerge(shapes.Make(aDims[:len(aDims)-2]...), shapes.Make(bDims[:len(bDims)-2]...))
	if !ok {
		return nil, errors.Errorf("MatMul batch axes of %s and %s cannot be broadcast", a, b)
	}
	dims := batch.Dimensions()
	if !aVector {
		dims = append(dims, rows)
	}
	if !bVector {
		dims = append(dims, cols)
	}
	return single(elementType, shapes.Make(dims...)), nil
}
