// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops is the operator catalog: each operator kind is a Go type implementing
// graph.Operator, with its attributes as exported fields.
//
// Operators are versioned: an operator whose semantics changed across operator sets has one Go
// type per version (e.g. Add and AddV1), and each is identified separately (see package opset).
//
// Shape inference is aware of dynamic element types, dimensions and ranks: it propagates what
// can be known and reports an error only when the inputs are certainly incompatible.
//
// To build graphs by hand, use graph.Graph.AddNode with Must:
//
//	g := graph.New("fn")
//	x := ops.Must(g.Parameter(element.F32, shapes.Make(2, 3)))
//	y := ops.Must(g.AddNode(&ops.Exp{}, x))
//	ops.Must(g.AddResult(y))
package ops

import (
	"github.com/gomlx/exceptions"
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Must returns the first output of node, and panics with the error if err is not nil.
//
// It is a convenience for building graphs: use exceptions.TryCatch to convert the panic back
// to an error.
func Must(node *graph.Node, err error) graph.Output {
	if err != nil {
		exceptions.Panicf("failed to build graph: %+v", err)
	}
	return node.Output(0)
}

// checkArity returns an error if the number of inputs is not in the range [minInputs, maxInputs].
func checkArity(inputs []*graph.Tensor, minInputs, maxInputs int) error {
	if len(inputs) < minInputs || len(inputs) > maxInputs {
		if minInputs == maxInputs {
			return errors.Errorf("expected %d inputs, got %d", minInputs, len(inputs))
		}
		return errors.Errorf("expected between %d and %d inputs, got %d", minInputs, maxInputs, len(inputs))
	}
	return nil
}

// single returns the spec of an operator with one output.
func single(elementType element.Type, shape shapes.PartialShape) []graph.TensorSpec {
	return []graph.TensorSpec{{ElementType: elementType, Shape: shape}}
}

// normalizeAxis converts a possibly negative axis to the range [0, rank).
func normalizeAxis(axis, rank int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		return 0, errors.Errorf("axis %d out-of-bounds for rank %d", axis, rank)
	}
	return adjusted, nil
}

// normalizeAxes normalizes each axis and checks for repeated ones.
func normalizeAxes(axes []int, rank int) ([]int, error) {
	normalized := make([]int, len(axes))
	seen := make([]bool, rank)
	for i, axis := range axes {
		adjusted, err := normalizeAxis(axis, rank)
		if err != nil {
			return nil, err
		}
		if seen[adjusted] {
			return nil, errors.Errorf("axis %d repeated in %v", axis, axes)
		}
		seen[adjusted] = true
		normalized[i] = adjusted
	}
	return normalized, nil
}

// requireNumber returns an error if the element type is static and not a number.
func requireNumber(what string, elementType element.Type) error {
	if elementType.IsDynamic() || elementType.IsNumber() {
		return nil
	}
	return errors.Errorf("%s must have a numeric element type, got %s", what, elementType)
}

// requireRank returns an error if the shape has a known rank different from rank.
func requireRank(what string, shape shapes.PartialShape, rank int) error {
	if shape.RankIsDynamic() || shape.Rank() == rank {
		return nil
	}
	return errors.Errorf("%s must have rank %d, got shape %s", what, rank, shape)
}

// mergeDims merges two dimensions, either of which may be Dynamic.
func mergeDims(a, b int) (int, bool) {
	switch {
	case a == shapes.Dynamic:
		return b, true
	case b == shapes.Dynamic || a == b:
		return a, true
	}
	return 0, false
}
