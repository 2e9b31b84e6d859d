// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package specialize creates specialized clones of a graph: the element types and shapes of the parameters are
// narrowed, and constant values may be substituted for some of them.
//
// For instance, for a graph with parameters of shapes
//
//	param0: ?
//	param1: {1,?,3}
//	param2: {?,?,4}
//
// the shapes {1,2}, {1,5,3} and {3,?,4} are a valid specialization, while for param1 the shapes {1,5,3,4}
// (rank doesn't match), {2,?,3} (2 doesn't match 1) and {?,?,3} (relaxes the first axis) are not.
// A dynamic element type can be specialized to any static type, a static one only to itself.
//
// Requests are checked before anything is cloned, failures are returned as *CheckFailure. Nodes are re-validated
// as they are cloned, which may still fail with a *graph.NodeValidationError: e.g. an Add whose operands were
// narrowed to {1,2,3} and {4,5,6}.
package specialize

import (
	"github.com/gomlx/exceptions"
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/gp1322719830/ngraph/pkg/passes/constfold"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Specialize returns a specialized clone of g, without constant folding and without sharing constant data.
//
// elementTypes, parameterShapes and values must have one entry per parameter of g. values[i] is the raw
// little-endian buffer (see element.Encode) to substitute for parameter i, or nil for no substitution.
// A substituted parameter is kept, narrowed, in the clone's parameter list, but it has no users.
func Specialize(g *graph.Graph, elementTypes []element.Type, parameterShapes []shapes.PartialShape,
	values [][]byte) (*graph.Graph, error) {
	return SpecializeWith(g, elementTypes, parameterShapes, values, false, false)
}

// SpecializeWith is like Specialize, with options:
//
//   - constantFolding: fold the constants of the clone, see constfold.Fold.
//   - shareConstants: constants of the clone alias the buffers in values and the data of the constants of g,
//     instead of holding copies. The caller must not modify the buffers afterward.
func SpecializeWith(g *graph.Graph, elementTypes []element.Type, parameterShapes []shapes.PartialShape,
	values [][]byte, constantFolding, shareConstants bool) (*graph.Graph, error) {
	if err := check(g, elementTypes, parameterShapes, values); err != nil {
		return nil, err
	}
	klog.V(1).Infof("specializing graph %q (%d parameters, folding=%v, sharing=%v)",
		g.Name(), g.NumParameters(), constantFolding, shareConstants)

	parameterIndex := make(map[*graph.Node]int, g.NumParameters())
	for i, parameter := range g.Parameters() {
		parameterIndex[parameter] = i
	}
	var specialized *graph.Graph
	var err error
	// Operators may panic while re-validating, those panics are returned as errors.
	panicked := exceptions.TryCatch[error](func() {
		specialized, err = graph.NewRewriter(g, g.Name()).Rewrite(func(r *graph.Rewriter, node *graph.Node) (bool, error) {
			switch op := node.Operator().(type) {
			case *graph.Parameter:
				i := parameterIndex[node]
				return true, specializeParameter(r, node, elementTypes[i], parameterShapes[i], values[i], shareConstants)
			case *graph.Constant:
				if shareConstants {
					return false, nil
				}
				_, err := r.AddNode(node, op.Copy())
				return true, err
			}
			return false, nil
		})
	})
	if panicked != nil {
		err = panicked
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "specializing graph %q", g.Name())
	}

	if constantFolding {
		var numFolded int
		specialized, numFolded, err = constfold.Fold(specialized)
		if err != nil {
			return nil, errors.WithMessagef(err, "specializing graph %q", g.Name())
		}
		klog.V(1).Infof("specialized graph %q: %d nodes folded", g.Name(), numFolded)
	}
	return specialized, nil
}

// check validates the request, before any node is cloned.
func check(g *graph.Graph, elementTypes []element.Type, parameterShapes []shapes.PartialShape, values [][]byte) error {
	numParameters := g.NumParameters()
	if len(elementTypes) != numParameters || len(parameterShapes) != numParameters || len(values) != numParameters {
		return newCheckFailure(-1, ErrArityMismatch,
			"graph %q has %d parameters, got %d element types, %d shapes and %d values",
			g.Name(), numParameters, len(elementTypes), len(parameterShapes), len(values))
	}
	for i, parameter := range g.Parameters() {
		original := parameter.OutputTensor(0)
		requestedShape, requestedType := parameterShapes[i], elementTypes[i]
		if !requestedShape.Refines(original.Shape()) {
			return newCheckFailure(i, ErrShapeMismatch, "requested shape %s doesn't refine parameter shape %s",
				requestedShape, original.Shape())
		}
		if !requestedType.IsValid() || requestedType == element.Undefined ||
			(original.ElementType().IsStatic() && requestedType != original.ElementType()) {
			return newCheckFailure(i, ErrTypeMismatch, "requested element type %s for parameter of element type %s",
				requestedType, original.ElementType())
		}
		if values[i] == nil {
			continue
		}
		if !requestedType.IsStatic() || !requestedShape.IsStatic() {
			return newCheckFailure(i, ErrNonStaticConstant, "value given for requested type %s%s",
				requestedType, requestedShape)
		}
		if want := requestedType.ByteSize(requestedShape.Size()); len(values[i]) != want {
			return newCheckFailure(i, ErrValueSize, "%s%s requires %d bytes, got %d",
				requestedType, requestedShape, want, len(values[i]))
		}
	}
	return nil
}

// specializeParameter adds the narrowed parameter to the clone, and maps its uses to it, or to the constant
// holding value if not nil.
func specializeParameter(r *graph.Rewriter, node *graph.Node, elementType element.Type, shape shapes.PartialShape,
	value []byte, share bool) error {
	parameter, err := r.Target().Parameter(elementType, shape)
	if err != nil {
		return err
	}
	if value == nil {
		r.Set(node.OutputTensor(0), parameter.Output(0))
		return nil
	}
	constant, err := graph.NewConstant(elementType, shape, value, share)
	if err != nil {
		return err
	}
	constantNode, err := r.Target().AddNode(constant)
	if err != nil {
		return err
	}
	r.Set(node.OutputTensor(0), constantNode.Output(0))
	klog.V(2).Infof("specialize: parameter %s replaced by %s", node.Name(), constantNode)
	return nil
}
