// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sameShapeOp is a minimal binary operator requiring equal element types and compatible shapes.
type sameShapeOp struct{}

func (sameShapeOp) TypeInfo() TypeInfo { return TypeInfo{Name: "SameShape", Version: 1} }

func (sameShapeOp) Infer(inputs []*Tensor) ([]TensorSpec, error) {
	if len(inputs) != 2 {
		return nil, errors.Errorf("want 2 inputs, got %d", len(inputs))
	}
	et, ok := inputs[0].ElementType().Merge(inputs[1].ElementType())
	if !ok {
		return nil, errors.Errorf("element types %s and %s differ", inputs[0].ElementType(), inputs[1].ElementType())
	}
	shape, ok := shapes.Merge(inputs[0].Shape(), inputs[1].Shape())
	if !ok {
		return nil, errors.Errorf("shapes %s and %s differ", inputs[0].Shape(), inputs[1].Shape())
	}
	return []TensorSpec{{ElementType: et, Shape: shape}}, nil
}

func (sameShapeOp) Clone() Operator { return sameShapeOp{} }

func TestGraphBuilding(t *testing.T) {
	g := New("fn")
	x := must.M1(g.Parameter(element.F32, shapes.Make(2, shapes.Dynamic)))
	y := must.M1(g.Parameter(element.Dynamic, shapes.Make(shapes.Dynamic, 3)))
	sum := must.M1(g.AddNode(sameShapeOp{}, x.Output(0), y.Output(0)))
	res := must.M1(g.AddResult(sum.Output(0)))

	assert.Equal(t, "fn", g.Name())
	assert.Equal(t, 4, g.NumNodes())
	assert.Equal(t, []*Node{x, y}, g.Parameters())
	assert.Equal(t, []*Node{res}, g.Results())
	assert.Equal(t, "SameShape_2", sum.Name())
	assert.Equal(t, element.F32, sum.OutputTensor(0).ElementType())
	assert.Equal(t, "{2,3}", sum.OutputTensor(0).Shape().String())
	assert.Equal(t, "f32{2,3}", res.OutputTensor(0).Type())
	assert.Equal(t, "SameShape_2:0", sum.Output(0).String())
	assert.Equal(t, []*Node{sum}, g.Users(x.OutputTensor(0)))
	assert.Equal(t, "SameShape_v1", sum.TypeInfo().String())
	assert.Same(t, sum, g.NodeByID(sum.ID()))
	assert.Nil(t, g.NodeByID(10))
	assert.Contains(t, g.String(), "SameShape_2 = SameShape_v1(Parameter_0:0, Parameter_1:0) -> (f32{2,3})")
}

func TestGraphValidation(t *testing.T) {
	g := New("fn")
	x := must.M1(g.Parameter(element.F32, shapes.Make(2)))
	y := must.M1(g.Parameter(element.I32, shapes.Make(2)))
	_, err := g.AddNode(sameShapeOp{}, x.Output(0), y.Output(0))
	require.Error(t, err)
	var validationErr *NodeValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "SameShape_2", validationErr.Node)
	assert.Equal(t, "SameShape", validationErr.TypeInfo.Name)
	assert.Equal(t, 2, g.NumNodes(), "failed node must not be added")

	// Inputs from other graphs and invalid output indices.
	other := New("other")
	z := must.M1(other.Parameter(element.F32, shapes.Make(2)))
	_, err = g.AddNode(sameShapeOp{}, x.Output(0), z.Output(0))
	require.ErrorContains(t, err, "different graph")
	_, err = g.AddNode(sameShapeOp{}, x.Output(0), x.Output(1))
	require.Error(t, err)
	_, err = g.Parameter(element.Undefined, shapes.Scalar())
	require.Error(t, err)
}

func TestConstant(t *testing.T) {
	g := New("fn")
	c := must.M1(g.Constant([]float32{1, 2, 3, 4, 5, 6}, 2, 3))
	op := c.Operator().(*Constant)
	assert.Equal(t, element.F32, op.ElementType())
	assert.Equal(t, "{2,3}", op.Shape().String())
	assert.Len(t, op.Data(), 24)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, must.M1(op.Values()))

	_, err := g.Constant([]float32{1, 2, 3}, 2, 2)
	require.Error(t, err)

	s := must.M1(g.ScalarConstant(int64(7)))
	assert.True(t, s.OutputTensor(0).Shape().IsScalar())
	assert.Equal(t, []int64{7}, must.M1(s.Operator().(*Constant).Int64s()))

	shared := op.Clone().(*Constant)
	assert.True(t, shared.SharesData(op))
	assert.False(t, op.Copy().SharesData(op))

	data := []byte{1, 0, 0, 0}
	aliased := must.M1(NewConstant(element.I32, shapes.Make(1), data, true))
	assert.Equal(t, &data[0], &aliased.Data()[0])
	copied := must.M1(NewConstant(element.I32, shapes.Make(1), data, false))
	assert.NotSame(t, &data[0], &copied.Data()[0])
	_, err = NewConstant(element.I32, shapes.Make(shapes.Dynamic), data, false)
	require.Error(t, err)
	_, err = NewConstant(element.I32, shapes.Make(2), data, false)
	require.Error(t, err)
}

func TestRewriter(t *testing.T) {
	g := New("fn")
	x := must.M1(g.Parameter(element.F32, shapes.Make(shapes.Dynamic)))
	y := must.M1(g.Parameter(element.F32, shapes.Make(shapes.Dynamic)))
	sum := must.M1(g.AddNode(sameShapeOp{}, x.Output(0), y.Output(0)))
	must.M1(g.AddResult(sum.Output(0)))

	clone := must.M1(g.Clone())
	assert.NotEqual(t, g.ID(), clone.ID())
	assert.Equal(t, g.String(), clone.String())

	// Narrow the first parameter: the clone re-infers a static shape.
	narrowed, err := NewRewriter(g, "narrowed").Rewrite(func(r *Rewriter, node *Node) (bool, error) {
		if node != x {
			return false, nil
		}
		_, err := r.AddNode(node, &Parameter{ElementType: element.F32, Shape: shapes.Make(5)})
		return true, err
	})
	require.NoError(t, err)
	assert.Equal(t, "{5}", narrowed.Results()[0].OutputTensor(0).Shape().String())
	assert.Equal(t, "{?}", g.Results()[0].OutputTensor(0).Shape().String(), "source graph must not change")

	// Incompatible narrowing fails re-validation.
	_, err = NewRewriter(g, "bad").Rewrite(func(r *Rewriter, node *Node) (bool, error) {
		if node.Operator().TypeInfo().Name != "Parameter" {
			return false, nil
		}
		_, err := r.AddNode(node, &Parameter{ElementType: element.F32, Shape: shapes.Make(int(node.ID()) + 1)})
		return true, err
	})
	var validationErr *NodeValidationError
	require.True(t, errors.As(err, &validationErr))
}
