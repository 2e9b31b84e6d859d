// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package specialize

import (
	"testing"

	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/ops"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/gp1322719830/ngraph/pkg/dialect"
	"github.com/gp1322719830/ngraph/pkg/lowering"
	"github.com/gp1322719830/ngraph/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shape(text string) shapes.PartialShape { return must.M1(shapes.Parse(text)) }

func param(g *graph.Graph, et element.Type, text string) graph.Output {
	return ops.Must(g.Parameter(et, shape(text)))
}

// checkFailure asserts err is a *CheckFailure of the given kind and parameter.
func checkFailure(t *testing.T, err error, kind error, parameter int) {
	t.Helper()
	require.ErrorIs(t, err, kind)
	var failure *CheckFailure
	require.True(t, errors.As(err, &failure), "expected a *CheckFailure, got %T: %v", err, err)
	assert.Equal(t, parameter, failure.Parameter)
}

// relu builds a graph with one parameter and a Relu of it.
func relu(et element.Type, text string) *graph.Graph {
	g := graph.New("relu")
	x := param(g, et, text)
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Relu{}, x))))
	return g
}

func TestRefinement(t *testing.T) {
	g := relu(element.F32, "{5,?}")
	specialized, err := Specialize(g, []element.Type{element.F32}, []shapes.PartialShape{shape("{5,3}")}, [][]byte{nil})
	require.NoError(t, err)
	assert.Equal(t, "f32{5,3}", specialized.Parameters()[0].OutputTensor(0).Type())
	assert.Equal(t, "f32{5,3}", specialized.Results()[0].InputTensor(0).Type())
	assert.NotEqual(t, g.ID(), specialized.ID())
	assert.Equal(t, "f32{5,?}", g.Parameters()[0].OutputTensor(0).Type(), "source graph must not change")

	_, err = Specialize(g, []element.Type{element.F32}, []shapes.PartialShape{shape("{6,3}")}, [][]byte{nil})
	checkFailure(t, err, ErrShapeMismatch, 0)
	assert.ErrorContains(t, err, "{6,3}")
	assert.ErrorContains(t, err, "{5,?}")

	// Relaxing is not refining.
	_, err = Specialize(g, []element.Type{element.F32}, []shapes.PartialShape{shape("{?,?}")}, [][]byte{nil})
	checkFailure(t, err, ErrShapeMismatch, 0)

	// Dynamic rank refines to anything.
	specialized = must.M1(Specialize(relu(element.F32, "?"), []element.Type{element.F32},
		[]shapes.PartialShape{shape("{1,2}")}, [][]byte{nil}))
	assert.Equal(t, "f32{1,2}", specialized.Results()[0].InputTensor(0).Type())
}

func TestElementTypeNarrowing(t *testing.T) {
	request := []shapes.PartialShape{shape("{2}")}
	_, err := Specialize(relu(element.F32, "{2}"), []element.Type{element.F64}, request, [][]byte{nil})
	checkFailure(t, err, ErrTypeMismatch, 0)

	specialized, err := Specialize(relu(element.Dynamic, "{2}"), []element.Type{element.F32}, request, [][]byte{nil})
	require.NoError(t, err)
	assert.Equal(t, "f32{2}", specialized.Results()[0].InputTensor(0).Type())

	// Dynamic can stay dynamic.
	specialized, err = Specialize(relu(element.Dynamic, "{2}"), []element.Type{element.Dynamic}, request, [][]byte{nil})
	require.NoError(t, err)
	assert.Equal(t, element.Dynamic, specialized.Results()[0].InputTensor(0).ElementType())

	_, err = Specialize(relu(element.Dynamic, "{2}"), []element.Type{element.Undefined}, request, [][]byte{nil})
	checkFailure(t, err, ErrTypeMismatch, 0)
}

func TestArity(t *testing.T) {
	g := relu(element.F32, "{2}")
	_, err := Specialize(g, nil, []shapes.PartialShape{shape("{2}")}, [][]byte{nil})
	checkFailure(t, err, ErrArityMismatch, -1)
	_, err = Specialize(g, []element.Type{element.F32}, []shapes.PartialShape{shape("{2}")}, nil)
	checkFailure(t, err, ErrArityMismatch, -1)
}

func TestRankMismatch(t *testing.T) {
	g := graph.New("rank")
	x := param(g, element.F32, "{1,?,3}")
	y := param(g, element.F32, "{?}")
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Exp{}, x))))
	must.M1(g.AddResult(y))
	numNodes := g.NumNodes()

	_, err := Specialize(g, []element.Type{element.F32, element.F32},
		[]shapes.PartialShape{shape("{1,5,3,4}"), shape("{2}")}, [][]byte{nil, nil})
	checkFailure(t, err, ErrShapeMismatch, 0)
	var validation *graph.NodeValidationError
	assert.False(t, errors.As(err, &validation), "must fail before cloning")
	assert.Equal(t, numNodes, g.NumNodes())
}

func TestConstantSubstitution(t *testing.T) {
	g := graph.New("substitution")
	x := param(g, element.F32, "{?,4}")
	scale := param(g, element.F32, "{}")
	r := ops.Must(g.AddNode(&ops.Relu{}, x))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.MultiplyV1{}, r, scale))))

	flat := xslices.Iota(float32(-10), 28)
	_, value, err := element.Encode(flat)
	require.NoError(t, err)

	for _, share := range []bool{false, true} {
		specialized, err := SpecializeWith(g, []element.Type{element.F32, element.F32},
			[]shapes.PartialShape{shape("{7,4}"), shape("{}")}, [][]byte{value, nil}, false, share)
		require.NoError(t, err)

		// The parameter is kept, narrowed, without users.
		require.Len(t, specialized.Parameters(), 2)
		substituted := specialized.Parameters()[0]
		assert.Equal(t, "f32{7,4}", substituted.OutputTensor(0).Type())
		assert.Empty(t, specialized.Users(substituted.OutputTensor(0)))

		var reluNode *graph.Node
		for _, node := range specialized.OrderedNodes() {
			if _, ok := node.Operator().(*ops.Relu); ok {
				reluNode = node
			}
		}
		require.NotNil(t, reluNode)
		constant, ok := reluNode.Input(0).Node.Operator().(*graph.Constant)
		require.True(t, ok, "Relu input should be a constant, got %s", reluNode.Input(0).Node)
		assert.Equal(t, value, constant.Data())
		assert.Equal(t, share, &constant.Data()[0] == &value[0], "share=%v", share)
		assert.Equal(t, "f32{7,4}", specialized.Results()[0].InputTensor(0).Type())
	}
}

func TestValueChecks(t *testing.T) {
	g := graph.New("values")
	x := param(g, element.I32, "{2}")
	y := param(g, element.I32, "{?,4}")
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Negative{}, x))))
	must.M1(g.AddResult(y))
	types := []element.Type{element.I32, element.I32}

	// Value for a non-static shape.
	_, err := Specialize(g, types, []shapes.PartialShape{shape("{2}"), shape("{?,4}")},
		[][]byte{nil, make([]byte, 16)})
	checkFailure(t, err, ErrNonStaticConstant, 1)

	// Wrong buffer size.
	_, err = Specialize(g, types, []shapes.PartialShape{shape("{2}"), shape("{3,4}")},
		[][]byte{make([]byte, 7), nil})
	checkFailure(t, err, ErrValueSize, 0)
}

func TestRevalidation(t *testing.T) {
	g := graph.New("revalidation")
	n := param(g, element.F32, "?")
	m := param(g, element.F32, "?")
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Add{}, n, m))))

	_, err := Specialize(g, []element.Type{element.F32, element.F32},
		[]shapes.PartialShape{shape("{1,2,3}"), shape("{4,5,6}")}, [][]byte{nil, nil})
	require.Error(t, err)
	var validation *graph.NodeValidationError
	require.True(t, errors.As(err, &validation), "expected a *graph.NodeValidationError, got %v", err)
	assert.Equal(t, "Add", validation.TypeInfo.Name)
	var failure *CheckFailure
	assert.False(t, errors.As(err, &failure))
}

func TestSharedConstants(t *testing.T) {
	g := graph.New("constants")
	x := param(g, element.F32, "{?}")
	c := ops.Must(g.Constant([]float32{1, 2, 3}))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Add{}, x, c))))
	original := c.Node.Operator().(*graph.Constant)

	for _, share := range []bool{false, true} {
		specialized := must.M1(SpecializeWith(g, []element.Type{element.F32}, []shapes.PartialShape{shape("{3}")},
			[][]byte{nil}, false, share))
		var clone *graph.Constant
		for _, node := range specialized.OrderedNodes() {
			if constant, ok := node.Operator().(*graph.Constant); ok {
				clone = constant
			}
		}
		require.NotNil(t, clone)
		assert.Equal(t, original.Data(), clone.Data())
		assert.Equal(t, share, clone.SharesData(original), "share=%v", share)
	}
}

func TestConstantFolding(t *testing.T) {
	g := graph.New("folding")
	x := param(g, element.F32, "{?}")
	y := param(g, element.F32, "{?}")
	sum := ops.Must(g.AddNode(&ops.Add{}, x, ops.Must(g.Constant([]float32{10, 20}))))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Multiply{}, sum, y))))

	_, value, err := element.Encode([]float32{1, 2})
	require.NoError(t, err)
	request := []shapes.PartialShape{shape("{2}"), shape("{2}")}
	types := []element.Type{element.F32, element.F32}

	unfolded := must.M1(Specialize(g, types, request, [][]byte{value, nil}))
	folded := must.M1(SpecializeWith(g, types, request, [][]byte{value, nil}, true, false))
	assert.Less(t, folded.NumNodes(), unfolded.NumNodes())
	require.Len(t, folded.Parameters(), 2)

	var values []float64
	for _, node := range folded.OrderedNodes() {
		if constant, ok := node.Operator().(*graph.Constant); ok {
			values = must.M1(constant.Float64s())
		}
	}
	assert.Equal(t, []float64{11, 22}, values)

	// The specialized graph can be lowered.
	fn := must.M1(lowering.Convert(folded, dialect.NewContext()))
	assert.Equal(t, 2, fn.NumArguments())
	var names []string
	for _, op := range fn.Operations() {
		names = append(names, op.Name())
	}
	assert.Equal(t, []string{"ng.constant", "ng.multiply", dialect.ReturnOpName}, names)
}
