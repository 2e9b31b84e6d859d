// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package constfold

import (
	"testing"

	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/ops"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constants returns the constant operators of g, in order.
func constants(g *graph.Graph) []*graph.Constant {
	var found []*graph.Constant
	for _, node := range g.OrderedNodes() {
		if c, ok := node.Operator().(*graph.Constant); ok {
			found = append(found, c)
		}
	}
	return found
}

func TestFold(t *testing.T) {
	g := graph.New("fold")
	x := ops.Must(g.Parameter(element.F32, shapes.Make(3)))
	c1 := ops.Must(g.Constant([]float32{1, 2, 3}))
	c2 := ops.Must(g.ScalarConstant(float32(2)))
	sum := ops.Must(g.AddNode(&ops.AddV1{}, c1, c2))
	neg := ops.Must(g.AddNode(&ops.Negative{}, sum))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Multiply{}, x, neg))))
	numNodes := g.NumNodes()

	folded, count, err := Fold(g)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NotEqual(t, g.ID(), folded.ID())
	assert.Equal(t, numNodes, g.NumNodes(), "source graph must not change")

	// Parameter, folded constant, Multiply and Result.
	assert.Equal(t, 4, folded.NumNodes())
	cs := constants(folded)
	require.Len(t, cs, 1)
	assert.Equal(t, []float64{-3, -4, -5}, must.M1(cs[0].Float64s()))
	assert.Equal(t, element.F32, cs[0].ElementType())
	require.Len(t, folded.Results(), 1)
	assert.Equal(t, "f32{3}", folded.Results()[0].InputTensor(0).Type())
}

func TestFoldComparisonAndConvert(t *testing.T) {
	g := graph.New("compare")
	a := ops.Must(g.Constant([]int32{1, 5, 3}))
	b := ops.Must(g.Constant([]int32{2, 2, 3}))
	less := ops.Must(g.AddNode(&ops.LessEq{}, a, b))
	must.M1(g.AddResult(less))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Convert{DestinationType: element.F64}, a))))

	folded, count, err := Fold(g)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	cs := constants(folded)
	require.Len(t, cs, 2)
	assert.Equal(t, []bool{true, false, true}, must.M1(cs[0].Values()))
	assert.Equal(t, []float64{1, 5, 3}, must.M1(cs[1].Values()))
}

func TestNotFoldable(t *testing.T) {
	g := graph.New("division")
	a := ops.Must(g.Constant([]int32{1}))
	zero := ops.Must(g.Constant([]int32{0}))
	x := ops.Must(g.Parameter(element.I32, shapes.Make(1)))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Divide{}, a, zero))))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Add{}, a, x))))

	folded, count, err := Fold(g)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, g.NumNodes(), folded.NumNodes())
	assert.Len(t, folded.Parameters(), 1)
}

func TestFoldUnsigned64(t *testing.T) {
	g := graph.New("u64")
	a := ops.Must(g.Constant([]uint64{1 << 63, 3}))
	b := ops.Must(g.Constant([]uint64{1, 1 << 63}))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Greater{}, a, b))))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Maximum{}, a, b))))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Divide{}, a, b))))

	folded, count, err := Fold(g)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	cs := constants(folded)
	require.Len(t, cs, 3)
	assert.Equal(t, []bool{true, false}, must.M1(cs[0].Values()))
	assert.Equal(t, []uint64{1 << 63, 1 << 63}, must.M1(cs[1].Values()))
	assert.Equal(t, []uint64{1 << 63, 0}, must.M1(cs[2].Values()))
}

func TestFoldIntegerPower(t *testing.T) {
	g := graph.New("power")
	base := ops.Must(g.Constant([]int64{1, 3, -2}))
	exponent := ops.Must(g.Constant([]int64{1 << 40, 5, 3}))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Power{}, base, exponent))))

	folded, count, err := Fold(g)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	cs := constants(folded)
	require.Len(t, cs, 1)
	assert.Equal(t, []int64{1, 243, -8}, must.M1(cs[0].Values()))

	// Negative integer exponents are not folded.
	g = graph.New("negative_power")
	base = ops.Must(g.Constant([]int32{2}))
	exponent = ops.Must(g.Constant([]int32{-1}))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Power{}, base, exponent))))
	_, count, err = Fold(g)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFoldIntegerUnary(t *testing.T) {
	g := graph.New("unary")
	x := ops.Must(g.Constant([]int64{-(1<<53 + 1), 4}))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Abs{}, x))))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Sign{}, x))))
	must.M1(g.AddResult(ops.Must(g.AddNode(&ops.Sqrt{}, x))))

	folded, count, err := Fold(g)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "Sqrt of integers is not folded")
	cs := constants(folded)
	// x is still used by Sqrt.
	require.Len(t, cs, 3)
	assert.Equal(t, []int64{1<<53 + 1, 4}, must.M1(cs[1].Values()))
	assert.Equal(t, []int64{-1, 1}, must.M1(cs[2].Values()))
}
