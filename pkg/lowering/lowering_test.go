// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lowering

import (
	"testing"

	"github.com/gp1322719830/ngraph/backends"
	"github.com/gp1322719830/ngraph/backends/local"
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/ops"
	"github.com/gp1322719830/ngraph/pkg/core/opset"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/gp1322719830/ngraph/pkg/dialect"
	"github.com/gp1322719830/ngraph/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func param(g *graph.Graph, et element.Type, shape string) graph.Output {
	return ops.Must(g.Parameter(et, must.M1(shapes.Parse(shape))))
}

func result(g *graph.Graph, output graph.Output) {
	must.M1(g.AddResult(output))
}

// customOp is an identity operator that is not part of the catalog.
type customOp struct{}

func (customOp) TypeInfo() graph.TypeInfo { return graph.TypeInfo{Name: "Custom", Version: 7} }
func (customOp) Clone() graph.Operator { return customOp{} }
func (customOp) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	return []graph.TensorSpec{{ElementType: inputs[0].ElementType(), Shape: inputs[0].Shape()}}, nil
}

// opNames lists the names of the operations of fn, including the terminator.
func opNames(fn *dialect.Function) []string {
	return xslices.Map(fn.Operations(), (*dialect.Operation).Name)
}

func TestElementType(t *testing.T) {
	for et, want := range map[element.Type]string{
		element.Boolean: "u8", element.U8: "u8", element.I8: "i8", element.I16: "i16", element.U16: "u16",
		element.I32: "i32", element.U32: "u32", element.I64: "i64", element.U64: "u64",
		element.BF16: "bf16", element.F16: "f16", element.F32: "f32", element.F64: "f64",
	} {
		dt, err := ElementType(et)
		require.NoError(t, err, "element type %s", et)
		assert.Equal(t, want, dt.String(), "element type %s", et)
	}
	for _, et := range []element.Type{element.Undefined, element.Dynamic, element.U1} {
		_, err := ElementType(et)
		require.ErrorIs(t, err, ErrUnsupportedType, "element type %s", et)
	}
}

func TestValueMap(t *testing.T) {
	g := graph.New("values")
	x := param(g, element.F32, "{2}")
	y := param(g, element.F32, "{2}")
	tt := dialect.TensorType{Element: dialect.FloatType{Kind: dialect.F32}, Dims: []int{2}}
	fn := dialect.NewFunction("fn", []dialect.TensorType{tt}, nil)

	m := NewValueMap()
	assert.False(t, m.IsBound(x.Tensor()))
	m.Bind(x.Tensor(), fn.Argument(0))
	assert.True(t, m.IsBound(x.Tensor()))
	assert.Same(t, fn.Argument(0), m.Lookup(x.Tensor()))
	assert.Equal(t, 1, m.Len())

	// Single binding.
	require.PanicsWithError(t, "tensor value already defined: "+x.Tensor().String(), func() {
		m.Bind(x.Tensor(), fn.Argument(0))
	})
	require.Panics(t, func() { m.Lookup(y.Tensor()) })
	assert.Equal(t, 1, m.Len())
}

func TestIdentity(t *testing.T) {
	g := graph.New("identity")
	x := param(g, element.F32, "{2,3}")
	result(g, x)

	ctx := dialect.NewContext()
	fn := must.M1(Convert(g, ctx))
	assert.Equal(t, DefaultFunctionName, fn.Name())
	require.Equal(t, 1, fn.NumArguments())
	require.Len(t, fn.ResultTypes(), 1)
	assert.Equal(t, "!ng.tensor<2x3xf32>", fn.Argument(0).Type().String())
	assert.Equal(t, []string{dialect.ReturnOpName}, opNames(fn))
	assert.Equal(t, []*dialect.Value{fn.Argument(0)}, fn.Terminator().Operands())
	got, found := ctx.Lookup(DefaultFunctionName)
	require.True(t, found)
	assert.Same(t, fn, got)
}

func TestElementwiseAdd(t *testing.T) {
	g := graph.New("add")
	x := param(g, element.F32, "{4}")
	y := param(g, element.F32, "{4}")
	sum := ops.Must(g.AddNode(&ops.Add{}, x, y))
	result(g, sum)

	fn := must.M1(Convert(g, dialect.NewContext(), WithFunctionName("add")))
	require.Equal(t, []string{"ng.add", dialect.ReturnOpName}, opNames(fn))
	add := fn.Operations()[0]
	assert.Equal(t, []*dialect.Value{fn.Argument(0), fn.Argument(1)}, add.Operands())
	require.Equal(t, 1, add.NumResults())
	assert.Equal(t, "!ng.tensor<4xf32>", add.Result(0).Type().String())
	broadcast, _ := add.Attribute("auto_broadcast")
	assert.Equal(t, "none", broadcast)
	assert.Same(t, add.Result(0), fn.Terminator().Operands()[0])
	require.NoError(t, fn.Verify())
}

func TestSignature(t *testing.T) {
	g := graph.New("signature")
	a := param(g, element.I32, "{3}")
	b := param(g, element.Boolean, "{}")
	c := param(g, element.F16, "{2,2}")
	result(g, c)
	result(g, ops.Must(g.AddNode(&ops.Negative{}, a)))
	result(g, b)

	fn := must.M1(Convert(g, dialect.NewContext()))
	require.Equal(t, g.NumParameters(), fn.NumArguments())
	require.Equal(t, len(g.Results()), len(fn.ResultTypes()))
	var args, results []string
	for _, arg := range fn.Arguments() {
		args = append(args, arg.Type().String())
	}
	for _, rt := range fn.ResultTypes() {
		results = append(results, rt.String())
	}
	assert.Equal(t, []string{"!ng.tensor<3xi32>", "!ng.tensor<u8>", "!ng.tensor<2x2xf16>"}, args)
	assert.Equal(t, []string{"!ng.tensor<2x2xf16>", "!ng.tensor<3xi32>", "!ng.tensor<u8>"}, results)
}

func TestIdempotence(t *testing.T) {
	g := graph.New("twice")
	x := param(g, element.F32, "{2,6}")
	w := param(g, element.F32, "{6,3}")
	mm := ops.Must(g.AddNode(&ops.MatMul{}, x, w))
	relu := ops.Must(g.AddNode(&ops.Relu{}, mm))
	parts := must.M1(g.AddNode(&ops.Split{Axis: 1, NumSplits: 3}, relu))
	result(g, parts.Output(2))
	result(g, ops.Must(g.AddNode(&ops.ReduceSum{Axes: []int{1}}, relu)))

	ctx := dialect.NewContext()
	fn1 := must.M1(Convert(g, ctx, WithFunctionName("first")))
	fn2 := must.M1(Convert(g, ctx, WithFunctionName("second")))
	assert.Equal(t, opNames(fn1), opNames(fn2))
	assert.Equal(t, []string{"ng.mat_mul", "ng.relu", "ng.split", "ng.reduce_sum", dialect.ReturnOpName}, opNames(fn1))
	assert.Equal(t, fn1.ResultTypes(), fn2.ResultTypes())
	assert.Equal(t, 3, fn1.Operations()[2].NumResults())
	assert.Len(t, ctx.Functions(), 2)

	// The same name can't be used twice.
	_, err := Convert(g, ctx, WithFunctionName("first"))
	require.Error(t, err)
}

func TestUnsupportedOperation(t *testing.T) {
	g := graph.New("custom")
	x := param(g, element.F32, "{4}")
	y := ops.Must(g.AddNode(&ops.Exp{}, x))
	result(g, ops.Must(g.AddNode(customOp{}, y)))

	ctx := dialect.NewContext()
	fn, err := Convert(g, ctx)
	require.ErrorIs(t, err, ErrUnsupportedOp)
	assert.ErrorContains(t, err, `"Custom"`)
	assert.Nil(t, fn)
	assert.Empty(t, ctx.Functions())

	// Known operator, but removed from the table.
	g = graph.New("add")
	x = param(g, element.F32, "{4}")
	result(g, ops.Must(g.AddNode(&ops.AddV1{}, x, x)))
	addID := opset.IdentifyOperator(&ops.AddV1{})
	_, err = Convert(g, ctx, WithRules(DefaultRules().Without(addID)))
	require.ErrorIs(t, err, ErrUnsupportedOp)
	assert.ErrorContains(t, err, "Add_v1")
	assert.Empty(t, ctx.Functions())

	// The default table is not affected.
	_, found := DefaultRules().Lookup(addID)
	assert.True(t, found)
	must.M1(Convert(g, ctx))
}

func TestUnsupportedTypes(t *testing.T) {
	ctx := dialect.NewContext()
	for _, tc := range []struct {
		et    element.Type
		shape string
	}{
		{element.F32, "{?,3}"},
		{element.F32, "?"},
		{element.Dynamic, "{3}"},
		{element.U1, "{8}"},
	} {
		g := graph.New("unsupported")
		x := param(g, tc.et, tc.shape)
		result(g, x)
		_, err := Convert(g, ctx)
		require.ErrorIs(t, err, ErrUnsupportedType, "%s%s", tc.et, tc.shape)
	}
	assert.Empty(t, ctx.Functions())
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	assert.Same(t, rules, DefaultRules())
	assert.Equal(t, opset.NumOpTypes()-2, rules.Len())
	for _, op := range []graph.Operator{&graph.Parameter{}, &graph.Result{}} {
		_, found := rules.Lookup(opset.IdentifyOperator(op))
		assert.False(t, found, "%s", op.TypeInfo())
	}
	_, found := rules.Lookup(opset.Unknown)
	assert.False(t, found)
	assert.Len(t, rules.OpTypes(), rules.Len())

	id := opset.IdentifyOperator(&ops.Exp{})
	custom := rules.With(id, GenericRule("ng.my_exp"))
	assert.Equal(t, rules.Len(), custom.Len())
	g := graph.New("exp")
	x := param(g, element.F64, "{}")
	result(g, ops.Must(g.AddNode(&ops.Exp{}, x)))
	fn := must.M1(Convert(g, dialect.NewContext(), WithRules(custom)))
	assert.Equal(t, "ng.my_exp", fn.Operations()[0].Name())
	fn = must.M1(Convert(g, dialect.NewContext()))
	assert.Equal(t, "ng.exp", fn.Operations()[0].Name())

	assert.Equal(t, "ng.embedding_bag_offsets_sum", OpName(graph.TypeInfo{Name: "EmbeddingBagOffsetsSum", Version: 3}))
	assert.Equal(t, "ng.atan2", OpName(graph.TypeInfo{Name: "Atan2"}))
	assert.Equal(t, "ng.greater_eq", OpName(graph.TypeInfo{Name: "GreaterEq"}))
}

func TestSpecializedRules(t *testing.T) {
	g := graph.New("special")
	x := param(g, element.F32, "{3}")
	c := ops.Must(g.Constant([]float32{1, 2, 3}, 3))
	stopped := ops.Must(g.AddNode(&ops.StopGradient{}, x))
	sum := ops.Must(g.AddNode(&ops.Add{}, stopped, c))
	mask := ops.Must(g.AddNode(&ops.Convert{DestinationType: element.Boolean}, sum))
	result(g, mask)
	result(g, stopped)

	fn := must.M1(Convert(g, dialect.NewContext()))
	require.Equal(t, []string{"ng.constant", "ng.add", "ng.convert", dialect.ReturnOpName}, opNames(fn))
	constant := fn.Operations()[0]
	value, found := constant.Attribute("value")
	require.True(t, found)
	assert.Len(t, value, 12)
	assert.Empty(t, constant.Operands())

	// StopGradient is an alias of its input.
	add := fn.Operations()[1]
	assert.Same(t, fn.Argument(0), add.Operands()[0])
	assert.Same(t, fn.Argument(0), fn.Terminator().Operands()[1])

	convert := fn.Operations()[2]
	destination, _ := convert.Attribute("destination_type")
	assert.Equal(t, "u8", destination)
	assert.Equal(t, "!ng.tensor<3xu8>", convert.Result(0).Type().String())
}

func TestRuleContract(t *testing.T) {
	g := graph.New("contract")
	x := param(g, element.F32, "{2}")
	result(g, ops.Must(g.AddNode(&ops.Abs{}, x)))
	id := opset.IdentifyOperator(&ops.Abs{})

	noOp := DefaultRules().With(id, func(*Converter, *graph.Node) (Lowered, error) { return Emitted(nil), nil })
	require.Panics(t, func() { _, _ = Convert(g, dialect.NewContext(), WithRules(noOp)) })

	unbound := DefaultRules().With(id, func(*Converter, *graph.Node) (Lowered, error) { return AlreadyBound(), nil })
	require.Panics(t, func() { _, _ = Convert(g, dialect.NewContext(), WithRules(unbound)) })

	failing := DefaultRules().With(id, func(*Converter, *graph.Node) (Lowered, error) {
		return Lowered{}, errors.New("rule failed")
	})
	ctx := dialect.NewContext()
	_, err := Convert(g, ctx, WithRules(failing))
	require.ErrorContains(t, err, "rule failed")
	assert.Empty(t, ctx.Functions())
}

func TestAllReduce(t *testing.T) {
	g := graph.New("all_reduce")
	x := param(g, element.F32, "{3}")
	reduced := ops.Must(g.AddNode(&ops.AllReduce{}, x))
	result(g, ops.Must(g.AddNode(&ops.MultiplyV1{}, reduced, ops.Must(g.ScalarConstant(float32(2))))))

	// Without an external function only the dialect operation is emitted.
	fn := must.M1(Convert(g, dialect.NewContext()))
	assert.Contains(t, opNames(fn), "ng.all_reduce")

	external := backends.NewExternalFunction("main")
	fn = must.M1(Convert(g, dialect.NewContext(), WithExternalFunction(external)))
	require.Equal(t, 1, external.NumFunctors())
	allReduce := fn.Operations()[0]
	require.Equal(t, "ng.all_reduce", allReduce.Name())

	backend := local.NewBackend(2)
	defer backend.Finalize()
	outputs := make([]*backends.Buffer, 2)
	err := backend.Run(func(d backends.Distributed) error {
		ctx := backends.NewRuntimeContext(d)
		v := float32(d.Rank() + 1)
		ctx.Bind(fn.Argument(0), must.M1(backends.BufferFromFlat([]float32{v, 2 * v, 3 * v}, 3)))
		if err := external.Run(ctx); err != nil {
			return err
		}
		var err error
		outputs[d.Rank()], err = ctx.Buffer(allReduce.Result(0))
		return err
	})
	require.NoError(t, err)
	for _, out := range outputs {
		assert.Equal(t, []float32{3, 6, 9}, must.M1(out.Flat()))
	}

	// Functors are not queued when the conversion fails.
	g2 := graph.New("fails")
	y := param(g2, element.F32, "{3}")
	result(g2, ops.Must(g2.AddNode(customOp{}, ops.Must(g2.AddNode(&ops.AllReduce{}, y)))))
	_, err = Convert(g2, dialect.NewContext(), WithExternalFunction(external))
	require.ErrorIs(t, err, ErrUnsupportedOp)
	assert.Equal(t, 1, external.NumFunctors())
}
