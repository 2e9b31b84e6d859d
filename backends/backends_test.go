// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"testing"

	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/dialect"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name, config string
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Description() string { return "fake " + f.config }
func (f *fakeBackend) NumRanks() int { return 1 }
func (f *fakeBackend) Distributed(int) (Distributed, error) { return nil, errors.New("not distributed") }
func (f *fakeBackend) Finalize() {}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"fake1", "fake2"} {
		Register(name, func(config string) Backend { return &fakeBackend{name: name, config: config} })
	}
	assert.Subset(t, List(), []string{"fake1", "fake2"})

	b := NewWithConfig("fake2:some=config")
	assert.Equal(t, "fake2", b.Name())
	assert.Equal(t, "fake some=config", b.Description())
	assert.Equal(t, "fake2", NewWithConfig("fake2").Name())
	require.Panics(t, func() { NewWithConfig("unknown:x") })

	t.Setenv(NGRAPH_BACKEND, "fake1:from_env")
	assert.Equal(t, "fake from_env", New().Description())
}

func TestBuffer(t *testing.T) {
	b := must.M1(BufferFromFlat([]int32{1, 2, 3, 4, 5, 6}, 2, 3))
	assert.Equal(t, element.I32, b.ElementType)
	assert.Equal(t, 6, b.Size())
	assert.Len(t, b.Data, 24)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, must.M1(b.Flat()))
	assert.Equal(t, "Buffer(i32[2 3], 24 B)", b.String())

	c := b.Clone()
	c.Data[0] = 7
	assert.Equal(t, byte(1), b.Data[0])
	assert.True(t, b.SameType(c))
	assert.False(t, b.SameType(NewBuffer(element.I32, 3, 2)))

	_, err := BufferFromFlat([]float32{1, 2}, 3)
	require.Error(t, err)
	assert.Len(t, NewBuffer(element.F64, 2, 2).Data, 32)
}

func TestExternalFunction(t *testing.T) {
	tt := dialect.TensorType{Element: dialect.IntegerType{Width: 32, Signed: true}, Dims: []int{2}}
	fn := dialect.NewFunction("main", []dialect.TensorType{tt}, []dialect.TensorType{tt})
	arg := fn.Argument(0)
	neg := must.M1(fn.Create("ng.neg", []*dialect.Value{arg}, []dialect.TensorType{tt}, nil))

	ef := NewExternalFunction("main")
	assert.Equal(t, "main", ef.Name())
	var order []int
	ef.Enqueue(func(ctx *RuntimeContext) error {
		order = append(order, 0)
		in, err := ctx.Buffer(arg)
		if err != nil {
			return err
		}
		out := ctx.Allocate(neg.Result(0), in.ElementType)
		values := must.M1(in.Flat()).([]int32)
		for i := range values {
			values[i] = -values[i]
		}
		_, data, err := element.Encode(values)
		copy(out.Data, data)
		return err
	})
	ef.Enqueue(func(*RuntimeContext) error {
		order = append(order, 1)
		return nil
	})
	assert.Equal(t, 2, ef.NumFunctors())

	ctx := NewRuntimeContext(nil)
	assert.Nil(t, ctx.Distributed())
	require.Error(t, ef.Run(ctx))
	assert.Equal(t, []int{0}, order)

	order = nil
	ctx.Bind(arg, must.M1(BufferFromFlat([]int32{3, -4}, 2)))
	require.NoError(t, ef.Run(ctx))
	assert.Equal(t, []int{0, 1}, order)
	out := must.M1(ctx.Buffer(neg.Result(0)))
	assert.Equal(t, []int32{-3, 4}, must.M1(out.Flat()))
}
