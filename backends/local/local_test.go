// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package local

import (
	"testing"

	"github.com/gp1322719830/ngraph/backends"
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestNew(t *testing.T) {
	b := New("world=3").(*Backend)
	assert.Equal(t, 3, b.NumRanks())
	assert.Equal(t, BackendName, b.Name())
	assert.Contains(t, b.Description(), "3 rank")
	assert.Equal(t, 1, New("").NumRanks())
	require.Panics(t, func() { New("world=0") })
	require.Panics(t, func() { New("world=x") })
	require.Panics(t, func() { New("color=blue") })

	_, err := b.Distributed(3)
	require.Error(t, err)
	d := must.M1(b.Distributed(2))
	assert.Equal(t, 2, d.Rank())
	assert.Equal(t, 3, d.WorldSize())

	// Selected through the registry.
	assert.Contains(t, backends.List(), BackendName)
	assert.Equal(t, 2, backends.NewWithConfig("local:world=2").NumRanks())
}

func TestAllReduce(t *testing.T) {
	const world = 4
	b := NewBackend(world)
	defer b.Finalize()
	results := make([][]float32, world)
	err := b.Run(func(d backends.Distributed) error {
		rank := float32(d.Rank())
		in := must.M1(backends.BufferFromFlat([]float32{rank, 10 * rank, 1}, 3))
		out := backends.NewBuffer(element.F32, 3)
		// Two rounds in a row: the second uses the output of the first.
		if err := d.AllReduce(in, out, backends.ReduceOpSum); err != nil {
			return err
		}
		if err := d.AllReduce(out, out, backends.ReduceOpMax); err != nil {
			return err
		}
		results[d.Rank()] = must.M1(out.Flat()).([]float32)
		return nil
	})
	require.NoError(t, err)
	for rank := range world {
		assert.Equal(t, []float32{6, 60, 4}, results[rank], "rank %d", rank)
	}
}

func TestAllReduceTypes(t *testing.T) {
	b := NewBackend(2)
	defer b.Finalize()
	var gotInts []int64
	var gotHalf []float16.Float16
	err := b.Run(func(d backends.Distributed) error {
		in := must.M1(backends.BufferFromFlat([]int64{int64(d.Rank() + 2), -1}, 2))
		out := backends.NewBuffer(element.I64, 2)
		if err := d.AllReduce(in, out, backends.ReduceOpProd); err != nil {
			return err
		}
		half := must.M1(backends.BufferFromFlat([]float16.Float16{float16.Fromfloat32(float32(d.Rank()) + 0.5)}, 1))
		halfOut := backends.NewBuffer(element.F16, 1)
		if err := d.AllReduce(half, halfOut, backends.ReduceOpMin); err != nil {
			return err
		}
		if d.Rank() == 0 {
			gotInts = must.M1(out.Flat()).([]int64)
			gotHalf = must.M1(halfOut.Flat()).([]float16.Float16)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 1}, gotInts)
	require.Len(t, gotHalf, 1)
	assert.Equal(t, float32(0.5), gotHalf[0].Float32())
}

func TestAllReduceErrors(t *testing.T) {
	b := NewBackend(2)
	defer b.Finalize()
	err := b.Run(func(d backends.Distributed) error {
		dims := []int{2}
		if d.Rank() == 1 {
			dims = []int{1, 2}
		}
		in := backends.NewBuffer(element.F32, dims...)
		return d.AllReduce(in, in.Clone(), backends.ReduceOpSum)
	})
	require.ErrorContains(t, err, "disagree")

	d := must.M1(b.Distributed(0))
	require.Error(t, d.AllReduce(backends.NewBuffer(element.F32, 2), backends.NewBuffer(element.F32, 3), backends.ReduceOpSum))
	require.Error(t, d.AllReduce(backends.NewBuffer(element.Boolean, 2), backends.NewBuffer(element.Boolean, 2), backends.ReduceOpSum))
	require.Error(t, d.AllReduce(backends.NewBuffer(element.F32, 2), backends.NewBuffer(element.F32, 2), backends.ReduceOp(17)))
}

func TestFinalizeWakesWaiters(t *testing.T) {
	b := NewBackend(2)
	d := must.M1(b.Distributed(0))
	done := make(chan error)
	go func() {
		buf := backends.NewBuffer(element.F32, 1)
		done <- d.AllReduce(buf, buf.Clone(), backends.ReduceOpSum)
	}()
	b.Finalize()
	require.Error(t, <-done)
	_, err := b.Distributed(0)
	require.Error(t, err)
}
