// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provides small generic helpers over slices and maps.
package xslices

import (
	"cmp"
	"slices"

	"golang.org/x/exp/constraints"
)

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// MapErr is like Map, but stops at the first error, returned along with its index.
func MapErr[In, Out any](in []In, fn func(e In) (Out, error)) (out []Out, index int, err error) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii], err = fn(e)
		if err != nil {
			return nil, ii, err
		}
	}
	return out, -1, nil
}

// Iota returns a slice of incremental values, starting with start and of length len.
// Eg: Iota(3.0, 2) -> []float64{3.0, 4.0}
func Iota[T interface {
	constraints.Integer | constraints.Float
}](start T, len int) (slice []T) {
	slice = make([]T, len)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// Last returns the last element of a slice. It panics if the slice is empty.
func Last[T any](slice []T) T {
	return slice[len(slice)-1]
}

// SortedKeys returns the keys of the map, sorted.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
