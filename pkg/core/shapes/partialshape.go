// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines PartialShape, the possibly unknown shape of a tensor in a graph.
//
// A PartialShape is either of dynamic rank (nothing is known, printed as "?"), or a list of
// dimensions, each either a concrete non-negative extent or Dynamic (printed as "?"), e.g.
// "{2,?,3}".
//
// ## Glossary
//
//   - Rank: number of axes of a tensor. It may itself be unknown.
//   - Axis: the index of a dimension.
//   - Dimension: the extent of one axis, or Dynamic.
//   - Static: a shape with known rank and no Dynamic dimension.
//   - Refines: s refines t if s can be obtained from t by filling in t's unknowns.
package shapes

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Dynamic is the value of an unknown dimension.
const Dynamic = -1

// PartialShape is a shape that may be partially or totally unknown.
//
// The zero value is a scalar (rank 0, static). Use DynamicRank for a totally unknown shape.
type PartialShape struct {
	dims        []int
	dynamicRank bool
}

// Make returns a PartialShape with the given dimensions. Use Dynamic for unknown dimensions.
// It panics if a dimension is negative and not Dynamic.
func Make(dims ...int) PartialShape {
	for axis, dim := range dims {
		if dim < 0 && dim != Dynamic {
			exceptions.Panicf("shapes.Make(%v): invalid dimension %d for axis #%d", dims, dim, axis)
		}
	}
	return PartialShape{dims: slices.Clone(dims)}
}

// DynamicRank returns a shape with unknown rank.
func DynamicRank() PartialShape {
	return PartialShape{dynamicRank: true}
}

// Scalar returns the static rank-0 shape.
func Scalar() PartialShape {
	return PartialShape{}
}

// DynamicOfRank returns a shape of the given rank with all dimensions Dynamic.
func DynamicOfRank(rank int) PartialShape {
	dims := make([]int, rank)
	for i := range dims {
		dims[i] = Dynamic
	}
	return PartialShape{dims: dims}
}

// RankIsDynamic returns whether the rank is unknown.
func (s PartialShape) RankIsDynamic() bool { return s.dynamicRank }

// Rank returns the number of axes, or Dynamic if the rank is unknown.
func (s PartialShape) Rank() int {
	if s.dynamicRank {
		return Dynamic
	}
	return len(s.dims)
}

// Dim returns the dimension of the given axis, which may be Dynamic. Negative axes count from the end.
// It panics if the rank is dynamic or the axis is out-of-bounds.
func (s PartialShape) Dim(axis int) int {
	if s.dynamicRank {
		exceptions.Panicf("PartialShape.Dim(%d): shape %s has dynamic rank", axis, s)
	}
	adjusted := axis
	if adjusted < 0 {
		adjusted += len(s.dims)
	}
	if adjusted < 0 || adjusted >= len(s.dims) {
		exceptions.Panicf("PartialShape.Dim(%d) out-of-bounds for shape %s", axis, s)
	}
	return s.dims[adjusted]
}

// Dimensions returns a copy of the dimensions, or nil if the rank is dynamic.
func (s PartialShape) Dimensions() []int {
	if s.dynamicRank {
		return nil
	}
	return slices.Clone(s.dims)
}

// IsStatic returns whether the rank and all dimensions are known.
func (s PartialShape) IsStatic() bool {
	if s.dynamicRank {
		return false
	}
	return !slices.Contains(s.dims, Dynamic)
}

// IsDynamic is the negation of IsStatic.
func (s PartialShape) IsDynamic() bool { return !s.IsStatic() }

// IsScalar returns whether the shape is known to be rank 0.
func (s PartialShape) IsScalar() bool { return !s.dynamicRank && len(s.dims) == 0 }

// Size returns the number of elements of a static shape, or Dynamic if not static.
func (s PartialShape) Size() int {
	if !s.IsStatic() {
		return Dynamic
	}
	size := 1
	for _, dim := range s.dims {
		size *= dim
	}
	return size
}

// Clone returns a deep copy.
func (s PartialShape) Clone() PartialShape {
	return PartialShape{dims: slices.Clone(s.dims), dynamicRank: s.dynamicRank}
}

// Refines returns whether s is at least as specific as other: either other has dynamic rank, or
// both have the same rank and, for every axis, other's dimension is Dynamic or equal to s's.
//
// It is a partial order: reflexive, antisymmetric and transitive.
func (s PartialShape) Refines(other PartialShape) bool {
	if other.dynamicRank {
		return true
	}
	if s.dynamicRank || len(s.dims) != len(other.dims) {
		return false
	}
	for axis, dim := range other.dims {
		if dim != Dynamic && s.dims[axis] != dim {
			return false
		}
	}
	return true
}

// RelaxedBy is the converse of Refines: other refines s.
func (s PartialShape) RelaxedBy(other PartialShape) bool { return other.Refines(s) }

// Compatible returns whether there is a shape that refines both s and other.
func (s PartialShape) Compatible(other PartialShape) bool {
	_, ok := Merge(s, other)
	return ok
}

// SameScheme returns whether s and other are identical, including where they are Dynamic.
func (s PartialShape) SameScheme(other PartialShape) bool {
	if s.dynamicRank || other.dynamicRank {
		return s.dynamicRank == other.dynamicRank
	}
	return slices.Equal(s.dims, other.dims)
}

// Merge returns the least specific shape that refines both a and b, or false if they are
// incompatible.
func Merge(a, b PartialShape) (PartialShape, bool) {
	if a.dynamicRank {
		return b.Clone(), true
	}
	if b.dynamicRank {
		return a.Clone(), true
	}
	if len(a.dims) != len(b.dims) {
		return PartialShape{}, false
	}
	merged := make([]int, len(a.dims))
	for axis, aDim := range a.dims {
		bDim := b.dims[axis]
		switch {
		case aDim == Dynamic:
			merged[axis] = bDim
		case bDim == Dynamic || aDim == bDim:
			merged[axis] = aDim
		default:
			return PartialShape{}, false
		}
	}
	return PartialShape{dims: merged}, true
}

// BroadcastMerge returns the shape resulting from numpy-style broadcasting of a and b: axes
// are aligned to the right, and dimensions of 1 are stretched. It returns false if a and b
// cannot be broadcast.
//
// A Dynamic dimension broadcast against a known dimension d > 1 yields d; against 1 (or
// another Dynamic) it stays Dynamic.
func BroadcastMerge(a, b PartialShape) (PartialShape, bool) {
	if a.dynamicRank || b.dynamicRank {
		return DynamicRank(), true
	}
	rank := max(len(a.dims), len(b.dims))
	out := make([]int, rank)
	for i := range rank {
		aDim, bDim := 1, 1
		if j := i - (rank - len(a.dims)); j >= 0 {
			aDim = a.dims[j]
		}
		if j := i - (rank - len(b.dims)); j >= 0 {
			bDim = b.dims[j]
		}
		switch {
		case aDim == bDim:
			out[i] = aDim
		case aDim == 1:
			out[i] = bDim
		case bDim == 1:
			out[i] = aDim
		case aDim == Dynamic:
			out[i] = bDim
		case bDim == Dynamic:
			out[i] = aDim
		default:
			return PartialShape{}, false
		}
	}
	return PartialShape{dims: out}, true
}

// String implements fmt.Stringer, e.g. "{2,?,3}", "{}" for scalars and "?" for dynamic rank.
func (s PartialShape) String() string {
	if s.dynamicRank {
		return "?"
	}
	parts := make([]string, len(s.dims))
	for i, dim := range s.dims {
		if dim == Dynamic {
			parts[i] = "?"
		} else {
			parts[i] = strconv.Itoa(dim)
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Parse is the inverse of PartialShape.String.
func Parse(text string) (PartialShape, error) {
	text = strings.TrimSpace(text)
	if text == "?" {
		return DynamicRank(), nil
	}
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return PartialShape{}, errors.Errorf("invalid shape %q: must be \"?\" or enclosed in {}", text)
	}
	body := strings.TrimSpace(text[1 : len(text)-1])
	if body == "" {
		return Scalar(), nil
	}
	fields := strings.Split(body, ",")
	dims := make([]int, len(fields))
	for i, field := range fields {
		field = strings.TrimSpace(field)
		if field == "?" {
			dims[i] = Dynamic
			continue
		}
		dim, err := strconv.Atoi(field)
		if err != nil || dim < 0 {
			return PartialShape{}, errors.Errorf("invalid dimension %q for axis #%d in shape %q", field, i, text)
		}
		dims[i] = dim
	}
	return PartialShape{dims: dims}, nil
}
