// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implements Set[T] as a `map[T]struct{}`, used for operator kind groups and axis sets.
package sets

import (
	"cmp"

	"github.com/gp1322719830/ngraph/pkg/support/xslices"
)

// Set of keys of type T.
type Set[T comparable] map[T]struct{}

// Make returns an empty Set. Size is optional, and reserves space if given.
func Make[T comparable](size ...int) Set[T] {
	if len(size) == 0 {
		return make(Set[T])
	}
	return make(Set[T], size[0])
}

// MakeWith creates a Set[T] with the given elements.
func MakeWith[T comparable](elements ...T) Set[T] {
	s := Make[T](len(elements))
	s.Insert(elements...)
	return s
}

// Has returns whether key is in the set.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Clone returns an independent copy. The clone of a nil set is nil.
func (s Set[T]) Clone() Set[T] {
	if s == nil {
		return nil
	}
	clone := Make[T](len(s))
	for key := range s {
		clone[key] = struct{}{}
	}
	return clone
}

// Sorted returns the elements of the set in ascending order, the form in which axis sets are
// printed as attributes.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	return xslices.SortedKeys(map[T]struct{}(s))
}
