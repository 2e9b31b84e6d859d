// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lowering

import (
	"github.com/gomlx/exceptions"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/dialect"
)

// ValueMap binds graph tensors to the dialect values that compute them. Each tensor is bound at most once.
//
// Violations (rebinding, or looking up an unbound tensor) are bugs in the converter or in a lowering rule,
// and they panic.
type ValueMap struct {
	values map[*graph.Tensor]*dialect.Value
}

// NewValueMap creates an empty ValueMap.
func NewValueMap() *ValueMap {
	return &ValueMap{values: make(map[*graph.Tensor]*dialect.Value)}
}

// Bind records that value computes tensor. It panics if tensor is already bound.
func (m *ValueMap) Bind(tensor *graph.Tensor, value *dialect.Value) {
	if _, found := m.values[tensor]; found {
		exceptions.Panicf("tensor value already defined: %s", tensor)
	}
	m.values[tensor] = value
}

// Lookup returns the value bound to tensor. It panics if tensor is not bound.
func (m *ValueMap) Lookup(tensor *graph.Tensor) *dialect.Value {
	value, found := m.values[tensor]
	if !found {
		exceptions.Panicf("undefined tensor %s", tensor)
	}
	return value
}

// IsBound returns whether tensor is bound.
func (m *ValueMap) IsBound(tensor *graph.Tensor) bool {
	_, found := m.values[tensor]
	return found
}

// Len returns the number of bindings.
func (m *ValueMap) Len() int { return len(m.values) }
