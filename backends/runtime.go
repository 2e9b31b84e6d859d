// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"sync"

	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/dialect"
	"github.com/pkg/errors"
)

// RuntimeContext holds the buffers of one execution of a lowered function on one rank.
type RuntimeContext struct {
	distributed Distributed
	buffers     map[*dialect.Value]*Buffer
}

// NewRuntimeContext creates a context for the rank served by distributed, which can be nil for
// executions without collective operations.
func NewRuntimeContext(distributed Distributed) *RuntimeContext {
	return &RuntimeContext{distributed: distributed, buffers: make(map[*dialect.Value]*Buffer)}
}

// Distributed returns the collective operations interface of the context, or nil.
func (ctx *RuntimeContext) Distributed() Distributed { return ctx.distributed }

// Bind associates a buffer with the value, replacing any previous one.
func (ctx *RuntimeContext) Bind(value *dialect.Value, buffer *Buffer) {
	ctx.buffers[value] = buffer
}

// Buffer returns the buffer bound to value.
func (ctx *RuntimeContext) Buffer(value *dialect.Value) (*Buffer, error) {
	buffer, found := ctx.buffers[value]
	if !found {
		return nil, errors.Errorf("no buffer bound to value %s", value.Name())
	}
	return buffer, nil
}

// Allocate returns the buffer bound to value, or binds and returns a new zeroed buffer of the given element type
// with the dimensions of the value type.
func (ctx *RuntimeContext) Allocate(value *dialect.Value, elementType element.Type) *Buffer {
	if buffer, found := ctx.buffers[value]; found {
		return buffer
	}
	buffer := NewBuffer(elementType, value.Type().Dims...)
	ctx.buffers[value] = buffer
	return buffer
}

// Functor is a deferred runtime action, queued while lowering and run at execution time.
type Functor func(ctx *RuntimeContext) error

// ExternalFunction collects the functors queued for the lowered function with the same name.
// It is safe for concurrent use, but a single execution runs its functors sequentially, in queue order.
type ExternalFunction struct {
	name     string
	mu       sync.Mutex
	functors []Functor
}

// NewExternalFunction creates an empty ExternalFunction.
func NewExternalFunction(name string) *ExternalFunction {
	return &ExternalFunction{name: name}
}

// Name of the function.
func (ef *ExternalFunction) Name() string { return ef.name }

// Enqueue appends functors to the queue.
func (ef *ExternalFunction) Enqueue(functors ...Functor) {
	ef.mu.Lock()
	defer ef.mu.Unlock()
	ef.functors = append(ef.functors, functors...)
}

// NumFunctors returns the number of queued functors.
func (ef *ExternalFunction) NumFunctors() int {
	ef.mu.Lock()
	defer ef.mu.Unlock()
	return len(ef.functors)
}

// Run calls every queued functor in order, and stops at the first error.
func (ef *ExternalFunction) Run(ctx *RuntimeContext) error {
	ef.mu.Lock()
	functors := append([]Functor(nil), ef.functors...)
	ef.mu.Unlock()
	for i, functor := range functors {
		if err := functor(ctx); err != nil {
			return errors.WithMessagef(err, "functor #%d of %q", i, ef.name)
		}
	}
	return nil
}
