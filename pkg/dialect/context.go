// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dialect implements a minimal in-memory IR of "ng.*" operations over statically shaped tensors,
// the target of the lowering in package lowering.
//
// A Context owns Functions; a Function is a single block of Operations over SSA Values, closed by an
// "ng.return" terminator:
//
//	fn := dialect.NewFunction("main", []dialect.TensorType{t, t}, []dialect.TensorType{t})
//	add, err := fn.Create("ng.add", []*dialect.Value{fn.Argument(0), fn.Argument(1)}, []dialect.TensorType{t}, nil)
//	_, err = fn.Return(add.Result(0))
package dialect

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Context holds the functions created by a lowering session. It is safe for concurrent use.
type Context struct {
	mu        sync.Mutex
	functions []*Function
	byName    map[string]*Function
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{byName: make(map[string]*Function)}
}

// Add registers fn in the context. Function names must be unique.
func (ctx *Context) Add(fn *Function) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if _, found := ctx.byName[fn.name]; found {
		return errors.Errorf("function %q already defined in context", fn.name)
	}
	ctx.byName[fn.name] = fn
	ctx.functions = append(ctx.functions, fn)
	return nil
}

// Remove unregisters the named function, if present.
func (ctx *Context) Remove(name string) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if _, found := ctx.byName[name]; !found {
		return
	}
	delete(ctx.byName, name)
	for i, fn := range ctx.functions {
		if fn.name == name {
			ctx.functions = append(ctx.functions[:i], ctx.functions[i+1:]...)
			break
		}
	}
}

// Lookup returns the named function.
func (ctx *Context) Lookup(name string) (*Function, bool) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	fn, found := ctx.byName[name]
	return fn, found
}

// Functions returns a snapshot of the registered functions, in registration order.
func (ctx *Context) Functions() []*Function {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return append([]*Function(nil), ctx.functions...)
}

// String renders all functions.
func (ctx *Context) String() string {
	var sb strings.Builder
	for i, fn := range ctx.Functions() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(fn.String())
	}
	return sb.String()
}
