// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package specialize

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kinds of CheckFailure, to be matched with errors.Is.
var (
	// ErrArityMismatch: the request doesn't have one entry per graph parameter.
	ErrArityMismatch = errors.New("arity mismatch")

	// ErrShapeMismatch: the requested shape doesn't refine the parameter shape.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrTypeMismatch: the requested element type changes a static parameter element type.
	ErrTypeMismatch = errors.New("element type mismatch")

	// ErrNonStaticConstant: a value is given for a parameter whose requested type or shape is not static.
	ErrNonStaticConstant = errors.New("constant value requires a static element type and shape")

	// ErrValueSize: the value buffer doesn't have the size of the requested type and shape.
	ErrValueSize = errors.New("value buffer size mismatch")
)

// CheckFailure is returned when a specialization request is invalid. No graph node is cloned in this case.
type CheckFailure struct {
	// Parameter is the index of the offending parameter, or -1 if the failure is not about one parameter.
	Parameter int

	// Kind is one of the Err* sentinels of this package.
	Kind error

	detail string
}

func newCheckFailure(parameter int, kind error, format string, args ...any) *CheckFailure {
	return &CheckFailure{Parameter: parameter, Kind: kind, detail: fmt.Sprintf(format, args...)}
}

// Error implements error.
func (e *CheckFailure) Error() string {
	if e.Parameter < 0 {
		return fmt.Sprintf("specialize: %v: %s", e.Kind, e.detail)
	}
	return fmt.Sprintf("specialize: parameter #%d: %v: %s", e.Parameter, e.Kind, e.detail)
}

// Unwrap returns Kind.
func (e *CheckFailure) Unwrap() error { return e.Kind }
