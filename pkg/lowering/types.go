// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lowering

import (
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/dialect"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedOp is returned (wrapped) when no lowering rule exists for a node's operator.
	ErrUnsupportedOp = errors.New("unsupported operation")

	// ErrUnsupportedType is returned (wrapped) for element types or shapes that have no dialect type.
	ErrUnsupportedType = errors.New("unsupported type")
)

// elementTypes maps each element type to its dialect type. Missing entries are unsupported.
var elementTypes = map[element.Type]dialect.ElementType{
	element.Boolean: dialect.IntegerType{Width: 8},
	element.U8:      dialect.IntegerType{Width: 8},
	element.U16:     dialect.IntegerType{Width: 16},
	element.U32:     dialect.IntegerType{Width: 32},
	element.U64:     dialect.IntegerType{Width: 64},
	element.I8:      dialect.IntegerType{Width: 8, Signed: true},
	element.I16:     dialect.IntegerType{Width: 16, Signed: true},
	element.I32:     dialect.IntegerType{Width: 32, Signed: true},
	element.I64:     dialect.IntegerType{Width: 64, Signed: true},
	element.BF16:    dialect.FloatType{Kind: dialect.BF16},
	element.F16:     dialect.FloatType{Kind: dialect.F16},
	element.F32:     dialect.FloatType{Kind: dialect.F32},
	element.F64:     dialect.FloatType{Kind: dialect.F64},
}

// ElementType returns the dialect element type for t.
// Undefined, Dynamic and U1 are not supported and return an error wrapping ErrUnsupportedType.
func ElementType(t element.Type) (dialect.ElementType, error) {
	dt, found := elementTypes[t]
	if !found {
		return nil, errors.Wrapf(ErrUnsupportedType, "element type %s can't be lowered", t)
	}
	return dt, nil
}

// TensorType returns the dialect type of a graph tensor, which must have a static shape.
func TensorType(t *graph.Tensor) (dialect.TensorType, error) {
	dt, err := ElementType(t.ElementType())
	if err != nil {
		return dialect.TensorType{}, errors.WithMessagef(err, "tensor %s", t)
	}
	if !t.Shape().IsStatic() {
		return dialect.TensorType{}, errors.Wrapf(ErrUnsupportedType, "tensor %s has a dynamic shape %s", t, t.Shape())
	}
	return dialect.TensorType{Element: dt, Dims: t.Shape().Dimensions()}, nil
}
