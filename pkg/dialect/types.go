// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dialect

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ElementType is the element type of a dialect tensor: an IntegerType or a FloatType.
type ElementType interface {
	fmt.Stringer

	// BitWidth of one element.
	BitWidth() int

	isElementType()
}

// IntegerType is a signed or unsigned integer type of the given width.
type IntegerType struct {
	Width  int
	Signed bool
}

// String implements fmt.Stringer, e.g. "i32" or "u8".
func (t IntegerType) String() string {
	if t.Signed {
		return "i" + strconv.Itoa(t.Width)
	}
	return "u" + strconv.Itoa(t.Width)
}

// BitWidth implements ElementType.
func (t IntegerType) BitWidth() int { return t.Width }

func (IntegerType) isElementType() {}

// FloatKind enumerates the floating point formats.
type FloatKind int

const (
	BF16 FloatKind = iota
	F16
	F32
	F64
)

var floatKindNames = [...]string{BF16: "bf16", F16: "f16", F32: "f32", F64: "f64"}

// FloatType is a floating point type.
type FloatType struct {
	Kind FloatKind
}

// String implements fmt.Stringer.
func (t FloatType) String() string {
	if t.Kind < BF16 || t.Kind > F64 {
		return "invalid_float"
	}
	return floatKindNames[t.Kind]
}

// BitWidth implements ElementType.
func (t FloatType) BitWidth() int {
	switch t.Kind {
	case BF16, F16:
		return 16
	case F32:
		return 32
	}
	return 64
}

func (FloatType) isElementType() {}

// TensorType is a statically shaped tensor type.
type TensorType struct {
	Element ElementType
	Dims    []int
}

// Rank returns the number of axes.
func (t TensorType) Rank() int { return len(t.Dims) }

// Size returns the number of elements.
func (t TensorType) Size() int {
	size := 1
	for _, dim := range t.Dims {
		size *= dim
	}
	return size
}

// Equal returns whether t and other are the same type.
func (t TensorType) Equal(other TensorType) bool {
	return t.Element == other.Element && slices.Equal(t.Dims, other.Dims)
}

// String implements fmt.Stringer, e.g. "!ng.tensor<2x3xf32>".
func (t TensorType) String() string {
	var sb strings.Builder
	sb.WriteString("!ng.tensor<")
	for _, dim := range t.Dims {
		sb.WriteString(strconv.Itoa(dim))
		sb.WriteByte('x')
	}
	if t.Element == nil {
		sb.WriteString("?")
	} else {
		sb.WriteString(t.Element.String())
	}
	sb.WriteByte('>')
	return sb.String()
}
