// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package element defines the element types of tensors in a graph.
//
// Besides the concrete numeric kinds, an element type can be Dynamic (not yet known, to be
// resolved by specialization) or Undefined (the zero value, never valid on a tensor).
//
// It includes conversions to/from github.com/gomlx/gopjrt/dtypes for interoperability with
// PJRT based runtimes, the Go types used to hold values of each kind, and little-endian
// codecs for raw constant buffers (see codec.go).
package element

import (
	"reflect"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Type is the element type of a tensor.
type Type int

const (
	// Undefined is the zero value: it is never a valid element type for a tensor.
	Undefined Type = iota

	// Dynamic is an element type not yet known. It is resolved by specialization.
	Dynamic

	Boolean
	BF16
	F16
	F32
	F64
	I8
	I16
	I32
	I64
	U1
	U8
	U16
	U32
	U64

	// Last is one past the last element type, used to size tables indexed by Type.
	Last
)

var typeNames = [Last]string{
	Undefined: "undefined",
	Dynamic:   "dynamic",
	Boolean:   "boolean",
	BF16:      "bf16",
	F16:       "f16",
	F32:       "f32",
	F64:       "f64",
	I8:        "i8",
	I16:       "i16",
	I32:       "i32",
	I64:       "i64",
	U1:        "u1",
	U8:        "u8",
	U16:       "u16",
	U32:       "u32",
	U64:       "u64",
}

// bitWidths of each static type. Dynamic and Undefined have width 0.
var bitWidths = [Last]int{
	Boolean: 8,
	BF16:    16,
	F16:     16,
	F32:     32,
	F64:     64,
	I8:      8,
	I16:     16,
	I32:     32,
	I64:     64,
	U1:      1,
	U8:      8,
	U16:     16,
	U32:     32,
	U64:     64,
}

// Types lists all valid static element types.
var Types = []Type{Boolean, BF16, F16, F32, F64, I8, I16, I32, I64, U1, U8, U16, U32, U64}

// String implements fmt.Stringer.
func (t Type) String() string {
	if t < 0 || t >= Last {
		return "invalid"
	}
	return typeNames[t]
}

// Parse returns the element type for the given name (case-insensitive), as returned by Type.String.
func Parse(name string) (Type, error) {
	lower := strings.ToLower(name)
	for t := Undefined; t < Last; t++ {
		if typeNames[t] == lower {
			return t, nil
		}
	}
	return Undefined, errors.Errorf("unknown element type %q", name)
}

// IsValid returns whether t is one of the enumerated values.
func (t Type) IsValid() bool { return t >= Undefined && t < Last }

// IsDynamic returns whether the element type is not yet known.
func (t Type) IsDynamic() bool { return t == Dynamic }

// IsStatic returns whether t is a concrete element type.
func (t Type) IsStatic() bool { return t > Dynamic && t < Last }

// BitWidth returns the number of bits of one element, or 0 for Dynamic and Undefined.
func (t Type) BitWidth() int {
	if !t.IsStatic() {
		return 0
	}
	return bitWidths[t]
}

// IsFloat returns whether t is a floating point type.
func (t Type) IsFloat() bool {
	return t == BF16 || t == F16 || t == F32 || t == F64
}

// IsSigned returns whether t is a signed type: floats and signed integers.
func (t Type) IsSigned() bool {
	return t.IsFloat() || t == I8 || t == I16 || t == I32 || t == I64
}

// IsInteger returns whether t is an integer type, signed or unsigned. Boolean and U1 are not integers.
func (t Type) IsInteger() bool {
	switch t {
	case I8, I16, I32, I64, U8, U16, U32, U64:
		return true
	}
	return false
}

// IsUnsigned returns whether t is an unsigned integer type.
func (t Type) IsUnsigned() bool {
	switch t {
	case U8, U16, U32, U64:
		return true
	}
	return false
}

// IsNumber returns whether t is a float or an integer type.
func (t Type) IsNumber() bool { return t.IsFloat() || t.IsInteger() }

// ByteSize returns the number of bytes needed to store numElements of type t, rounding up
// sub-byte types. It returns 0 for non-static types.
func (t Type) ByteSize(numElements int) int {
	bits := t.BitWidth() * numElements
	return (bits + 7) / 8
}

// Merge returns the most specific element type compatible with both t and other.
// Dynamic merges with anything; two static types merge only if equal.
func (t Type) Merge(other Type) (Type, bool) {
	switch {
	case t == Dynamic:
		return other, other.IsValid() && other != Undefined
	case other == Dynamic:
		return t, t.IsValid() && t != Undefined
	case t == other && t.IsStatic():
		return t, true
	}
	return Undefined, false
}

// Compatible returns whether t and other can be merged.
func (t Type) Compatible(other Type) bool {
	_, ok := t.Merge(other)
	return ok
}

var toDType = [Last]dtypes.DType{
	Boolean: dtypes.Bool,
	BF16:    dtypes.BFloat16,
	F16:     dtypes.Float16,
	F32:     dtypes.Float32,
	F64:     dtypes.Float64,
	I8:      dtypes.Int8,
	I16:     dtypes.Int16,
	I32:     dtypes.Int32,
	I64:     dtypes.Int64,
	U8:      dtypes.Uint8,
	U16:     dtypes.Uint16,
	U32:     dtypes.Uint32,
	U64:     dtypes.Uint64,
}

// DType returns the PJRT data type for t, or dtypes.InvalidDType if there is no equivalent
// (Dynamic, Undefined and U1).
func (t Type) DType() dtypes.DType {
	if !t.IsStatic() {
		return dtypes.InvalidDType
	}
	return toDType[t]
}

// FromDType converts a PJRT data type to an element type. It returns Undefined for data types
// without an equivalent (e.g. complex numbers).
func FromDType(dtype dtypes.DType) Type {
	if dtype == dtypes.InvalidDType {
		return Undefined
	}
	for t, d := range toDType {
		if d == dtype {
			return Type(t)
		}
	}
	return Undefined
}

var (
	float16Type  = reflect.TypeOf(float16.Float16(0))
	bfloat16Type = reflect.TypeOf(bfloat16.BFloat16(0))
)

// GoType returns the Go type used to hold one value of t. U1 values are held as bool.
// It returns nil for non-static types.
func (t Type) GoType() reflect.Type {
	switch t {
	case Boolean, U1:
		return reflect.TypeOf(true)
	case BF16:
		return bfloat16Type
	case F16:
		return float16Type
	case F32:
		return reflect.TypeOf(float32(0))
	case F64:
		return reflect.TypeOf(float64(0))
	case I8:
		return reflect.TypeOf(int8(0))
	case I16:
		return reflect.TypeOf(int16(0))
	case I32:
		return reflect.TypeOf(int32(0))
	case I64:
		return reflect.TypeOf(int64(0))
	case U8:
		return reflect.TypeOf(uint8(0))
	case U16:
		return reflect.TypeOf(uint16(0))
	case U32:
		return reflect.TypeOf(uint32(0))
	case U64:
		return reflect.TypeOf(uint64(0))
	}
	return nil
}

// FromGoType returns the element type for the given Go type, or Undefined if not supported.
// Notice int and uint are not supported, since their width is platform dependent.
func FromGoType(goType reflect.Type) Type {
	switch goType {
	case float16Type:
		return F16
	case bfloat16Type:
		return BF16
	}
	switch goType.Kind() {
	case reflect.Bool:
		return Boolean
	case reflect.Float32:
		return F32
	case reflect.Float64:
		return F64
	case reflect.Int8:
		return I8
	case reflect.Int16:
		return I16
	case reflect.Int32:
		return I32
	case reflect.Int64:
		return I64
	case reflect.Uint8:
		return U8
	case reflect.Uint16:
		return U16
	case reflect.Uint32:
		return U32
	case reflect.Uint64:
		return U64
	}
	return Undefined
}
