// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package element

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Raw buffers are little-endian, densely packed in row-major order.
// Boolean uses one byte per value (0 or 1); U1 packs 8 values per byte, most significant bit first.

// Encode converts a flat Go slice (e.g. []float32) to its element type and raw buffer.
func Encode(flat any) (Type, []byte, error) {
	v := reflect.ValueOf(flat)
	if v.Kind() != reflect.Slice {
		return Undefined, nil, errors.Errorf("flat data should be a slice, got %T", flat)
	}
	t := FromGoType(v.Type().Elem())
	if t == Undefined {
		return Undefined, nil, errors.Errorf("flat is a slice of %s, not a supported element type", v.Type().Elem())
	}
	buf := make([]byte, t.ByteSize(v.Len()))
	switch values := flat.(type) {
	case []bool:
		for i, b := range values {
			if b {
				buf[i] = 1
			}
		}
	case []float16.Float16:
		for i, x := range values {
			binary.LittleEndian.PutUint16(buf[2*i:], x.Bits())
		}
	case []bfloat16.BFloat16:
		for i, x := range values {
			binary.LittleEndian.PutUint16(buf[2*i:], uint16(x))
		}
	default:
		if _, err := binary.Encode(buf, binary.LittleEndian, flat); err != nil {
			return Undefined, nil, errors.Wrapf(err, "encoding %T", flat)
		}
	}
	return t, buf, nil
}

// Decode converts a raw buffer of n elements of type t to a flat Go slice of the type given by Type.GoType.
func Decode(t Type, data []byte, n int) (any, error) {
	if !t.IsStatic() {
		return nil, errors.Errorf("cannot decode values of element type %s", t)
	}
	if want := t.ByteSize(n); len(data) != want {
		return nil, errors.Errorf("buffer for %d values of %s must have %d bytes, got %d", n, t, want, len(data))
	}
	switch t {
	case Boolean:
		out := make([]bool, n)
		for i := range out {
			out[i] = data[i] != 0
		}
		return out, nil
	case U1:
		out := make([]bool, n)
		for i := range out {
			out[i] = data[i/8]&(0x80>>(i%8)) != 0
		}
		return out, nil
	case F16:
		out := make([]float16.Float16, n)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:]))
		}
		return out, nil
	case BF16:
		out := make([]bfloat16.BFloat16, n)
		for i := range out {
			out[i] = bfloat16.BFloat16(binary.LittleEndian.Uint16(data[2*i:]))
		}
		return out, nil
	}
	out := reflect.MakeSlice(reflect.SliceOf(t.GoType()), n, n).Interface()
	if _, err := binary.Decode(data, binary.LittleEndian, out); err != nil {
		return nil, errors.Wrapf(err, "decoding %d values of %s", n, t)
	}
	return out, nil
}

// DecodeFloat64 converts a raw buffer of n numeric (or boolean) elements to float64 values.
// Integers beyond 2^53 lose precision; use DecodeInt64 for exact integer handling.
func DecodeFloat64(t Type, data []byte, n int) ([]float64, error) {
	flat, err := Decode(t, data, n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	switch values := flat.(type) {
	case []bool:
		for i, b := range values {
			if b {
				out[i] = 1
			}
		}
	case []float16.Float16:
		for i, x := range values {
			out[i] = float64(x.Float32())
		}
	case []bfloat16.BFloat16:
		for i, x := range values {
			out[i] = float64(x.Float32())
		}
	default:
		v := reflect.ValueOf(flat)
		for i := range out {
			e := v.Index(i)
			switch {
			case e.CanFloat():
				out[i] = e.Float()
			case e.CanInt():
				out[i] = float64(e.Int())
			default:
				out[i] = float64(e.Uint())
			}
		}
	}
	return out, nil
}

// EncodeFloat64 converts float64 values to a raw buffer of element type t, with the usual Go
// conversion rules (truncation for integers, non-zero is true for booleans).
func EncodeFloat64(t Type, values []float64) ([]byte, error) {
	if !t.IsStatic() {
		return nil, errors.Errorf("cannot encode values to element type %s", t)
	}
	buf := make([]byte, t.ByteSize(len(values)))
	width := t.BitWidth() / 8
	for i, x := range values {
		switch t {
		case Boolean:
			if x != 0 {
				buf[i] = 1
			}
		case U1:
			if x != 0 {
				buf[i/8] |= 0x80 >> (i % 8)
			}
		case F16:
			binary.LittleEndian.PutUint16(buf[2*i:], float16.Fromfloat32(float32(x)).Bits())
		case BF16:
			binary.LittleEndian.PutUint16(buf[2*i:], uint16(bfloat16.FromFloat32(float32(x))))
		case F32:
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(x)))
		case F64:
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
		case I8, I16, I32, I64:
			putUint(buf[width*i:], width, uint64(int64(x)))
		default:
			putUint(buf[width*i:], width, uint64(x))
		}
	}
	return buf, nil
}

// DecodeInt64 converts a raw buffer of n integer (or boolean) elements to int64 values.
// Unsigned 64-bit values above math.MaxInt64 wrap around.
func DecodeInt64(t Type, data []byte, n int) ([]int64, error) {
	if !t.IsInteger() && t != Boolean && t != U1 {
		return nil, errors.Errorf("DecodeInt64 requires an integer element type, got %s", t)
	}
	if want := t.ByteSize(n); len(data) != want {
		return nil, errors.Errorf("buffer for %d values of %s must have %d bytes, got %d", n, t, want, len(data))
	}
	out := make([]int64, n)
	width := t.BitWidth() / 8
	for i := range out {
		switch t {
		case U1:
			if data[i/8]&(0x80>>(i%8)) != 0 {
				out[i] = 1
			}
		case Boolean:
			if data[i] != 0 {
				out[i] = 1
			}
		case I8:
			out[i] = int64(int8(data[i]))
		case I16:
			out[i] = int64(int16(binary.LittleEndian.Uint16(data[2*i:])))
		case I32:
			out[i] = int64(int32(binary.LittleEndian.Uint32(data[4*i:])))
		default:
			out[i] = int64(getUint(data[width*i:], width))
		}
	}
	return out, nil
}

// EncodeInt64 converts int64 values to a raw buffer of integer (or boolean) element type t,
// truncating to the type's width.
func EncodeInt64(t Type, values []int64) ([]byte, error) {
	if !t.IsInteger() && t != Boolean && t != U1 {
		return nil, errors.Errorf("EncodeInt64 requires an integer element type, got %s", t)
	}
	buf := make([]byte, t.ByteSize(len(values)))
	width := t.BitWidth() / 8
	for i, x := range values {
		switch t {
		case Boolean:
			if x != 0 {
				buf[i] = 1
			}
		case U1:
			if x != 0 {
				buf[i/8] |= 0x80 >> (i % 8)
			}
		default:
			putUint(buf[width*i:], width, uint64(x))
		}
	}
	return buf, nil
}

func putUint(b []byte, width int, v uint64) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
}

func getUint(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}
