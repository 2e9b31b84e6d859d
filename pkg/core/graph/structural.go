// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Parameter is an input of the function. Its element type and shape may be dynamic.
type Parameter struct {
	ElementType element.Type
	Shape       shapes.PartialShape
}

var _ Operator = (*Parameter)(nil)

// TypeInfo implements Operator.
func (p *Parameter) TypeInfo() TypeInfo { return TypeInfo{Name: "Parameter", Version: 0} }

// Infer implements Operator.
func (p *Parameter) Infer(inputs []*Tensor) ([]TensorSpec, error) {
	if len(inputs) != 0 {
		return nil, errors.Errorf("Parameter takes no inputs, got %d", len(inputs))
	}
	if !p.ElementType.IsValid() || p.ElementType == element.Undefined {
		return nil, errors.Errorf("Parameter requires a valid element type, got %s", p.ElementType)
	}
	return []TensorSpec{{ElementType: p.ElementType, Shape: p.Shape.Clone()}}, nil
}

// Clone implements Operator.
func (p *Parameter) Clone() Operator {
	return &Parameter{ElementType: p.ElementType, Shape: p.Shape.Clone()}
}

// Result marks its sole input as an output of the function.
type Result struct{}

var _ Operator = (*Result)(nil)

// TypeInfo implements Operator.
func (r *Result) TypeInfo() TypeInfo { return TypeInfo{Name: "Result", Version: 0} }

// Infer implements Operator.
func (r *Result) Infer(inputs []*Tensor) ([]TensorSpec, error) {
	if len(inputs) != 1 {
		return nil, errors.Errorf("Result takes exactly 1 input, got %d", len(inputs))
	}
	return []TensorSpec{{ElementType: inputs[0].ElementType(), Shape: inputs[0].Shape()}}, nil
}

// Clone implements Operator.
func (r *Result) Clone() Operator { return &Result{} }

// Constant holds a tensor value: a statically shaped raw buffer, see element.Encode for the
// buffer layout.
//
// The buffer is never modified after creation, so clones share it. Use Copy for a constant
// owning an independent buffer.
type Constant struct {
	elementType element.Type
	shape       shapes.PartialShape
	data        []byte
}

var _ Operator = (*Constant)(nil)

// NewConstant creates a constant of the given static element type and shape from a raw buffer.
// If share is true the constant aliases data, which the caller must not modify afterward,
// otherwise it keeps its own copy.
func NewConstant(elementType element.Type, shape shapes.PartialShape, data []byte, share bool) (*Constant, error) {
	if !elementType.IsStatic() {
		return nil, errors.Errorf("Constant requires a static element type, got %s", elementType)
	}
	if !shape.IsStatic() {
		return nil, errors.Errorf("Constant requires a static shape, got %s", shape)
	}
	if want := elementType.ByteSize(shape.Size()); len(data) != want {
		return nil, errors.Errorf("Constant of %s%s requires %d bytes, got %d", elementType, shape, want, len(data))
	}
	if !share {
		data = slices.Clone(data)
	}
	return &Constant{elementType: elementType, shape: shape.Clone(), data: data}, nil
}

// ConstantFromFlat creates a constant from a flat Go slice (e.g. []float32) and its dimensions.
// If no dimensions are given, the constant is a vector with the length of flat.
func ConstantFromFlat(flat any, dims ...int) (*Constant, error) {
	elementType, data, err := element.Encode(flat)
	if err != nil {
		return nil, err
	}
	length := reflect.ValueOf(flat).Len()
	if len(dims) == 0 {
		dims = []int{length}
	}
	size := 1
	for _, dim := range dims {
		if dim < 0 {
			return nil, errors.Errorf("ConstantFromFlat: invalid dimensions %v", dims)
		}
		size *= dim
	}
	if size != length {
		return nil, errors.Errorf("ConstantFromFlat: dimensions %v require %d values, got %d", dims, size, length)
	}
	return &Constant{elementType: elementType, shape: shapes.Make(dims...), data: data}, nil
}

// ScalarConstantFromValue creates a rank-0 constant from a Go value, e.g. float32(0.5).
func ScalarConstantFromValue(value any) (*Constant, error) {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return nil, errors.New("ScalarConstantFromValue: nil value")
	}
	flat := reflect.MakeSlice(reflect.SliceOf(v.Type()), 1, 1)
	flat.Index(0).Set(v)
	elementType, data, err := element.Encode(flat.Interface())
	if err != nil {
		return nil, err
	}
	return &Constant{elementType: elementType, shape: shapes.Scalar(), data: data}, nil
}

// TypeInfo implements Operator.
func (c *Constant) TypeInfo() TypeInfo { return TypeInfo{Name: "Constant", Version: 0} }

// Infer implements Operator.
func (c *Constant) Infer(inputs []*Tensor) ([]TensorSpec, error) {
	if len(inputs) != 0 {
		return nil, errors.Errorf("Constant takes no inputs, got %d", len(inputs))
	}
	return []TensorSpec{{ElementType: c.elementType, Shape: c.shape.Clone()}}, nil
}

// Clone implements Operator. The clone shares the buffer.
func (c *Constant) Clone() Operator {
	return &Constant{elementType: c.elementType, shape: c.shape.Clone(), data: c.data}
}

// Copy returns a constant with its own copy of the buffer.
func (c *Constant) Copy() *Constant {
	return &Constant{elementType: c.elementType, shape: c.shape.Clone(), data: slices.Clone(c.data)}
}

// ElementType of the constant.
func (c *Constant) ElementType() element.Type { return c.elementType }

// Shape of the constant, always static.
func (c *Constant) Shape() shapes.PartialShape { return c.shape }

// Data returns the raw buffer. It must not be modified.
func (c *Constant) Data() []byte { return c.data }

// SharesData returns whether c and other use the same underlying buffer.
func (c *Constant) SharesData(other *Constant) bool {
	if len(c.data) == 0 || len(other.data) == 0 {
		return false
	}
	return &c.data[0] == &other.data[0]
}

// Values decodes the buffer to a flat Go slice, see element.Decode.
func (c *Constant) Values() (any, error) {
	return element.Decode(c.elementType, c.data, c.shape.Size())
}

// Float64s decodes the buffer to float64 values.
func (c *Constant) Float64s() ([]float64, error) {
	return element.DecodeFloat64(c.elementType, c.data, c.shape.Size())
}

// Int64s decodes an integer buffer to int64 values.
func (c *Constant) Int64s() ([]int64, error) {
	return element.DecodeInt64(c.elementType, c.data, c.shape.Size())
}

// Attributes implements Attributer.
func (c *Constant) Attributes() map[string]any {
	return map[string]any{"value": c.data}
}

// String implements fmt.Stringer.
func (c *Constant) String() string {
	return fmt.Sprintf("[%s]", humanize.IBytes(uint64(len(c.data))))
}
