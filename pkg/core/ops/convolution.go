// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"slices"

	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/gp1322719830/ngraph/pkg/support/sets"
	"github.com/pkg/errors"
)

// ConvolutionWindow holds the window attributes of a convolution over the spatial axes. Each
// field has one value per spatial axis, or is empty for the default (1 for strides and
// dilations, 0 for paddings).
type ConvolutionWindow struct {
	Strides      []int
	Dilations    []int
	PaddingBelow []int
	PaddingAbove []int
	DataDilation []int
}

func (w ConvolutionWindow) clone() ConvolutionWindow {
	return ConvolutionWindow{
		Strides:      slices.Clone(w.Strides),
		Dilations:    slices.Clone(w.Dilations),
		PaddingBelow: slices.Clone(w.PaddingBelow),
		PaddingAbove: slices.Clone(w.PaddingAbove),
		DataDilation: slices.Clone(w.DataDilation),
	}
}

func (w ConvolutionWindow) attributes(attrs map[string]any) map[string]any {
	attrs["strides"] = slices.Clone(w.Strides)
	attrs["dilations"] = slices.Clone(w.Dilations)
	attrs["padding_below"] = slices.Clone(w.PaddingBelow)
	attrs["padding_above"] = slices.Clone(w.PaddingAbove)
	attrs["data_dilation"] = slices.Clone(w.DataDilation)
	return attrs
}

// valueOr returns values[axis], or defaultValue if values is empty.
func valueOr(values []int, axis, defaultValue int) int {
	if len(values) == 0 {
		return defaultValue
	}
	return values[axis]
}

// infer returns the output shape of a convolution of data [N, C_in, spatial...] with filters
// [C_out, C_in, window...].
func (w ConvolutionWindow) infer(data, filters shapes.PartialShape) (shapes.PartialShape, error) {
	spatialRank := shapes.Dynamic
	for _, s := range []shapes.PartialShape{data, filters} {
		if s.RankIsDynamic() {
			continue
		}
		if s.Rank() < 3 {
			return shapes.PartialShape{}, errors.Errorf("convolution operands must have rank >= 3, got %s", s)
		}
		if spatialRank != shapes.Dynamic && s.Rank()-2 != spatialRank {
			return shapes.PartialShape{}, errors.Errorf("convolution data %s and filters %s have different ranks", data, filters)
		}
		spatialRank = s.Rank() - 2
	}
	for _, attr := range []struct {
		name   string
		values []int
	}{
		{"strides", w.Strides}, {"dilations", w.Dilations}, {"padding below", w.PaddingBelow},
		{"padding above", w.PaddingAbove}, {"data dilation", w.DataDilation},
	} {
		name, values := attr.name, attr.values
		if len(values) == 0 {
			continue
		}
		if spatialRank == shapes.Dynamic {
			spatialRank = len(values)
		}
		if len(values) != spatialRank {
			return shapes.PartialShape{}, errors.Errorf("convolution %s %v must have %d values", name, values, spatialRank)
		}
	}
	for _, values := range [][]int{w.Strides, w.Dilations, w.DataDilation} {
		for _, v := range values {
			if v <= 0 {
				return shapes.PartialShape{}, errors.Errorf("convolution strides and dilations must be positive, got %v", values)
			}
		}
	}
	if spatialRank == shapes.Dynamic {
		return shapes.DynamicRank(), nil
	}
	if data.RankIsDynamic() {
		data = shapes.DynamicOfRank(spatialRank + 2)
	}
	if filters.RankIsDynamic() {
		filters = shapes.DynamicOfRank(spatialRank + 2)
	}
	if _, ok := mergeDims(data.Dim(1), filters.Dim(1)); !ok {
		return shapes.PartialShape{}, errors.Errorf("convolution data %s and filters %s have different input channels", data, filters)
	}
	dims := make([]int, spatialRank+2)
	dims[0], dims[1] = data.Dim(0), filters.Dim(0)
	for axis := range spatialRank {
		in, window := data.Dim(axis+2), filters.Dim(axis+2)
		if in == shapes.Dynamic || window == shapes.Dynamic {
			dims[axis+2] = shapes.Dynamic
			continue
		}
		dilatedIn := 0
		if in > 0 {
			dilatedIn = (in-1)*valueOr(w.DataDilation, axis, 1) + 1
		}
		padded := dilatedIn + valueOr(w.PaddingBelow, axis, 0) + valueOr(w.PaddingAbove, axis, 0)
		dilatedWindow := (window-1)*valueOr(w.Dilations, axis, 1) + 1
		if window == 0 || dilatedWindow > padded {
			return shapes.PartialShape{}, errors.Errorf("convolution window of spatial axis %d (%d dilated) doesn't fit the padded input (%d)",
				axis, dilatedWindow, padded)
		}
		dims[axis+2] = (padded-dilatedWindow)/valueOr(w.Strides, axis, 1) + 1
	}
	return shapes.Make(dims...), nil
}

// Convolution v0 convolves a data batch [N, C_in, spatial...] with filters [C_out, C_in, window...].
type Convolution struct {
	ConvolutionWindow
}

// TypeInfo implements graph.Operator.
func (op *Convolution) TypeInfo() graph.TypeInfo { return v0("Convolution") }

// Clone implements graph.Operator.
func (op *Convolution) Clone() graph.Operator { return &Convolution{op.ConvolutionWindow.clone()} }

// Attributes implements graph.Attributer.
func (op *Convolution) Attributes() map[string]any {
	return op.ConvolutionWindow.attributes(make(map[string]any))
}

// Infer implements graph.Operator.
func (op *Convolution) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 2, 2); err != nil {
		return nil, err
	}
	elementType, err := mergeNumeric("Convolution", inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	shape, err := op.ConvolutionWindow.infer(inputs[0].Shape(), inputs[1].Shape())
	if err != nil {
		return nil, err
	}
	return single(elementType, shape), nil
}

// QuantizedConvolution v0 convolves quantized data and filters and quantizes the result to OutputType.
//
// Inputs: data, filters, input_scale, input_zero_point, filter_scale, filter_zero_point,
// output_scale and output_zero_point. The axes sets select channel-wise quantization.
type QuantizedConvolution struct {
	ConvolutionWindow
	OutputType                        element.Type
	InputAxes, FilterAxes, OutputAxes sets.Set[int]
}

// Quantized convolution input indices.
const (
	QConvInput = iota
	QConvFilters
	QConvInputScale
	QConvInputZeroPoint
	QConvFilterScale
	QConvFilterZeroPoint
	QConvOutputScale
	QConvOutputZeroPoint
	qconvNumInputs
)

// TypeInfo implements graph.Operator.
func (op *QuantizedConvolution) TypeInfo() graph.TypeInfo { return v0("QuantizedConvolution") }

// Clone implements graph.Operator.
func (op *QuantizedConvolution) Clone() graph.Operator {
	return &QuantizedConvolution{
		ConvolutionWindow: op.ConvolutionWindow.clone(),
		OutputType:        op.OutputType,
		InputAxes:         op.InputAxes.Clone(),
		FilterAxes:        op.FilterAxes.Clone(),
		OutputAxes:        op.OutputAxes.Clone(),
	}
}

// Attributes implements graph.Attributer.
func (op *QuantizedConvolution) Attributes() map[string]any {
	attrs := op.ConvolutionWindow.attributes(make(map[string]any))
	attrs["output_type"] = op.OutputType.String()
	attrs["input_axes"] = sets.Sorted(op.InputAxes)
	attrs["filter_axes"] = sets.Sorted(op.FilterAxes)
	attrs["output_axes"] = sets.Sorted(op.OutputAxes)
	return attrs
}

// Infer implements graph.Operator.
func (op *QuantizedConvolution) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, qconvNumInputs, qconvNumInputs); err != nil {
		return nil, err
	}
	if !op.OutputType.IsStatic() {
		return nil, errors.Errorf("QuantizedConvolution output type must be static, got %s", op.OutputType)
	}
	quantized := func(et element.Type) bool { return et.IsDynamic() || et == element.I8 || et == element.U8 }
	data, filters := inputs[QConvInput], inputs[QConvFilters]
	if !quantized(data.ElementType()) || !quantized(filters.ElementType()) {
		return nil, errors.Errorf("QuantizedConvolution data and filters must be i8 or u8, got %s and %s",
			data.ElementType(), filters.ElementType())
	}
	for _, pair := range [][2]int{
		{QConvInputScale, QConvInputZeroPoint},
		{QConvFilterScale, QConvFilterZeroPoint},
		{QConvOutputScale, QConvOutputZeroPoint},
	} {
		scale := inputs[pair[0]].ElementType()
		if !scale.IsDynamic() && !scale.IsFloat() {
			return nil, errors.Errorf("QuantizedConvolution scale (input #%d) must be a float, got %s", pair[0], scale)
		}
	}
	zeroPointTypes := []struct {
		zeroPoint int
		want      element.Type
	}{
		{QConvInputZeroPoint, data.ElementType()},
		{QConvFilterZeroPoint, filters.ElementType()},
		{QConvOutputZeroPoint, op.OutputType},
	}
	for _, zp := range zeroPointTypes {
		if !inputs[zp.zeroPoint].ElementType().Compatible(zp.want) {
			return nil, errors.Errorf("QuantizedConvolution zero point (input #%d) has element type %s, expected %s",
				zp.zeroPoint, inputs[zp.zeroPoint].ElementType(), zp.want)
		}
	}
	shape, err := op.ConvolutionWindow.infer(data.Shape(), filters.Shape())
	if err != nil {
		return nil, err
	}
	return single(op.OutputType, shape), nil
}
