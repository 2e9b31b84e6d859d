// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// EmbeddingBagOffsetsSum v3 sums bags of rows of an embedding table.
//
// Inputs: emb_table [N, ...], indices [K], offsets [B] (start of each bag in indices), and
// optionally default_index (scalar, used for empty bags) and per_sample_weights [K]. The output
// has shape [B, ...].
type EmbeddingBagOffsetsSum struct{}

// EmbeddingBagOffsetsSum input indices.
const (
	EmbBagTable = iota
	EmbBagIndices
	EmbBagOffsets
	EmbBagDefaultIndex
	EmbBagPerSampleWeights
)

// TypeInfo implements graph.Operator.
func (op *EmbeddingBagOffsetsSum) TypeInfo() graph.TypeInfo {
	return graph.TypeInfo{Name: "EmbeddingBagOffsetsSum", Version: 3}
}

// Clone implements graph.Operator.
func (op *EmbeddingBagOffsetsSum) Clone() graph.Operator { return &EmbeddingBagOffsetsSum{} }

func isIndexType(et element.Type) bool {
	return et.IsDynamic() || et == element.I32 || et == element.I64
}

// Infer implements graph.Operator.
func (op *EmbeddingBagOffsetsSum) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 3, 5); err != nil {
		return nil, err
	}
	table, indices, offsets := inputs[EmbBagTable], inputs[EmbBagIndices], inputs[EmbBagOffsets]
	if !isIndexType(indices.ElementType()) {
		return nil, errors.New("INDICES type must be i32 or i64")
	}
	if !isIndexType(offsets.ElementType()) {
		return nil, errors.New("OFFSETS type must be i32 or i64")
	}
	if !offsets.ElementType().Compatible(indices.ElementType()) {
		return nil, errors.Errorf("Offsets element type (%s) must match indices element type (%s)",
			offsets.ElementType(), indices.ElementType())
	}
	if len(inputs) > EmbBagDefaultIndex {
		defaultIndex := inputs[EmbBagDefaultIndex]
		if !isIndexType(defaultIndex.ElementType()) {
			return nil, errors.New("DEFAULT_INDEX type must be i32 or i64")
		}
		if !defaultIndex.ElementType().Compatible(indices.ElementType()) {
			return nil, errors.Errorf("Default_index element type (%s) must match indices element type (%s)",
				defaultIndex.ElementType(), indices.ElementType())
		}
	}
	if len(inputs) > EmbBagPerSampleWeights {
		weights := inputs[EmbBagPerSampleWeights]
		if !weights.ElementType().Compatible(table.ElementType()) {
			return nil, errors.Errorf("Per sample weight element type (%s) must match embedding table element type (%s)",
				weights.ElementType(), table.ElementType())
		}
	}

	if requireRank("", indices.Shape(), 1) != nil {
		return nil, errors.New("INDICES must be 1D")
	}
	if requireRank("", offsets.Shape(), 1) != nil {
		return nil, errors.New("OFFSETS must be 1D")
	}
	if len(inputs) > EmbBagDefaultIndex {
		if shape := inputs[EmbBagDefaultIndex].Shape(); !shape.RankIsDynamic() && !shape.IsScalar() {
			return nil, errors.New("DEFAULT_INDEX must be a scalar")
		}
	}
	if len(inputs) > EmbBagPerSampleWeights {
		weights := inputs[EmbBagPerSampleWeights]
		if requireRank("", weights.Shape(), 1) != nil {
			return nil, errors.New("PER_SAMPLE_WEIGHTS must be 1D")
		}
		if !weights.Shape().Compatible(indices.Shape()) {
			return nil, errors.New("INDICES and PER_SAMPLE_WEIGHTS shape must be same")
		}
	}

	tableShape := table.Shape()
	if tableShape.RankIsDynamic() {
		return single(table.ElementType(), shapes.DynamicRank()), nil
	}
	if tableShape.Rank() < 1 {
		return nil, errors.Errorf("EMB_TABLE must have rank >= 1, got %s", tableShape)
	}
	dims := tableShape.Dimensions()
	dims[0] = shapes.Dynamic
	if offsetsShape := offsets.Shape(); !offsetsShape.RankIsDynamic() {
		dims[0] = offsetsShape.Dim(0)
	}
	return single(table.ElementType(), shapes.Make(dims...)), nil
}
