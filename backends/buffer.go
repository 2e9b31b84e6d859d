// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/pkg/errors"
)

// Buffer holds the data of one tensor in host memory, as a raw little-endian buffer.
type Buffer struct {
	ElementType element.Type
	Dims        []int
	Data        []byte
}

// NewBuffer allocates a zero-initialized buffer.
func NewBuffer(elementType element.Type, dims ...int) *Buffer {
	b := &Buffer{ElementType: elementType, Dims: slices.Clone(dims)}
	b.Data = make([]byte, elementType.ByteSize(b.Size()))
	return b
}

// BufferFromFlat creates a buffer from a flat Go slice (e.g. []float32) and its dimensions.
func BufferFromFlat(flat any, dims ...int) (*Buffer, error) {
	elementType, data, err := element.Encode(flat)
	if err != nil {
		return nil, err
	}
	b := &Buffer{ElementType: elementType, Dims: slices.Clone(dims), Data: data}
	if want := elementType.ByteSize(b.Size()); want != len(data) {
		return nil, errors.Errorf("flat value with %d bytes doesn't match dimensions %v of %s (%d bytes)",
			len(data), dims, elementType, want)
	}
	return b, nil
}

// Size returns the number of elements.
func (b *Buffer) Size() int {
	size := 1
	for _, dim := range b.Dims {
		size *= dim
	}
	return size
}

// Flat decodes the buffer to a flat Go slice, see element.Decode.
func (b *Buffer) Flat() (any, error) {
	return element.Decode(b.ElementType, b.Data, b.Size())
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{ElementType: b.ElementType, Dims: slices.Clone(b.Dims), Data: slices.Clone(b.Data)}
}

// SameType returns whether b and other have the same element type and dimensions.
func (b *Buffer) SameType(other *Buffer) bool {
	return b.ElementType == other.ElementType && slices.Equal(b.Dims, other.Dims)
}

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%s%v, %s)", b.ElementType, b.Dims, humanize.IBytes(uint64(len(b.Data))))
}
