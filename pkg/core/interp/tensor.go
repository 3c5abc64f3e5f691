// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interp

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/cinnamon/pkg/core/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// Tensor is a concrete value of a tensor or memref: its shape and its elements in row-major
// order.
//
// Elements are stored as float64, always rounded to what the dtype of the shape can represent.
type Tensor struct {
	Shape shapes.Shape
	Data  []float64
}

// NewTensor creates a tensor with a copy of data, rounded to the dtype. It panics if the number
// of elements doesn't match the shape.
func NewTensor(shape shapes.Shape, data []float64) *Tensor {
	if len(data) != shape.Size() {
		exceptions.Panicf("interp.NewTensor(%s): got %d elements, wanted %d", shape, len(data), shape.Size())
	}
	t := &Tensor{Shape: shape.Clone(), Data: make([]float64, len(data))}
	for ii, v := range data {
		t.Data[ii] = Round(shape.DType, v)
	}
	return t
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape shapes.Shape) *Tensor {
	return &Tensor{Shape: shape.Clone(), Data: make([]float64, shape.Size())}
}

// Iota creates a tensor whose elements are their flat index, rounded to the dtype.
func Iota(shape shapes.Shape) *Tensor {
	t := Zeros(shape)
	for ii := range t.Data {
		t.Data[ii] = Round(shape.DType, float64(ii))
	}
	return t
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) float64 {
	return t.Data[t.Shape.LinearIndex(indices)]
}

// View returns a tensor with another shape of the same size that shares the elements.
func (t *Tensor) View(dimensions ...int) *Tensor {
	shape := t.Shape.WithDimensions(dimensions...)
	if shape.Size() != len(t.Data) {
		exceptions.Panicf("interp: cannot view %s as %v", t.Shape, dimensions)
	}
	return &Tensor{Shape: shape, Data: t.Data}
}

// Clone returns a copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: t.Shape.Clone(), Data: slices.Clone(t.Data)}
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if len(t.Data) > 8 {
		return fmt.Sprintf("%s%v...", t.Shape, t.Data[:8])
	}
	return fmt.Sprintf("%s%v", t.Shape, t.Data)
}

// Round returns v rounded to the closest value representable by dtype.
func Round(dtype dtypes.DType, v float64) float64 {
	switch dtype {
	case dtypes.Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case dtypes.BFloat16:
		return float64(bfloat16.FromFloat32(float32(v)).Float32())
	case dtypes.Float32:
		return float64(float32(v))
	case dtypes.Float64:
		return v
	case dtypes.Bool:
		if v != 0 {
			return 1
		}
		return 0
	case dtypes.Int8:
		return float64(int8(v))
	case dtypes.Int16:
		return float64(int16(v))
	case dtypes.Int32:
		return float64(int32(v))
	case dtypes.Int64:
		return float64(int64(v))
	case dtypes.Uint8:
		return float64(uint8(math.Max(v, 0)))
	case dtypes.Uint32:
		return float64(uint32(math.Max(v, 0)))
	case dtypes.Uint64:
		return float64(uint64(math.Max(v, 0)))
	}
	return v
}
