// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strings"

	"github.com/gomlx/cinnamon/pkg/core/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// Type of Value in a program.
type Type interface {
	fmt.Stringer

	// Equal returns whether the other type is the same type.
	Equal(other Type) bool
}

// ShapedType is implemented by types that have a static shape: tensors, memrefs and dialect
// buffers.
type ShapedType interface {
	Type
	Shape() shapes.Shape
}

// DTypeName returns the MLIR-like short name of a dtype, e.g. "f32" or "i1".
func DTypeName(dtype dtypes.DType) string {
	switch dtype {
	case dtypes.Float16:
		return "f16"
	case dtypes.BFloat16:
		return "bf16"
	case dtypes.Float32:
		return "f32"
	case dtypes.Float64:
		return "f64"
	case dtypes.Bool:
		return "i1"
	case dtypes.Int8:
		return "i8"
	case dtypes.Int16:
		return "i16"
	case dtypes.Int32:
		return "i32"
	case dtypes.Int64:
		return "i64"
	case dtypes.Uint8:
		return "ui8"
	case dtypes.Uint32:
		return "ui32"
	case dtypes.Uint64:
		return "ui64"
	}
	return strings.ToLower(dtype.String())
}

func shapedString(s shapes.Shape) string {
	if s.Rank() == 0 {
		return DTypeName(s.DType)
	}
	return s.DimsString() + "x" + DTypeName(s.DType)
}

// TensorType is an immutable value-semantics multidimensional array, "tensor<4x16xf32>".
type TensorType struct {
	shape shapes.Shape
}

// Tensor returns the tensor type with the given dtype and dimensions.
func Tensor(dtype dtypes.DType, dimensions ...int) *TensorType {
	return &TensorType{shape: shapes.Make(dtype, dimensions...)}
}

// TensorOf returns the tensor type with the given shape.
func TensorOf(shape shapes.Shape) *TensorType {
	return &TensorType{shape: shape.Clone()}
}

// Shape implements ShapedType.
func (t *TensorType) Shape() shapes.Shape { return t.shape }

// String implements Type.
func (t *TensorType) String() string { return "tensor<" + shapedString(t.shape) + ">" }

// Equal implements Type.
func (t *TensorType) Equal(other Type) bool {
	o, ok := other.(*TensorType)
	return ok && t.shape.Equal(o.shape)
}

// MemRefType is a reference to a mutable region of memory with a static shape, "memref<64xf32>".
type MemRefType struct {
	shape shapes.Shape
}

// MemRef returns the memref type with the given dtype and dimensions.
func MemRef(dtype dtypes.DType, dimensions ...int) *MemRefType {
	return &MemRefType{shape: shapes.Make(dtype, dimensions...)}
}

// MemRefOf returns the memref type with the given shape.
func MemRefOf(shape shapes.Shape) *MemRefType {
	return &MemRefType{shape: shape.Clone()}
}

// Shape implements ShapedType.
func (t *MemRefType) Shape() shapes.Shape { return t.shape }

// String implements Type.
func (t *MemRefType) String() string { return "memref<" + shapedString(t.shape) + ">" }

// Equal implements Type.
func (t *MemRefType) Equal(other Type) bool {
	o, ok := other.(*MemRefType)
	return ok && t.shape.Equal(o.shape)
}

// ScalarType is a single element of the given dtype, e.g. "f32" or "i1".
type ScalarType struct {
	DType dtypes.DType
}

// Scalar returns the scalar type for dtype.
func Scalar(dtype dtypes.DType) *ScalarType {
	return &ScalarType{DType: dtype}
}

// String implements Type.
func (t *ScalarType) String() string { return DTypeName(t.DType) }

// Equal implements Type.
func (t *ScalarType) Equal(other Type) bool {
	o, ok := other.(*ScalarType)
	return ok && t.DType == o.DType
}

// IndexType is the type of loop indices and sizes.
type IndexType struct{}

// String implements Type.
func (IndexType) String() string { return "index" }

// Equal implements Type.
func (IndexType) Equal(other Type) bool {
	_, ok := other.(IndexType)
	return ok
}

// TypesEqual compares two lists of types.
func TypesEqual(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for ii := range a {
		if !a[ii].Equal(b[ii]) {
			return false
		}
	}
	return true
}

// IsTensor returns the TensorType if t is a tensor.
func IsTensor(t Type) (*TensorType, bool) {
	tt, ok := t.(*TensorType)
	return tt, ok
}
