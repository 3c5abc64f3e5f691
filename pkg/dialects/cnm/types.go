// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cnm

import (
	"fmt"
	"slices"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/shapes"
	"github.com/gomlx/cinnamon/pkg/support/xslices"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// WorkgroupType is the type of a grid of workers, e.g. !cnm.workgroup<4x16> is a grid of 4
// ranks of 16 DPUs each.
type WorkgroupType struct {
	Shape []int
}

// Workgroup returns a WorkgroupType with the given extents. It panics if any extent is not
// positive.
func Workgroup(extents ...int) *WorkgroupType {
	if len(extents) == 0 {
		exceptions.Panicf("cnm.Workgroup(): a workgroup needs at least one axis")
	}
	for axis, e := range extents {
		if e <= 0 {
			exceptions.Panicf("cnm.Workgroup(%v): extent of axis %d must be > 0", extents, axis)
		}
	}
	return &WorkgroupType{Shape: slices.Clone(extents)}
}

// NumWorkers is the total number of workers: the product of the extents.
func (t *WorkgroupType) NumWorkers() int { return xslices.Product(t.Shape) }

// Rank is the number of axes of the workgroup.
func (t *WorkgroupType) Rank() int { return len(t.Shape) }

// String implements ir.Type.
func (t *WorkgroupType) String() string {
	return "!cnm.workgroup<" + shapes.FormatDims(t.Shape) + ">"
}

// Equal implements ir.Type.
func (t *WorkgroupType) Equal(other ir.Type) bool {
	o, ok := other.(*WorkgroupType)
	return ok && slices.Equal(t.Shape, o.Shape)
}

// BufferType is the type of a buffer distributed over a workgroup: each worker owns a local
// buffer of the given (per-worker) shape.
type BufferType struct {
	// PerWorker is the shape of the buffer of each worker. A scalar shape means one element.
	PerWorker shapes.Shape

	// WorkgroupShape is the shape of the workgroup the buffer is allocated on.
	WorkgroupShape []int

	// Level is the memory level the buffer lives in, 0 being the main memory of a worker.
	Level int
}

// Buffer returns a BufferType.
func Buffer(dtype dtypes.DType, perWorker []int, wg *WorkgroupType, level int) *BufferType {
	return &BufferType{
		PerWorker:      shapes.Make(dtype, perWorker...),
		WorkgroupShape: slices.Clone(wg.Shape),
		Level:          level,
	}
}

// Shape implements ir.ShapedType: it is the per-worker shape.
func (t *BufferType) Shape() shapes.Shape { return t.PerWorker }

// MemRef is the type a launch body sees the buffer as.
func (t *BufferType) MemRef() *ir.MemRefType { return ir.MemRefOf(t.PerWorker) }

// String implements ir.Type.
func (t *BufferType) String() string {
	elem := ir.DTypeName(t.PerWorker.DType)
	if !t.PerWorker.IsScalar() {
		elem = shapes.FormatDims(t.PerWorker.Dimensions) + "x" + elem
	}
	return fmt.Sprintf("!cnm.buffer<%s on %s, level %d>", elem, shapes.FormatDims(t.WorkgroupShape), t.Level)
}

// Equal implements ir.Type.
func (t *BufferType) Equal(other ir.Type) bool {
	o, ok := other.(*BufferType)
	return ok && t.PerWorker.Equal(o.PerWorker) && slices.Equal(t.WorkgroupShape, o.WorkgroupShape) && t.Level == o.Level
}

// GatherTokenType is the type of the token returned by a gather, used to order it.
type GatherTokenType struct{}

// String implements ir.Type.
func (GatherTokenType) String() string { return "!cnm.gather_token" }

// Equal implements ir.Type.
func (GatherTokenType) Equal(other ir.Type) bool {
	_, ok := other.(GatherTokenType)
	return ok
}
