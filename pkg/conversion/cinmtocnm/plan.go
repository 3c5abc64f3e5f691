// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cinmtocnm

import (
	"slices"

	"github.com/gomlx/cinnamon/pkg/core/affine"
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/dialects/cnm"
	"github.com/gomlx/cinnamon/pkg/support/xslices"
	"github.com/gomlx/exceptions"
)

// ComputeShapes returns how a tensor with the given dimensions is distributed over wg:
//
//   - tensorShape is the shape the tensor is reshaped to, the workgroup extents followed by the
//     number of elements of each worker (omitted if it is 1).
//   - bufferShape is the shape of the buffer of each worker: the number of elements of each
//     worker, or empty (a scalar) if it is 1.
//
// It panics if the number of elements is not a multiple of the number of workers: the
// Selector must only select workgroups that divide the tensors.
func ComputeShapes(dimensions []int, wg *cnm.WorkgroupType) (tensorShape, bufferShape []int) {
	numElements := xslices.Product(dimensions)
	numWorkers := wg.NumWorkers()
	if numElements%numWorkers != 0 {
		exceptions.Panicf("cannot distribute %d elements (dimensions %v) over %d workers of %s",
			numElements, dimensions, numWorkers, wg)
	}
	remainder := numElements / numWorkers
	tensorShape = slices.Clone(wg.Shape)
	if remainder != 1 {
		tensorShape = append(tensorShape, remainder)
		bufferShape = []int{remainder}
	}
	return
}

// ComputeAffineMap returns the map used to scatter and gather tensors over wg. It has two inputs
// per workgroup axis and two results per axis: first the d_i floordiv wg_i for every axis i,
// then the d_i mod wg_i. Only the first rank(wg) inputs are referenced by the results.
func ComputeAffineMap(wg *cnm.WorkgroupType) affine.Map {
	results := make([]affine.Expr, 0, 2*wg.Rank())
	for ii, extent := range wg.Shape {
		results = append(results, affine.Dim(ii).FloorDiv(int64(extent)))
	}
	for ii, extent := range wg.Shape {
		results = append(results, affine.Dim(ii).Mod(int64(extent)))
	}
	return affine.NewMap(2*wg.Rank(), results...)
}

// Plan is how one operand of a reduction is distributed over a workgroup.
type Plan struct {
	Operand  *ir.Value
	Original *ir.TensorType

	// Reshaped is the shape of the tensor scattered into the buffer.
	Reshaped []int

	Buffer *cnm.BufferType
	Map    affine.Map
}

// PlanOperand computes the Plan of a tensor operand. The buffers are allocated at level 0.
func PlanOperand(operand *ir.Value, wg *cnm.WorkgroupType) Plan {
	tensorType, ok := operand.Type().(*ir.TensorType)
	if !ok {
		exceptions.Panicf("cannot plan the distribution of a %s, only tensors are supported", operand.Type())
	}
	tensorShape, bufferShape := ComputeShapes(tensorType.Shape().Dimensions, wg)
	return Plan{
		Operand:  operand,
		Original: tensorType,
		Reshaped: tensorShape,
		Buffer:   cnm.Buffer(tensorType.Shape().DType, bufferShape, wg, 0),
		Map:      ComputeAffineMap(wg),
	}
}
