// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cinmtocnm

import (
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/rewrite"
	"github.com/gomlx/cinnamon/pkg/dialects/cnm"
	"github.com/gomlx/cinnamon/pkg/dialects/linalg"
	"github.com/gomlx/cinnamon/pkg/dialects/memref"
	"github.com/gomlx/cinnamon/pkg/dialects/tensor"
	"github.com/gomlx/cinnamon/pkg/support/xslices"
)

// scatterOperand reshapes the operand to its distributed shape, allocates its buffer on the
// workgroup and scatters it there. It returns the buffer.
func scatterOperand(b *ir.Builder, plan Plan, workgroup *ir.Value) *ir.Value {
	reshaped := tensor.Reshape(b, plan.Operand, plan.Reshaped...)
	buffer := cnm.Alloc(b, plan.Buffer, workgroup)
	cnm.Scatter(b, reshaped, buffer, workgroup, plan.Map)
	return buffer
}

// LowerReduce distributes the reduction over wg, at the insertion point of rw:
//
//  1. Each operand (inputs and inits) is reshaped, scattered into a new buffer on the
//     workgroup.
//  2. A cnm.launch over all buffers runs, on every worker, a linalg.reduce on the worker's
//     memrefs, with a clone of the body of the original reduction.
//  3. The buffers of the inits are gathered back to tensors of the original result types.
//
// It returns the gathered tensors, which replace the results of the reduction. The reduction
// must be legal for wg (see Selector.IsLegal).
func LowerReduce(rw *rewrite.Rewriter, r linalg.ReduceView, wg *cnm.WorkgroupType) []*ir.Value {
	b := rw.Builder
	workgroup := cnm.NewWorkgroup(b, wg)
	operands := r.Op.Operands()
	plans := make([]Plan, len(operands))
	buffers := make([]*ir.Value, len(operands))
	for ii, operand := range operands {
		plans[ii] = PlanOperand(operand, wg)
		buffers[ii] = scatterOperand(b, plans[ii], workgroup)
	}

	launch, body := cnm.Launch(b, workgroup, buffers)
	b.SetInsertionPointToStart(body)
	numInputs := len(r.Inputs())
	inputs, inits, dims := workerView(b, r, body.Arguments(), numInputs, wg)
	inner := linalg.Reduce(b, inputs, inits, dims, nil)
	r.Op.Region(0).CloneInto(inner.Region(0), ir.NewMapping())
	cnm.Terminator(b)
	b.SetInsertionPointAfter(launch)

	results := make([]*ir.Value, 0, len(r.Inits()))
	for ii, result := range r.Op.Results() {
		plan := plans[numInputs+ii]
		gathered, _ := cnm.Gather(b, result.Type().(*ir.TensorType), buffers[numInputs+ii], workgroup, plan.Map)
		results = append(results, gathered)
	}
	return results
}

// workerView returns the operands and reduced dimensions of the reduction each worker runs on
// its memrefs.
//
// The reduced axes are the trailing ones, so each worker holds rows of the input, each one
// with the reducedSize elements that reduce into one element of its init buffer:
//
//   - Nothing reduced (elementwise): inputs and inits have the same shape, nothing is reduced.
//   - One row per worker: the flat input is reduced over its only axis into a scalar.
//   - Several rows per worker: inputs are viewed as [rows, reducedSize] and reduced over axis 1.
func workerView(b *ir.Builder, r linalg.ReduceView, args []*ir.Value, numInputs int, wg *cnm.WorkgroupType) (inputs, inits []*ir.Value, dims []int) {
	inputs, inits = args[:numInputs], args[numInputs:]
	inputShape := r.Inputs()[0].Type().(*ir.TensorType).Shape()
	parallelVolume := inputShape.VolumeExcluding(r.Dimensions())
	reducedSize := inputShape.Size() / parallelVolume
	rows := parallelVolume / wg.NumWorkers()
	switch {
	case reducedSize == 1:
		return inputs, inits, []int{}
	case rows == 1:
		return inputs, inits, []int{0}
	}
	inputs = xslices.Map(inputs, func(input *ir.Value) *ir.Value {
		return memref.ExpandShape(b, input, rows, reducedSize)
	})
	return inputs, inits, []int{1}
}
