// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package linalg defines the structured reduction operation and its region terminator.
//
// A linalg.reduce has a list of inputs and a list of inits (the accumulators). It reduces the
// inputs over the axes listed in its "dimensions" attribute, combining elements with the body
// region: the body block takes one scalar per input followed by one scalar per init, and yields
// one scalar per init.
//
// On tensors the reduce returns one result per init. On memrefs it has no results and updates
// the inits in place.
package linalg

import (
	"slices"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

const (
	ReduceOp = "linalg.reduce"
	YieldOp  = "linalg.yield"

	// DimensionsAttr lists the reduced axes, sorted.
	DimensionsAttr = "dimensions"

	// SegmentsAttr holds [numInputs, numInits].
	SegmentsAttr = "operand_segment_sizes"
)

func init() {
	ir.RegisterOp(ir.OpInfo{Name: ReduceOp, Verify: verifyReduce})
	ir.RegisterOp(ir.OpInfo{Name: YieldOp, Traits: ir.Terminator, Verify: verifyYield})
}

// BodyFn builds the combiner of a reduction: it gets the block arguments (input elements then
// accumulators) and returns the values to yield.
type BodyFn func(b *ir.Builder, args []*ir.Value) []*ir.Value

// Reduce creates a linalg.reduce and its body. It returns the created operation.
//
// If body is nil the region is left empty, to be filled by the caller (e.g. with a clone of
// another body).
//
// For tensor inits the results have the types of the inits, for memref inits there are no
// results.
func Reduce(b *ir.Builder, inputs, inits []*ir.Value, dimensions []int, body BodyFn) *ir.Operation {
	var resultTypes []ir.Type
	for _, init := range inits {
		if _, ok := init.Type().(*ir.TensorType); ok {
			resultTypes = append(resultTypes, init.Type())
		}
	}
	op := b.Create(ir.OperationState{
		Name:        ReduceOp,
		Operands:    slices.Concat(inputs, inits),
		ResultTypes: resultTypes,
		Attributes: []ir.NamedAttr{
			{Name: DimensionsAttr, Value: ir.IntsAttr(slices.Clone(dimensions))},
			{Name: SegmentsAttr, Value: ir.IntsAttr{len(inputs), len(inits)}},
		},
		NumRegions: 1,
	})
	if body == nil {
		return op
	}
	argTypes := make([]ir.Type, 0, len(inputs)+len(inits))
	for _, v := range slices.Concat(inputs, inits) {
		argTypes = append(argTypes, ir.Scalar(ElementType(v.Type())))
	}
	block := op.Region(0).EmplaceBlock(argTypes...)
	bodyBuilder := ir.NewBuilder()
	bodyBuilder.SetLocation(b.Location())
	bodyBuilder.SetInsertionPointToEnd(block)
	Yield(bodyBuilder, body(bodyBuilder, block.Arguments())...)
	return op
}

// Yield creates the terminator of a reduction body.
func Yield(b *ir.Builder, values ...*ir.Value) *ir.Operation {
	return b.Create(ir.OperationState{Name: YieldOp, Operands: values})
}

// ElementType returns the dtype of a tensor, memref or scalar type. It panics for other types.
func ElementType(t ir.Type) (dtype dtypes.DType) {
	switch tt := t.(type) {
	case ir.ShapedType:
		return tt.Shape().DType
	case *ir.ScalarType:
		return tt.DType
	}
	exceptions.Panicf("type %s has no element type", t)
	return
}

// ReduceView gives typed access to a linalg.reduce operation.
type ReduceView struct {
	Op *ir.Operation
}

// AsReduce returns a view of op if it is a linalg.reduce.
func AsReduce(op *ir.Operation) (ReduceView, bool) {
	if op == nil || !op.Is(ReduceOp) {
		return ReduceView{}, false
	}
	return ReduceView{Op: op}, true
}

func (r ReduceView) segments() (numInputs, numInits int) {
	seg, ok := r.Op.IntsAttr(SegmentsAttr)
	if !ok || len(seg) != 2 {
		exceptions.Panicf("%s at %s: missing or invalid %q attribute", ReduceOp, r.Op.Location(), SegmentsAttr)
	}
	return seg[0], seg[1]
}

// Inputs returns the reduced operands.
func (r ReduceView) Inputs() []*ir.Value {
	numInputs, _ := r.segments()
	return r.Op.Operands()[:numInputs]
}

// Inits returns the accumulator operands.
func (r ReduceView) Inits() []*ir.Value {
	numInputs, _ := r.segments()
	return r.Op.Operands()[numInputs:]
}

// Dimensions returns the reduced axes.
func (r ReduceView) Dimensions() []int {
	dims, _ := r.Op.IntsAttr(DimensionsAttr)
	return dims
}

// Body returns the block with the combiner.
func (r ReduceView) Body() *ir.Block {
	return r.Op.Region(0).Front()
}

// OnTensors returns whether all operands are tensors.
func (r ReduceView) OnTensors() bool {
	for _, v := range r.Op.Operands() {
		if _, ok := v.Type().(*ir.TensorType); !ok {
			return false
		}
	}
	return true
}

func verifyReduce(op *ir.Operation) error {
	r := ReduceView{Op: op}
	seg, ok := op.IntsAttr(SegmentsAttr)
	if !ok || len(seg) != 2 || seg[0] < 1 || seg[1] < 1 || seg[0]+seg[1] != op.NumOperands() {
		return errors.Errorf("invalid %q attribute %v for %d operands", SegmentsAttr, seg, op.NumOperands())
	}
	dims, ok := op.IntsAttr(DimensionsAttr)
	if !ok {
		return errors.Errorf("missing %q attribute", DimensionsAttr)
	}
	inputs, inits := r.Inputs(), r.Inits()
	var inputShape shapes.Shape
	for ii, v := range op.Operands() {
		st, ok := v.Type().(ir.ShapedType)
		if !ok {
			return errors.Errorf("operand #%d has non-shaped type %s", ii, v.Type())
		}
		if ii == 0 {
			inputShape = st.Shape()
		}
	}
	for ii, v := range inputs {
		s := v.Type().(ir.ShapedType).Shape()
		if !slices.Equal(s.Dimensions, inputShape.Dimensions) {
			return errors.Errorf("input #%d has shape %s, expected dimensions %v", ii, s, inputShape.Dimensions)
		}
	}
	for ii, d := range dims {
		if d < 0 || d >= inputShape.Rank() || (ii > 0 && d <= dims[ii-1]) {
			return errors.Errorf("dimensions %v must be sorted, unique and within the input rank %d", dims, inputShape.Rank())
		}
	}
	var wantInitDims []int
	for axis, d := range inputShape.Dimensions {
		if !slices.Contains(dims, axis) {
			wantInitDims = append(wantInitDims, d)
		}
	}
	for ii, v := range inits {
		s := v.Type().(ir.ShapedType).Shape()
		if !slices.Equal(s.Dimensions, wantInitDims) {
			return errors.Errorf("init #%d has shape %s, expected dimensions %v after reducing %v of %s",
				ii, s, wantInitDims, dims, inputShape)
		}
	}
	if r.OnTensors() {
		if op.NumResults() != len(inits) {
			return errors.Errorf("reduce on tensors must have %d results, got %d", len(inits), op.NumResults())
		}
		for ii, init := range inits {
			if !init.Type().Equal(op.Result(ii).Type()) {
				return errors.Errorf("result #%d has type %s, but its init has type %s", ii, op.Result(ii).Type(), init.Type())
			}
		}
	} else if op.NumResults() != 0 {
		return errors.Errorf("reduce on memrefs can't have results, got %d", op.NumResults())
	}
	body := r.Body()
	if body == nil || body.NumArguments() != op.NumOperands() {
		return errors.Errorf("body must take %d arguments", op.NumOperands())
	}
	if term := body.Terminator(); term == nil || !term.Is(YieldOp) || term.NumOperands() != len(inits) {
		return errors.Errorf("body must end with a %s of %d values", YieldOp, len(inits))
	}
	return nil
}

func verifyYield(op *ir.Operation) error {
	parent := op.ParentOp()
	if parent == nil || !parent.Is(ReduceOp) {
		return errors.Errorf("%s must be nested directly in a %s", YieldOp, ReduceOp)
	}
	return nil
}
