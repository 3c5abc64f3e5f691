// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package memref defines views on memory buffers.
package memref

import (
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/pkg/errors"
)

// ExpandShapeOp reinterprets a memref with a higher-rank shape of the same size, without moving
// memory.
const ExpandShapeOp = "memref.expand_shape"

func init() {
	ir.RegisterOp(ir.OpInfo{Name: ExpandShapeOp, Traits: ir.Pure, Verify: verifyExpandShape})
}

// ExpandShape creates a view of source with the given dimensions.
func ExpandShape(b *ir.Builder, source *ir.Value, dimensions ...int) *ir.Value {
	srcType := source.Type().(*ir.MemRefType)
	return b.Create(ir.OperationState{
		Name:        ExpandShapeOp,
		Operands:    []*ir.Value{source},
		ResultTypes: []ir.Type{ir.MemRef(srcType.Shape().DType, dimensions...)},
	}).Result(0)
}

func verifyExpandShape(op *ir.Operation) error {
	if op.NumOperands() != 1 || op.NumResults() != 1 {
		return errors.New("expand_shape takes one operand and has one result")
	}
	src, ok1 := op.Operand(0).Type().(*ir.MemRefType)
	result, ok2 := op.Result(0).Type().(*ir.MemRefType)
	if !ok1 || !ok2 {
		return errors.Errorf("expand_shape works on memrefs, got %s -> %s", op.Operand(0).Type(), op.Result(0).Type())
	}
	if src.Shape().DType != result.Shape().DType || src.Shape().Size() != result.Shape().Size() {
		return errors.Errorf("expand_shape must keep dtype and size: %s -> %s", src, result)
	}
	if result.Shape().Rank() < src.Shape().Rank() {
		return errors.Errorf("expand_shape can't reduce the rank: %s -> %s", src, result)
	}
	return nil
}
