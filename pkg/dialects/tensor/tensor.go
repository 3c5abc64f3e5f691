// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensor defines operations on value-semantics tensors.
package tensor

import (
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/dialects/arith"
	"github.com/pkg/errors"
)

// ReshapeOp changes the shape of a tensor, keeping the row-major order of its elements.
const ReshapeOp = "tensor.reshape"

func init() {
	ir.RegisterOp(ir.OpInfo{Name: ReshapeOp, Traits: ir.Pure, Verify: verifyReshape})
}

// Reshape creates a tensor.reshape of source to the given dimensions. The shape operand is
// materialized as an arith.constant right before the reshape.
func Reshape(b *ir.Builder, source *ir.Value, dimensions ...int) *ir.Value {
	srcType := source.Type().(*ir.TensorType)
	shape := arith.ConstantShape(b, dimensions)
	return b.Create(ir.OperationState{
		Name:        ReshapeOp,
		Operands:    []*ir.Value{source, shape},
		ResultTypes: []ir.Type{ir.Tensor(srcType.Shape().DType, dimensions...)},
	}).Result(0)
}

func verifyReshape(op *ir.Operation) error {
	if op.NumOperands() != 2 || op.NumResults() != 1 {
		return errors.New("reshape takes a source and a shape, and has one result")
	}
	src, ok := op.Operand(0).Type().(*ir.TensorType)
	if !ok {
		return errors.Errorf("reshape source must be a tensor, got %s", op.Operand(0).Type())
	}
	result, ok := op.Result(0).Type().(*ir.TensorType)
	if !ok {
		return errors.Errorf("reshape result must be a tensor, got %s", op.Result(0).Type())
	}
	if src.Shape().DType != result.Shape().DType {
		return errors.Errorf("reshape can't change the dtype: %s -> %s", src, result)
	}
	if src.Shape().Size() != result.Shape().Size() {
		return errors.Errorf("reshape can't change the number of elements: %s -> %s", src, result)
	}
	shapeType, ok := op.Operand(1).Type().(*ir.TensorType)
	if !ok || shapeType.Shape().Rank() != 1 || shapeType.Shape().Dim(0) != result.Shape().Rank() {
		return errors.Errorf("reshape shape operand %s doesn't match result rank %d", op.Operand(1).Type(), result.Shape().Rank())
	}
	return nil
}
