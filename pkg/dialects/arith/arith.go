// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package arith defines constants and the scalar/elementwise arithmetic operations used in
// reduction bodies.
package arith

import (
	"math"
	"slices"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/support/xslices"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

const (
	ConstantOp = "arith.constant"
	AddFOp     = "arith.addf"
	MulFOp     = "arith.mulf"
	MaxFOp     = "arith.maxf"
	MinFOp     = "arith.minf"
	AddIOp     = "arith.addi"
	MulIOp     = "arith.muli"

	// ValueAttr holds the value of a constant.
	ValueAttr = "value"
)

// BinaryFn is the scalar semantics of a binary arithmetic operation.
type BinaryFn func(x, y float64) float64

var binaryOps = map[string]BinaryFn{
	AddFOp: func(x, y float64) float64 { return x + y },
	MulFOp: func(x, y float64) float64 { return x * y },
	MaxFOp: math.Max,
	MinFOp: math.Min,
	AddIOp: func(x, y float64) float64 { return x + y },
	MulIOp: func(x, y float64) float64 { return x * y },
}

func init() {
	ir.RegisterOp(ir.OpInfo{Name: ConstantOp, Traits: ir.Pure, Verify: verifyConstant})
	for _, name := range xslices.SortedKeys(binaryOps) {
		ir.RegisterOp(ir.OpInfo{Name: name, Traits: ir.Pure, Verify: verifyBinary})
	}
}

// Binary returns the scalar semantics of the binary operation name, or nil if name is not a
// binary arith operation.
func Binary(name string) BinaryFn {
	return binaryOps[name]
}

// Constant creates a constant tensor with the given values in row-major order.
func Constant(b *ir.Builder, t *ir.TensorType, values []float64) *ir.Value {
	if len(values) != t.Shape().Size() {
		exceptions.Panicf("arith.Constant(%s): got %d values, wanted %d", t, len(values), t.Shape().Size())
	}
	op := b.Create(ir.OperationState{
		Name:        ConstantOp,
		ResultTypes: []ir.Type{t},
		Attributes:  []ir.NamedAttr{{Name: ValueAttr, Value: ir.DenseAttr{Type: t, Values: slices.Clone(values)}}},
	})
	return op.Result(0)
}

// ConstantShape creates a 1D tensor<Nxi64> constant holding the given dimensions, the form used
// as the shape operand of tensor.reshape.
func ConstantShape(b *ir.Builder, dimensions []int) *ir.Value {
	if len(dimensions) == 0 {
		exceptions.Panicf("arith.ConstantShape: cannot create the shape of a scalar")
	}
	values := xslices.Map(dimensions, func(d int) float64 { return float64(d) })
	return Constant(b, ir.Tensor(dtypes.Int64, len(dimensions)), values)
}

// ConstantScalar creates a scalar constant.
func ConstantScalar(b *ir.Builder, dtype dtypes.DType, value float64) *ir.Value {
	op := b.Create(ir.OperationState{
		Name:        ConstantOp,
		ResultTypes: []ir.Type{ir.Scalar(dtype)},
		Attributes:  []ir.NamedAttr{{Name: ValueAttr, Value: ir.FloatAttr(value)}},
	})
	return op.Result(0)
}

// ConstantValues returns the values of a constant operation in row-major order.
func ConstantValues(op *ir.Operation) ([]float64, bool) {
	if !op.Is(ConstantOp) {
		return nil, false
	}
	switch attr := op.Attr(ValueAttr).(type) {
	case ir.DenseAttr:
		return slices.Clone(attr.Values), true
	case ir.FloatAttr:
		return []float64{float64(attr)}, true
	case ir.IntAttr:
		return []float64{float64(attr)}, true
	}
	return nil, false
}

func createBinary(b *ir.Builder, name string, x, y *ir.Value) *ir.Value {
	return b.Create(ir.OperationState{
		Name:        name,
		Operands:    []*ir.Value{x, y},
		ResultTypes: []ir.Type{x.Type()},
	}).Result(0)
}

// AddF creates x + y for floats.
func AddF(b *ir.Builder, x, y *ir.Value) *ir.Value { return createBinary(b, AddFOp, x, y) }

// MulF creates x * y for floats.
func MulF(b *ir.Builder, x, y *ir.Value) *ir.Value { return createBinary(b, MulFOp, x, y) }

// MaxF creates max(x, y) for floats.
func MaxF(b *ir.Builder, x, y *ir.Value) *ir.Value { return createBinary(b, MaxFOp, x, y) }

// MinF creates min(x, y) for floats.
func MinF(b *ir.Builder, x, y *ir.Value) *ir.Value { return createBinary(b, MinFOp, x, y) }

// AddI creates x + y for integers.
func AddI(b *ir.Builder, x, y *ir.Value) *ir.Value { return createBinary(b, AddIOp, x, y) }

// MulI creates x * y for integers.
func MulI(b *ir.Builder, x, y *ir.Value) *ir.Value { return createBinary(b, MulIOp, x, y) }

func verifyConstant(op *ir.Operation) error {
	if op.NumOperands() != 0 || op.NumResults() != 1 {
		return errors.New("constant takes no operands and has one result")
	}
	switch attr := op.Attr(ValueAttr).(type) {
	case ir.DenseAttr:
		if !attr.Type.Equal(op.Result(0).Type()) {
			return errors.Errorf("constant value type %s doesn't match result type %s", attr.Type, op.Result(0).Type())
		}
		if len(attr.Values) != attr.Type.Shape().Size() {
			return errors.Errorf("constant of type %s has %d values", attr.Type, len(attr.Values))
		}
	case ir.FloatAttr, ir.IntAttr:
		if _, ok := op.Result(0).Type().(*ir.ScalarType); !ok {
			return errors.Errorf("scalar constant with non-scalar result type %s", op.Result(0).Type())
		}
	default:
		return errors.Errorf("constant has no valid %q attribute", ValueAttr)
	}
	return nil
}

func verifyBinary(op *ir.Operation) error {
	if op.NumOperands() != 2 || op.NumResults() != 1 {
		return errors.Errorf("%s takes 2 operands and has 1 result, got %d operands and %d results",
			op.Name(), op.NumOperands(), op.NumResults())
	}
	x, y, result := op.Operand(0).Type(), op.Operand(1).Type(), op.Result(0).Type()
	if !x.Equal(y) || !x.Equal(result) {
		return errors.Errorf("%s operands and result must have the same type, got (%s, %s) -> %s",
			op.Name(), x, y, result)
	}
	return nil
}
