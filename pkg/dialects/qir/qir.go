// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package qir defines the quantum intermediate representation: unlike the quantum dialect,
// qubits are opaque handles to physical qubits, and gates act on them in place.
package qir

import (
	"slices"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/dialects/quantum"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

const (
	// Dialect is the prefix of the names of the operations of the dialect.
	Dialect = "qir"

	AllocOp           = "qir.alloc"
	ResultAllocOp     = "qir.result_alloc"
	CNOTOp            = "qir.cnot"
	MeasureOp         = "qir.measure"
	ReadMeasurementOp = "qir.read_measurement"
	ReleaseOp         = "qir.release"
)

// GateOp returns the operation name of a gate, e.g. "qir.h".
func GateOp(gate string) string { return "qir." + gate }

func init() {
	ir.RegisterOp(ir.OpInfo{Name: AllocOp, Verify: verifyResultOfType(QubitType{})})
	ir.RegisterOp(ir.OpInfo{Name: ResultAllocOp, Verify: verifyResultOfType(ResultType{})})
	ir.RegisterOp(ir.OpInfo{Name: CNOTOp, Verify: verifyOperands(QubitType{}, QubitType{})})
	ir.RegisterOp(ir.OpInfo{Name: MeasureOp, Verify: verifyOperands(QubitType{}, ResultType{})})
	ir.RegisterOp(ir.OpInfo{Name: ReadMeasurementOp, Verify: verifyReadMeasurement})
	ir.RegisterOp(ir.OpInfo{Name: ReleaseOp, Verify: verifyOperands(QubitType{})})
	for _, gate := range slices.Concat(quantum.SingleQubitGates, quantum.RotationGates) {
		ir.RegisterOp(ir.OpInfo{Name: GateOp(gate), Verify: verifyOperands(QubitType{})})
	}
}

// QubitType is a handle to one physical qubit.
type QubitType struct{}

// String implements ir.Type.
func (QubitType) String() string { return "!qir.qubit" }

// Equal implements ir.Type.
func (QubitType) Equal(other ir.Type) bool {
	_, ok := other.(QubitType)
	return ok
}

// ResultType is a handle to the storage of one measurement.
type ResultType struct{}

// String implements ir.Type.
func (ResultType) String() string { return "!qir.result" }

// Equal implements ir.Type.
func (ResultType) Equal(other ir.Type) bool {
	_, ok := other.(ResultType)
	return ok
}

// Alloc creates a handle to a new qubit.
func Alloc(b *ir.Builder) *ir.Value {
	return b.Create(ir.OperationState{Name: AllocOp, ResultTypes: []ir.Type{QubitType{}}}).Result(0)
}

// ResultAlloc creates a handle to a new measurement result.
func ResultAlloc(b *ir.Builder) *ir.Value {
	return b.Create(ir.OperationState{Name: ResultAllocOp, ResultTypes: []ir.Type{ResultType{}}}).Result(0)
}

// Gate applies a single-qubit or rotation gate to the qubit. Attributes (the rotation angle)
// are copied as given.
func Gate(b *ir.Builder, gate string, q *ir.Value, attrs ...ir.NamedAttr) *ir.Operation {
	if !slices.Contains(quantum.SingleQubitGates, gate) && !slices.Contains(quantum.RotationGates, gate) {
		exceptions.Panicf("qir.Gate(%q): unknown gate", gate)
	}
	return b.Create(ir.OperationState{Name: GateOp(gate), Operands: []*ir.Value{q}, Attributes: attrs})
}

// CNOT applies a controlled-not.
func CNOT(b *ir.Builder, control, target *ir.Value) *ir.Operation {
	return b.Create(ir.OperationState{Name: CNOTOp, Operands: []*ir.Value{control, target}})
}

// Measure measures q into the result handle r.
func Measure(b *ir.Builder, q, r *ir.Value) *ir.Operation {
	return b.Create(ir.OperationState{Name: MeasureOp, Operands: []*ir.Value{q, r}})
}

// ReadMeasurement reads a measurement result as an i1.
func ReadMeasurement(b *ir.Builder, r *ir.Value) *ir.Value {
	return b.Create(ir.OperationState{
		Name:        ReadMeasurementOp,
		Operands:    []*ir.Value{r},
		ResultTypes: []ir.Type{ir.Scalar(dtypes.Bool)},
	}).Result(0)
}

// Release frees the qubit.
func Release(b *ir.Builder, q *ir.Value) *ir.Operation {
	return b.Create(ir.OperationState{Name: ReleaseOp, Operands: []*ir.Value{q}})
}

func verifyResultOfType(t ir.Type) func(op *ir.Operation) error {
	return func(op *ir.Operation) error {
		if op.NumOperands() != 0 || op.NumResults() != 1 || !op.Result(0).Type().Equal(t) {
			return errors.Errorf("%s takes no operands and returns a %s", op.Name(), t)
		}
		return nil
	}
}

func verifyOperands(types ...ir.Type) func(op *ir.Operation) error {
	return func(op *ir.Operation) error {
		if op.NumResults() != 0 || op.NumOperands() != len(types) {
			return errors.Errorf("%s takes %d operands and has no results", op.Name(), len(types))
		}
		for ii, t := range types {
			if !op.Operand(ii).Type().Equal(t) {
				return errors.Errorf("%s operand #%d must be %s, got %s", op.Name(), ii, t, op.Operand(ii).Type())
			}
		}
		return nil
	}
}

func verifyReadMeasurement(op *ir.Operation) error {
	if op.NumOperands() != 1 || op.NumResults() != 1 || !op.Operand(0).Type().Equal(ResultType{}) {
		return errors.New("read_measurement takes a result handle and returns an i1")
	}
	if bit, ok := op.Result(0).Type().(*ir.ScalarType); !ok || bit.DType != dtypes.Bool {
		return errors.Errorf("read_measurement must return i1, got %s", op.Result(0).Type())
	}
	return nil
}
