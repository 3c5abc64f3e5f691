// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package quantum defines the value-semantics quantum dialect: registers of qubits are values,
// and every gate consumes its input qubits and produces new ones.
package quantum

import (
	"fmt"
	"slices"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/support/sets"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

const (
	// Dialect is the prefix of the names of the operations of the dialect.
	Dialect = "quantum"

	AllocOp   = "quantum.alloc"
	DeallocOp = "quantum.dealloc"
	SplitOp   = "quantum.split"
	MergeOp   = "quantum.merge"
	CNOTOp    = "quantum.cnot"
	MeasureOp = "quantum.measure"

	// ThetaAttr is the rotation angle of the rx, ry and rz gates.
	ThetaAttr = "theta"
)

var (
	// SingleQubitGates are the gates without parameters, applied to every qubit of their operand.
	SingleQubitGates = []string{"h", "x", "y", "z", "s", "t", "sdg", "tdg"}

	// RotationGates take a rotation angle in the ThetaAttr attribute.
	RotationGates = []string{"rx", "ry", "rz"}

	// PhaseGates only change the phase of a qubit, so they don't affect a following measurement.
	PhaseGates = sets.MakeWith("z", "s", "t", "sdg", "tdg")
)

// GateOp returns the operation name of a gate, e.g. "quantum.h".
func GateOp(gate string) string { return "quantum." + gate }

// GateName returns the gate of a gate operation name, e.g. "h" for "quantum.h", or "" if it is
// not a single-qubit or rotation gate.
func GateName(opName string) string {
	for _, gate := range slices.Concat(SingleQubitGates, RotationGates) {
		if GateOp(gate) == opName {
			return gate
		}
	}
	return ""
}

func init() {
	ir.RegisterOp(ir.OpInfo{Name: AllocOp, Verify: verifyAlloc})
	ir.RegisterOp(ir.OpInfo{Name: DeallocOp, Verify: verifyDealloc})
	ir.RegisterOp(ir.OpInfo{Name: SplitOp, Verify: verifySplit})
	ir.RegisterOp(ir.OpInfo{Name: MergeOp, Verify: verifyMerge})
	ir.RegisterOp(ir.OpInfo{Name: CNOTOp, Verify: verifyCNOT})
	ir.RegisterOp(ir.OpInfo{Name: MeasureOp, Verify: verifyMeasure})
	for _, gate := range SingleQubitGates {
		ir.RegisterOp(ir.OpInfo{Name: GateOp(gate), Verify: verifyGate})
	}
	for _, gate := range RotationGates {
		ir.RegisterOp(ir.OpInfo{Name: GateOp(gate), Verify: verifyGate})
	}
}

// QubitType is a register of Size qubits.
type QubitType struct {
	Size int
}

// Qubit returns the type of a register of size qubits.
func Qubit(size int) *QubitType {
	if size <= 0 {
		exceptions.Panicf("quantum.Qubit(%d): size must be > 0", size)
	}
	return &QubitType{Size: size}
}

// String implements ir.Type.
func (t *QubitType) String() string { return fmt.Sprintf("!quantum.qubit<%d>", t.Size) }

// Equal implements ir.Type.
func (t *QubitType) Equal(other ir.Type) bool {
	o, ok := other.(*QubitType)
	return ok && t.Size == o.Size
}

// SizeOf returns the size of a qubit register value, or 0 if it is not a register.
func SizeOf(v *ir.Value) int {
	if t, ok := v.Type().(*QubitType); ok {
		return t.Size
	}
	return 0
}

// Alloc creates a register of size qubits.
func Alloc(b *ir.Builder, size int) *ir.Value {
	return b.Create(ir.OperationState{Name: AllocOp, ResultTypes: []ir.Type{Qubit(size)}}).Result(0)
}

// Dealloc releases a register.
func Dealloc(b *ir.Builder, q *ir.Value) *ir.Operation {
	return b.Create(ir.OperationState{Name: DeallocOp, Operands: []*ir.Value{q}})
}

// Split splits a register into registers of the given sizes, which must add up to its size.
func Split(b *ir.Builder, q *ir.Value, sizes ...int) []*ir.Value {
	types := make([]ir.Type, len(sizes))
	for ii, size := range sizes {
		types[ii] = Qubit(size)
	}
	return b.Create(ir.OperationState{Name: SplitOp, Operands: []*ir.Value{q}, ResultTypes: types}).Results()
}

// Merge concatenates registers.
func Merge(b *ir.Builder, qs ...*ir.Value) *ir.Value {
	size := 0
	for _, q := range qs {
		size += SizeOf(q)
	}
	return b.Create(ir.OperationState{Name: MergeOp, Operands: qs, ResultTypes: []ir.Type{Qubit(size)}}).Result(0)
}

// Gate applies a single-qubit gate (see SingleQubitGates) to every qubit of q.
func Gate(b *ir.Builder, gate string, q *ir.Value) *ir.Value {
	if !slices.Contains(SingleQubitGates, gate) {
		exceptions.Panicf("quantum.Gate(%q): unknown gate", gate)
	}
	return b.Create(ir.OperationState{Name: GateOp(gate), Operands: []*ir.Value{q}, ResultTypes: []ir.Type{q.Type()}}).Result(0)
}

// Rotate applies a rotation gate (see RotationGates) of angle theta to every qubit of q.
func Rotate(b *ir.Builder, gate string, q *ir.Value, theta float64) *ir.Value {
	if !slices.Contains(RotationGates, gate) {
		exceptions.Panicf("quantum.Rotate(%q): unknown rotation gate", gate)
	}
	return b.Create(ir.OperationState{
		Name:        GateOp(gate),
		Operands:    []*ir.Value{q},
		ResultTypes: []ir.Type{q.Type()},
		Attributes:  []ir.NamedAttr{{Name: ThetaAttr, Value: ir.FloatAttr(theta)}},
	}).Result(0)
}

// CNOT applies a controlled-not: it returns the new control and target qubits.
func CNOT(b *ir.Builder, control, target *ir.Value) (*ir.Value, *ir.Value) {
	op := b.Create(ir.OperationState{
		Name:        CNOTOp,
		Operands:    []*ir.Value{control, target},
		ResultTypes: []ir.Type{Qubit(1), Qubit(1)},
	})
	return op.Result(0), op.Result(1)
}

// Measure measures a single qubit: it returns the classical bit (i1) and the qubit after the
// measurement.
func Measure(b *ir.Builder, q *ir.Value) (bit, qubit *ir.Value) {
	op := b.Create(ir.OperationState{
		Name:        MeasureOp,
		Operands:    []*ir.Value{q},
		ResultTypes: []ir.Type{ir.Scalar(dtypes.Bool), Qubit(1)},
	})
	return op.Result(0), op.Result(1)
}

func checkQubits(values []*ir.Value, what string) error {
	for ii, v := range values {
		if SizeOf(v) == 0 {
			return errors.Errorf("%s #%d must be a qubit register, got %s", what, ii, v.Type())
		}
	}
	return nil
}

func verifyAlloc(op *ir.Operation) error {
	if op.NumOperands() != 0 || op.NumResults() != 1 {
		return errors.New("alloc takes no operands and has one result")
	}
	return checkQubits(op.Results(), "result")
}

func verifyDealloc(op *ir.Operation) error {
	if op.NumOperands() != 1 || op.NumResults() != 0 {
		return errors.New("dealloc takes one register and has no results")
	}
	return checkQubits(op.Operands(), "operand")
}

func verifySplit(op *ir.Operation) error {
	if op.NumOperands() != 1 || op.NumResults() < 1 {
		return errors.New("split takes one register and has at least one result")
	}
	if err := checkQubits(op.Results(), "result"); err != nil {
		return err
	}
	total := 0
	for _, r := range op.Results() {
		total += SizeOf(r)
	}
	if total != SizeOf(op.Operand(0)) {
		return errors.Errorf("split results add up to %d qubits, but the input has %d", total, SizeOf(op.Operand(0)))
	}
	return nil
}

func verifyMerge(op *ir.Operation) error {
	if op.NumOperands() < 1 || op.NumResults() != 1 {
		return errors.New("merge takes at least one register and has one result")
	}
	if err := checkQubits(op.Operands(), "operand"); err != nil {
		return err
	}
	total := 0
	for _, q := range op.Operands() {
		total += SizeOf(q)
	}
	if total != SizeOf(op.Result(0)) {
		return errors.Errorf("merge result has %d qubits, but the inputs add up to %d", SizeOf(op.Result(0)), total)
	}
	return nil
}

func verifyGate(op *ir.Operation) error {
	if op.NumOperands() != 1 || op.NumResults() != 1 {
		return errors.New("gates take one register and have one result")
	}
	if err := checkQubits(op.Operands(), "operand"); err != nil {
		return err
	}
	if !op.Operand(0).Type().Equal(op.Result(0).Type()) {
		return errors.Errorf("gate result %s doesn't match its input %s", op.Result(0).Type(), op.Operand(0).Type())
	}
	isRotation := slices.Contains(RotationGates, GateName(op.Name()))
	if _, hasTheta := op.FloatAttr(ThetaAttr); hasTheta != isRotation {
		return errors.Errorf("%q attribute is required on rotations and only on rotations", ThetaAttr)
	}
	return nil
}

func verifyCNOT(op *ir.Operation) error {
	if op.NumOperands() != 2 || op.NumResults() != 2 {
		return errors.New("cnot takes a control and a target qubit, and has two results")
	}
	for _, v := range slices.Concat(op.Operands(), op.Results()) {
		if SizeOf(v) != 1 {
			return errors.Errorf("cnot works on single qubits, got %s", v.Type())
		}
	}
	return nil
}

func verifyMeasure(op *ir.Operation) error {
	if op.NumOperands() != 1 || op.NumResults() != 2 {
		return errors.New("measure takes one qubit and has two results")
	}
	if SizeOf(op.Operand(0)) != 1 || SizeOf(op.Result(1)) != 1 {
		return errors.Errorf("measure works on a single qubit, got %s", op.Operand(0).Type())
	}
	if bit, ok := op.Result(0).Type().(*ir.ScalarType); !ok || bit.DType != dtypes.Bool {
		return errors.Errorf("measure result must be i1, got %s", op.Result(0).Type())
	}
	return nil
}
