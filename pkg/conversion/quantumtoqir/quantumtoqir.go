// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package quantumtoqir lowers the value-semantics quantum dialect to QIR, where every qubit and
// every measurement result is a physical handle.
//
// Registers of the quantum dialect are values: each gate consumes a register and produces a new
// one. While lowering, a QubitMap tracks which QIR handles implement each register value, so that
// the handles allocated by a quantum.alloc flow through splits, merges and gates down to the
// measurements and deallocations that use them.
package quantumtoqir

import (
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/pass"
	"github.com/gomlx/cinnamon/pkg/core/resources"
	"github.com/gomlx/cinnamon/pkg/core/rewrite"
	"github.com/gomlx/cinnamon/pkg/dialects/qir"
	"github.com/gomlx/cinnamon/pkg/dialects/quantum"
	"github.com/gomlx/cinnamon/pkg/support/xslices"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PassName is the name the pass is registered with.
const PassName = "convert-quantum-to-qir"

// QubitMap maps values of the quantum dialect (qubit registers and measured bits) to the QIR
// handles (qubits or measurement results) that implement them.
type QubitMap = resources.AllocationMap[*ir.Value, *ir.Value]

// handler lowers one kind of quantum operation. It must erase (or replace) op.
type handler func(op *ir.Operation, rw *rewrite.Rewriter, qubits *QubitMap) error

var handlers = map[string]handler{
	quantum.AllocOp:   convertAlloc,
	quantum.DeallocOp: convertDealloc,
	quantum.SplitOp:   convertSplit,
	quantum.MergeOp:   convertMerge,
	quantum.CNOTOp:    convertCNOT,
	quantum.MeasureOp: convertMeasure,
}

func init() {
	for _, gate := range quantum.SingleQubitGates {
		handlers[quantum.GateOp(gate)] = convertGate
	}
	for _, gate := range quantum.RotationGates {
		handlers[quantum.GateOp(gate)] = convertGate
	}
	pass.Register(PassName, func(pass.Options) (pass.Pass, error) { return New(), nil })
}

// Pass lowers quantum operations to QIR.
type Pass struct{}

var _ pass.Pass = (*Pass)(nil)

// New returns the pass.
func New() *Pass { return &Pass{} }

// Name implements pass.Pass.
func (p *Pass) Name() string { return PassName }

// Run implements pass.Pass.
func (p *Pass) Run(module *ir.Operation) (rewrite.Stats, error) {
	stats, _, err := Convert(module)
	return stats, err
}

// Convert lowers every quantum operation nested in root to QIR, and returns the map from the
// quantum values to their QIR handles built along the way.
//
// Operations of other dialects are left untouched: the bits returned by measurements are
// replaced by the values read from the measurement results. The conversion fails if a quantum
// operation can't be lowered, e.g. because it uses a register that wasn't allocated in root.
func Convert(root *ir.Operation) (stats rewrite.Stats, qubits *QubitMap, err error) {
	qubits = resources.NewAllocationMap[*ir.Value, *ir.Value]()
	patterns := rewrite.NewPatternSet()
	for _, kind := range xslices.SortedKeys(handlers) {
		h := handlers[kind]
		patterns.Add(rewrite.NewPattern(kind, func(op *ir.Operation, rw *rewrite.Rewriter) error {
			klog.V(2).Infof("%s: lowering %s at %s", PassName, op.Name(), op.Location())
			return h(op, rw, qubits)
		}))
	}
	target := rewrite.NewTarget().
		AddIllegalDialect(quantum.Dialect).
		AddLegalDialect(qir.Dialect).
		MarkUnknownOpLegal(true)
	exception := exceptions.TryCatch[error](func() {
		stats, err = rewrite.ApplyPartialConversion(root, target, patterns)
	})
	if exception != nil {
		err = errors.Wrapf(rewrite.ErrConversionFailed, "%s: %v", PassName, exception)
	}
	if err != nil {
		return stats, qubits, err
	}
	klog.V(1).Infof("%s: %d operation(s) lowered, %d quantum value(s) mapped", PassName, stats.Rewritten, qubits.Len())
	return stats, qubits, nil
}

func convertAlloc(op *ir.Operation, rw *rewrite.Rewriter, qubits *QubitMap) error {
	size := quantum.SizeOf(op.Result(0))
	handles := make([]*ir.Value, size)
	for ii := range handles {
		handles[ii] = qir.Alloc(rw.Builder)
	}
	qubits.Allocate(op.Result(0), handles...)
	rw.EraseOp(op)
	return nil
}

func convertDealloc(op *ir.Operation, rw *rewrite.Rewriter, qubits *QubitMap) error {
	for _, handle := range qubits.MustFind(op.Operand(0)) {
		qir.Release(rw.Builder, handle)
	}
	rw.EraseOp(op)
	return nil
}

func convertSplit(op *ir.Operation, rw *rewrite.Rewriter, qubits *QubitMap) error {
	handles := qubits.MustFind(op.Operand(0))
	offset := 0
	for _, result := range op.Results() {
		size := quantum.SizeOf(result)
		if offset+size > len(handles) {
			return errors.Errorf("split needs %d qubits, register has %d handles", offset+size, len(handles))
		}
		qubits.Allocate(result, handles[offset:offset+size]...)
		offset += size
	}
	rw.EraseOp(op)
	return nil
}

func convertMerge(op *ir.Operation, rw *rewrite.Rewriter, qubits *QubitMap) error {
	var handles []*ir.Value
	for _, operand := range op.Operands() {
		handles = append(handles, qubits.MustFind(operand)...)
	}
	qubits.Allocate(op.Result(0), handles...)
	rw.EraseOp(op)
	return nil
}

// convertGate applies the gate to every qubit of the register, the result is the same qubits.
func convertGate(op *ir.Operation, rw *rewrite.Rewriter, qubits *QubitMap) error {
	gate := quantum.GateName(op.Name())
	handles := qubits.MustFind(op.Operand(0))
	for _, handle := range handles {
		qir.Gate(rw.Builder, gate, handle, op.Attrs()...)
	}
	qubits.Allocate(op.Result(0), handles...)
	rw.EraseOp(op)
	return nil
}

// singleHandle returns the only handle of a register of one qubit.
func singleHandle(q *ir.Value, qubits *QubitMap) (*ir.Value, error) {
	handles := qubits.MustFind(q)
	if len(handles) != 1 {
		return nil, errors.Errorf("expected a single qubit, got a register of %d", len(handles))
	}
	return handles[0], nil
}

func convertCNOT(op *ir.Operation, rw *rewrite.Rewriter, qubits *QubitMap) error {
	control, err := singleHandle(op.Operand(0), qubits)
	if err != nil {
		return errors.WithMessage(err, "control")
	}
	target, err := singleHandle(op.Operand(1), qubits)
	if err != nil {
		return errors.WithMessage(err, "target")
	}
	qir.CNOT(rw.Builder, control, target)
	qubits.Allocate(op.Result(0), control)
	qubits.Allocate(op.Result(1), target)
	rw.EraseOp(op)
	return nil
}

// convertMeasure measures the qubit into a new result handle and reads it: the read value
// replaces the measured bit. The qubit after the measurement is the same handle.
func convertMeasure(op *ir.Operation, rw *rewrite.Rewriter, qubits *QubitMap) error {
	handle, err := singleHandle(op.Operand(0), qubits)
	if err != nil {
		return err
	}
	result := qir.ResultAlloc(rw.Builder)
	qir.Measure(rw.Builder, handle, result)
	bit := qir.ReadMeasurement(rw.Builder, result)
	qubits.Allocate(op.Result(0), result)
	qubits.Allocate(op.Result(1), handle)
	rw.ReplaceAllUsesWith(op.Result(0), bit)
	rw.EraseOp(op)
	return nil
}
