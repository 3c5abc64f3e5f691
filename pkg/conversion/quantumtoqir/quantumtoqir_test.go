// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package quantumtoqir

import (
	"testing"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/pass"
	"github.com/gomlx/cinnamon/pkg/core/resources"
	"github.com/gomlx/cinnamon/pkg/core/rewrite"
	"github.com/gomlx/cinnamon/pkg/dialects/builtin"
	"github.com/gomlx/cinnamon/pkg/dialects/qir"
	"github.com/gomlx/cinnamon/pkg/dialects/quantum"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// circuit holds the values of the program built by newCircuit.
type circuit struct {
	module                   *ir.Operation
	register, merged         *ir.Value
	q0, q1, q2               *ir.Value
	q1AfterH, q1AfterMeasure *ir.Value
	bit, q0AfterRX           *ir.Value
	cnotControl, cnotTarget  *ir.Value
}

// newCircuit allocates 3 qubits, applies h to qubit 1 and measures it, rotates qubit 0, applies
// a cnot from qubit 0 to qubit 2 and releases everything. It returns the measured bit.
func newCircuit(t *testing.T) *circuit {
	c := &circuit{module: builtin.NewModule()}
	_, entry := builtin.AddFunc(c.module, "circuit", nil, []ir.Type{ir.Scalar(dtypes.Bool)})
	b := ir.NewBuilder()
	b.SetLocation("circuit.mlir:1")
	b.SetInsertionPointToEnd(entry)
	c.register = quantum.Alloc(b, 3)
	qs := quantum.Split(b, c.register, 1, 1, 1)
	c.q0, c.q1, c.q2 = qs[0], qs[1], qs[2]
	c.q1AfterH = quantum.Gate(b, "h", c.q1)
	c.bit, c.q1AfterMeasure = quantum.Measure(b, c.q1AfterH)
	c.q0AfterRX = quantum.Rotate(b, "rx", c.q0, 0.5)
	c.cnotControl, c.cnotTarget = quantum.CNOT(b, c.q0AfterRX, c.q2)
	c.merged = quantum.Merge(b, c.cnotControl, c.q1AfterMeasure, c.cnotTarget)
	quantum.Dealloc(b, c.merged)
	builtin.Return(b, c.bit)
	require.NoError(t, ir.Verify(c.module))
	return c
}

func opsNamed(root *ir.Operation, name string) []*ir.Operation {
	var ops []*ir.Operation
	for _, op := range root.PreOrder(nil) {
		if op.Is(name) {
			ops = append(ops, op)
		}
	}
	return ops
}

func TestConvert(t *testing.T) {
	c := newCircuit(t)
	stats, qubits, err := Convert(c.module)
	require.NoError(t, err)
	require.NoError(t, ir.Verify(c.module), "converted module:\n%s", c.module)
	assert.Equal(t, 8, stats.Rewritten)
	for _, op := range c.module.PreOrder(nil) {
		assert.NotEqual(t, quantum.Dialect, op.Dialect(), "%s not converted", op.Name())
	}

	// One physical qubit per qubit of the register.
	handles, err := qubits.Find(c.register)
	require.NoError(t, err)
	require.Len(t, handles, 3)
	allocs := opsNamed(c.module, qir.AllocOp)
	require.Len(t, allocs, 3)
	for ii, alloc := range allocs {
		assert.Same(t, alloc.Result(0), handles[ii])
	}

	// Qubit 1 keeps its handle through the split, the gate and the measurement.
	for _, v := range []*ir.Value{c.q1, c.q1AfterH, c.q1AfterMeasure} {
		found, err := qubits.Find(v)
		require.NoError(t, err)
		assert.Equal(t, []*ir.Value{handles[1]}, found)
	}
	gates := opsNamed(c.module, qir.GateOp("h"))
	require.Len(t, gates, 1)
	assert.Same(t, handles[1], gates[0].Operand(0))

	// The measured bit is a new result handle, distinct from the qubits.
	results, err := qubits.Find(c.bit)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, qir.ResultAllocOp, results[0].DefiningOp().Name())
	assert.NotContains(t, handles, results[0])
	measures := opsNamed(c.module, qir.MeasureOp)
	require.Len(t, measures, 1)
	assert.Same(t, handles[1], measures[0].Operand(0))
	assert.Same(t, results[0], measures[0].Operand(1))

	// The function returns the value read from the result handle.
	ret := opsNamed(c.module, builtin.ReturnOp)[0]
	assert.Equal(t, qir.ReadMeasurementOp, ret.Operand(0).DefiningOp().Name())
	assert.Same(t, results[0], ret.Operand(0).DefiningOp().Operand(0))

	// Rotations keep their angle, cnot uses the handles of qubits 0 and 2.
	rotations := opsNamed(c.module, qir.GateOp("rx"))
	require.Len(t, rotations, 1)
	theta, ok := rotations[0].FloatAttr(quantum.ThetaAttr)
	require.True(t, ok)
	assert.Equal(t, 0.5, theta)
	cnots := opsNamed(c.module, qir.CNOTOp)
	require.Len(t, cnots, 1)
	assert.Equal(t, []*ir.Value{handles[0], handles[2]}, cnots[0].Operands())

	// The merged register is released qubit by qubit.
	merged, err := qubits.Find(c.merged)
	require.NoError(t, err)
	assert.Equal(t, handles, merged)
	releases := opsNamed(c.module, qir.ReleaseOp)
	require.Len(t, releases, 3)
	for ii, release := range releases {
		assert.Same(t, handles[ii], release.Operand(0))
	}

	// Nothing left to convert.
	stats, _, err = Convert(c.module)
	require.NoError(t, err)
	assert.Equal(t, rewrite.Stats{}, stats)
}

func TestConvertErrors(t *testing.T) {
	// A register that comes from outside of the module has no handles.
	module := builtin.NewModule()
	_, entry := builtin.AddFunc(module, "gate", []ir.Type{quantum.Qubit(2)}, nil)
	b := ir.NewBuilder()
	b.SetInsertionPointToEnd(entry)
	quantum.Dealloc(b, quantum.Gate(b, "x", entry.Argument(0)))
	builtin.Return(b)
	require.NoError(t, ir.Verify(module))

	_, qubits, err := Convert(module)
	require.ErrorIs(t, err, rewrite.ErrConversionFailed)
	require.ErrorContains(t, err, resources.ErrNotAllocated.Error())
	assert.Equal(t, 0, qubits.Len())
}

func TestRegisteredPass(t *testing.T) {
	c := newCircuit(t)
	manager := pass.NewManager()
	require.NoError(t, manager.AddPipeline(PassName))
	reports, err := manager.Run(c.module)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, PassName, reports[0].Pass)
	assert.Equal(t, 8, reports[0].Stats.Rewritten)
	assert.Len(t, opsNamed(c.module, qir.ReadMeasurementOp), 1)
}
