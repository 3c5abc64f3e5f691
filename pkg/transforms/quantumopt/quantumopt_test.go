// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package quantumopt

import (
	"testing"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/pass"
	"github.com/gomlx/cinnamon/pkg/dialects/builtin"
	"github.com/gomlx/cinnamon/pkg/dialects/quantum"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countOps(root *ir.Operation, name string) int {
	count := 0
	for _, op := range root.PreOrder(nil) {
		if op.Is(name) {
			count++
		}
	}
	return count
}

// measureAfter builds a function that applies gates in order to a new qubit and measures it.
func measureAfter(t *testing.T, gates ...string) (*ir.Operation, *ir.Operation) {
	module := builtin.NewModule()
	_, entry := builtin.AddFunc(module, "main", nil, []ir.Type{ir.Scalar(dtypes.Bool)})
	b := ir.NewBuilder()
	b.SetInsertionPointToEnd(entry)
	q := quantum.Alloc(b, 1)
	for _, gate := range gates {
		q = quantum.Gate(b, gate, q)
	}
	bit, q := quantum.Measure(b, q)
	quantum.Dealloc(b, q)
	builtin.Return(b, bit)
	require.NoError(t, ir.Verify(module))
	return module, bit.DefiningOp()
}

func TestDropPhaseBeforeMeasure(t *testing.T) {
	testCases := []struct {
		name      string
		gates     []string
		wantGates []string
	}{
		{"single phase", []string{"z"}, nil},
		{"phase chain", []string{"h", "s", "t", "sdg"}, []string{"h"}},
		{"phase not measured", []string{"t", "h"}, []string{"t", "h"}},
		{"no phase", []string{"x", "h"}, []string{"x", "h"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			module, measure := measureAfter(t, tc.gates...)
			stats, err := New().Run(module)
			require.NoError(t, err)
			require.NoError(t, ir.Verify(module))
			assert.Equal(t, len(tc.gates)-len(tc.wantGates), stats.Rewritten)

			var got []string
			for _, op := range module.PreOrder(nil) {
				if gate := quantum.GateName(op.Name()); gate != "" {
					got = append(got, gate)
				}
			}
			assert.Equal(t, tc.wantGates, got)
			assert.Equal(t, 1, countOps(module, quantum.MeasureOp))
			if len(tc.wantGates) == 0 {
				assert.Equal(t, quantum.AllocOp, measure.Operand(0).DefiningOp().Name())
			}
		})
	}
}

func TestRegisteredPass(t *testing.T) {
	module, _ := measureAfter(t, "h", "t")
	manager := pass.NewManager()
	require.NoError(t, manager.AddPipeline(PassName+"{max-iterations=3}"))
	reports, err := manager.Run(module)
	require.NoError(t, err)
	assert.Equal(t, 1, reports[0].Stats.Rewritten)
	assert.Equal(t, 0, countOps(module, quantum.GateOp("t")))

	_, err = pass.New(PassName, pass.NewOptions(PassName, map[string]string{"max-iterations": "many"}))
	require.Error(t, err)
}
