// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/cinnamon/pkg/core/interp"
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/pass"
	"github.com/gomlx/cinnamon/pkg/core/shapes"
	"github.com/gomlx/cinnamon/pkg/dialects/cnm"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrograms(t *testing.T) {
	for name, prog := range programs {
		t.Run(name, func(t *testing.T) {
			module := prog.build(64, 64, dtypes.Float32)
			require.NoError(t, ir.Verify(module))
			var inputs, want []*interp.Tensor
			if prog.executable {
				inputs = sampleInputs(module)
				var err error
				want, err = interp.New().Call(module, "main", inputs...)
				require.NoError(t, err)
			}

			manager := pass.NewManager()
			require.NoError(t, manager.AddPipeline(prog.pipeline))
			reports, err := manager.Run(module)
			require.NoError(t, err)
			require.NotEmpty(t, reports)
			for _, r := range reports {
				assert.Positive(t, r.Stats.Rewritten, "pass %q", r.Pass)
			}
			if !prog.executable {
				return
			}
			got, err := interp.New().Call(module, "main", inputs...)
			require.NoError(t, err)
			require.NoError(t, compare(want, got))
		})
	}
}

func TestKernelArguments(t *testing.T) {
	module := programs["matvec"].build(64, 64, dtypes.Float32)
	manager := pass.NewManager()
	require.NoError(t, manager.AddPipeline("convert-tiled-cinm-to-cnm{workgroup=4x16}"))
	_, err := manager.Run(module)
	require.NoError(t, err)

	var launches []cnm.LaunchView
	for _, op := range module.PreOrder(nil) {
		if launch, ok := cnm.AsLaunch(op); ok {
			launches = append(launches, launch)
		}
	}
	require.Len(t, launches, 1)
	args, err := kernelArguments(launches[0])
	require.NoError(t, err)
	// One row of 64 elements per worker.
	assert.Equal(t, uint32(1), args.MSize)
	assert.Equal(t, uint32(64), args.NSize)
	require.NoError(t, args.Validate(16))

	kernels := kernelsTable(module, 16)
	require.Len(t, kernels.rows, 1)
	assert.Equal(t, 0, kernels.NumFailed())
	assert.Equal(t, "ok", kernels.rows[0][5])
	assert.Contains(t, kernels.Render(), "Kernels")

	// More tasklets than a DPU has.
	kernels = kernelsTable(module, 100)
	assert.Equal(t, 1, kernels.NumFailed())
	assert.Contains(t, kernels.rows[0][5], "invalid number of tasklets")
}

func TestReportTable(t *testing.T) {
	table := newReportTable("Empty", column{"A", lipgloss.Left})
	assert.Equal(t, "", table.Render())

	reports := []pass.Report{{Pass: "first"}, {Pass: "second"}}
	table = passesTable("first,second", reports, errors.New("boom"))
	require.Len(t, table.rows, 2)
	assert.Equal(t, []bool{false, true}, table.failed)
	assert.Equal(t, 1, table.NumFailed())
	rendered := table.Render()
	assert.Contains(t, rendered, `Pipeline "first,second"`)
	assert.Contains(t, rendered, "second")

	table.AddRow(false, "a", "b", "c", "d", "e", "dropped")
	assert.Len(t, table.rows[2], 5)
}

func TestCompare(t *testing.T) {
	a := interp.Iota(shapes.Make(dtypes.Float32, 4))
	b := a.Clone()
	require.NoError(t, compare([]*interp.Tensor{a}, []*interp.Tensor{b}))
	b.Data[2] = 7
	require.ErrorContains(t, compare([]*interp.Tensor{a}, []*interp.Tensor{b}), "differs at element 2")
	require.ErrorContains(t, compare([]*interp.Tensor{a}, nil), "got 0 results")
}
