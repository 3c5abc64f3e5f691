// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package linalg

import (
	"testing"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/dialects/arith"
	"github.com/gomlx/cinnamon/pkg/dialects/builtin"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumBody(b *ir.Builder, args []*ir.Value) []*ir.Value {
	return []*ir.Value{arith.AddF(b, args[0], args[1])}
}

func TestReduce(t *testing.T) {
	testCases := []struct {
		name       string
		input      *ir.TensorType
		init       *ir.TensorType
		dimensions []int
		wantErr    string
	}{
		{"rows", ir.Tensor(dtypes.Float32, 64, 64), ir.Tensor(dtypes.Float32, 64), []int{1}, ""},
		{"elementwise", ir.Tensor(dtypes.Float32, 4, 16), ir.Tensor(dtypes.Float32, 4, 16), nil, ""},
		{"all", ir.Tensor(dtypes.Float32, 8, 8), ir.Tensor(dtypes.Float32, 1), []int{0, 1}, "init #0 has shape"},
		{"unsorted", ir.Tensor(dtypes.Float32, 8, 8, 8), ir.Tensor(dtypes.Float32, 8), []int{2, 1}, "must be sorted"},
		{"bad init", ir.Tensor(dtypes.Float32, 8, 4), ir.Tensor(dtypes.Float32, 4), []int{1}, "init #0 has shape"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			module := builtin.NewModule()
			_, entry := builtin.AddFunc(module, "main", []ir.Type{tc.input, tc.init}, []ir.Type{tc.init})
			b := ir.NewBuilder()
			b.SetInsertionPointToEnd(entry)
			reduce := Reduce(b, entry.Arguments()[:1], entry.Arguments()[1:], tc.dimensions, sumBody)
			builtin.Return(b, reduce.Results()...)
			err := ir.Verify(module)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			view, ok := AsReduce(reduce)
			require.True(t, ok)
			assert.True(t, view.OnTensors())
			assert.Equal(t, entry.Arguments()[:1], view.Inputs())
			assert.Equal(t, entry.Arguments()[1:], view.Inits())
			assert.Equal(t, 2, view.Body().NumArguments())
			assert.Equal(t, "f32", view.Body().Argument(0).Type().String())
		})
	}
}

func TestReduceOnMemRefs(t *testing.T) {
	module := builtin.NewModule()
	in, acc := ir.MemRef(dtypes.Float16, 64), ir.MemRef(dtypes.Float16)
	_, entry := builtin.AddFunc(module, "main", []ir.Type{in, acc}, nil)
	b := ir.NewBuilder()
	b.SetInsertionPointToEnd(entry)
	reduce := Reduce(b, entry.Arguments()[:1], entry.Arguments()[1:], []int{0}, sumBody)
	builtin.Return(b)
	require.NoError(t, ir.Verify(module))
	assert.Equal(t, 0, reduce.NumResults())
	view, _ := AsReduce(reduce)
	assert.False(t, view.OnTensors())
}
