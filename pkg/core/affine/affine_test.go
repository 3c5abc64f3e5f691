// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package affine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprEval(t *testing.T) {
	d0, d1 := Dim(0), Dim(1)
	tests := []struct {
		name string
		expr Expr
		dims []int64
		want int64
	}{
		{"dim", d1, []int64{3, 5}, 5},
		{"add", d0.Add(Constant(2)), []int64{3, 5}, 5},
		{"mul", d0.Mul(Constant(4)).Add(d1), []int64{3, 5}, 17},
		{"floordiv", d0.FloorDiv(4), []int64{9, 0}, 2},
		{"floordiv negative", d0.FloorDiv(4), []int64{-1, 0}, -1},
		{"mod", d0.Mod(4), []int64{9, 0}, 1},
		{"mod negative", d0.Mod(4), []int64{-1, 0}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.expr.Eval(tt.dims)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Dim(3).Eval([]int64{1})
	require.Error(t, err)
	require.Panics(t, func() { _ = d0.FloorDiv(0) })
	require.Panics(t, func() { _ = d0.Mul(d1) })
}

func TestMap(t *testing.T) {
	m := NewMap(2, Dim(0).FloorDiv(4), Dim(1).FloorDiv(16), Dim(0).Mod(4), Dim(1).Mod(16))
	assert.Equal(t, "(d0, d1) -> (d0 floordiv 4, d1 floordiv 16, d0 mod 4, d1 mod 16)", m.String())
	assert.Equal(t, 4, m.NumResults())

	got, err := m.Eval([]int64{5, 20})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 1, 4}, got)

	_, err = m.Eval([]int64{1})
	require.Error(t, err)

	m2 := NewMap(2, Dim(0).FloorDiv(4), Dim(1).FloorDiv(16), Dim(0).Mod(4), Dim(1).Mod(16))
	assert.True(t, m.Equal(m2))
	assert.False(t, m.Equal(NewMap(2, Dim(0))))

	require.Panics(t, func() { _ = NewMap(1, Dim(1)) })
}
