// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProduct(t *testing.T) {
	assert.Equal(t, 1, Product([]int{}))
	assert.Equal(t, 64, Product([]int{4, 16}))
	assert.Equal(t, int64(24), Product([]int64{2, 3, 4}))
}

func TestIsContiguousRun(t *testing.T) {
	assert.True(t, IsContiguousRun([]int{3}))
	assert.True(t, IsContiguousRun([]int{1, 2, 3}))
	assert.False(t, IsContiguousRun([]int{0, 2}))
	assert.False(t, IsContiguousRun([]int{}))
}

func TestMapAndLast(t *testing.T) {
	got := Map([]int{1, 2, 3}, func(e int) string { return string(rune('a' + e)) })
	assert.Equal(t, []string{"b", "c", "d"}, got)
	assert.Equal(t, 3, Last([]int{1, 2, 3}))
	assert.Equal(t, []int{3, 4}, Iota(3, 2))
	assert.Equal(t, []string{"a", "b"}, SortedKeys(map[string]int{"b": 1, "a": 2}))
}
