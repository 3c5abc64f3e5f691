// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package resources

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAppends(t *testing.T) {
	m := NewAllocationMap[string, int]()
	m.Allocate("q", 1, 2)
	m.Allocate("r")
	m.Allocate("q", 3)
	m.Allocate("q")
	m.Allocate("q", 4, 5)

	got, err := m.Find("q")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)

	// Allocated with nothing is still allocated.
	got, err = m.Find("r")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	// Find returns a copy.
	got, err = m.Find("q")
	require.NoError(t, err)
	got[0] = 100
	assert.Equal(t, []int{1, 2, 3, 4, 5}, m.MustFind("q"))
}

func TestFindNotAllocated(t *testing.T) {
	m := NewAllocationMap[string, int]()
	_, err := m.Find("never")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAllocated))
	assert.Contains(t, err.Error(), "never")
	assert.False(t, m.Has("never"))
	assert.Panics(t, func() { m.MustFind("never") })
}

func TestEnumerate(t *testing.T) {
	m := NewAllocationMap[string, string]()
	m.Allocate("b", "b0")
	m.Allocate("a", "a0")
	m.Allocate("b", "b1")
	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Has("a"))

	var keys []string
	var values [][]string
	for logical, physical := range m.Enumerate() {
		keys = append(keys, logical)
		values = append(values, physical)
	}
	assert.Equal(t, []string{"b", "a"}, keys)
	assert.Equal(t, [][]string{{"b0", "b1"}, {"a0"}}, values)

	// Early stop.
	count := 0
	for range m.Enumerate() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}
