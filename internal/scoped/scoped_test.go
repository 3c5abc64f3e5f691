// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package scoped_test

import (
	"testing"

	"github.com/gomlx/cinnamon/internal/scoped"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedParams(t *testing.T) {
	p := scoped.New("/")
	p.Set("/", "workgroup", "4x16")
	p.Set("/", "verify", "true")
	p.Set("/", "max-iterations", 10)
	p.Set("/convert-tiled-cinm-to-cnm", "workgroup", "2x32")
	p.Set("/a/b", "max-iterations", "3")

	assert.Equal(t, "2x32", p.GetString("/convert-tiled-cinm-to-cnm", "workgroup", ""))
	assert.Equal(t, "4x16", p.GetString("/quantum-optimise", "workgroup", ""))
	assert.Equal(t, "none", p.GetString("/quantum-optimise", "missing", "none"))
	_, found := p.Get("/a/b", "missing")
	assert.False(t, found)

	verify, err := p.GetBool("/convert-tiled-cinm-to-cnm", "verify", false)
	require.NoError(t, err)
	assert.True(t, verify)

	n, err := p.GetInt("/a/b/c", "max-iterations", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = p.GetInt("/a", "max-iterations", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	p.Set("/bad", "max-iterations", "many")
	_, err = p.GetInt("/bad", "max-iterations", 0)
	require.ErrorContains(t, err, "is not an int")
	_, err = p.GetBool("/bad", "max-iterations", false)
	require.Error(t, err)

	assert.Equal(t, "/a", p.Join("/", "a"))
	assert.Equal(t, "/a/b", p.Join("/a", "b"))
}

func TestEnumerateAndClone(t *testing.T) {
	p := scoped.New("/")
	p.Set("/b", "y", 2)
	p.Set("/", "x", 1)
	p.Set("/b", "a", 3)
	clone := p.Clone()
	p.Set("/", "z", 4)

	type entry struct {
		scope, key string
		value any
	}
	var got []entry
	clone.Enumerate(func(scope, key string, value any) {
		got = append(got, entry{scope, key, value})
	})
	assert.Equal(t, []entry{{"/", "x", 1}, {"/b", "a", 3}, {"/b", "y", 2}}, got)
}
