// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package upmem

import (
	"testing"

	"github.com/gomlx/cinnamon/pkg/core/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMRAMLayout(t *testing.T) {
	args := Arguments{MSize: 64, NSize: 128}
	layout := MRAMLayout(args)
	assert.Equal(t, uint64(0), layout.A)
	assert.Equal(t, uint64(64*128*4), layout.B)
	assert.Equal(t, uint64((64*128+128)*4), layout.C)
	assert.Equal(t, uint64((64*128+128+64)*4), layout.End)
	assert.True(t, args.SingleLoad())
	assert.Equal(t, 4, args.RowsPerTasklet(16))
	assert.Equal(t, 1, Arguments{MSize: 8, NSize: 8}.RowsPerTasklet(16))
	require.NoError(t, args.Validate(DefaultTasklets))
}

func TestValidate(t *testing.T) {
	require.ErrorContains(t, Arguments{MSize: 4, NSize: 4}.Validate(MaxTasklets+1), "invalid number of tasklets")
	require.ErrorContains(t, Arguments{MSize: 4, NSize: 200}.Validate(16), "multiple of 128")
	err := Arguments{MSize: 1 << 14, NSize: 1 << 10}.Validate(16)
	require.ErrorIs(t, err, ErrBufferTooLarge)
	assert.Contains(t, err.Error(), "64 MiB")

	// Operands larger than 4GiB don't wrap around.
	huge := Arguments{MSize: 65536, NSize: 65536}
	assert.Equal(t, uint64((65536*65536+65536+65536)*4), MRAMLayout(huge).End)
	err = huge.Validate(16)
	require.ErrorIs(t, err, ErrBufferTooLarge)
	assert.Contains(t, err.Error(), "16 GiB")
}

func TestCheckBuffer(t *testing.T) {
	require.NoError(t, CheckBuffer(shapes.Make(dtypes.Float32, 1024), 0))
	require.NoError(t, CheckBuffer(shapes.Scalar(dtypes.Float32), 4))
	err := CheckBuffer(shapes.Make(dtypes.Float32, 1024), 1000)
	require.ErrorIs(t, err, ErrBufferTooLarge)
	assert.Contains(t, err.Error(), "4.0 KiB")

	limit, err := ParseMemoryLimit("64MiB")
	require.NoError(t, err)
	assert.Equal(t, int64(MRAMSize), limit)
	_, err = ParseMemoryLimit("lots")
	require.Error(t, err)
	_, err = ParseMemoryLimit("9 EiB")
	require.ErrorContains(t, err, "too large")
}
