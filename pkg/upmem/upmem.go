// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package upmem describes the contract with the UPMEM DPU kernels that launches are lowered to:
// the memory available to each DPU, the arguments and results structs shared with the host, and
// the layout of the operands in the DPU main memory (MRAM).
package upmem

import (
	"math"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/cinnamon/pkg/core/shapes"
	"github.com/pkg/errors"
)

const (
	// BufferDim is the number of elements a tasklet transfers between MRAM and WRAM at once.
	BufferDim = 128

	// MRAMSize is the size of the main memory of one DPU.
	MRAMSize = 64 << 20

	// WRAMSize is the size of the working memory of one DPU, shared by its tasklets.
	WRAMSize = 64 << 10

	// MaxTasklets is the maximum number of hardware threads of a DPU.
	MaxTasklets = 24

	// DefaultTasklets is the number of tasklets the kernels are compiled with.
	DefaultTasklets = 16

	// elementSize is the size of the int elements of the matrix kernels.
	elementSize = 4
)

// ErrBufferTooLarge is returned (wrapped) by CheckBuffer.
var ErrBufferTooLarge = errors.New("buffer doesn't fit in the DPU memory")

// Arguments is the struct the host writes to each DPU before a launch (dpu_arguments_t).
type Arguments struct {
	// MSize is the number of rows of the output.
	MSize uint32

	// NSize is the number of columns of the input matrix (the reduced axis).
	NSize uint32
}

// Results is the struct each DPU writes back after a launch (dpu_results_t).
type Results struct {
	Cycles uint64
}

// RowsPerTasklet returns how many output rows each of numTasklets tasklets computes.
func (a Arguments) RowsPerTasklet(numTasklets int) int {
	if int(a.MSize) < numTasklets {
		return 1
	}
	return int(a.MSize) / numTasklets
}

// SingleLoad returns whether a whole row fits in one transfer of BufferDim elements: the kernel
// then loads each row once, instead of in BufferDim chunks.
func (a Arguments) SingleLoad() bool {
	return a.NSize <= BufferDim
}

// Layout is the placement of the operands of the matrix-vector kernel in MRAM, as byte offsets
// from the start of the heap. Offsets are 64 bits wide so that layouts of matrices too large for
// the DPU can still be measured.
type Layout struct {
	// A is the MSize x NSize input matrix.
	A uint64

	// B is the NSize input vector.
	B uint64

	// C is the MSize output vector.
	C uint64

	// End is the first byte after C.
	End uint64
}

// MRAMLayout returns the layout of the operands for the given arguments.
func MRAMLayout(args Arguments) Layout {
	m, n := uint64(args.MSize), uint64(args.NSize)
	return Layout{
		A:   0,
		B:   m * n * elementSize,
		C:   (m*n + n) * elementSize,
		End: (m*n + n + m) * elementSize,
	}
}

// Validate checks that the operands fit in MRAM and that the work can be split among
// numTasklets tasklets.
func (a Arguments) Validate(numTasklets int) error {
	if numTasklets <= 0 || numTasklets > MaxTasklets {
		return errors.Errorf("invalid number of tasklets %d, it must be between 1 and %d", numTasklets, MaxTasklets)
	}
	if a.MSize == 0 || a.NSize == 0 {
		return errors.Errorf("invalid kernel arguments %+v: sizes must be > 0", a)
	}
	if !a.SingleLoad() && a.NSize%BufferDim != 0 {
		return errors.Errorf("rows of %d elements must be a multiple of %d to be loaded in chunks", a.NSize, BufferDim)
	}
	// The kernel addresses MRAM with 32-bit offsets.
	if end := MRAMLayout(a).End; end > MRAMSize || end > math.MaxUint32 {
		return errors.Wrapf(ErrBufferTooLarge, "kernel operands use %s of MRAM, only %s available",
			humanize.IBytes(end), humanize.IBytes(MRAMSize))
	}
	return nil
}

// CheckBuffer checks that a per-worker buffer of the given shape fits in limit bytes of memory.
// If limit <= 0, MRAMSize is used.
func CheckBuffer(perWorker shapes.Shape, limit int64) error {
	if limit <= 0 {
		limit = MRAMSize
	}
	size := int64(perWorker.Memory())
	if size > limit {
		return errors.Wrapf(ErrBufferTooLarge, "per-worker buffer %s needs %s, limit is %s",
			perWorker, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)))
	}
	return nil
}

// ParseMemoryLimit parses a human-readable size, e.g. "64MiB" or "32 kB".
func ParseMemoryLimit(text string) (int64, error) {
	size, err := humanize.ParseBytes(text)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid memory limit %q", text)
	}
	if size > math.MaxInt64 {
		return 0, errors.Errorf("memory limit %q is too large", text)
	}
	return int64(size), nil
}
