// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"iter"

	"github.com/gomlx/exceptions"
)

// Strides returns the strides for each axis of the shape, assuming a "row-major" layout
// in memory, the one used everywhere in this module.
//
// Notice the strides are **not in bytes**, but in indices.
func (s Shape) Strides() (strides []int) {
	rank := s.Rank()
	if rank == 0 {
		return
	}
	strides = make([]int, rank)
	currentStride := 1
	for dim := rank - 1; dim >= 0; dim-- {
		strides[dim] = currentStride
		currentStride *= s.Dimensions[dim]
	}
	return
}

// LinearIndex returns the row-major flat index of the given per-axis indices.
func (s Shape) LinearIndex(indices []int) int {
	if len(indices) != s.Rank() {
		exceptions.Panicf("LinearIndex(%v) for shape %s: wrong number of indices", indices, s)
	}
	flat := 0
	for axis, idx := range indices {
		flat = flat*s.Dimensions[axis] + idx
	}
	return flat
}

// Unravel converts a row-major flat index into per-axis indices, stored in indices (which must have
// length Rank()).
func (s Shape) Unravel(flat int, indices []int) {
	for axis := s.Rank() - 1; axis >= 0; axis-- {
		indices[axis] = flat % s.Dimensions[axis]
		flat /= s.Dimensions[axis]
	}
}

// Iter iterates sequentially over all possible indices of the given shape.
//
// It yields the flat index (counter) and a slice of indices for each axis.
//
// To avoid allocating the slice of indices, the yielded indices is owned by the Iter() method:
// don't change it inside the loop.
func (s Shape) Iter() iter.Seq2[int, []int] {
	return func(yield func(int, []int) bool) {
		rank := s.Rank()
		indices := make([]int, rank)
		size := s.Size()
		for flat := 0; flat < size; flat++ {
			if !yield(flat, indices) {
				return
			}
			// Increment, row-major order: the last index changes fastest.
			for axis := rank - 1; axis >= 0; axis-- {
				indices[axis]++
				if indices[axis] < s.Dimensions[axis] {
					break
				}
				indices[axis] = 0
			}
		}
	}
}
