// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide small generic helpers missing from the standard slices package,
// mostly used when manipulating shapes and lists of IR values.
package xslices

import (
	"cmp"
	"slices"

	"golang.org/x/exp/constraints"
)

// At takes an element at the given `index`, where `index` can be negative, in which case it takes from the end
// of the slice.
func At[T any](slice []T, index int) T {
	if index < 0 {
		index = len(slice) + index
	}
	return slice[index]
}

// Last returns the last element of a slice.
func Last[T any](slice []T) T {
	return At(slice, -1)
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	if in == nil {
		return nil
	}
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Product returns the product of all elements of the slice. The product of an empty slice is 1,
// which is the number of elements of a scalar shape.
func Product[T constraints.Integer | constraints.Float](slice []T) T {
	var p T = 1
	for _, e := range slice {
		p *= e
	}
	return p
}

// Iota returns a slice of incremental int values, starting with start and of length len.
// Eg: Iota(3, 2) -> []int{3, 4}
func Iota[T constraints.Integer](start T, len int) (slice []T) {
	slice = make([]T, len)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// SortedKeys returns the sorted keys of a map.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsContiguousRun returns whether the sorted slice holds consecutive values, e.g. {2, 3, 4}.
// An empty slice is not considered a run.
func IsContiguousRun[T constraints.Integer](sorted []T) bool {
	if len(sorted) == 0 {
		return false
	}
	for ii := 1; ii < len(sorted); ii++ {
		if sorted[ii] != sorted[ii-1]+1 {
			return false
		}
	}
	return true
}
