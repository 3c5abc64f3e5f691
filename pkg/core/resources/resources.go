// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package resources maps logical resources (e.g. qubit registers of a high-level program) to the
// ordered list of physical resources (e.g. qubit handles) implementing them, while a program is
// being lowered.
package resources

import (
	"fmt"
	"iter"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ErrNotAllocated is returned (wrapped) when looking up a logical resource that was never
// allocated.
var ErrNotAllocated = errors.New("logical resource not allocated")

// AllocationMap maps logical resources of type L to the physical resources of type P they own.
//
// Allocations only append: a logical resource keeps every physical resource allocated to it, in
// allocation order. A map is meant to live for the duration of one lowering pass.
//
// It is not safe for concurrent use.
type AllocationMap[L comparable, P any] struct {
	physical map[L][]P
	order    []L
}

// NewAllocationMap creates an empty map.
func NewAllocationMap[L comparable, P any]() *AllocationMap[L, P] {
	return &AllocationMap[L, P]{physical: make(map[L][]P)}
}

// Allocate appends physical resources to the ones owned by the logical resource. Allocating
// with no physical resources registers the logical resource with an empty list.
func (m *AllocationMap[L, P]) Allocate(logical L, physical ...P) {
	current, found := m.physical[logical]
	if !found {
		m.order = append(m.order, logical)
		current = make([]P, 0, len(physical))
	}
	m.physical[logical] = append(current, physical...)
}

// Find returns (a copy of) the physical resources owned by the logical resource, in allocation
// order. It returns an error wrapping ErrNotAllocated if the logical resource was never
// allocated.
func (m *AllocationMap[L, P]) Find(logical L) ([]P, error) {
	physical, found := m.physical[logical]
	if !found {
		return nil, errors.Wrapf(ErrNotAllocated, "no physical resources for %v", describe(logical))
	}
	return slices.Clone(physical), nil
}

// MustFind is like Find, but panics (with exceptions.Panicf) if the logical resource was never
// allocated.
func (m *AllocationMap[L, P]) MustFind(logical L) []P {
	physical, err := m.Find(logical)
	if err != nil {
		exceptions.Panicf("%+v", err)
	}
	return physical
}

// Has returns whether the logical resource was allocated.
func (m *AllocationMap[L, P]) Has(logical L) bool {
	_, found := m.physical[logical]
	return found
}

// Len returns the number of logical resources allocated.
func (m *AllocationMap[L, P]) Len() int { return len(m.order) }

// Enumerate iterates over the logical resources, in the order they were first allocated, and
// their physical resources.
func (m *AllocationMap[L, P]) Enumerate() iter.Seq2[L, []P] {
	return func(yield func(L, []P) bool) {
		for _, logical := range m.order {
			if !yield(logical, slices.Clone(m.physical[logical])) {
				return
			}
		}
	}
}

func describe(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}
