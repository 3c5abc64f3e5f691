// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

// WalkResult controls the traversal of Walk.
type WalkResult int

const (
	// Advance continues the walk, including the regions of the current operation.
	Advance WalkResult = iota

	// Skip continues the walk, but doesn't enter the regions of the current operation.
	Skip

	// Interrupt stops the walk.
	Interrupt
)

// Walk visits op and all operations nested in its regions, in pre-order (program order).
//
// It returns false if the walk was interrupted.
func (op *Operation) Walk(fn func(op *Operation) WalkResult) bool {
	switch fn(op) {
	case Interrupt:
		return false
	case Skip:
		return true
	}
	for _, region := range op.regions {
		for _, block := range region.blocks {
			// Iterate over a copy: fn may mutate the block.
			for _, nested := range block.Operations() {
				if !nested.Walk(fn) {
					return false
				}
			}
		}
	}
	return true
}

// PreOrder returns the operations nested in op (excluding op itself) in program order.
//
// The regions of operations for which descend returns false are not entered. If descend is nil,
// all regions are entered.
func (op *Operation) PreOrder(descend func(op *Operation) bool) []*Operation {
	var ops []*Operation
	op.Walk(func(nested *Operation) WalkResult {
		if nested != op {
			ops = append(ops, nested)
			if descend != nil && !descend(nested) {
				return Skip
			}
		}
		return Advance
	})
	return ops
}
