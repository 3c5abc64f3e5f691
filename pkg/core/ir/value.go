// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"

	"github.com/gomlx/exceptions"
)

// Value is an SSA value: either the result of an Operation or an argument of a Block.
type Value struct {
	typ Type

	// owner is set for results, block for block arguments.
	owner *Operation
	block *Block
	index int

	uses []Use
}

// Use is one operand slot referring to a Value.
type Use struct {
	Op    *Operation
	Index int
}

// Type of the value.
func (v *Value) Type() Type { return v.typ }

// SetType changes the type of the value. Only used by type conversions that update all uses consistently.
func (v *Value) SetType(t Type) { v.typ = t }

// DefiningOp returns the operation that produces the value, or nil for block arguments.
func (v *Value) DefiningOp() *Operation { return v.owner }

// ParentBlock returns the block where the value is defined.
func (v *Value) ParentBlock() *Block {
	if v.owner != nil {
		return v.owner.block
	}
	return v.block
}

// IsBlockArgument returns whether the value is an argument of a block.
func (v *Value) IsBlockArgument() bool { return v.owner == nil }

// Index is the result number in the defining op, or the argument number in the block.
func (v *Value) Index() int { return v.index }

// Uses returns a copy of the list of uses of the value.
func (v *Value) Uses() []Use { return slices.Clone(v.uses) }

// NumUses returns the number of operand slots referring to the value.
func (v *Value) NumUses() int { return len(v.uses) }

// HasOneUse returns whether the value is used exactly once.
func (v *Value) HasOneUse() bool { return len(v.uses) == 1 }

// Users returns the distinct operations using the value, in order of first use.
func (v *Value) Users() []*Operation {
	users := make([]*Operation, 0, len(v.uses))
	for _, u := range v.uses {
		if !slices.Contains(users, u.Op) {
			users = append(users, u.Op)
		}
	}
	return users
}

// ReplaceAllUsesWith redirects every use of v to newValue.
func (v *Value) ReplaceAllUsesWith(newValue *Value) {
	if newValue == nil {
		exceptions.Panicf("ReplaceAllUsesWith(nil) for value of type %s", v.typ)
	}
	if newValue == v {
		return
	}
	for _, u := range slices.Clone(v.uses) {
		u.Op.SetOperand(u.Index, newValue)
	}
}

func (v *Value) addUse(op *Operation, index int) {
	v.uses = append(v.uses, Use{Op: op, Index: index})
}

func (v *Value) removeUse(op *Operation, index int) {
	idx := slices.IndexFunc(v.uses, func(u Use) bool { return u.Op == op && u.Index == index })
	if idx == -1 {
		exceptions.Panicf("internal error: value of type %s has no use (%s, #%d)", v.typ, op.Name(), index)
	}
	v.uses = slices.Delete(v.uses, idx, idx+1)
}
