// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/pkg/errors"
)

// Verify checks the structural invariants of op and everything nested in it:
//
//   - Every operand is visible from its user: defined in an enclosing block, before the user, without
//     crossing the boundary of an operation with the IsolatedFromAbove trait.
//   - Terminators are the last operation of their block.
//   - The registered verifier of each operation succeeds.
//
// It returns the first error found.
func Verify(root *Operation) error {
	var err error
	root.Walk(func(op *Operation) WalkResult {
		err = verifyOp(root, op)
		if err != nil {
			return Interrupt
		}
		return Advance
	})
	return err
}

func verifyOp(root, op *Operation) error {
	for ii, v := range op.operands {
		if v == nil {
			return errors.Errorf("%s at %s: operand #%d is nil (erased value?)", op.name, op.loc, ii)
		}
		if err := checkVisible(root, op, v); err != nil {
			return errors.WithMessagef(err, "%s at %s: operand #%d", op.name, op.loc, ii)
		}
	}
	if op.HasTrait(Terminator) && op.block != nil && op.block.ops[len(op.block.ops)-1] != op {
		return errors.Errorf("%s at %s: terminator is not the last operation of its block", op.name, op.loc)
	}
	if info := op.Info(); info != nil && info.Verify != nil {
		if err := info.Verify(op); err != nil {
			return errors.WithMessagef(err, "%s at %s", op.name, op.loc)
		}
	}
	return nil
}

// checkVisible checks that v is defined in a block enclosing user, before it, and that no
// IsolatedFromAbove operation lies between them.
func checkVisible(root, user *Operation, v *Value) error {
	defBlock := v.ParentBlock()
	if defBlock == nil {
		return errors.Errorf("value of type %s is defined by a detached operation", v.typ)
	}
	ancestor := user
	for ancestor != nil {
		if ancestor.block == defBlock {
			if v.owner != nil && defBlock.indexOf(v.owner) >= defBlock.indexOf(ancestor) {
				return errors.Errorf("value of type %s (result of %s) is used before it is defined", v.typ, v.owner.name)
			}
			return nil
		}
		parent := ancestor.ParentOp()
		if parent != nil && parent.HasTrait(IsolatedFromAbove) {
			// v could still be a block argument or value defined inside parent's own regions.
			if !parent.IsAncestor(definingAnchor(v)) {
				return errors.Errorf("value of type %s is captured from above %s, which is isolated from above", v.typ, parent.name)
			}
		}
		if ancestor == root {
			break
		}
		ancestor = parent
	}
	return errors.Errorf("value of type %s is not defined in an enclosing block", v.typ)
}

// definingAnchor returns an operation contained by every op whose region holds v's definition.
func definingAnchor(v *Value) *Operation {
	if v.owner != nil {
		return v.owner
	}
	return v.block.ParentOp()
}
