// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package rewrite implements pattern based rewriting of programs: dialect conversion towards a
// Target (full or partial) and greedy application of patterns up to a fixed point.
package rewrite

import (
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/support/sets"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Rewriter is the builder used by patterns: every change to the program done through it is
// tracked.
//
// During a conversion, erasures are deferred: erased operations stay in the program, detached
// from their uses only at the end of the conversion, when Commit is called.
type Rewriter struct {
	*ir.Builder

	deferErasure bool
	pending      []*ir.Operation
	erased       sets.Set[*ir.Operation]
	inserted     []*ir.Operation
	mutations    int
}

// NewRewriter returns a Rewriter with immediate erasure and no insertion point.
func NewRewriter() *Rewriter {
	rw := &Rewriter{
		Builder: ir.NewBuilder(),
		erased:  sets.Make[*ir.Operation](),
	}
	rw.Builder.SetListener(rw)
	return rw
}

// newConversionRewriter returns a Rewriter that defers erasures until Commit.
func newConversionRewriter() *Rewriter {
	rw := NewRewriter()
	rw.deferErasure = true
	return rw
}

// OperationInserted implements ir.Listener.
func (rw *Rewriter) OperationInserted(op *ir.Operation) {
	rw.mutations++
	rw.inserted = append(rw.inserted, op)
}

// Mutations returns the number of changes done through the rewriter: created, erased and
// modified operations and replaced values.
func (rw *Rewriter) Mutations() int { return rw.mutations }

// takeInserted returns the operations inserted since the last call.
func (rw *Rewriter) takeInserted() []*ir.Operation {
	inserted := rw.inserted
	rw.inserted = nil
	return inserted
}

// IsErased returns whether op was erased (or scheduled for erasure) by the rewriter.
func (rw *Rewriter) IsErased(op *ir.Operation) bool {
	for ; op != nil; op = op.ParentOp() {
		if rw.erased.Has(op) {
			return true
		}
	}
	return false
}

// ReplaceAllUsesWith redirects all uses of from to to.
func (rw *Rewriter) ReplaceAllUsesWith(from, to *ir.Value) {
	if from == to {
		return
	}
	rw.mutations++
	from.ReplaceAllUsesWith(to)
}

// ReplaceOp replaces the results of op with values, and erases op.
func (rw *Rewriter) ReplaceOp(op *ir.Operation, values ...*ir.Value) {
	if len(values) != op.NumResults() {
		exceptions.Panicf("ReplaceOp(%s at %s): got %d values for %d results", op.Name(), op.Location(), len(values), op.NumResults())
	}
	for ii, v := range values {
		rw.ReplaceAllUsesWith(op.Result(ii), v)
	}
	rw.EraseOp(op)
}

// EraseOp erases op. With deferred erasure the operation is only marked as erased, and it is
// removed by Commit.
func (rw *Rewriter) EraseOp(op *ir.Operation) {
	if rw.erased.Has(op) {
		exceptions.Panicf("EraseOp(%s at %s): operation erased twice", op.Name(), op.Location())
	}
	rw.mutations++
	rw.erased.Insert(op)
	if rw.deferErasure {
		rw.pending = append(rw.pending, op)
		return
	}
	op.Erase()
}

// ModifyOpInPlace calls fn, which is expected to change op (operands or attributes) without
// replacing it.
func (rw *Rewriter) ModifyOpInPlace(op *ir.Operation, fn func()) {
	rw.mutations++
	fn()
	klog.V(3).Infof("rewrite: modified %s at %s in place", op.Name(), op.Location())
}

// Commit removes the operations whose erasure was deferred.
//
// It fails, wrapping ErrConversionFailed, if a result of an erased operation is still used by
// an operation that was not erased: some value was never replaced.
func (rw *Rewriter) Commit() error {
	// Operations nested in an erased operation go away with it.
	var roots []*ir.Operation
	for _, op := range rw.pending {
		if parent := op.ParentOp(); parent == nil || !rw.IsErased(parent) {
			roots = append(roots, op)
		}
	}
	for _, op := range roots {
		for _, result := range op.Results() {
			for _, user := range result.Users() {
				if !rw.IsErased(user) {
					return errors.Wrapf(ErrConversionFailed,
						"result #%d of erased %s at %s is still used by %s at %s",
						result.Index(), op.Name(), op.Location(), user.Name(), user.Location())
				}
			}
		}
	}
	// Erase users before the operations they use: this always progresses since values are
	// only used after they are defined.
	for len(roots) > 0 {
		remaining := roots[:0]
		for _, op := range roots {
			if op.HasUses() {
				remaining = append(remaining, op)
				continue
			}
			op.Erase()
		}
		if len(remaining) == len(roots) {
			exceptions.Panicf("rewrite.Commit: cyclic uses among %d erased operations", len(roots))
		}
		roots = remaining
	}
	rw.pending = nil
	return nil
}
