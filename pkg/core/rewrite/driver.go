// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultMaxIterations bounds the number of sweeps of ApplyPatternsGreedily.
const DefaultMaxIterations = 10

// ErrNotConverged is returned by ApplyPatternsGreedily when patterns still apply after the
// maximum number of iterations.
var ErrNotConverged = errors.New("patterns did not converge")

// Stats reports what a driver did.
type Stats struct {
	// Rewritten is the number of operations a pattern was successfully applied to.
	Rewritten int

	// Mutations is the number of changes to the program, see Rewriter.Mutations.
	Mutations int
}

type conversionMode int

const (
	fullConversion conversionMode = iota
	partialConversion
)

// ApplyFullConversion converts the operations nested in root so that all of them are legal for
// target. It fails if an operation is not legal and no pattern legalizes it.
//
// Operations are visited once each, in program order, from a snapshot taken before the
// conversion starts. Operations created by patterns are also converted if they are not legal.
// Erasures are deferred to the end of the conversion.
func ApplyFullConversion(root *ir.Operation, target *Target, patterns *PatternSet) (Stats, error) {
	return applyConversion(root, target, patterns, fullConversion)
}

// ApplyPartialConversion is like ApplyFullConversion, but only operations explicitly marked as
// illegal must be converted: operations with unknown legality are left as they are when no
// pattern applies.
func ApplyPartialConversion(root *ir.Operation, target *Target, patterns *PatternSet) (Stats, error) {
	return applyConversion(root, target, patterns, partialConversion)
}

func applyConversion(root *ir.Operation, target *Target, patterns *PatternSet, mode conversionMode) (stats Stats, err error) {
	rw := newConversionRewriter()
	descend := func(op *ir.Operation) bool { return !target.IsRecursivelyLegal(op) }
	worklist := root.PreOrder(descend)
	for len(worklist) > 0 {
		op := worklist[0]
		worklist = worklist[1:]
		if rw.IsErased(op) || insideRecursivelyLegal(op, root, target) {
			continue
		}
		legality := target.Legality(op)
		if target.IsLegal(op) {
			continue
		}
		rw.SetInsertionPointBefore(op)
		applied, err := patterns.apply(op, rw)
		if err != nil {
			return Stats{Mutations: rw.Mutations(), Rewritten: stats.Rewritten},
				errors.Wrapf(ErrConversionFailed, "%s at %s: %v", op.Name(), op.Location(), err)
		}
		if !applied {
			if mode == partialConversion && legality != Illegal {
				continue
			}
			return Stats{Mutations: rw.Mutations(), Rewritten: stats.Rewritten},
				errors.Wrapf(ErrConversionFailed, "failed to legalize %s at %s", op.Name(), op.Location())
		}
		stats.Rewritten++
		klog.V(2).Infof("rewrite: converted %s at %s", op.Name(), op.Location())
		if !rw.IsErased(op) && !target.IsLegal(op) {
			return Stats{Mutations: rw.Mutations(), Rewritten: stats.Rewritten},
				errors.Wrapf(ErrConversionFailed, "%s at %s is still illegal after its rewrite", op.Name(), op.Location())
		}
		// New operations are converted right after the one that created them.
		var created []*ir.Operation
		seen := sets.Make[*ir.Operation]()
		for _, newOp := range rw.takeInserted() {
			for _, op := range append([]*ir.Operation{newOp}, nestedOps(newOp, descend)...) {
				if !seen.Has(op) {
					seen.Insert(op)
					created = append(created, op)
				}
			}
		}
		worklist = append(created, worklist...)
	}
	if err = rw.Commit(); err != nil {
		return Stats{Mutations: rw.Mutations(), Rewritten: stats.Rewritten}, err
	}
	stats.Mutations = rw.Mutations()
	return stats, nil
}

func nestedOps(op *ir.Operation, descend func(op *ir.Operation) bool) []*ir.Operation {
	if !descend(op) {
		return nil
	}
	return op.PreOrder(descend)
}

// insideRecursivelyLegal returns whether op is nested in an operation whose interior the target
// doesn't convert.
func insideRecursivelyLegal(op, root *ir.Operation, target *Target) bool {
	for parent := op.ParentOp(); parent != nil && parent != root; parent = parent.ParentOp() {
		if target.IsRecursivelyLegal(parent) {
			return true
		}
	}
	return false
}

// ApplyPatternsGreedily applies the patterns to the operations nested in root until none of
// them applies, sweeping the program in program order at most maxIterations times (use
// DefaultMaxIterations if maxIterations <= 0). Pure operations whose results are not used are
// removed along the way.
//
// It returns an error wrapping ErrNotConverged if the program still changed in the last sweep.
func ApplyPatternsGreedily(root *ir.Operation, patterns *PatternSet, maxIterations int) (Stats, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	rw := NewRewriter()
	var stats Stats
	for iteration := 0; iteration < maxIterations; iteration++ {
		changed := false
		for _, op := range root.PreOrder(nil) {
			if rw.IsErased(op) {
				continue
			}
			if isTriviallyDead(op) {
				rw.EraseOp(op)
				changed = true
				continue
			}
			rw.SetInsertionPointBefore(op)
			applied, err := patterns.apply(op, rw)
			if err != nil {
				stats.Mutations = rw.Mutations()
				return stats, errors.WithMessagef(err, "%s at %s", op.Name(), op.Location())
			}
			if applied {
				stats.Rewritten++
				changed = true
				klog.V(2).Infof("rewrite: applied pattern to %s at %s", op.Name(), op.Location())
			}
		}
		rw.takeInserted()
		if !changed {
			stats.Mutations = rw.Mutations()
			klog.V(1).Infof("rewrite: greedy rewrite converged after %d iteration(s)", iteration+1)
			return stats, nil
		}
	}
	stats.Mutations = rw.Mutations()
	return stats, errors.Wrapf(ErrNotConverged, "after %d iterations", maxIterations)
}

func isTriviallyDead(op *ir.Operation) bool {
	return op.HasTrait(ir.Pure) && op.NumResults() > 0 && !op.HasUses() && op.NumRegions() == 0
}
