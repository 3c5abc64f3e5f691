// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package cinmtocnm lowers tensor reductions (linalg.reduce) to computations distributed over a
// workgroup of compute-near-memory workers (cnm dialect).
//
// For each reduction, a Strategy selects a workgroup whose workers evenly divide the parallel
// (non-reduced) volume of every operand. The operands are then scattered over per-worker
// buffers, a cnm.launch runs the reduction on every worker, and the results are gathered back.
// Reductions for which no workgroup is legal are left as they are.
package cinmtocnm

import (
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/pass"
	"github.com/gomlx/cinnamon/pkg/core/rewrite"
	"github.com/gomlx/cinnamon/pkg/dialects/cnm"
	"github.com/gomlx/cinnamon/pkg/dialects/linalg"
	"github.com/gomlx/cinnamon/pkg/upmem"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PassName is the name the pass is registered with.
const PassName = "convert-tiled-cinm-to-cnm"

// ErrUnsupportedOperand is returned (wrapped) when a reduction outside a launch doesn't work on
// tensors.
var ErrUnsupportedOperand = errors.New("reduction operands must be tensors")

func init() {
	pass.Register(PassName, func(opts pass.Options) (pass.Pass, error) {
		candidates, err := ParseCandidates(opts.String("workgroup", "4x16"))
		if err != nil {
			return nil, err
		}
		selector := Candidates(candidates...)
		if limit := opts.String("max-buffer", ""); limit != "" {
			bytes, err := upmem.ParseMemoryLimit(limit)
			if err != nil {
				return nil, err
			}
			selector.WithMemoryLimit(bytes)
		}
		return New(selector), nil
	})
}

// Pass lowers reductions to cnm launches.
type Pass struct {
	Strategy Strategy
}

var _ pass.Pass = (*Pass)(nil)

// New returns the pass using the given strategy. If strategy is nil, the DefaultWorkgroup is
// used.
func New(strategy Strategy) *Pass {
	if strategy == nil {
		strategy = StaticWorkgroup(DefaultWorkgroup...)
	}
	return &Pass{Strategy: strategy}
}

// Name implements pass.Pass.
func (p *Pass) Name() string { return PassName }

// Run implements pass.Pass.
//
// The interior of launches is never rewritten, so running the pass on its own output changes
// nothing.
func (p *Pass) Run(module *ir.Operation) (rewrite.Stats, error) {
	notLaunch := func(op *ir.Operation) bool { return !op.Is(cnm.LaunchOp) }
	for _, op := range module.PreOrder(notLaunch) {
		if r, ok := linalg.AsReduce(op); ok && !r.OnTensors() {
			return rewrite.Stats{}, errors.Wrapf(ErrUnsupportedOperand, "%s at %s", op.Name(), op.Location())
		}
	}

	target := rewrite.NewTarget().
		MarkUnknownOpLegal(true).
		MarkOpRecursivelyLegal(cnm.LaunchOp).
		AddDynamicallyLegalOp(linalg.ReduceOp, func(op *ir.Operation) bool {
			r, _ := linalg.AsReduce(op)
			return p.Strategy.Select(r) == nil
		})
	patterns := rewrite.NewPatternSet(rewrite.NewPattern(linalg.ReduceOp, p.rewriteReduce))
	stats, err := rewrite.ApplyFullConversion(module, target, patterns)
	if err != nil {
		return stats, err
	}
	klog.V(1).Infof("%s: %d reduction(s) distributed", PassName, stats.Rewritten)
	return stats, nil
}

func (p *Pass) rewriteReduce(op *ir.Operation, rw *rewrite.Rewriter) error {
	r, _ := linalg.AsReduce(op)
	wg := p.Strategy.Select(r)
	if wg == nil {
		return rewrite.ErrNoMatch
	}
	klog.V(2).Infof("%s: distributing %s at %s over %s", PassName, op.Name(), op.Location(), wg)
	results := LowerReduce(rw, r, wg)
	rw.ReplaceOp(op, results...)
	return nil
}
