// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package quantumopt simplifies programs of the quantum dialect.
package quantumopt

import (
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/pass"
	"github.com/gomlx/cinnamon/pkg/core/rewrite"
	"github.com/gomlx/cinnamon/pkg/dialects/quantum"
	"github.com/gomlx/cinnamon/pkg/support/sets"
	"k8s.io/klog/v2"
)

// PassName is the name the pass is registered with.
const PassName = "quantum-optimise"

func init() {
	pass.Register(PassName, func(opts pass.Options) (pass.Pass, error) {
		maxIterations, err := opts.Int("max-iterations", rewrite.DefaultMaxIterations)
		if err != nil {
			return nil, err
		}
		return &Pass{MaxIterations: maxIterations}, nil
	})
}

// Pass removes gates that can't change the outcome of the program.
type Pass struct {
	// MaxIterations bounds the sweeps over the program, see rewrite.ApplyPatternsGreedily.
	MaxIterations int
}

var _ pass.Pass = (*Pass)(nil)

// New returns the pass with the default number of iterations.
func New() *Pass { return &Pass{} }

// Name implements pass.Pass.
func (p *Pass) Name() string { return PassName }

// Run implements pass.Pass.
func (p *Pass) Run(module *ir.Operation) (rewrite.Stats, error) {
	return rewrite.ApplyPatternsGreedily(module, Patterns(), p.MaxIterations)
}

// Patterns returns the simplification patterns of the pass.
func Patterns() *rewrite.PatternSet {
	patterns := rewrite.NewPatternSet()
	for _, gate := range sets.Sorted(quantum.PhaseGates) {
		patterns.Add(rewrite.NewPattern(quantum.GateOp(gate), dropPhaseBeforeMeasure))
	}
	return patterns
}

// dropPhaseBeforeMeasure removes a phase gate whose result is only measured: the phase doesn't
// change the probabilities of the outcomes.
func dropPhaseBeforeMeasure(op *ir.Operation, rw *rewrite.Rewriter) error {
	result := op.Result(0)
	if !result.HasOneUse() || !result.Users()[0].Is(quantum.MeasureOp) {
		return rewrite.ErrNoMatch
	}
	klog.V(2).Infof("%s: dropping %s at %s before a measurement", PassName, op.Name(), op.Location())
	rw.ReplaceOp(op, op.Operand(0))
	return nil
}
