// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/pkg/errors"
)

var (
	// ErrNoMatch is returned by a Pattern that doesn't apply to the operation. It is not a
	// failure: other patterns may still be tried.
	ErrNoMatch = errors.New("pattern doesn't match")

	// ErrConversionFailed is wrapped by the errors of the conversion drivers.
	ErrConversionFailed = errors.New("conversion failed")
)

// Pattern rewrites operations of one kind.
type Pattern interface {
	// Kind is the name of the operations the pattern applies to, e.g. "linalg.reduce".
	Kind() string

	// MatchAndRewrite rewrites op using rw. It returns ErrNoMatch, without changing the
	// program, if the pattern doesn't apply. Any other error aborts the rewrite.
	MatchAndRewrite(op *ir.Operation, rw *Rewriter) error
}

// PatternFunc adapts a function to the Pattern interface.
type PatternFunc struct {
	kind string
	fn   func(op *ir.Operation, rw *Rewriter) error
}

// NewPattern creates a Pattern for operations of the given kind.
func NewPattern(kind string, fn func(op *ir.Operation, rw *Rewriter) error) *PatternFunc {
	return &PatternFunc{kind: kind, fn: fn}
}

// Kind implements Pattern.
func (p *PatternFunc) Kind() string { return p.kind }

// MatchAndRewrite implements Pattern.
func (p *PatternFunc) MatchAndRewrite(op *ir.Operation, rw *Rewriter) error { return p.fn(op, rw) }

// PatternSet is a table of patterns keyed by the kind of operation they apply to. Patterns of
// the same kind are tried in the order they were added.
type PatternSet struct {
	byKind map[string][]Pattern
	size   int
}

// NewPatternSet creates a PatternSet with the given patterns.
func NewPatternSet(patterns ...Pattern) *PatternSet {
	ps := &PatternSet{byKind: make(map[string][]Pattern)}
	ps.Add(patterns...)
	return ps
}

// Add patterns to the set.
func (ps *PatternSet) Add(patterns ...Pattern) *PatternSet {
	for _, p := range patterns {
		ps.byKind[p.Kind()] = append(ps.byKind[p.Kind()], p)
		ps.size++
	}
	return ps
}

// Len returns the number of patterns.
func (ps *PatternSet) Len() int { return ps.size }

// Lookup returns the patterns for the given operation kind.
func (ps *PatternSet) Lookup(kind string) []Pattern { return ps.byKind[kind] }

// apply tries the patterns of op's kind in order, and returns whether one of them rewrote op.
func (ps *PatternSet) apply(op *ir.Operation, rw *Rewriter) (bool, error) {
	for _, p := range ps.byKind[op.Name()] {
		rw.SetLocation(op.Location())
		err := p.MatchAndRewrite(op, rw)
		if errors.Is(err, ErrNoMatch) {
			continue
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
