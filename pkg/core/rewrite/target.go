// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/support/sets"
)

// Legality of an operation for a Target.
type Legality int

const (
	// Unknown means the Target has no rule for the operation.
	Unknown Legality = iota
	Legal
	Illegal
)

// String implements fmt.Stringer.
func (l Legality) String() string {
	switch l {
	case Legal:
		return "legal"
	case Illegal:
		return "illegal"
	}
	return "unknown"
}

// Target describes which operations are legal after a conversion.
//
// Rules are checked from the most specific to the least specific: dynamic legality of an
// operation kind, legal and illegal operation kinds, then legal and illegal dialects, and
// finally the fallback for unknown operations.
type Target struct {
	legalOps, illegalOps           sets.Set[string]
	legalDialects, illegalDialects sets.Set[string]
	dynamic                        map[string]func(op *ir.Operation) bool
	recursivelyLegal               sets.Set[string]
	unknownLegal                   bool
}

// NewTarget returns a target with no rules, where unknown operations are illegal.
func NewTarget() *Target {
	return &Target{
		legalOps:         sets.Make[string](),
		illegalOps:       sets.Make[string](),
		legalDialects:    sets.Make[string](),
		illegalDialects:  sets.Make[string](),
		dynamic:          make(map[string]func(op *ir.Operation) bool),
		recursivelyLegal: sets.Make[string](),
	}
}

// AddLegalOp marks operation kinds as legal.
func (t *Target) AddLegalOp(kinds ...string) *Target {
	t.legalOps.Insert(kinds...)
	return t
}

// AddIllegalOp marks operation kinds as illegal.
func (t *Target) AddIllegalOp(kinds ...string) *Target {
	t.illegalOps.Insert(kinds...)
	return t
}

// AddLegalDialect marks all operations of the dialects as legal.
func (t *Target) AddLegalDialect(dialects ...string) *Target {
	t.legalDialects.Insert(dialects...)
	return t
}

// AddIllegalDialect marks all operations of the dialects as illegal.
func (t *Target) AddIllegalDialect(dialects ...string) *Target {
	t.illegalDialects.Insert(dialects...)
	return t
}

// AddDynamicallyLegalOp makes the legality of operations of the given kind depend on the
// operation itself.
func (t *Target) AddDynamicallyLegalOp(kind string, isLegal func(op *ir.Operation) bool) *Target {
	t.dynamic[kind] = isLegal
	return t
}

// MarkOpRecursivelyLegal makes the operations nested in operations of the given kinds legal:
// they are never visited by the conversion.
func (t *Target) MarkOpRecursivelyLegal(kinds ...string) *Target {
	t.recursivelyLegal.Insert(kinds...)
	return t
}

// MarkUnknownOpLegal sets whether operations without any rule are legal.
func (t *Target) MarkUnknownOpLegal(legal bool) *Target {
	t.unknownLegal = legal
	return t
}

// IsRecursivelyLegal returns whether the regions of op are skipped by conversions.
func (t *Target) IsRecursivelyLegal(op *ir.Operation) bool {
	return t.recursivelyLegal.Has(op.Name())
}

// Legality returns whether op is legal for the target, or Unknown if there is no rule for it.
func (t *Target) Legality(op *ir.Operation) Legality {
	kind := op.Name()
	if isLegal, found := t.dynamic[kind]; found {
		if isLegal(op) {
			return Legal
		}
		return Illegal
	}
	switch {
	case t.legalOps.Has(kind):
		return Legal
	case t.illegalOps.Has(kind):
		return Illegal
	case t.legalDialects.Has(op.Dialect()):
		return Legal
	case t.illegalDialects.Has(op.Dialect()):
		return Illegal
	}
	return Unknown
}

// IsLegal returns whether op is legal, applying the fallback for unknown operations.
func (t *Target) IsLegal(op *ir.Operation) bool {
	switch t.Legality(op) {
	case Legal:
		return true
	case Illegal:
		return false
	}
	return t.unknownLegal
}
