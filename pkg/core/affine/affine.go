// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package affine implements affine expressions and maps over integer indices, the subset used to
// describe how elements of a tensor are distributed to (scatter) and collected from (gather) the
// workers of a workgroup.
//
// Expressions follow MLIR's affine semantics: floordiv rounds toward negative infinity and mod
// always returns a non-negative value for a positive divisor.
package affine

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ExprKind enumerates the kinds of affine expressions.
type ExprKind int

const (
	KindDim ExprKind = iota
	KindConstant
	KindAdd
	KindMul
	KindFloorDiv
	KindMod
)

// Expr is an immutable affine expression tree.
type Expr struct {
	kind     ExprKind
	position int   // For KindDim.
	value    int64 // For KindConstant.
	lhs, rhs *Expr
}

// Dim returns the expression for the dimension (input) at the given position, printed as "d<position>".
func Dim(position int) Expr {
	if position < 0 {
		exceptions.Panicf("affine.Dim(%d): position must be >= 0", position)
	}
	return Expr{kind: KindDim, position: position}
}

// Constant returns a constant expression.
func Constant(value int64) Expr {
	return Expr{kind: KindConstant, value: value}
}

func binary(kind ExprKind, lhs, rhs Expr) Expr {
	return Expr{kind: kind, lhs: &lhs, rhs: &rhs}
}

// Add returns e + other.
func (e Expr) Add(other Expr) Expr { return binary(KindAdd, e, other) }

// Mul returns e * other. One of the sides must be a constant to remain affine.
func (e Expr) Mul(other Expr) Expr {
	if e.kind != KindConstant && other.kind != KindConstant {
		exceptions.Panicf("affine: %s * %s is not affine, one side must be constant", e, other)
	}
	return binary(KindMul, e, other)
}

// FloorDiv returns e floordiv divisor. divisor must be a positive constant.
func (e Expr) FloorDiv(divisor int64) Expr {
	if divisor <= 0 {
		exceptions.Panicf("affine: floordiv by non-positive constant %d", divisor)
	}
	return binary(KindFloorDiv, e, Constant(divisor))
}

// Mod returns e mod divisor. divisor must be a positive constant.
func (e Expr) Mod(divisor int64) Expr {
	if divisor <= 0 {
		exceptions.Panicf("affine: mod by non-positive constant %d", divisor)
	}
	return binary(KindMod, e, Constant(divisor))
}

// Kind of the expression.
func (e Expr) Kind() ExprKind { return e.kind }

// Position of a dimension expression.
func (e Expr) Position() int { return e.position }

// Value of a constant expression.
func (e Expr) Value() int64 { return e.value }

// LHS returns the left-hand side of a binary expression.
func (e Expr) LHS() Expr { return *e.lhs }

// RHS returns the right-hand side of a binary expression.
func (e Expr) RHS() Expr { return *e.rhs }

// Eval evaluates the expression for the given dimension values.
func (e Expr) Eval(dims []int64) (int64, error) {
	switch e.kind {
	case KindDim:
		if e.position >= len(dims) {
			return 0, errors.Errorf("affine expression %s uses d%d, but only %d dims given", e, e.position, len(dims))
		}
		return dims[e.position], nil
	case KindConstant:
		return e.value, nil
	}
	lhs, err := e.lhs.Eval(dims)
	if err != nil {
		return 0, err
	}
	rhs, err := e.rhs.Eval(dims)
	if err != nil {
		return 0, err
	}
	switch e.kind {
	case KindAdd:
		return lhs + rhs, nil
	case KindMul:
		return lhs * rhs, nil
	case KindFloorDiv:
		return floorDiv(lhs, rhs), nil
	case KindMod:
		return lhs - floorDiv(lhs, rhs)*rhs, nil
	}
	return 0, errors.Errorf("unknown affine expression kind %d", e.kind)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// maxDim returns the largest dimension position used by the expression, or -1.
func (e Expr) maxDim() int {
	switch e.kind {
	case KindDim:
		return e.position
	case KindConstant:
		return -1
	}
	return max(e.lhs.maxDim(), e.rhs.maxDim())
}

// Equal returns whether both expressions are structurally equal.
func (e Expr) Equal(other Expr) bool {
	if e.kind != other.kind {
		return false
	}
	switch e.kind {
	case KindDim:
		return e.position == other.position
	case KindConstant:
		return e.value == other.value
	}
	return e.lhs.Equal(*other.lhs) && e.rhs.Equal(*other.rhs)
}

// String implements fmt.Stringer, using MLIR's syntax.
func (e Expr) String() string {
	switch e.kind {
	case KindDim:
		return fmt.Sprintf("d%d", e.position)
	case KindConstant:
		return fmt.Sprintf("%d", e.value)
	case KindAdd:
		return fmt.Sprintf("%s + %s", e.lhs, e.rhs)
	case KindMul:
		return fmt.Sprintf("%s * %s", e.lhs.operandString(), e.rhs.operandString())
	case KindFloorDiv:
		return fmt.Sprintf("%s floordiv %s", e.lhs.operandString(), e.rhs)
	case KindMod:
		return fmt.Sprintf("%s mod %s", e.lhs.operandString(), e.rhs)
	}
	return "?"
}

func (e Expr) operandString() string {
	if e.kind == KindDim || e.kind == KindConstant {
		return e.String()
	}
	return "(" + e.String() + ")"
}

// Map is an affine map `(d0, ..., dN-1)[s0, ...] -> (expr0, ...)`.
type Map struct {
	NumDims    int
	NumSymbols int
	Results    []Expr
}

// NewMap creates a map with numDims inputs and the given result expressions.
// It panics if any result refers to a dimension >= numDims.
func NewMap(numDims int, results ...Expr) Map {
	for _, r := range results {
		if r.maxDim() >= numDims {
			exceptions.Panicf("affine.NewMap(%d dims): result %s uses an out-of-range dimension", numDims, r)
		}
	}
	return Map{NumDims: numDims, Results: results}
}

// NumResults returns the number of result expressions.
func (m Map) NumResults() int { return len(m.Results) }

// Eval applies the map to the given dimension values.
func (m Map) Eval(dims []int64) ([]int64, error) {
	if len(dims) != m.NumDims {
		return nil, errors.Errorf("affine map %s expects %d dims, got %d", m, m.NumDims, len(dims))
	}
	out := make([]int64, len(m.Results))
	for ii, r := range m.Results {
		v, err := r.Eval(dims)
		if err != nil {
			return nil, errors.WithMessagef(err, "evaluating result #%d of %s", ii, m)
		}
		out[ii] = v
	}
	return out, nil
}

// Equal returns whether both maps are structurally equal.
func (m Map) Equal(other Map) bool {
	if m.NumDims != other.NumDims || m.NumSymbols != other.NumSymbols || len(m.Results) != len(other.Results) {
		return false
	}
	for ii := range m.Results {
		if !m.Results[ii].Equal(other.Results[ii]) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer, using MLIR's syntax.
func (m Map) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	for ii := range m.NumDims {
		if ii > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "d%d", ii)
	}
	sb.WriteString(")")
	if m.NumSymbols > 0 {
		sb.WriteString("[")
		for ii := range m.NumSymbols {
			if ii > 0 {
				sb.WriteString(", ")
			}
			_, _ = fmt.Fprintf(&sb, "s%d", ii)
		}
		sb.WriteString("]")
	}
	sb.WriteString(" -> (")
	for ii, r := range m.Results {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.String())
	}
	sb.WriteString(")")
	return sb.String()
}
