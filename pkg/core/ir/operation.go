// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"
	"strings"

	"github.com/gomlx/cinnamon/pkg/core/affine"
	"github.com/gomlx/exceptions"
)

// Location identifies where an operation came from, used in diagnostics.
type Location string

// UnknownLoc is used when no location was given.
const UnknownLoc Location = "unknown"

// Operation is the unit of computation of a program.
type Operation struct {
	name     string
	loc      Location
	operands []*Value
	results  []*Value
	attrs    []NamedAttr
	regions  []*Region

	// block is the parent block, nil if detached.
	block *Block
}

// OperationState holds everything needed to create an Operation.
type OperationState struct {
	Name        string
	Location    Location
	Operands    []*Value
	ResultTypes []Type
	Attributes  []NamedAttr

	// NumRegions is the number of (empty) regions created for the operation.
	NumRegions int
}

// NewOperation creates a detached operation. Most code should use Builder.Create instead.
func NewOperation(state OperationState) *Operation {
	if state.Name == "" || !strings.Contains(state.Name, ".") {
		exceptions.Panicf("invalid operation name %q: it must be formatted as <dialect>.<op>", state.Name)
	}
	loc := state.Location
	if loc == "" {
		loc = UnknownLoc
	}
	op := &Operation{
		name:  state.Name,
		loc:   loc,
		attrs: slices.Clone(state.Attributes),
	}
	op.operands = make([]*Value, len(state.Operands))
	for ii, v := range state.Operands {
		if v == nil {
			exceptions.Panicf("%s: operand #%d is nil", state.Name, ii)
		}
		op.operands[ii] = v
		v.addUse(op, ii)
	}
	op.results = make([]*Value, len(state.ResultTypes))
	for ii, t := range state.ResultTypes {
		if t == nil {
			exceptions.Panicf("%s: result type #%d is nil", state.Name, ii)
		}
		op.results[ii] = &Value{typ: t, owner: op, index: ii}
	}
	op.regions = make([]*Region, state.NumRegions)
	for ii := range op.regions {
		op.regions[ii] = &Region{parent: op}
	}
	return op
}

// Name of the operation, "<dialect>.<op>".
func (op *Operation) Name() string { return op.name }

// Dialect is the prefix of the name, before the first ".".
func (op *Operation) Dialect() string {
	dialect, _, _ := strings.Cut(op.name, ".")
	return dialect
}

// Location of the operation.
func (op *Operation) Location() Location { return op.loc }

// Info returns the registered information about the operation, or nil if not registered.
func (op *Operation) Info() *OpInfo {
	info, _ := LookupOp(op.name)
	return info
}

// HasTrait returns whether the operation is registered with the given trait.
func (op *Operation) HasTrait(trait Trait) bool {
	info := op.Info()
	return info != nil && info.Traits&trait != 0
}

// Is returns whether the op has the given name.
func (op *Operation) Is(name string) bool { return op.name == name }

// NumOperands returns the number of operands.
func (op *Operation) NumOperands() int { return len(op.operands) }

// Operand returns the ii-th operand.
func (op *Operation) Operand(ii int) *Value { return op.operands[ii] }

// Operands returns a copy of the list of operands.
func (op *Operation) Operands() []*Value { return slices.Clone(op.operands) }

// SetOperand replaces the ii-th operand, keeping the use lists up-to-date.
func (op *Operation) SetOperand(ii int, v *Value) {
	if v == nil {
		exceptions.Panicf("%s.SetOperand(%d, nil)", op.name, ii)
	}
	op.operands[ii].removeUse(op, ii)
	op.operands[ii] = v
	v.addUse(op, ii)
}

// NumResults returns the number of results.
func (op *Operation) NumResults() int { return len(op.results) }

// Result returns the ii-th result.
func (op *Operation) Result(ii int) *Value { return op.results[ii] }

// Results returns a copy of the list of results.
func (op *Operation) Results() []*Value { return slices.Clone(op.results) }

// ResultTypes returns the types of the results.
func (op *Operation) ResultTypes() []Type {
	types := make([]Type, len(op.results))
	for ii, r := range op.results {
		types[ii] = r.typ
	}
	return types
}

// HasUses returns whether any of the results is used.
func (op *Operation) HasUses() bool {
	for _, r := range op.results {
		if len(r.uses) > 0 {
			return true
		}
	}
	return false
}

// Attr returns the attribute with the given name, or nil.
func (op *Operation) Attr(name string) Attribute {
	for _, a := range op.attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return nil
}

// Attrs returns a copy of the attributes of the operation.
func (op *Operation) Attrs() []NamedAttr { return slices.Clone(op.attrs) }

// SetAttr sets (or replaces) the attribute with the given name.
func (op *Operation) SetAttr(name string, value Attribute) {
	for ii, a := range op.attrs {
		if a.Name == name {
			op.attrs[ii].Value = value
			return
		}
	}
	op.attrs = append(op.attrs, NamedAttr{Name: name, Value: value})
}

// IntsAttr returns the IntsAttr with the given name, and whether it was found.
func (op *Operation) IntsAttr(name string) ([]int, bool) {
	a, ok := op.Attr(name).(IntsAttr)
	return []int(a), ok
}

// IntAttr returns the IntAttr with the given name, and whether it was found.
func (op *Operation) IntAttr(name string) (int64, bool) {
	a, ok := op.Attr(name).(IntAttr)
	return int64(a), ok
}

// FloatAttr returns the FloatAttr with the given name, and whether it was found.
func (op *Operation) FloatAttr(name string) (float64, bool) {
	a, ok := op.Attr(name).(FloatAttr)
	return float64(a), ok
}

// AffineMapAttr returns the affine map attribute with the given name, and whether it was found.
func (op *Operation) AffineMapAttr(name string) (affine.Map, bool) {
	a, ok := op.Attr(name).(AffineMapAttr)
	return a.Map, ok
}

// NumRegions returns the number of regions.
func (op *Operation) NumRegions() int { return len(op.regions) }

// Region returns the ii-th region.
func (op *Operation) Region(ii int) *Region { return op.regions[ii] }

// Block returns the parent block, or nil if the operation is detached.
func (op *Operation) Block() *Block { return op.block }

// ParentOp returns the operation owning the region that holds this operation, or nil.
func (op *Operation) ParentOp() *Operation {
	if op.block == nil || op.block.parent == nil {
		return nil
	}
	return op.block.parent.parent
}

// IsAncestor returns whether op is other or contains other in one of its (transitively nested) regions.
func (op *Operation) IsAncestor(other *Operation) bool {
	for ; other != nil; other = other.ParentOp() {
		if other == op {
			return true
		}
	}
	return false
}

// Erase removes the operation from its block and drops its references to operands.
//
// It panics if any of its results is still in use.
func (op *Operation) Erase() {
	for _, r := range op.results {
		if len(r.uses) > 0 {
			exceptions.Panicf("cannot erase %s at %s: result #%d still has %d use(s)", op.name, op.loc, r.index, len(r.uses))
		}
	}
	if op.block != nil {
		op.block.remove(op)
	}
	op.dropAllReferences()
}

// dropAllReferences removes the uses held by this operation and its nested operations.
func (op *Operation) dropAllReferences() {
	for ii, v := range op.operands {
		if v != nil {
			v.removeUse(op, ii)
			op.operands[ii] = nil
		}
	}
	for _, region := range op.regions {
		for _, block := range region.blocks {
			for _, nested := range block.ops {
				nested.dropAllReferences()
			}
		}
	}
}

// MoveBefore moves the operation right before other, possibly into another block.
func (op *Operation) MoveBefore(other *Operation) {
	if op.block != nil {
		op.block.remove(op)
	}
	other.block.insert(other.block.indexOf(other), op)
}
