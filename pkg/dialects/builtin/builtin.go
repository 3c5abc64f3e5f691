// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package builtin defines the top-level structure of a program: the module, its functions and the
// function return.
package builtin

import (
	"strings"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/pkg/errors"
)

const (
	ModuleOp = "builtin.module"
	FuncOp   = "func.func"
	ReturnOp = "func.return"

	// SymNameAttr is the attribute holding the name of a function.
	SymNameAttr = "sym_name"

	// FunctionTypeAttr is the attribute holding the FunctionType of a function.
	FunctionTypeAttr = "function_type"
)

func init() {
	ir.RegisterOp(ir.OpInfo{Name: ModuleOp, Traits: ir.IsolatedFromAbove, Verify: verifyModule})
	ir.RegisterOp(ir.OpInfo{Name: FuncOp, Traits: ir.IsolatedFromAbove, Verify: verifyFunc})
	ir.RegisterOp(ir.OpInfo{Name: ReturnOp, Traits: ir.Terminator, Verify: verifyReturn})
}

// FunctionType is the signature of a function.
type FunctionType struct {
	Inputs, Results []ir.Type
}

// String implements ir.Type.
func (t *FunctionType) String() string {
	join := func(types []ir.Type) string {
		parts := make([]string, len(types))
		for ii, t := range types {
			parts[ii] = t.String()
		}
		return strings.Join(parts, ", ")
	}
	return "(" + join(t.Inputs) + ") -> (" + join(t.Results) + ")"
}

// Equal implements ir.Type.
func (t *FunctionType) Equal(other ir.Type) bool {
	o, ok := other.(*FunctionType)
	return ok && ir.TypesEqual(t.Inputs, o.Inputs) && ir.TypesEqual(t.Results, o.Results)
}

// NewModule creates an empty (detached) module with one block.
func NewModule() *ir.Operation {
	module := ir.NewOperation(ir.OperationState{Name: ModuleOp, NumRegions: 1})
	module.Region(0).EmplaceBlock()
	return module
}

// Body returns the block of the module.
func Body(module *ir.Operation) *ir.Block {
	return module.Region(0).Front()
}

// AddFunc appends a new function to the module, and returns it and its entry block. The
// arguments of the entry block are the function inputs.
func AddFunc(module *ir.Operation, name string, inputs, results []ir.Type) (*ir.Operation, *ir.Block) {
	b := ir.NewBuilder()
	b.SetInsertionPointToEnd(Body(module))
	b.SetLocation(ir.Location(name))
	fn := b.Create(ir.OperationState{
		Name: FuncOp,
		Attributes: []ir.NamedAttr{
			{Name: SymNameAttr, Value: ir.StringAttr(name)},
			{Name: FunctionTypeAttr, Value: ir.TypeAttr{Type: &FunctionType{Inputs: inputs, Results: results}}},
		},
		NumRegions: 1,
	})
	entry := fn.Region(0).EmplaceBlock(inputs...)
	return fn, entry
}

// Return creates the terminator of a function.
func Return(b *ir.Builder, values ...*ir.Value) *ir.Operation {
	return b.Create(ir.OperationState{Name: ReturnOp, Operands: values})
}

// Funcs returns the functions of the module, in order.
func Funcs(module *ir.Operation) []*ir.Operation {
	var funcs []*ir.Operation
	for _, op := range Body(module).Operations() {
		if op.Is(FuncOp) {
			funcs = append(funcs, op)
		}
	}
	return funcs
}

// FuncName returns the symbol name of a function.
func FuncName(fn *ir.Operation) string {
	name, _ := fn.Attr(SymNameAttr).(ir.StringAttr)
	return string(name)
}

// Signature returns the FunctionType of a function.
func Signature(fn *ir.Operation) *FunctionType {
	attr, _ := fn.Attr(FunctionTypeAttr).(ir.TypeAttr)
	ft, _ := attr.Type.(*FunctionType)
	return ft
}

// LookupFunc returns the function with the given name, or nil.
func LookupFunc(module *ir.Operation, name string) *ir.Operation {
	for _, fn := range Funcs(module) {
		if FuncName(fn) == name {
			return fn
		}
	}
	return nil
}

func verifyModule(op *ir.Operation) error {
	if op.NumRegions() != 1 || len(op.Region(0).Blocks()) != 1 {
		return errors.New("module must have exactly one region with one block")
	}
	return nil
}

func verifyFunc(op *ir.Operation) error {
	if FuncName(op) == "" {
		return errors.Errorf("function has no %q attribute", SymNameAttr)
	}
	sig := Signature(op)
	if sig == nil {
		return errors.Errorf("function %q has no %q attribute", FuncName(op), FunctionTypeAttr)
	}
	entry := op.Region(0).Front()
	if entry == nil {
		return errors.Errorf("function %q has no body", FuncName(op))
	}
	argTypes := make([]ir.Type, entry.NumArguments())
	for ii, arg := range entry.Arguments() {
		argTypes[ii] = arg.Type()
	}
	if !ir.TypesEqual(argTypes, sig.Inputs) {
		return errors.Errorf("function %q entry block arguments don't match its signature %s", FuncName(op), sig)
	}
	return nil
}

func verifyReturn(op *ir.Operation) error {
	fn := op.ParentOp()
	if fn == nil || !fn.Is(FuncOp) {
		return errors.New("must be nested directly in a function")
	}
	sig := Signature(fn)
	operandTypes := make([]ir.Type, op.NumOperands())
	for ii, v := range op.Operands() {
		operandTypes[ii] = v.Type()
	}
	if sig != nil && !ir.TypesEqual(operandTypes, sig.Results) {
		return errors.Errorf("returned types don't match the results of function %q: %s", FuncName(fn), sig)
	}
	return nil
}
