// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"

	"github.com/gomlx/exceptions"
)

// Region is an ordered list of blocks owned by an operation.
type Region struct {
	blocks []*Block
	parent *Operation
}

// Blocks returns a copy of the list of blocks.
func (r *Region) Blocks() []*Block { return slices.Clone(r.blocks) }

// Empty returns whether the region has no blocks.
func (r *Region) Empty() bool { return len(r.blocks) == 0 }

// Front returns the first (entry) block, or nil if the region is empty.
func (r *Region) Front() *Block {
	if len(r.blocks) == 0 {
		return nil
	}
	return r.blocks[0]
}

// ParentOp returns the operation owning the region.
func (r *Region) ParentOp() *Operation { return r.parent }

// EmplaceBlock appends a new empty block to the region and returns it.
func (r *Region) EmplaceBlock(argTypes ...Type) *Block {
	b := &Block{parent: r}
	for _, t := range argTypes {
		b.AddArgument(t)
	}
	r.blocks = append(r.blocks, b)
	return b
}

// Block is a list of operations with arguments.
type Block struct {
	args   []*Value
	ops    []*Operation
	parent *Region
}

// AddArgument appends a new argument of the given type to the block.
func (b *Block) AddArgument(t Type) *Value {
	if t == nil {
		exceptions.Panicf("Block.AddArgument(nil)")
	}
	v := &Value{typ: t, block: b, index: len(b.args)}
	b.args = append(b.args, v)
	return v
}

// NumArguments returns the number of block arguments.
func (b *Block) NumArguments() int { return len(b.args) }

// Argument returns the ii-th block argument.
func (b *Block) Argument(ii int) *Value { return b.args[ii] }

// Arguments returns a copy of the block arguments.
func (b *Block) Arguments() []*Value { return slices.Clone(b.args) }

// Operations returns a copy of the list of operations in the block.
func (b *Block) Operations() []*Operation { return slices.Clone(b.ops) }

// NumOperations returns the number of operations in the block.
func (b *Block) NumOperations() int { return len(b.ops) }

// Terminator returns the last operation, if it has the Terminator trait, or nil.
func (b *Block) Terminator() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	last := b.ops[len(b.ops)-1]
	if !last.HasTrait(Terminator) {
		return nil
	}
	return last
}

// Parent returns the region holding the block.
func (b *Block) Parent() *Region { return b.parent }

// ParentOp returns the operation owning the region holding the block.
func (b *Block) ParentOp() *Operation {
	if b.parent == nil {
		return nil
	}
	return b.parent.parent
}

// Append adds a detached operation at the end of the block.
func (b *Block) Append(op *Operation) {
	b.insert(len(b.ops), op)
}

func (b *Block) indexOf(op *Operation) int {
	idx := slices.Index(b.ops, op)
	if idx == -1 {
		exceptions.Panicf("internal error: operation %s not found in its parent block", op.name)
	}
	return idx
}

func (b *Block) insert(pos int, op *Operation) {
	if op.block != nil {
		exceptions.Panicf("cannot insert %s: it is already attached to a block", op.name)
	}
	b.ops = slices.Insert(b.ops, pos, op)
	op.block = b
}

func (b *Block) remove(op *Operation) {
	idx := b.indexOf(op)
	b.ops = slices.Delete(b.ops, idx, idx+1)
	op.block = nil
}
