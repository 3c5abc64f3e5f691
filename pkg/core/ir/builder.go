// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/exceptions"
)

// Listener is notified of the operations created by a Builder.
type Listener interface {
	OperationInserted(op *Operation)
}

// Builder creates operations at an insertion point.
//
// The insertion point is a position in a block: new operations are inserted there, and the
// insertion point moves after them, so consecutive calls to Create produce operations in order.
type Builder struct {
	block    *Block
	pos      int
	loc      Location
	listener Listener
}

// NewBuilder creates a builder with no insertion point: operations are created detached until
// an insertion point is set.
func NewBuilder() *Builder {
	return &Builder{loc: UnknownLoc}
}

// SetListener sets the listener notified of every created operation.
func (b *Builder) SetListener(l Listener) { b.listener = l }

// SetLocation sets the location attached to the new operations.
func (b *Builder) SetLocation(loc Location) { b.loc = loc }

// Location returns the current location.
func (b *Builder) Location() Location { return b.loc }

// SetInsertionPointToStart sets the insertion point at the beginning of block.
func (b *Builder) SetInsertionPointToStart(block *Block) {
	b.block, b.pos = block, 0
}

// SetInsertionPointToEnd sets the insertion point at the end of block.
func (b *Builder) SetInsertionPointToEnd(block *Block) {
	b.block, b.pos = block, len(block.ops)
}

// SetInsertionPointAfter sets the insertion point right after op.
func (b *Builder) SetInsertionPointAfter(op *Operation) {
	if op.block == nil {
		exceptions.Panicf("SetInsertionPointAfter(%s): operation is detached", op.name)
	}
	b.block, b.pos = op.block, op.block.indexOf(op)+1
}

// SetInsertionPointBefore sets the insertion point right before op.
func (b *Builder) SetInsertionPointBefore(op *Operation) {
	if op.block == nil {
		exceptions.Panicf("SetInsertionPointBefore(%s): operation is detached", op.name)
	}
	b.block, b.pos = op.block, op.block.indexOf(op)
}

// InsertionBlock returns the block of the insertion point, or nil.
func (b *Builder) InsertionBlock() *Block { return b.block }

// Create creates a new operation and inserts it at the insertion point.
func (b *Builder) Create(state OperationState) *Operation {
	if state.Location == "" {
		state.Location = b.loc
	}
	op := NewOperation(state)
	b.Insert(op)
	return op
}

// Insert a detached operation at the insertion point.
func (b *Builder) Insert(op *Operation) {
	if b.block != nil {
		b.block.insert(b.pos, op)
		b.pos++
	}
	if b.listener != nil {
		b.listener.OperationInserted(op)
	}
}
