// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"sync"

	"github.com/gomlx/exceptions"
)

// Trait is a bit set of static properties of an operation.
type Trait uint32

const (
	// IsolatedFromAbove operations cannot use values defined outside their regions: the regions only
	// see their own block arguments.
	IsolatedFromAbove Trait = 1 << iota

	// Terminator operations must be the last operation of their block.
	Terminator

	// Pure operations have no side effects: they can be removed if their results are unused.
	Pure
)

// OpInfo is the registered information about an operation name.
type OpInfo struct {
	Name   string
	Traits Trait

	// Verify checks the invariants of one operation (operand and result counts and types,
	// attributes). Optional.
	Verify func(op *Operation) error
}

var (
	muRegistry sync.RWMutex
	registry   = make(map[string]*OpInfo)
)

// RegisterOp registers the information about an operation. To be safe, call RegisterOp during
// the initialization of a package.
//
// It panics if the name was already registered.
func RegisterOp(info OpInfo) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if _, found := registry[info.Name]; found {
		exceptions.Panicf("operation %q registered twice", info.Name)
	}
	registry[info.Name] = &info
}

// LookupOp returns the information registered for the operation name.
func LookupOp(name string) (*OpInfo, bool) {
	muRegistry.RLock()
	defer muRegistry.RUnlock()
	info, found := registry[name]
	return info, found
}
