// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir is the in-memory program representation transformed by the passes of this module.
//
// It follows the structure of MLIR: an Operation has typed operands (Value), typed results, named
// attributes and nested regions. A Region holds a list of Block, and a Block holds a list of block
// arguments and an ordered list of operations. The last operation of a block may be a terminator.
//
// Operations are identified by their name, formatted as "<dialect>.<op>" (e.g. "cnm.scatter"), and
// the per-name semantic information (traits and verifier) is registered in a global registry with
// RegisterOp, usually during the initialization of the dialect package.
//
// The main elements in the package are:
//
//   - Type: the type of a Value. TensorType, MemRefType, ScalarType and IndexType are builtin, dialects
//     define their own (e.g. the workgroup type of the cnm dialect).
//   - Value: either the result of an Operation or the argument of a Block. Values track their uses.
//   - Builder: creates operations at an insertion point.
//   - Mapping: a value-to-value substitution map, used when cloning regions.
//   - Verify: structural verification (visibility of values, isolation, terminators and per-op verifiers).
//
// # Error Handling
//
// Malformed construction (e.g. passing nil operands or erasing an operation whose results are still
// used) "throws" errors with panic (see github.com/gomlx/exceptions), since those are bugs in the
// code building the program. Verification of a program returns an error.
//
// Programs are not safe for concurrent mutation: a pass owns the program while it runs.
package ir
