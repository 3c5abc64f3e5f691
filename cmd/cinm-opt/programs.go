// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/gomlx/cinnamon/pkg/conversion/cinmtocnm"
	"github.com/gomlx/cinnamon/pkg/conversion/quantumtoqir"
	"github.com/gomlx/cinnamon/pkg/core/interp"
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/dialects/arith"
	"github.com/gomlx/cinnamon/pkg/dialects/builtin"
	"github.com/gomlx/cinnamon/pkg/dialects/linalg"
	"github.com/gomlx/cinnamon/pkg/dialects/quantum"
	"github.com/gomlx/cinnamon/pkg/transforms/quantumopt"
	"github.com/gomlx/gopjrt/dtypes"
)

// program is one of the sample programs bundled with the tool.
type program struct {
	description string

	// pipeline run if none is given.
	pipeline string

	build func(rows, cols int, dtype dtypes.DType) *ir.Operation

	// executable programs can be run by the interpreter, to compare the results before and
	// after the pipeline.
	executable bool
}

var programs = map[string]program{
	"reduce": {
		description: "sum of the rows of a matrix",
		pipeline:    cinmtocnm.PassName,
		build:       buildReduce,
		executable:  true,
	},
	"matvec": {
		description: "matrix-vector product, the vector broadcast to the rows of the matrix",
		pipeline:    cinmtocnm.PassName,
		build:       buildMatVec,
		executable:  true,
	},
	"qubits": {
		description: "3-qubit circuit with a measurement",
		pipeline:    quantumopt.PassName + "," + quantumtoqir.PassName,
		build:       buildQubits,
	},
}

func buildReduce(rows, cols int, dtype dtypes.DType) *ir.Operation {
	input, init := ir.Tensor(dtype, rows, cols), ir.Tensor(dtype, rows)
	module := builtin.NewModule()
	_, entry := builtin.AddFunc(module, "main", []ir.Type{input, init}, []ir.Type{init})
	b := ir.NewBuilder()
	b.SetLocation("reduce:1")
	b.SetInsertionPointToEnd(entry)
	reduce := linalg.Reduce(b, entry.Arguments()[:1], entry.Arguments()[1:], []int{1},
		func(b *ir.Builder, args []*ir.Value) []*ir.Value {
			return []*ir.Value{arith.AddF(b, args[0], args[1])}
		})
	builtin.Return(b, reduce.Results()...)
	return module
}

func buildMatVec(rows, cols int, dtype dtypes.DType) *ir.Operation {
	matrix, init := ir.Tensor(dtype, rows, cols), ir.Tensor(dtype, rows)
	module := builtin.NewModule()
	_, entry := builtin.AddFunc(module, "main", []ir.Type{matrix, matrix, init}, []ir.Type{init})
	b := ir.NewBuilder()
	b.SetLocation("matvec:1")
	b.SetInsertionPointToEnd(entry)
	reduce := linalg.Reduce(b, entry.Arguments()[:2], entry.Arguments()[2:], []int{1},
		func(b *ir.Builder, args []*ir.Value) []*ir.Value {
			return []*ir.Value{arith.AddF(b, args[2], arith.MulF(b, args[0], args[1]))}
		})
	builtin.Return(b, reduce.Results()...)
	return module
}

func buildQubits(int, int, dtypes.DType) *ir.Operation {
	module := builtin.NewModule()
	_, entry := builtin.AddFunc(module, "main", nil, []ir.Type{ir.Scalar(dtypes.Bool)})
	b := ir.NewBuilder()
	b.SetLocation("qubits:1")
	b.SetInsertionPointToEnd(entry)
	qs := quantum.Split(b, quantum.Alloc(b, 3), 1, 1, 1)
	control := quantum.Gate(b, "h", qs[0])
	bit, measured := quantum.Measure(b, quantum.Gate(b, "t", quantum.Rotate(b, "ry", qs[1], 0.25)))
	control, target := quantum.CNOT(b, control, qs[2])
	quantum.Dealloc(b, quantum.Merge(b, control, measured, target))
	builtin.Return(b, bit)
	return module
}

// sampleInputs returns deterministic arguments for the function "main" of module.
func sampleInputs(module *ir.Operation) []*interp.Tensor {
	signature := builtin.Signature(builtin.LookupFunc(module, "main"))
	inputs := make([]*interp.Tensor, 0, len(signature.Inputs))
	for ii, t := range signature.Inputs {
		shape := t.(ir.ShapedType).Shape()
		values := make([]float64, shape.Size())
		for jj := range values {
			values[jj] = float64((jj*(ii+3))%11 - 5)
		}
		inputs = append(inputs, interp.NewTensor(shape, values))
	}
	return inputs
}
