// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package cnm defines the compute-near-memory dialect: workgroups of workers, buffers
// distributed over them, the scatter/gather of tensors into those buffers, and the launch of a
// computation on every worker.
package cnm

import (
	"github.com/gomlx/cinnamon/pkg/core/affine"
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/pkg/errors"
)

const (
	WorkgroupOp  = "cnm.workgroup"
	AllocOp      = "cnm.alloc"
	ScatterOp    = "cnm.scatter"
	GatherOp     = "cnm.gather"
	LaunchOp     = "cnm.launch"
	TerminatorOp = "cnm.terminator"

	ScatterMapAttr = "scatter_map"
	GatherMapAttr  = "gather_map"
)

func init() {
	ir.RegisterOp(ir.OpInfo{Name: WorkgroupOp, Verify: verifyWorkgroup})
	ir.RegisterOp(ir.OpInfo{Name: AllocOp, Verify: verifyAlloc})
	ir.RegisterOp(ir.OpInfo{Name: ScatterOp, Verify: verifyScatter})
	ir.RegisterOp(ir.OpInfo{Name: GatherOp, Verify: verifyGather})
	ir.RegisterOp(ir.OpInfo{Name: LaunchOp, Traits: ir.IsolatedFromAbove, Verify: verifyLaunch})
	ir.RegisterOp(ir.OpInfo{Name: TerminatorOp, Traits: ir.Terminator})
}

// NewWorkgroup creates a cnm.workgroup.
func NewWorkgroup(b *ir.Builder, wg *WorkgroupType) *ir.Value {
	return b.Create(ir.OperationState{Name: WorkgroupOp, ResultTypes: []ir.Type{wg}}).Result(0)
}

// Alloc creates a buffer of the given type on the workgroup.
func Alloc(b *ir.Builder, bufType *BufferType, workgroup *ir.Value) *ir.Value {
	return b.Create(ir.OperationState{
		Name:        AllocOp,
		Operands:    []*ir.Value{workgroup},
		ResultTypes: []ir.Type{bufType},
	}).Result(0)
}

// Scatter distributes the elements of tensor into the buffer of every worker of the workgroup.
func Scatter(b *ir.Builder, tensor, buffer, workgroup *ir.Value, scatterMap affine.Map) *ir.Operation {
	return b.Create(ir.OperationState{
		Name:       ScatterOp,
		Operands:   []*ir.Value{tensor, buffer, workgroup},
		Attributes: []ir.NamedAttr{{Name: ScatterMapAttr, Value: ir.AffineMapAttr{Map: scatterMap}}},
	})
}

// Gather collects the buffers of all workers into a tensor of type resultType. It returns the
// tensor and the gather token.
func Gather(b *ir.Builder, resultType *ir.TensorType, buffer, workgroup *ir.Value, gatherMap affine.Map) (output, token *ir.Value) {
	op := b.Create(ir.OperationState{
		Name:        GatherOp,
		Operands:    []*ir.Value{buffer, workgroup},
		ResultTypes: []ir.Type{resultType, GatherTokenType{}},
		Attributes:  []ir.NamedAttr{{Name: GatherMapAttr, Value: ir.AffineMapAttr{Map: gatherMap}}},
	})
	return op.Result(0), op.Result(1)
}

// Launch creates a cnm.launch running on every worker of the workgroup, with the given buffers
// as parameters. It returns the operation and its body block, whose arguments are the
// per-worker memrefs of the buffers, in order. The body is empty: callers fill it and end it
// with Terminator.
func Launch(b *ir.Builder, workgroup *ir.Value, buffers []*ir.Value) (*ir.Operation, *ir.Block) {
	op := b.Create(ir.OperationState{
		Name:       LaunchOp,
		Operands:   append([]*ir.Value{workgroup}, buffers...),
		NumRegions: 1,
	})
	argTypes := make([]ir.Type, len(buffers))
	for ii, buf := range buffers {
		if bufType, ok := buf.Type().(*BufferType); ok {
			argTypes[ii] = bufType.MemRef()
		} else {
			argTypes[ii] = buf.Type()
		}
	}
	return op, op.Region(0).EmplaceBlock(argTypes...)
}

// Terminator ends the body of a launch.
func Terminator(b *ir.Builder) *ir.Operation {
	return b.Create(ir.OperationState{Name: TerminatorOp})
}

// LaunchView gives typed access to a cnm.launch.
type LaunchView struct {
	Op *ir.Operation
}

// AsLaunch returns a view of op if it is a cnm.launch.
func AsLaunch(op *ir.Operation) (LaunchView, bool) {
	if op == nil || !op.Is(LaunchOp) {
		return LaunchView{}, false
	}
	return LaunchView{Op: op}, true
}

// Workgroup operand of the launch.
func (l LaunchView) Workgroup() *ir.Value { return l.Op.Operand(0) }

// Params are the buffers passed to the launch.
func (l LaunchView) Params() []*ir.Value { return l.Op.Operands()[1:] }

// Body of the launch.
func (l LaunchView) Body() *ir.Block { return l.Op.Region(0).Front() }

// ScatterMap returns the affine map of a cnm.scatter.
func ScatterMap(op *ir.Operation) (affine.Map, bool) { return op.AffineMapAttr(ScatterMapAttr) }

// GatherMap returns the affine map of a cnm.gather.
func GatherMap(op *ir.Operation) (affine.Map, bool) { return op.AffineMapAttr(GatherMapAttr) }

func workgroupOf(v *ir.Value) (*WorkgroupType, error) {
	wg, ok := v.Type().(*WorkgroupType)
	if !ok {
		return nil, errors.Errorf("expected a workgroup operand, got %s", v.Type())
	}
	return wg, nil
}

func bufferOf(v *ir.Value, wg *WorkgroupType) (*BufferType, error) {
	buf, ok := v.Type().(*BufferType)
	if !ok {
		return nil, errors.Errorf("expected a buffer operand, got %s", v.Type())
	}
	if wg != nil && !wg.Equal(&WorkgroupType{Shape: buf.WorkgroupShape}) {
		return nil, errors.Errorf("buffer %s is not allocated on workgroup %s", buf, wg)
	}
	return buf, nil
}

// checkTransferMap verifies the distribution map of a scatter or gather: two inputs per
// workgroup axis, and for each axis a (block, worker) pair of results.
func checkTransferMap(m affine.Map, ok bool, wg *WorkgroupType) error {
	if !ok {
		return errors.New("missing affine map attribute")
	}
	if m.NumDims != 2*wg.Rank() || m.NumResults() != 2*wg.Rank() {
		return errors.Errorf("map %s doesn't fit workgroup %s: wanted %d inputs and %d results", m, wg, 2*wg.Rank(), 2*wg.Rank())
	}
	return nil
}

// checkTransferTensor verifies that a tensor can be split evenly into the buffers.
func checkTransferTensor(t ir.Type, buf *BufferType, wg *WorkgroupType) error {
	tensorType, ok := t.(*ir.TensorType)
	if !ok {
		return errors.Errorf("expected a tensor, got %s", t)
	}
	if tensorType.Shape().DType != buf.PerWorker.DType {
		return errors.Errorf("tensor %s and buffer %s have different element types", tensorType, buf)
	}
	if tensorType.Shape().Size() != buf.PerWorker.Size()*wg.NumWorkers() {
		return errors.Errorf("tensor %s doesn't split into %d buffers %s", tensorType, wg.NumWorkers(), buf)
	}
	return nil
}

func verifyWorkgroup(op *ir.Operation) error {
	if op.NumOperands() != 0 || op.NumResults() != 1 {
		return errors.New("workgroup takes no operands and has one result")
	}
	_, err := workgroupOf(op.Result(0))
	return err
}

func verifyAlloc(op *ir.Operation) error {
	if op.NumOperands() != 1 || op.NumResults() != 1 {
		return errors.New("alloc takes a workgroup and has one result")
	}
	wg, err := workgroupOf(op.Operand(0))
	if err != nil {
		return err
	}
	_, err = bufferOf(op.Result(0), wg)
	return err
}

func verifyScatter(op *ir.Operation) error {
	if op.NumOperands() != 3 || op.NumResults() != 0 {
		return errors.New("scatter takes a tensor, a buffer and a workgroup, and has no results")
	}
	wg, err := workgroupOf(op.Operand(2))
	if err != nil {
		return err
	}
	buf, err := bufferOf(op.Operand(1), wg)
	if err != nil {
		return err
	}
	if err = checkTransferTensor(op.Operand(0).Type(), buf, wg); err != nil {
		return err
	}
	m, ok := ScatterMap(op)
	return checkTransferMap(m, ok, wg)
}

func verifyGather(op *ir.Operation) error {
	if op.NumOperands() != 2 || op.NumResults() != 2 {
		return errors.New("gather takes a buffer and a workgroup, and has two results")
	}
	wg, err := workgroupOf(op.Operand(1))
	if err != nil {
		return err
	}
	buf, err := bufferOf(op.Operand(0), wg)
	if err != nil {
		return err
	}
	if err = checkTransferTensor(op.Result(0).Type(), buf, wg); err != nil {
		return err
	}
	if _, ok := op.Result(1).Type().(GatherTokenType); !ok {
		return errors.Errorf("second result must be a gather token, got %s", op.Result(1).Type())
	}
	m, ok := GatherMap(op)
	return checkTransferMap(m, ok, wg)
}

func verifyLaunch(op *ir.Operation) error {
	if op.NumOperands() < 1 {
		return errors.New("launch takes a workgroup")
	}
	wg, err := workgroupOf(op.Operand(0))
	if err != nil {
		return err
	}
	l := LaunchView{Op: op}
	body := l.Body()
	if body == nil || body.NumArguments() != len(l.Params()) {
		return errors.Errorf("launch body must take one argument per parameter (%d)", len(l.Params()))
	}
	for ii, param := range l.Params() {
		buf, err := bufferOf(param, wg)
		if err != nil {
			return errors.WithMessagef(err, "parameter #%d", ii)
		}
		if !buf.MemRef().Equal(body.Argument(ii).Type()) {
			return errors.Errorf("body argument #%d has type %s, but parameter is %s", ii, body.Argument(ii).Type(), buf)
		}
	}
	if term := body.Terminator(); term == nil || !term.Is(TerminatorOp) {
		return errors.Errorf("launch body must end with %s", TerminatorOp)
	}
	return nil
}
