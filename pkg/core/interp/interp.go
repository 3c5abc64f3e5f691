// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package interp executes functions of a module on concrete values.
//
// It is a reference implementation of the semantics of the builtin, arith, tensor, memref,
// linalg and cnm dialects, used to check that rewrites preserve the results of a program.
// Operations of the cnm dialect are simulated: buffers hold one memref per worker, and the
// body of a cnm.launch runs once per worker, in parallel, on a workerspool.Pool.
//
// Tensors, memrefs and scalars are all represented by *Tensor (scalars with rank 0). Memrefs
// are mutable and may share their storage with views (memref.expand_shape); tensors are never
// modified once created.
package interp

import (
	"slices"

	"github.com/gomlx/cinnamon/internal/workerspool"
	"github.com/gomlx/cinnamon/pkg/core/affine"
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/shapes"
	"github.com/gomlx/cinnamon/pkg/dialects/arith"
	"github.com/gomlx/cinnamon/pkg/dialects/builtin"
	"github.com/gomlx/cinnamon/pkg/dialects/cnm"
	"github.com/gomlx/cinnamon/pkg/dialects/linalg"
	"github.com/gomlx/cinnamon/pkg/dialects/memref"
	"github.com/gomlx/cinnamon/pkg/dialects/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrUnsupported is returned when executing an operation the interpreter doesn't know.
var ErrUnsupported = errors.New("operation not supported by the interpreter")

// Interpreter executes functions of a module.
type Interpreter struct {
	pool *workerspool.Pool
}

// New creates an interpreter that runs the workers of launches with the default parallelism.
func New() *Interpreter {
	return &Interpreter{pool: workerspool.New()}
}

// WithParallelism sets the maximum number of workers of a launch executed at the same time.
// 0 runs them sequentially, -1 runs all of them at once.
func (in *Interpreter) WithParallelism(maxParallelism int) *Interpreter {
	in.pool.SetMaxParallelism(maxParallelism)
	return in
}

// workgroupValue is the runtime value of a cnm.workgroup.
type workgroupValue struct {
	typ *cnm.WorkgroupType
}

// bufferValue is the runtime value of a cnm.alloc: one memref per worker, in row-major order of
// the workgroup.
type bufferValue struct {
	typ     *cnm.BufferType
	workers []*Tensor
}

// tokenValue is the runtime value of the token of a cnm.gather.
type tokenValue struct{}

// frame holds the runtime values of a scope. Lookups fall back to the parent frame, for the
// values defined outside of a region.
type frame struct {
	parent *frame
	values map[*ir.Value]any
}

func newFrame(parent *frame) *frame {
	return &frame{parent: parent, values: make(map[*ir.Value]any)}
}

func (f *frame) set(v *ir.Value, value any) {
	f.values[v] = value
}

func (f *frame) get(v *ir.Value) any {
	for current := f; current != nil; current = current.parent {
		if value, found := current.values[v]; found {
			return value
		}
	}
	exceptions.Panicf("interp: value #%d (%s) used before being defined", v.Index(), v.Type())
	return nil
}

func (f *frame) tensor(v *ir.Value) *Tensor {
	t, ok := f.get(v).(*Tensor)
	if !ok {
		exceptions.Panicf("interp: value of type %s is not a tensor, memref or scalar", v.Type())
	}
	return t
}

// Call executes the function funcName of module with the given arguments, and returns its results.
//
// The arguments must match the shapes of the inputs of the function. Tensor arguments are not
// modified, memref arguments may be.
func (in *Interpreter) Call(module *ir.Operation, funcName string, args ...*Tensor) (results []*Tensor, err error) {
	fn := builtin.LookupFunc(module, funcName)
	if fn == nil {
		return nil, errors.Errorf("interp: function %q not found", funcName)
	}
	body := fn.Region(0).Front()
	if len(args) != body.NumArguments() {
		return nil, errors.Errorf("interp: function %q takes %d arguments, got %d", funcName, body.NumArguments(), len(args))
	}
	f := newFrame(nil)
	for ii, arg := range args {
		param := body.Argument(ii)
		shaped, ok := param.Type().(ir.ShapedType)
		if ok && !shaped.Shape().Equal(arg.Shape) {
			return nil, errors.Errorf("interp: argument #%d of %q has shape %s, wanted %s", ii, funcName, arg.Shape, shaped.Shape())
		}
		f.set(param, arg)
	}
	exception := exceptions.TryCatch[error](func() {
		var values []any
		values, err = in.runBlock(f, body)
		if err != nil {
			return
		}
		for _, value := range values {
			t, ok := value.(*Tensor)
			if !ok {
				err = errors.Errorf("interp: function %q returns a %T, only tensors can be returned", funcName, value)
				return
			}
			results = append(results, t)
		}
	})
	if exception != nil {
		return nil, errors.WithMessagef(exception, "interp: calling %q", funcName)
	}
	return
}

// runBlock executes the operations of block in f. It returns the operands of its terminator.
func (in *Interpreter) runBlock(f *frame, block *ir.Block) ([]any, error) {
	for _, op := range block.Operations() {
		if op.HasTrait(ir.Terminator) {
			return lookupAll(f, op.Operands()), nil
		}
		if err := in.runOp(f, op); err != nil {
			return nil, errors.WithMessagef(err, "executing %s at %s", op.Name(), op.Location())
		}
	}
	return nil, nil
}

func lookupAll(f *frame, values []*ir.Value) []any {
	results := make([]any, len(values))
	for ii, v := range values {
		results[ii] = f.get(v)
	}
	return results
}

func (in *Interpreter) runOp(f *frame, op *ir.Operation) error {
	if fn := arith.Binary(op.Name()); fn != nil {
		f.set(op.Result(0), binary(fn, f.tensor(op.Operand(0)), f.tensor(op.Operand(1)), op.Result(0).Type()))
		return nil
	}
	switch op.Name() {
	case arith.ConstantOp:
		values, ok := arith.ConstantValues(op)
		if !ok {
			return errors.Errorf("constant without a value")
		}
		f.set(op.Result(0), NewTensor(shapeOf(op.Result(0).Type()), values))

	case tensor.ReshapeOp:
		source := f.tensor(op.Operand(0))
		f.set(op.Result(0), NewTensor(shapeOf(op.Result(0).Type()), source.Data))

	case memref.ExpandShapeOp:
		source := f.tensor(op.Operand(0))
		f.set(op.Result(0), source.View(shapeOf(op.Result(0).Type()).Dimensions...))

	case linalg.ReduceOp:
		return in.runReduce(f, linalg.ReduceView{Op: op})

	case cnm.WorkgroupOp:
		f.set(op.Result(0), &workgroupValue{typ: op.Result(0).Type().(*cnm.WorkgroupType)})

	case cnm.AllocOp:
		bufType := op.Result(0).Type().(*cnm.BufferType)
		workgroup := f.get(op.Operand(0)).(*workgroupValue)
		buffer := &bufferValue{typ: bufType, workers: make([]*Tensor, workgroup.typ.NumWorkers())}
		for ii := range buffer.workers {
			buffer.workers[ii] = Zeros(bufType.PerWorker)
		}
		f.set(op.Result(0), buffer)

	case cnm.ScatterOp:
		scatterMap, _ := cnm.ScatterMap(op)
		buffer := f.get(op.Operand(1)).(*bufferValue)
		workgroup := f.get(op.Operand(2)).(*workgroupValue)
		return Scatter(f.tensor(op.Operand(0)), buffer.workers, workgroup.typ, scatterMap)

	case cnm.GatherOp:
		gatherMap, _ := cnm.GatherMap(op)
		buffer := f.get(op.Operand(0)).(*bufferValue)
		workgroup := f.get(op.Operand(1)).(*workgroupValue)
		output, err := Gather(buffer.workers, shapeOf(op.Result(0).Type()), workgroup.typ, gatherMap)
		if err != nil {
			return err
		}
		f.set(op.Result(0), output)
		f.set(op.Result(1), tokenValue{})

	case cnm.LaunchOp:
		return in.runLaunch(f, op)

	default:
		return errors.Wrapf(ErrUnsupported, "%q", op.Name())
	}
	return nil
}

func shapeOf(t ir.Type) shapes.Shape {
	switch tt := t.(type) {
	case ir.ShapedType:
		return tt.Shape()
	case *ir.ScalarType:
		return shapes.Make(tt.DType)
	}
	exceptions.Panicf("interp: type %s has no shape", t)
	return shapes.Shape{}
}

// binary applies fn elementwise, rounding the results to the dtype of resultType.
func binary(fn arith.BinaryFn, x, y *Tensor, resultType ir.Type) *Tensor {
	if len(x.Data) != len(y.Data) {
		exceptions.Panicf("interp: binary operation on %s and %s", x.Shape, y.Shape)
	}
	shape := shapeOf(resultType)
	result := Zeros(shape)
	for ii := range result.Data {
		result.Data[ii] = Round(shape.DType, fn(x.Data[ii], y.Data[ii]))
	}
	return result
}

// runReduce combines every element of the inputs into the accumulator at the same indices,
// after dropping the reduced axes. The inputs are visited in row-major order.
//
// Tensor accumulators start as a copy of the inits and become the results, memref accumulators
// are updated in place.
func (in *Interpreter) runReduce(f *frame, r linalg.ReduceView) error {
	inputs := lookupTensors(f, r.Inputs())
	inits := r.Inits()
	accumulators := make([]*Tensor, len(inits))
	for ii, init := range inits {
		acc := f.tensor(init)
		if r.OnTensors() {
			acc = acc.Clone()
		}
		accumulators[ii] = acc
	}
	dims := r.Dimensions()
	inputShape := inputs[0].Shape
	kept := make([]int, 0, inputShape.Rank())
	for axis := range inputShape.Rank() {
		if !slices.Contains(dims, axis) {
			kept = append(kept, axis)
		}
	}

	body := r.Body()
	args := body.Arguments()
	accIndices := make([]int, len(kept))
	scalars := make([]*Tensor, len(args))
	for ii, arg := range args {
		scalars[ii] = Zeros(shapeOf(arg.Type()))
	}
	for flat, indices := range inputShape.Iter() {
		for ii, axis := range kept {
			accIndices[ii] = indices[axis]
		}
		accFlat := accumulators[0].Shape.LinearIndex(accIndices)
		bodyFrame := newFrame(f)
		for ii, input := range inputs {
			scalars[ii].Data[0] = input.Data[flat]
			bodyFrame.set(args[ii], scalars[ii])
		}
		for ii, acc := range accumulators {
			scalars[len(inputs)+ii].Data[0] = acc.Data[accFlat]
			bodyFrame.set(args[len(inputs)+ii], scalars[len(inputs)+ii])
		}
		yielded, err := in.runBlock(bodyFrame, body)
		if err != nil {
			return err
		}
		for ii, acc := range accumulators {
			acc.Data[accFlat] = Round(acc.Shape.DType, yielded[ii].(*Tensor).Data[0])
		}
	}
	if r.OnTensors() {
		for ii, result := range r.Op.Results() {
			f.set(result, accumulators[ii])
		}
	}
	return nil
}

func lookupTensors(f *frame, values []*ir.Value) []*Tensor {
	tensors := make([]*Tensor, len(values))
	for ii, v := range values {
		tensors[ii] = f.tensor(v)
	}
	return tensors
}

// runLaunch runs the body of the launch once per worker, each with its own frame where the
// block arguments are the memrefs of the worker in each buffer.
func (in *Interpreter) runLaunch(f *frame, op *ir.Operation) error {
	launch := cnm.LaunchView{Op: op}
	workgroup := f.get(launch.Workgroup()).(*workgroupValue)
	buffers := make([]*bufferValue, 0, len(launch.Params()))
	for _, param := range launch.Params() {
		buffers = append(buffers, f.get(param).(*bufferValue))
	}
	body := launch.Body()
	numWorkers := workgroup.typ.NumWorkers()
	klog.V(2).Infof("interp: launching %d workers of %s with %d buffer(s)", numWorkers, workgroup.typ, len(buffers))
	return in.pool.ForEach(numWorkers, func(worker int) (err error) {
		workerFrame := newFrame(nil)
		for ii, arg := range body.Arguments() {
			workerFrame.set(arg, buffers[ii].workers[worker])
		}
		exception := exceptions.TryCatch[error](func() {
			_, err = in.runBlock(workerFrame, body)
		})
		if exception != nil {
			err = exception
		}
		return errors.WithMessagef(err, "worker #%d", worker)
	})
}

// transferIndex computes where the element of a distributed tensor at indices is stored.
//
// The first rank(workgroup) indices are mapped by transferMap: the last rank(workgroup) results
// are the coordinates of the worker, and the first ones select a block of the worker's buffer. The
// remaining indices address the element inside the block. The map takes 2*rank(workgroup) dims,
// the trailing ones are evaluated at 0.
func transferIndex(transferMap affine.Map, shape shapes.Shape, wg *cnm.WorkgroupType, indices []int, blockSize int) (worker, slot int, err error) {
	rank := wg.Rank()
	dims := make([]int64, 2*rank)
	for ii := range rank {
		dims[ii] = int64(indices[ii])
	}
	results, err := transferMap.Eval(dims)
	if err != nil {
		return 0, 0, err
	}
	blockIdx := 0
	for ii := range rank {
		numBlocks := (shape.Dimensions[ii] + wg.Shape[ii] - 1) / wg.Shape[ii]
		blockIdx = blockIdx*numBlocks + int(results[ii])
		worker = worker*wg.Shape[ii] + int(results[rank+ii])
	}
	inner := 0
	for axis := rank; axis < shape.Rank(); axis++ {
		inner = inner*shape.Dimensions[axis] + indices[axis]
	}
	return worker, blockIdx*blockSize + inner, nil
}

// transferLayout validates a transfer between a tensor of the given shape and per-worker buffers.
// It returns the shape the tensor is indexed with and the number of elements of one block (the
// elements addressed by the axes after the workgroup axes).
//
// Tensors whose leading axes are not the workgroup extents (e.g. the results of a reduction
// gathered back to their original shape) are indexed as their row-major reshape to the workgroup
// extents followed by the number of elements per worker.
func transferLayout(shape shapes.Shape, numBuffers int, wg *cnm.WorkgroupType) (layout shapes.Shape, blockSize int, err error) {
	numWorkers := wg.NumWorkers()
	if numBuffers != numWorkers {
		return layout, 0, errors.Errorf("got %d buffers for the %d workers of %s", numBuffers, numWorkers, wg)
	}
	layout = shape
	if shape.Rank() < wg.Rank() || !slices.Equal(shape.Dimensions[:wg.Rank()], wg.Shape) {
		if shape.Size()%numWorkers != 0 {
			return layout, 0, errors.Errorf("tensor %s doesn't split into %d buffers", shape, numWorkers)
		}
		dims := slices.Clone(wg.Shape)
		if perWorker := shape.Size() / numWorkers; perWorker != 1 {
			dims = append(dims, perWorker)
		}
		layout = shape.WithDimensions(dims...)
	}
	blockSize = 1
	for _, dim := range layout.Dimensions[wg.Rank():] {
		blockSize *= dim
	}
	return layout, blockSize, nil
}

// Scatter copies the elements of tensor into the per-worker buffers, as cnm.scatter does.
func Scatter(t *Tensor, buffers []*Tensor, wg *cnm.WorkgroupType, scatterMap affine.Map) error {
	layout, blockSize, err := transferLayout(t.Shape, len(buffers), wg)
	if err != nil {
		return err
	}
	for flat, indices := range layout.Iter() {
		worker, slot, err := transferIndex(scatterMap, layout, wg, indices, blockSize)
		if err != nil {
			return err
		}
		buffer := buffers[worker]
		if slot >= len(buffer.Data) {
			return errors.Errorf("element %v of %s goes to slot %d of worker #%d, but its buffer is a %s",
				indices, layout, slot, worker, buffer.Shape)
		}
		buffer.Data[slot] = Round(buffer.Shape.DType, t.Data[flat])
	}
	return nil
}

// Gather collects the per-worker buffers into a new tensor of the given shape, as cnm.gather
// does. It is the inverse of Scatter with the same map.
func Gather(buffers []*Tensor, shape shapes.Shape, wg *cnm.WorkgroupType, gatherMap affine.Map) (*Tensor, error) {
	layout, blockSize, err := transferLayout(shape, len(buffers), wg)
	if err != nil {
		return nil, err
	}
	output := Zeros(shape)
	for flat, indices := range layout.Iter() {
		worker, slot, err := transferIndex(gatherMap, layout, wg, indices, blockSize)
		if err != nil {
			return nil, err
		}
		buffer := buffers[worker]
		if slot >= len(buffer.Data) {
			return nil, errors.Errorf("element %v of %s comes from slot %d of worker #%d, but its buffer is a %s",
				indices, layout, slot, worker, buffer.Shape)
		}
		output.Data[flat] = Round(shape.DType, buffer.Data[slot])
	}
	return output, nil
}
