// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cinmtocnm

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/gomlx/cinnamon/pkg/core/interp"
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/pass"
	"github.com/gomlx/cinnamon/pkg/core/rewrite"
	"github.com/gomlx/cinnamon/pkg/core/shapes"
	"github.com/gomlx/cinnamon/pkg/dialects/arith"
	"github.com/gomlx/cinnamon/pkg/dialects/builtin"
	"github.com/gomlx/cinnamon/pkg/dialects/cnm"
	"github.com/gomlx/cinnamon/pkg/dialects/linalg"
	"github.com/gomlx/cinnamon/pkg/dialects/memref"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumBody(b *ir.Builder, args []*ir.Value) []*ir.Value {
	return []*ir.Value{arith.AddF(b, args[0], args[1])}
}

func maxBody(b *ir.Builder, args []*ir.Value) []*ir.Value {
	return []*ir.Value{arith.MaxF(b, args[0], args[1])}
}

// initDims returns the dimensions of the accumulator of a reduction of dims over dimensions.
func initDims(dims, dimensions []int) []int {
	var kept []int
	for axis, dim := range dims {
		if !slices.Contains(dimensions, axis) {
			kept = append(kept, dim)
		}
	}
	return kept
}

// reduceModule builds a function "main" taking the input and the init of a single reduction, and
// returning its result.
func reduceModule(t *testing.T, dtype dtypes.DType, dims, dimensions []int, body linalg.BodyFn) (*ir.Operation, linalg.ReduceView) {
	inputType := ir.Tensor(dtype, dims...)
	initType := ir.Tensor(dtype, initDims(dims, dimensions)...)
	module := builtin.NewModule()
	_, entry := builtin.AddFunc(module, "main", []ir.Type{inputType, initType}, []ir.Type{initType})
	b := ir.NewBuilder()
	b.SetLocation("reduce.mlir:3")
	b.SetInsertionPointToEnd(entry)
	reduce := linalg.Reduce(b, entry.Arguments()[:1], entry.Arguments()[1:], dimensions, body)
	builtin.Return(b, reduce.Results()...)
	require.NoError(t, ir.Verify(module))
	r, _ := linalg.AsReduce(reduce)
	return module, r
}

func countOps(root *ir.Operation, name string) int {
	count := 0
	for _, op := range root.PreOrder(nil) {
		if op.Is(name) {
			count++
		}
	}
	return count
}

func TestComputeShapes(t *testing.T) {
	wg := cnm.Workgroup(4, 16)
	testCases := []struct {
		dims                   []int
		wantTensor, wantBuffer []int
	}{
		{[]int{64, 64}, []int{4, 16, 64}, []int{64}},
		{[]int{4, 16}, []int{4, 16}, nil},
		{[]int{64}, []int{4, 16}, nil},
		{[]int{1024}, []int{4, 16, 16}, []int{16}},
		{[]int{2, 3, 64}, []int{4, 16, 6}, []int{6}},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprint(tc.dims), func(t *testing.T) {
			tensorShape, bufferShape := ComputeShapes(tc.dims, wg)
			assert.Equal(t, tc.wantTensor, tensorShape)
			assert.Equal(t, tc.wantBuffer, bufferShape)
			assert.Equal(t, shapes.Make(dtypes.Float32, tc.dims...).Size(), shapes.Make(dtypes.Float32, tensorShape...).Size())
		})
	}
	assert.Panics(t, func() { ComputeShapes([]int{10}, wg) })
	assert.Panics(t, func() { ComputeShapes([]int{32, 3}, wg) })
}

func TestComputeAffineMap(t *testing.T) {
	m := ComputeAffineMap(cnm.Workgroup(4, 16))
	assert.Equal(t, 4, m.NumDims)
	assert.Equal(t, 4, m.NumResults())
	assert.Equal(t, "(d0, d1, d2, d3) -> (d0 floordiv 4, d1 floordiv 16, d0 mod 4, d1 mod 16)", m.String())

	// The trailing dims are not referenced by the results.
	results, err := m.Eval([]int64{3, 9, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 3, 9}, results)
	other, err := m.Eval([]int64{3, 9, 5, 7})
	require.NoError(t, err)
	assert.Equal(t, results, other)
	_, err = m.Eval([]int64{3, 9})
	require.Error(t, err)

	m = ComputeAffineMap(cnm.Workgroup(8))
	assert.Equal(t, "(d0, d1) -> (d0 floordiv 8, d0 mod 8)", m.String())
}

func TestPlanOperand(t *testing.T) {
	_, r := reduceModule(t, dtypes.Float16, []int{64, 64}, []int{1}, sumBody)
	wg := cnm.Workgroup(4, 16)
	plan := PlanOperand(r.Inputs()[0], wg)
	assert.Equal(t, []int{4, 16, 64}, plan.Reshaped)
	assert.Equal(t, "!cnm.buffer<64xf16 on 4x16, level 0>", plan.Buffer.String())
	assert.True(t, plan.Map.Equal(ComputeAffineMap(wg)))
	plan = PlanOperand(r.Inits()[0], wg)
	assert.Equal(t, []int{4, 16}, plan.Reshaped)
	assert.Equal(t, "!cnm.buffer<f16 on 4x16, level 0>", plan.Buffer.String())
}

func TestSelector(t *testing.T) {
	testCases := []struct {
		name       string
		dims       []int
		dimensions []int
		selector   *Selector
		want       []int
	}{
		{"rows", []int{64, 64}, []int{1}, StaticWorkgroup(4, 16), []int{4, 16}},
		{"elementwise", []int{64, 64}, nil, StaticWorkgroup(4, 16), []int{4, 16}},
		{"trailing axes", []int{128, 4, 8}, []int{1, 2}, StaticWorkgroup(4, 16), []int{4, 16}},
		{"leading axis", []int{64, 64}, []int{0}, StaticWorkgroup(4, 16), nil},
		{"non contiguous", []int{64, 4, 8}, []int{0, 2}, StaticWorkgroup(4, 16), nil},
		{"too few rows", []int{8, 64}, []int{1}, StaticWorkgroup(4, 16), nil},
		{"fallback candidate", []int{8, 64}, []int{1}, Candidates([]int{4, 16}, []int{2, 4}), []int{2, 4}},
		{"first candidate", []int{64, 64}, []int{1}, Candidates([]int{4, 16}, []int{2, 4}), []int{4, 16}},
		{"memory limit", []int{64, 1 << 20}, []int{1}, StaticWorkgroup(4, 16).WithMemoryLimit(1 << 20), nil},
		{"default memory limit", []int{64, 1 << 20}, []int{1}, StaticWorkgroup(4, 16), []int{4, 16}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, r := reduceModule(t, dtypes.Float32, tc.dims, tc.dimensions, sumBody)
			wg := tc.selector.Select(r)
			if tc.want == nil {
				assert.Nil(t, wg)
				return
			}
			require.NotNil(t, wg)
			assert.Equal(t, tc.want, wg.Shape)
		})
	}
}

func TestIsSupportedReduction(t *testing.T) {
	assert.True(t, IsSupportedReduction(2, nil))
	assert.True(t, IsSupportedReduction(2, []int{1}))
	assert.True(t, IsSupportedReduction(3, []int{1, 2}))
	assert.False(t, IsSupportedReduction(2, []int{0}))
	assert.False(t, IsSupportedReduction(3, []int{0, 2}))
	assert.False(t, FitsParallelDims(ir.MemRef(dtypes.Float32, 64), cnm.Workgroup(4, 16), nil))
}

func TestParseCandidates(t *testing.T) {
	candidates, err := ParseCandidates("4x16, 2x32,8")
	require.NoError(t, err)
	assert.Equal(t, [][]int{{4, 16}, {2, 32}, {8}}, candidates)
	for _, text := range []string{"", "4x0", "4xa", ","} {
		_, err = ParseCandidates(text)
		assert.Error(t, err, "ParseCandidates(%q)", text)
	}
}

// runEquivalence checks that the pass rewrites the single reduction of module, and that the
// rewritten module computes the same results.
func runEquivalence(t *testing.T, module *ir.Operation, p *Pass, dtype dtypes.DType, dims, dimensions []int) *ir.Operation {
	input := interp.Iota(shapes.Make(dtype, dims...))
	init := interp.Zeros(shapes.Make(dtype, initDims(dims, dimensions)...))
	want, err := interp.New().Call(module, "main", input, init)
	require.NoError(t, err)

	stats, err := p.Run(module)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rewritten)
	require.NoError(t, ir.Verify(module), "rewritten module:\n%s", module)

	// The only reduction left runs inside the launch, on memrefs.
	assert.Equal(t, 1, countOps(module, cnm.LaunchOp))
	assert.Equal(t, 1, countOps(module, linalg.ReduceOp))
	assert.Equal(t, 2, countOps(module, cnm.ScatterOp))
	assert.Equal(t, 1, countOps(module, cnm.GatherOp))
	var inner *ir.Operation
	for _, op := range module.PreOrder(nil) {
		if op.Is(linalg.ReduceOp) {
			inner = op
		}
	}
	require.Equal(t, cnm.LaunchOp, inner.ParentOp().Name())
	r, _ := linalg.AsReduce(inner)
	assert.False(t, r.OnTensors())

	got, err := interp.New().WithParallelism(-1).Call(module, "main", input, init)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want[0].Shape, got[0].Shape)
	assert.Equal(t, want[0].Data, got[0].Data)
	return inner
}

func TestPassPreservesResults(t *testing.T) {
	testCases := []struct {
		name       string
		dtype      dtypes.DType
		dims       []int
		dimensions []int
		body       linalg.BodyFn
		workgroup  []int
		wantDims   []int
		wantExpand bool
	}{
		{"one row per worker", dtypes.Float32, []int{64, 64}, []int{1}, sumBody, []int{4, 16}, []int{0}, false},
		{"rows per worker", dtypes.Float32, []int{128, 32}, []int{1}, sumBody, []int{4, 16}, []int{1}, true},
		{"trailing axes", dtypes.Float32, []int{16, 4, 8}, []int{1, 2}, maxBody, []int{2, 4}, []int{1}, true},
		{"elementwise", dtypes.Float32, []int{64, 64}, nil, maxBody, []int{4, 16}, []int{}, false},
		{"float16", dtypes.Float16, []int{16, 64}, []int{1}, sumBody, []int{4, 4}, []int{0}, false},
		{"bfloat16 1D workgroup", dtypes.BFloat16, []int{32, 16}, []int{1}, sumBody, []int{8}, []int{1}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			module, _ := reduceModule(t, tc.dtype, tc.dims, tc.dimensions, tc.body)
			inner := runEquivalence(t, module, New(StaticWorkgroup(tc.workgroup...)), tc.dtype, tc.dims, tc.dimensions)
			r, _ := linalg.AsReduce(inner)
			assert.Equal(t, tc.wantDims, []int(r.Dimensions()))
			assert.Equal(t, tc.wantExpand, countOps(module, memref.ExpandShapeOp) > 0)
		})
	}
}

func TestElementwiseScenario(t *testing.T) {
	// One element per worker: scalar buffers and a launch over scalar memrefs.
	module, _ := reduceModule(t, dtypes.Float32, []int{4, 16}, nil, sumBody)
	runEquivalence(t, module, New(nil), dtypes.Float32, []int{4, 16}, nil)
	for _, op := range module.PreOrder(nil) {
		switch op.Name() {
		case cnm.AllocOp:
			assert.Equal(t, "!cnm.buffer<f32 on 4x16, level 0>", op.Result(0).Type().String())
		case cnm.ScatterOp:
			m, ok := cnm.ScatterMap(op)
			require.True(t, ok)
			assert.Equal(t, 4, m.NumDims)
			assert.Equal(t, 4, m.NumResults())
			assert.Equal(t, "tensor<4x16xf32>", op.Operand(0).Type().String())
		case cnm.LaunchOp:
			launch, _ := cnm.AsLaunch(op)
			require.Equal(t, 2, launch.Body().NumArguments())
			for _, arg := range launch.Body().Arguments() {
				assert.Equal(t, "memref<f32>", arg.Type().String())
			}
		}
	}

	// Same element count per worker, on a larger tensor.
	module, _ = reduceModule(t, dtypes.Float32, []int{64, 64}, nil, sumBody)
	runEquivalence(t, module, New(nil), dtypes.Float32, []int{64, 64}, nil)
	for _, op := range module.PreOrder(nil) {
		if op.Is(cnm.ScatterOp) {
			assert.Equal(t, "tensor<4x16x64xf32>", op.Operand(0).Type().String())
			assert.Equal(t, "!cnm.buffer<64xf32 on 4x16, level 0>", op.Operand(1).Type().String())
		}
	}
}

func TestPassIsIdempotent(t *testing.T) {
	module, _ := reduceModule(t, dtypes.Float32, []int{64, 64}, []int{1}, sumBody)
	p := New(nil)
	_, err := p.Run(module)
	require.NoError(t, err)
	before := module.String()
	numOps := pass.CountOps(module)

	stats, err := p.Run(module)
	require.NoError(t, err)
	assert.Equal(t, rewrite.Stats{}, stats)
	assert.Equal(t, numOps, pass.CountOps(module))
	assert.Equal(t, before, module.String())
}

func TestPassLeavesIllegalReductions(t *testing.T) {
	module, r := reduceModule(t, dtypes.Float32, []int{8, 64}, []int{1}, sumBody)
	before := module.String()
	stats, err := New(nil).Run(module)
	require.NoError(t, err)
	assert.Equal(t, rewrite.Stats{}, stats)
	assert.Equal(t, before, module.String())
	assert.Same(t, module, r.Op.ParentOp().ParentOp())
	assert.Equal(t, 0, countOps(module, cnm.LaunchOp))
}

func TestPassErrors(t *testing.T) {
	module := builtin.NewModule()
	_, entry := builtin.AddFunc(module, "main", []ir.Type{ir.MemRef(dtypes.Float32, 64), ir.MemRef(dtypes.Float32)}, nil)
	b := ir.NewBuilder()
	b.SetInsertionPointToEnd(entry)
	linalg.Reduce(b, entry.Arguments()[:1], entry.Arguments()[1:], []int{0}, sumBody)
	builtin.Return(b)
	require.NoError(t, ir.Verify(module))
	_, err := New(nil).Run(module)
	require.ErrorIs(t, err, ErrUnsupportedOperand)
}

func TestRegisteredPass(t *testing.T) {
	p, err := pass.New(PassName, pass.NewOptions(PassName, map[string]string{
		"workgroup":  "2x4,4x16",
		"max-buffer": "1KiB",
	}))
	require.NoError(t, err)
	selector := p.(*Pass).Strategy.(*Selector)
	assert.Equal(t, [][]int{{2, 4}, {4, 16}}, selector.Candidates)
	assert.Equal(t, int64(1024), selector.MemoryLimit)

	p, err = pass.New(PassName, pass.NewOptions(PassName, nil))
	require.NoError(t, err)
	assert.Equal(t, [][]int{{4, 16}}, p.(*Pass).Strategy.(*Selector).Candidates)

	_, err = pass.New(PassName, pass.NewOptions(PassName, map[string]string{"workgroup": "4x0"}))
	require.Error(t, err)
	_, err = pass.New(PassName, pass.NewOptions(PassName, map[string]string{"max-buffer": "lots"}))
	require.Error(t, err)

	// Through a pipeline.
	module, _ := reduceModule(t, dtypes.Float32, []int{64, 64}, []int{1}, sumBody)
	manager := pass.NewManager()
	require.NoError(t, manager.AddPipeline(PassName+"{workgroup=8x8}"))
	reports, err := manager.Run(module)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Stats.Rewritten)
	assert.Greater(t, reports[0].OpsAfter, reports[0].OpsBefore)
	for _, op := range module.PreOrder(nil) {
		if op.Is(cnm.WorkgroupOp) {
			assert.Equal(t, "!cnm.workgroup<8x8>", op.Result(0).Type().String())
		}
	}
}

// randomCase draws a tensor shape, a workgroup and a (possibly empty) set of reduced axes.
func randomCase(rng *rand.Rand) (dims []int, wg *cnm.WorkgroupType, reduced []int) {
	extents := []int{1, 2, 3, 4, 6, 8, 12, 16}
	dims = make([]int, 1+rng.IntN(3))
	for ii := range dims {
		dims[ii] = extents[rng.IntN(len(extents))]
	}
	wgShape := make([]int, 1+rng.IntN(2))
	for ii := range wgShape {
		wgShape[ii] = []int{1, 2, 3, 4, 8}[rng.IntN(5)]
	}
	for axis := range dims {
		if rng.IntN(2) == 0 {
			reduced = append(reduced, axis)
		}
	}
	return dims, cnm.Workgroup(wgShape...), reduced
}

func TestFitsParallelDimsGenerated(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	var fits, doesNotFit int
	for range 500 {
		dims, wg, reduced := randomCase(rng)
		tensorType := ir.Tensor(dtypes.Float32, dims...)

		// Count the distinct indices over the parallel axes by enumerating every element.
		parallel := make(map[string]bool)
		for _, indices := range tensorType.Shape().Iter() {
			var key []int
			for axis, idx := range indices {
				if !slices.Contains(reduced, axis) {
					key = append(key, idx)
				}
			}
			parallel[fmt.Sprint(key)] = true
		}
		want := len(parallel)%wg.NumWorkers() == 0
		if want {
			fits++
		} else {
			doesNotFit++
		}
		assert.Equal(t, want, FitsParallelDims(tensorType, wg, reduced),
			"tensor %v reduced over %v on workgroup %s", dims, reduced, wg)
	}
	// Both outcomes must have been exercised.
	assert.Positive(t, fits)
	assert.Positive(t, doesNotFit)
}

func TestComputeShapesGenerated(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 42))
	var exact, inexact int
	for range 500 {
		dims, wg, _ := randomCase(rng)
		numElements, numWorkers := 1, wg.NumWorkers()
		for _, d := range dims {
			numElements *= d
		}
		if numElements%numWorkers != 0 {
			inexact++
			assert.Panics(t, func() { ComputeShapes(dims, wg) }, "tensor %v on workgroup %s", dims, wg)
			continue
		}
		exact++
		tensorShape, bufferShape := ComputeShapes(dims, wg)
		remainder := 1
		for _, d := range bufferShape {
			remainder *= d
		}
		assert.Equal(t, numElements, remainder*numWorkers, "tensor %v on workgroup %s", dims, wg)
		assert.Equal(t, remainder == 1, len(bufferShape) == 0, "tensor %v on workgroup %s", dims, wg)
		assert.Equal(t, wg.Shape, tensorShape[:wg.Rank()])
		reshaped := 1
		for _, d := range tensorShape {
			reshaped *= d
		}
		assert.Equal(t, numElements, reshaped)
	}
	assert.Positive(t, exact)
	assert.Positive(t, inexact)
}
