// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cinmtocnm

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/dialects/cnm"
	"github.com/gomlx/cinnamon/pkg/dialects/linalg"
	"github.com/gomlx/cinnamon/pkg/support/xslices"
	"github.com/gomlx/cinnamon/pkg/upmem"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultWorkgroup is the workgroup shape tried when none is configured: 4 ranks of 16 DPUs.
var DefaultWorkgroup = []int{4, 16}

// Strategy chooses the workgroup a reduction is distributed over.
type Strategy interface {
	// Select returns the workgroup to rewrite the reduction with, or nil if no workgroup is legal
	// for it, in which case the reduction is left as is.
	Select(r linalg.ReduceView) *cnm.WorkgroupType
}

// Selector is a Strategy that tries a prioritized list of candidate workgroup shapes, and
// selects the first one legal for the reduction.
type Selector struct {
	Candidates [][]int

	// MemoryLimit is the maximum size in bytes of each per-worker buffer. If <= 0,
	// upmem.MRAMSize is used.
	MemoryLimit int64
}

var _ Strategy = (*Selector)(nil)

// StaticWorkgroup returns a Selector that only tries the given workgroup shape.
func StaticWorkgroup(shape ...int) *Selector {
	return &Selector{Candidates: [][]int{slices.Clone(shape)}}
}

// Candidates returns a Selector that tries the given shapes in order.
func Candidates(shapes ...[]int) *Selector {
	return &Selector{Candidates: shapes}
}

// WithMemoryLimit sets the maximum size in bytes of each per-worker buffer.
func (s *Selector) WithMemoryLimit(limit int64) *Selector {
	s.MemoryLimit = limit
	return s
}

// Select implements Strategy.
func (s *Selector) Select(r linalg.ReduceView) *cnm.WorkgroupType {
	for _, shape := range s.Candidates {
		wg := cnm.Workgroup(shape...)
		if s.IsLegal(r, wg) {
			return wg
		}
		klog.V(2).Infof("cinm-to-cnm: workgroup %s is not legal for %s at %s", wg, r.Op.Name(), r.Op.Location())
	}
	return nil
}

// FitsParallelDims returns whether the parallel volume of t (the product of the extents of the
// axes not in reductionDims) splits evenly over the workers of wg. It is false if t is not a
// tensor.
func FitsParallelDims(t ir.Type, wg *cnm.WorkgroupType, reductionDims []int) bool {
	tensorType, ok := t.(*ir.TensorType)
	if !ok {
		return false
	}
	return tensorType.Shape().VolumeExcluding(reductionDims)%wg.NumWorkers() == 0
}

// IsSupportedReduction returns whether the reduced axes of a tensor of the given rank can be
// lowered: none (elementwise) or a contiguous run of axes ending at the last one.
func IsSupportedReduction(rank int, reductionDims []int) bool {
	if len(reductionDims) == 0 {
		return true
	}
	return xslices.IsContiguousRun(reductionDims) && xslices.Last(reductionDims) == rank-1
}

// IsLegal returns whether the reduction can be distributed over wg:
//
//   - Every init fits wg with no reduced axes, and every input fits wg without its reduced axes.
//   - The reduced axes are supported (see IsSupportedReduction).
//   - The per-worker buffers fit the memory limit.
func (s *Selector) IsLegal(r linalg.ReduceView, wg *cnm.WorkgroupType) bool {
	for _, init := range r.Inits() {
		if !FitsParallelDims(init.Type(), wg, nil) {
			return false
		}
	}
	dims := r.Dimensions()
	for _, input := range r.Inputs() {
		if !FitsParallelDims(input.Type(), wg, dims) {
			return false
		}
		if !IsSupportedReduction(input.Type().(*ir.TensorType).Shape().Rank(), dims) {
			return false
		}
	}
	for _, operand := range r.Op.Operands() {
		plan := PlanOperand(operand, wg)
		if err := upmem.CheckBuffer(plan.Buffer.PerWorker, s.MemoryLimit); err != nil {
			klog.V(2).Infof("cinm-to-cnm: %v", err)
			return false
		}
	}
	return true
}

// ParseCandidates parses a list of workgroup shapes like "4x16,2x32".
func ParseCandidates(text string) ([][]int, error) {
	var candidates [][]int
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var shape []int
		for _, extent := range strings.Split(part, "x") {
			e, err := strconv.Atoi(strings.TrimSpace(extent))
			if err != nil || e <= 0 {
				return nil, errors.Errorf("invalid workgroup shape %q: extents must be positive integers separated by \"x\"", part)
			}
			shape = append(shape, e)
		}
		candidates = append(candidates, shape)
	}
	if len(candidates) == 0 {
		return nil, errors.Errorf("no workgroup shape in %q", text)
	}
	return candidates, nil
}
