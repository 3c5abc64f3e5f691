// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pass

import (
	"testing"

	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/rewrite"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tagPass sets an attribute on every operation named "test.op".
type tagPass struct {
	value string
	fail  bool
	panic bool
}

func (p *tagPass) Name() string { return "test-tag" }

func (p *tagPass) Run(module *ir.Operation) (rewrite.Stats, error) {
	if p.fail {
		return rewrite.Stats{}, errors.New("tagging failed")
	}
	if p.panic {
		exceptions.Panicf("broken invariant")
	}
	var stats rewrite.Stats
	for _, op := range module.PreOrder(nil) {
		if op.Is("test.op") {
			op.SetAttr("tag", ir.StringAttr(p.value))
			stats.Rewritten++
			stats.Mutations++
		}
	}
	return stats, nil
}

func init() {
	Register("test-tag", func(opts Options) (Pass, error) {
		fail, err := opts.Bool("fail", false)
		if err != nil {
			return nil, err
		}
		return &tagPass{value: opts.String("value", "default"), fail: fail}, nil
	})
}

func testModule() *ir.Operation {
	module := ir.NewOperation(ir.OperationState{Name: "test.module", NumRegions: 1})
	b := ir.NewBuilder()
	b.SetInsertionPointToEnd(module.Region(0).EmplaceBlock())
	b.Create(ir.OperationState{Name: "test.op", ResultTypes: []ir.Type{ir.Scalar(dtypes.Float32)}})
	b.Create(ir.OperationState{Name: "test.other"})
	return module
}

func TestParsePipeline(t *testing.T) {
	testCases := []struct {
		pipeline string
		want     []Spec
		wantErr  string
	}{
		{"", nil, ""},
		{"a", []Spec{{Name: "a"}}, ""},
		{" a , b{x=1; y = two},c{}", []Spec{
			{Name: "a"},
			{Name: "b", Options: map[string]string{"x": "1", "y": "two"}},
			{Name: "c", Options: map[string]string{}},
		}, ""},
		{"a,", nil, "trailing"},
		{",a", nil, "empty pass name"},
		{"a{x=1", nil, "missing \"}\""},
		{"a{x}", nil, "key=value"},
		{"a{x=1}b", nil, "expected \",\""},
	}
	for _, tc := range testCases {
		t.Run(tc.pipeline, func(t *testing.T) {
			got, err := ParsePipeline(tc.pipeline)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
	assert.Equal(t, "b{x=1;y=two}", Spec{Name: "b", Options: map[string]string{"y": "two", "x": "1"}}.String())
}

func TestManager(t *testing.T) {
	module := testModule()
	m := NewManager().SetGlobalOption("value", "global")
	require.NoError(t, m.AddPipeline("test-tag,test-tag{value=local}"))
	assert.Equal(t, []string{"test-tag", "test-tag"}, m.Passes())

	reports, err := m.Run(module)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Stats.Rewritten)
	assert.Equal(t, 2, reports[1].OpsAfter)
	tagged := module.Region(0).Front().Operations()[0]
	assert.Equal(t, ir.StringAttr("local"), tagged.Attr("tag"))

	require.ErrorContains(t, NewManager().AddPipeline("no-such-pass"), "unknown pass \"no-such-pass\"")
	require.ErrorContains(t, NewManager().AddPipeline("test-tag{fail=maybe}"), "configuring pass \"test-tag\"")
}

func TestManagerFailures(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.AddPipeline("test-tag{fail=true}"))
	reports, err := m.Run(testModule())
	require.ErrorContains(t, err, "tagging failed")
	assert.Len(t, reports, 1)

	_, err = NewManager().Add(&tagPass{panic: true}).Run(testModule())
	require.ErrorContains(t, err, "broken invariant")
}

func TestPipelineFromEnv(t *testing.T) {
	t.Setenv(CINNAMON_PIPELINE, "test-tag{value=env}")
	assert.Equal(t, "test-tag{value=env}", PipelineFromEnv())
	opts := NewOptions("test-tag", map[string]string{"n": "3"})
	n, err := opts.Int("n", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, Registered(), "test-tag")
}
