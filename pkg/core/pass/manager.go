// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pass

import (
	"time"

	"github.com/gomlx/cinnamon/internal/scoped"
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/rewrite"
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Report of the run of one pass.
type Report struct {
	Pass      string
	Stats     rewrite.Stats
	Duration  time.Duration
	OpsBefore int
	OpsAfter  int
}

// Manager runs a sequence of passes on a module.
type Manager struct {
	// RunID identifies the manager in logs.
	RunID uuid.UUID

	params     *scoped.Params
	passes     []Pass
	verifyEach bool
}

// NewManager creates an empty manager that verifies the module before and after every pass.
func NewManager() *Manager {
	return &Manager{
		RunID:      uuid.New(),
		params:     scoped.New(scoped.RootScope),
		verifyEach: true,
	}
}

// WithVerifyEach sets whether the module is verified before the first pass and after each pass.
func (m *Manager) WithVerifyEach(verify bool) *Manager {
	m.verifyEach = verify
	return m
}

// SetGlobalOption sets an option seen by all passes added afterwards, unless they override it
// in the pipeline.
func (m *Manager) SetGlobalOption(key, value string) *Manager {
	m.params.Set(scoped.RootScope, key, value)
	return m
}

// Add passes to the end of the pipeline.
func (m *Manager) Add(passes ...Pass) *Manager {
	m.passes = append(m.passes, passes...)
	return m
}

// AddPipeline parses the pipeline (see ParsePipeline) and adds its passes, configured with the
// given options, to the end of the pipeline.
func (m *Manager) AddPipeline(pipeline string) error {
	specs, err := ParsePipeline(pipeline)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		scope := m.params.Join(scoped.RootScope, spec.Name)
		for key, value := range spec.Options {
			m.params.Set(scope, key, value)
		}
		p, err := New(spec.Name, Options{params: m.params, scope: scope})
		if err != nil {
			return err
		}
		m.passes = append(m.passes, p)
	}
	return nil
}

// Passes returns the names of the passes in the pipeline.
func (m *Manager) Passes() []string {
	names := make([]string, len(m.passes))
	for ii, p := range m.passes {
		names[ii] = p.Name()
	}
	return names
}

// Run the passes on the module, in order. It stops at the first pass that fails: the changes
// done by the previous passes (and the ones already committed by the failing pass) are kept.
//
// Panics in a pass are converted to errors.
func (m *Manager) Run(module *ir.Operation) ([]Report, error) {
	if m.verifyEach {
		if err := ir.Verify(module); err != nil {
			return nil, errors.WithMessagef(err, "run %s: invalid input module", m.RunID)
		}
	}
	reports := make([]Report, 0, len(m.passes))
	for _, p := range m.passes {
		report := Report{Pass: p.Name(), OpsBefore: CountOps(module)}
		start := time.Now()
		var err error
		exception := exceptions.TryCatch[error](func() {
			report.Stats, err = p.Run(module)
		})
		if exception != nil {
			err = errors.WithMessage(exception, "panic")
		}
		report.Duration = time.Since(start)
		report.OpsAfter = CountOps(module)
		reports = append(reports, report)
		if err != nil {
			return reports, errors.WithMessagef(err, "run %s: pass %q failed", m.RunID, p.Name())
		}
		if m.verifyEach {
			if err = ir.Verify(module); err != nil {
				return reports, errors.WithMessagef(err, "run %s: module invalid after pass %q", m.RunID, p.Name())
			}
		}
		klog.V(1).Infof("run %s: pass %q rewrote %d operation(s), %d mutation(s), %d -> %d operations in %s",
			m.RunID, p.Name(), report.Stats.Rewritten, report.Stats.Mutations, report.OpsBefore, report.OpsAfter, report.Duration)
	}
	return reports, nil
}

// CountOps returns the number of operations nested in root.
func CountOps(root *ir.Operation) int {
	return len(root.PreOrder(nil))
}
