// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pass defines the interface of the passes that transform a program, their registry,
// and the Manager that runs a pipeline of passes.
//
// Passes are registered by name (usually in the init function of their package), and pipelines
// are described by a string like:
//
//	convert-tiled-cinm-to-cnm{workgroup=4x16},quantum-optimise,convert-quantum-to-qir
//
// To simplify error handling, passes may panic (with exceptions.Panicf) on broken invariants:
// the Manager converts those panics to errors.
package pass

import (
	"os"
	"sync"

	"github.com/gomlx/cinnamon/internal/scoped"
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/rewrite"
	"github.com/gomlx/cinnamon/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Pass transforms a program.
type Pass interface {
	// Name of the pass, as used in pipelines.
	Name() string

	// Run the pass on the module. The returned stats are used for reporting.
	Run(module *ir.Operation) (rewrite.Stats, error)
}

// Options of a pass: the ones given to it in the pipeline, falling back to the global ones.
type Options struct {
	params *scoped.Params
	scope  string
}

// NewOptions creates options for the pass name from the given key/value pairs, with no global
// options. Mostly useful for tests.
func NewOptions(name string, values map[string]string) Options {
	params := scoped.New(scoped.RootScope)
	scope := params.Join(scoped.RootScope, name)
	for key, value := range values {
		params.Set(scope, key, value)
	}
	return Options{params: params, scope: scope}
}

// String returns the value of the option, or defaultValue if not set.
func (o Options) String(key, defaultValue string) string {
	if o.params == nil {
		return defaultValue
	}
	return o.params.GetString(o.scope, key, defaultValue)
}

// Int returns the value of the option as an int, or defaultValue if not set.
func (o Options) Int(key string, defaultValue int) (int, error) {
	if o.params == nil {
		return defaultValue, nil
	}
	return o.params.GetInt(o.scope, key, defaultValue)
}

// Bool returns the value of the option as a bool, or defaultValue if not set.
func (o Options) Bool(key string, defaultValue bool) (bool, error) {
	if o.params == nil {
		return defaultValue, nil
	}
	return o.params.GetBool(o.scope, key, defaultValue)
}

// Constructor creates a Pass configured with the given options.
type Constructor func(opts Options) (Pass, error)

var (
	muRegistry             sync.Mutex
	registeredConstructors = make(map[string]Constructor)
)

// Register a pass with the given name.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	registeredConstructors[name] = constructor
}

// Registered returns the names of the registered passes, sorted.
func Registered() []string {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	return xslices.SortedKeys(registeredConstructors)
}

// New creates the registered pass name with the given options.
func New(name string, opts Options) (Pass, error) {
	muRegistry.Lock()
	constructor, found := registeredConstructors[name]
	muRegistry.Unlock()
	if !found {
		return nil, errors.Errorf("unknown pass %q, registered passes are %v -- maybe the package "+
			"implementing it was not imported?", name, Registered())
	}
	p, err := constructor(opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "configuring pass %q", name)
	}
	return p, nil
}

// DefaultPipeline is the pipeline used by PipelineFromEnv if the environment variable is not set.
var DefaultPipeline string

// CINNAMON_PIPELINE is the environment variable with the default pipeline to run.
//
// See ParsePipeline for the format.
const CINNAMON_PIPELINE = "CINNAMON_PIPELINE"

// PipelineFromEnv returns the pipeline to run by default:
//
//  1. The environment variable CINNAMON_PIPELINE if defined.
//  2. DefaultPipeline otherwise.
func PipelineFromEnv() string {
	if pipeline, found := os.LookupEnv(CINNAMON_PIPELINE); found {
		return pipeline
	}
	return DefaultPipeline
}
