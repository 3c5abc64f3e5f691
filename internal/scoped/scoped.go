// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scoped provides a mapping from a key to a value that is "scoped".
package scoped

import (
	"maps"
	"strconv"
	"strings"

	"github.com/gomlx/cinnamon/pkg/support/xslices"
	"github.com/pkg/errors"
)

// RootScope is the root scope when using the default separator "/".
const RootScope = "/"

// Params provides a mapping from key to value that is "scoped":
//
//   - For every scope there is a map of key to value.
//   - Accessing a key searches from the given scope up to the root scope, the first value found
//     is returned.
//
// Example: let's say the current Params hold:
//
//	Scope: "/": { "workgroup": "4x16", "verify": "true" }
//	Scope: "/convert-tiled-cinm-to-cnm": { "workgroup": "2x32" }
//
//	Params.Get("/convert-tiled-cinm-to-cnm", "workgroup") -> "2x32"
//	Params.Get("/convert-tiled-cinm-to-cnm", "verify") -> "true"
//	Params.Get("/quantum-optimise", "workgroup") -> "4x16"
//
// The root scope is the Separator itself, and every scope name must start with it.
//
// The pass manager stores global options in the root scope, and the options of each pass in the
// scope named after the pass.
type Params struct {
	Separator  string
	scopeToMap map[string]map[string]any
}

// New creates an empty Params.
func New(scopeSeparator string) *Params {
	return &Params{
		Separator:  scopeSeparator,
		scopeToMap: make(map[string]map[string]any),
	}
}

// Clone returns a copy of the Params. Values are not copied.
func (p *Params) Clone() *Params {
	clone := New(p.Separator)
	for scope, dataMap := range p.scopeToMap {
		clone.scopeToMap[scope] = maps.Clone(dataMap)
	}
	return clone
}

// Join returns the scope name of child within parent.
func (p *Params) Join(parent, child string) string {
	if parent == p.Separator {
		return p.Separator + child
	}
	return parent + p.Separator + child
}

// Set sets the value for the given key, in the given scope.
func (p *Params) Set(scope, key string, value any) {
	dataMap, found := p.scopeToMap[scope]
	if !found {
		dataMap = make(map[string]any)
		p.scopeToMap[scope] = dataMap
	}
	dataMap[key] = value
}

// Get retrieves the value for the given key in the given scope or any parent scope.
// E.g.: Get("/a/b", "myKey") will search for "myKey" in scopes "/a/b", "/a" and "/"
// consecutively until "myKey" is found.
//
// It returns the first value found if any, and whether some value was found.
func (p *Params) Get(scope, key string) (value any, found bool) {
	for {
		if dataMap, ok := p.scopeToMap[scope]; ok {
			if value, found = dataMap[key]; found {
				return
			}
		}
		if scope == p.Separator || scope == "" {
			return nil, false
		}
		idx := strings.LastIndex(scope, p.Separator)
		if idx <= 0 {
			scope = p.Separator
		} else {
			scope = scope[:idx]
		}
	}
}

// GetString returns the value of key as a string, or defaultValue if not set.
func (p *Params) GetString(scope, key, defaultValue string) string {
	value, found := p.Get(scope, key)
	if !found {
		return defaultValue
	}
	if s, ok := value.(string); ok {
		return s
	}
	return defaultValue
}

// GetInt returns the value of key as an int, parsing it if it was set as a string.
func (p *Params) GetInt(scope, key string, defaultValue int) (int, error) {
	value, found := p.Get(scope, key)
	if !found {
		return defaultValue, nil
	}
	switch v := value.(type) {
	case int:
		return v, nil
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return defaultValue, errors.Wrapf(err, "option %q=%q in scope %q is not an int", key, v, scope)
		}
		return parsed, nil
	}
	return defaultValue, errors.Errorf("option %q in scope %q has type %T, wanted an int", key, scope, value)
}

// GetBool returns the value of key as a bool, parsing it if it was set as a string.
func (p *Params) GetBool(scope, key string, defaultValue bool) (bool, error) {
	value, found := p.Get(scope, key)
	if !found {
		return defaultValue, nil
	}
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return defaultValue, errors.Wrapf(err, "option %q=%q in scope %q is not a bool", key, v, scope)
		}
		return parsed, nil
	}
	return defaultValue, errors.Errorf("option %q in scope %q has type %T, wanted a bool", key, scope, value)
}

// Enumerate calls fn for all parameters, sorted by scope and then by key.
func (p *Params) Enumerate(fn func(scope, key string, value any)) {
	for _, scope := range xslices.SortedKeys(p.scopeToMap) {
		keyValues := p.scopeToMap[scope]
		for _, key := range xslices.SortedKeys(keyValues) {
			fn(scope, key, keyValues[key])
		}
	}
}
