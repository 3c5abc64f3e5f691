// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pass

import (
	"fmt"
	"strings"

	"github.com/gomlx/cinnamon/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Spec is one element of a pipeline: the name of a pass and its options.
type Spec struct {
	Name    string
	Options map[string]string
}

// String formats the spec back in the pipeline syntax, with options sorted by key.
func (s Spec) String() string {
	if len(s.Options) == 0 {
		return s.Name
	}
	var parts []string
	for _, key := range xslices.SortedKeys(s.Options) {
		parts = append(parts, fmt.Sprintf("%s=%s", key, s.Options[key]))
	}
	return s.Name + "{" + strings.Join(parts, ";") + "}"
}

// ParsePipeline parses a pipeline description: a comma-separated list of pass names, each
// optionally followed by options in braces, separated by ";":
//
//	convert-tiled-cinm-to-cnm{workgroup=4x16;max-buffer=64MiB},convert-quantum-to-qir
//
// Whitespace around names, keys and values is ignored. An empty pipeline is valid and has no
// passes.
func ParsePipeline(pipeline string) ([]Spec, error) {
	var specs []Spec
	rest := strings.TrimSpace(pipeline)
	for rest != "" {
		end := strings.IndexAny(rest, ",{")
		if end == -1 {
			end = len(rest)
		}
		spec := Spec{Name: strings.TrimSpace(rest[:end])}
		if spec.Name == "" {
			return nil, errors.Errorf("pipeline %q: empty pass name", pipeline)
		}
		rest = rest[end:]
		if strings.HasPrefix(rest, "{") {
			closing := strings.Index(rest, "}")
			if closing == -1 {
				return nil, errors.Errorf("pipeline %q: missing \"}\" for the options of pass %q", pipeline, spec.Name)
			}
			options, err := parseOptions(rest[1:closing])
			if err != nil {
				return nil, errors.WithMessagef(err, "pipeline %q, pass %q", pipeline, spec.Name)
			}
			spec.Options = options
			rest = strings.TrimSpace(rest[closing+1:])
		}
		if rest != "" {
			if !strings.HasPrefix(rest, ",") {
				return nil, errors.Errorf("pipeline %q: expected \",\" after pass %q, got %q", pipeline, spec.Name, rest)
			}
			rest = strings.TrimSpace(rest[1:])
			if rest == "" {
				return nil, errors.Errorf("pipeline %q: trailing \",\"", pipeline)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseOptions(text string) (map[string]string, error) {
	options := make(map[string]string)
	for _, part := range strings.Split(text, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, errors.Errorf("invalid option %q, it must be formatted as key=value", part)
		}
		if strings.ContainsAny(value, "{}") {
			return nil, errors.Errorf("invalid value for option %q: %q", key, value)
		}
		options[key] = strings.TrimSpace(value)
	}
	return options, nil
}
