// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/cinnamon/pkg/core/affine"
)

// Attribute is a compile-time constant attached to an Operation by name.
type Attribute interface {
	fmt.Stringer
}

// IntAttr is an integer attribute.
type IntAttr int64

// String implements Attribute.
func (a IntAttr) String() string { return strconv.FormatInt(int64(a), 10) }

// FloatAttr is a floating point attribute.
type FloatAttr float64

// String implements Attribute.
func (a FloatAttr) String() string { return strconv.FormatFloat(float64(a), 'g', -1, 64) }

// StringAttr is a string attribute.
type StringAttr string

// String implements Attribute.
func (a StringAttr) String() string { return strconv.Quote(string(a)) }

// IntsAttr is a list of integers, e.g. the reduction dimensions of a reduce.
type IntsAttr []int

// String implements Attribute.
func (a IntsAttr) String() string {
	parts := make([]string, len(a))
	for ii, v := range a {
		parts[ii] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// TypeAttr holds a type.
type TypeAttr struct{ Type Type }

// String implements Attribute.
func (a TypeAttr) String() string { return a.Type.String() }

// AffineMapAttr holds an affine map.
type AffineMapAttr struct{ Map affine.Map }

// String implements Attribute.
func (a AffineMapAttr) String() string { return "affine_map<" + a.Map.String() + ">" }

// DenseAttr holds the constant contents of a tensor of the given type, in row-major order.
// Values are stored as float64 regardless of the element dtype.
type DenseAttr struct {
	Type   *TensorType
	Values []float64
}

// String implements Attribute.
func (a DenseAttr) String() string {
	if len(a.Values) > 0 && slices.IndexFunc(a.Values, func(v float64) bool { return v != a.Values[0] }) == -1 {
		// Splat.
		return fmt.Sprintf("dense<%g> : %s", a.Values[0], a.Type)
	}
	parts := make([]string, len(a.Values))
	for ii, v := range a.Values {
		parts[ii] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return fmt.Sprintf("dense<[%s]> : %s", strings.Join(parts, ", "), a.Type)
}

// NamedAttr is an attribute with its name, used when creating operations.
type NamedAttr struct {
	Name  string
	Value Attribute
}
