// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strings"
)

// String pretty-prints the operation and its regions in a generic MLIR-like form, e.g.:
//
//	%0 = cnm.workgroup() : () -> !cnm.workgroup<4x16>
//
// It is meant for debugging and tests, there is no parser for it.
func (op *Operation) String() string {
	p := &printer{names: make(map[*Value]string)}
	p.printOp(op, 0)
	return p.sb.String()
}

type printer struct {
	sb               strings.Builder
	names            map[*Value]string
	nextVal, nextArg int
}

func (p *printer) name(v *Value) string {
	if v == nil {
		return "<<null>>"
	}
	if name, found := p.names[v]; found {
		return name
	}
	// Values defined outside of the printed operation.
	var name string
	if v.IsBlockArgument() {
		name = fmt.Sprintf("%%arg%d", p.nextArg)
		p.nextArg++
	} else {
		name = fmt.Sprintf("%%%d", p.nextVal)
		p.nextVal++
	}
	p.names[v] = name
	return name
}

func (p *printer) indent(level int) {
	for range level {
		p.sb.WriteString("  ")
	}
}

func (p *printer) printOp(op *Operation, level int) {
	p.indent(level)
	if len(op.results) > 0 {
		for ii, r := range op.results {
			if ii > 0 {
				p.sb.WriteString(", ")
			}
			p.sb.WriteString(p.name(r))
		}
		p.sb.WriteString(" = ")
	}
	p.sb.WriteString(op.name)
	p.sb.WriteString("(")
	for ii, v := range op.operands {
		if ii > 0 {
			p.sb.WriteString(", ")
		}
		p.sb.WriteString(p.name(v))
	}
	p.sb.WriteString(")")
	if len(op.attrs) > 0 {
		p.sb.WriteString(" {")
		for ii, a := range op.attrs {
			if ii > 0 {
				p.sb.WriteString(", ")
			}
			_, _ = fmt.Fprintf(&p.sb, "%s = %s", a.Name, a.Value)
		}
		p.sb.WriteString("}")
	}
	p.sb.WriteString(" : (")
	for ii, v := range op.operands {
		if ii > 0 {
			p.sb.WriteString(", ")
		}
		if v == nil {
			p.sb.WriteString("<<null>>")
			continue
		}
		p.sb.WriteString(v.typ.String())
	}
	p.sb.WriteString(") -> ")
	switch len(op.results) {
	case 0:
		p.sb.WriteString("()")
	case 1:
		p.sb.WriteString(op.results[0].typ.String())
	default:
		p.sb.WriteString("(")
		for ii, r := range op.results {
			if ii > 0 {
				p.sb.WriteString(", ")
			}
			p.sb.WriteString(r.typ.String())
		}
		p.sb.WriteString(")")
	}
	for _, region := range op.regions {
		p.sb.WriteString(" {\n")
		for bi, block := range region.blocks {
			p.indent(level)
			_, _ = fmt.Fprintf(&p.sb, "^bb%d(", bi)
			for ii, arg := range block.args {
				if ii > 0 {
					p.sb.WriteString(", ")
				}
				_, _ = fmt.Fprintf(&p.sb, "%s: %s", p.name(arg), arg.typ)
			}
			p.sb.WriteString("):\n")
			for _, nested := range block.ops {
				p.printOp(nested, level+1)
			}
		}
		p.indent(level)
		p.sb.WriteString("}")
	}
	p.sb.WriteString("\n")
}
