// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

// Mapping is a value-to-value (and block-to-block) substitution map.
//
// When cloning a region it is the single source of truth of what values inside the clone refer
// to: values found in the mapping are substituted, values not found are assumed to be visible
// from the insertion point and kept as is.
type Mapping struct {
	values map[*Value]*Value
	blocks map[*Block]*Block
}

// NewMapping creates an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{
		values: make(map[*Value]*Value),
		blocks: make(map[*Block]*Block),
	}
}

// Map registers the substitution from -> to.
func (m *Mapping) Map(from, to *Value) {
	m.values[from] = to
}

// MapAll registers from[i] -> to[i] for all elements.
func (m *Mapping) MapAll(from, to []*Value) {
	for ii := range from {
		m.values[from[ii]] = to[ii]
	}
}

// Lookup returns the substitution of v, and whether there is one.
func (m *Mapping) Lookup(v *Value) (*Value, bool) {
	to, found := m.values[v]
	return to, found
}

// LookupOrDefault returns the substitution of v, or v itself if there is none.
func (m *Mapping) LookupOrDefault(v *Value) *Value {
	if to, found := m.values[v]; found {
		return to
	}
	return v
}

// LookupBlock returns the block cloned from b, or nil.
func (m *Mapping) LookupBlock(b *Block) *Block { return m.blocks[b] }

// Clone creates a deep copy of op (including its regions), with operands substituted through
// mapping. The results of op are mapped to the results of the clone. The clone is detached.
func (op *Operation) Clone(mapping *Mapping) *Operation {
	operands := make([]*Value, len(op.operands))
	for ii, v := range op.operands {
		operands[ii] = mapping.LookupOrDefault(v)
	}
	clone := NewOperation(OperationState{
		Name:        op.name,
		Location:    op.loc,
		Operands:    operands,
		ResultTypes: op.ResultTypes(),
		Attributes:  op.attrs,
		NumRegions:  len(op.regions),
	})
	mapping.MapAll(op.results, clone.results)
	for ii, region := range op.regions {
		region.CloneInto(clone.regions[ii], mapping)
	}
	return clone
}

// CloneInto appends clones of the blocks of r into dest. Block arguments are recreated (and
// mapped), and the operations are cloned with Operation.Clone.
func (r *Region) CloneInto(dest *Region, mapping *Mapping) {
	// Blocks and their arguments are created first, so operations can refer to any of them.
	newBlocks := make([]*Block, len(r.blocks))
	for ii, block := range r.blocks {
		newBlock := dest.EmplaceBlock()
		for _, arg := range block.args {
			mapping.Map(arg, newBlock.AddArgument(arg.typ))
		}
		mapping.blocks[block] = newBlock
		newBlocks[ii] = newBlock
	}
	for ii, block := range r.blocks {
		for _, op := range block.ops {
			newBlocks[ii].Append(op.Clone(mapping))
		}
	}
}
