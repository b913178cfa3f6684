// SPDX-License-Identifier: Apache-2.0

package keyrecon

import "slices"

// ColumnMapping renames benchmark keys to key chains of the test document.
//
// The zero value maps every key to itself.
type ColumnMapping struct {
	// Map translates a benchmark key into a test key chain. A chain longer
	// than one component nests the value deeper in the test document.
	Map map[string]KeyChain

	// InnerKeyValidity applies Map to keys below the top level too.
	// By default renaming is top-level only.
	InnerKeyValidity bool

	// GenericKey is an envelope prefix. A top-level benchmark key missing
	// from the test document is looked up again below this prefix.
	GenericKey KeyChain
}

// IsZero reports whether m neither renames keys nor sets an envelope.
func (m ColumnMapping) IsZero() bool {
	return len(m.Map) == 0 && len(m.GenericKey) == 0
}

// ToTest maps a benchmark chain onto the test document. The first component
// is always translated; later components, and all components when nested is
// true, only when InnerKeyValidity is set. Unmapped keys map to themselves.
func (m ColumnMapping) ToTest(chain KeyChain, nested bool) KeyChain {
	out := make(KeyChain, 0, len(chain))
	for i, key := range chain {
		if (i > 0 || nested) && !m.InnerKeyValidity {
			out = append(out, key)
			continue
		}
		out = append(out, m.key(key)...)
	}
	return out
}

func (m ColumnMapping) key(k string) KeyChain {
	if mapped, ok := m.Map[k]; ok {
		return mapped
	}
	return KeyChain{k}
}

// ToBench maps a test chain back to the benchmark key whose mapping equals
// it. Without a match the chain maps to itself.
func (m ColumnMapping) ToBench(chain KeyChain) KeyChain {
	keys := make([]string, 0, len(m.Map))
	for k := range m.Map {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if m.Map[k].Equal(chain) {
			return KeyChain{k}
		}
	}
	return slices.Clone(chain)
}

// Strip removes the envelope prefix from chain when it carries one.
func (m ColumnMapping) Strip(chain KeyChain, enveloped bool) KeyChain {
	if enveloped && chain.HasPrefix(m.GenericKey) {
		return slices.Clone(chain[len(m.GenericKey):])
	}
	return chain
}

// probe is a test document lookup made through the mapping.
type probe struct {
	mapped    KeyChain
	enveloped bool
	value     Lookup
}

// probe resolves the mapped chain of a benchmark key in test. Only top-level
// lookups fall back to the envelope.
func (m ColumnMapping) probe(test Map, mapped KeyChain, nested bool) probe {
	if v := test.Lookup(mapped); v.IsFound() || nested || len(m.GenericKey) == 0 {
		return probe{mapped: mapped, value: v}
	}
	enveloped := m.GenericKey.Join(mapped...)
	if v := test.Lookup(enveloped); v.IsFound() {
		return probe{mapped: enveloped, enveloped: true, value: v}
	}
	return probe{mapped: mapped, value: NotFound}
}
