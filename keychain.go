// SPDX-License-Identifier: Apache-2.0

package keyrecon

import (
	"slices"
	"strings"
)

// KeyChain is a path of keys into a nested document. A bare key is a chain
// of length one.
type KeyChain []string

// ParseKeyChain splits a dotted path such as "alarm.severity".
// An empty string yields a nil chain.
func ParseKeyChain(s string) KeyChain {
	if s == "" {
		return nil
	}
	return KeyChain(strings.Split(s, "."))
}

func (c KeyChain) String() string {
	return strings.Join(c, ".")
}

// Equal reports whether c and o name the same path.
func (c KeyChain) Equal(o KeyChain) bool {
	return slices.Equal(c, o)
}

// HasPrefix reports whether c starts with every component of p.
func (c KeyChain) HasPrefix(p KeyChain) bool {
	return len(c) >= len(p) && slices.Equal(c[:len(p)], p)
}

// Join returns a new chain holding c followed by rest.
func (c KeyChain) Join(rest ...string) KeyChain {
	out := make(KeyChain, 0, len(c)+len(rest))
	out = append(out, c...)
	return append(out, rest...)
}

// Parent returns c without its last component.
func (c KeyChain) Parent() KeyChain {
	if len(c) == 0 {
		return nil
	}
	return slices.Clone(c[:len(c)-1])
}

// Last returns the final component of c, or "" for an empty chain.
func (c KeyChain) Last() string {
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

// Compare orders chains component-wise, shorter prefixes first.
func (c KeyChain) Compare(o KeyChain) int {
	return slices.Compare(c, o)
}

// containsChain reports whether chain is one of chains.
func containsChain(chains []KeyChain, chain KeyChain) bool {
	return slices.ContainsFunc(chains, chain.Equal)
}

// Lookup is the result of resolving a key chain: either a found value or
// [NotFound]. A found null is distinct from an absent key.
type Lookup struct {
	value Value
	found bool
}

// NotFound is the absent lookup result.
var NotFound = Lookup{}

// Found wraps a present value.
func Found(v Value) Lookup {
	return Lookup{value: v, found: true}
}

// Get returns the found value.
func (l Lookup) Get() (Value, bool) {
	return l.value, l.found
}

// IsFound reports whether the lookup resolved to a value.
func (l Lookup) IsFound() bool {
	return l.found
}

// Value returns the found value, or null when absent.
func (l Lookup) Value() Value {
	return l.value
}

// Equal reports whether both lookups are absent, or both found with equal values.
func (l Lookup) Equal(o Lookup) bool {
	if l.found != o.found {
		return false
	}
	return !l.found || l.value.Equal(o.value)
}

func (l Lookup) String() string {
	if !l.found {
		return "<not found>"
	}
	return l.value.String()
}

// Interface returns the plain Go form of the found value, or nil.
func (l Lookup) Interface() any {
	if !l.found {
		return nil
	}
	return l.value.Interface()
}

// Lookup resolves chain inside m. An empty chain resolves to m itself.
func (m Map) Lookup(chain KeyChain) Lookup {
	v, depth := m.resolve(chain)
	if depth < len(chain) {
		return NotFound
	}
	return Found(v)
}

// Require resolves chain inside m and fails with a [*LookupError] when it
// cannot be resolved.
func (m Map) Require(chain KeyChain) (Value, error) {
	v, depth := m.resolve(chain)
	if depth < len(chain) {
		return Value{}, &LookupError{Chain: slices.Clone(chain), Depth: depth}
	}
	return v, nil
}

// resolve walks chain and returns the last value reached and how many
// components were consumed.
func (m Map) resolve(chain KeyChain) (Value, int) {
	cur := MapOf(m)
	for i, key := range chain {
		sub, ok := cur.AsMap()
		if !ok {
			return Value{}, i
		}
		next, ok := sub[key]
		if !ok {
			return Value{}, i
		}
		cur = next
	}
	return cur, len(chain)
}

// Set stores v at chain, creating intermediate maps as needed. Intermediate
// values that are not maps are replaced. Setting an empty chain is a no-op.
func (m Map) Set(chain KeyChain, v Value) {
	if len(chain) == 0 {
		return
	}
	cur := m
	for _, key := range chain[:len(chain)-1] {
		next, ok := cur[key].AsMap()
		if !ok {
			next = Map{}
			cur[key] = MapOf(next)
		}
		cur = next
	}
	cur[chain.Last()] = v
}

// Delete removes the value at chain. It reports whether anything was removed;
// deleting an absent chain is a no-op.
func (m Map) Delete(chain KeyChain) bool {
	if len(chain) == 0 {
		return false
	}
	parent, depth := m.resolve(chain.Parent())
	if depth < len(chain)-1 {
		return false
	}
	pm, ok := parent.AsMap()
	if !ok {
		return false
	}
	if _, ok := pm[chain.Last()]; !ok {
		return false
	}
	delete(pm, chain.Last())
	return true
}

// Nest builds the nested map holding v at chain: (a, b, c) and v become
// {a: {b: {c: v}}}. An empty chain yields an empty map.
func Nest(chain KeyChain, v Value) Map {
	out := Map{}
	out.Set(chain, v)
	return out
}
