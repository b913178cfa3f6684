// SPDX-License-Identifier: Apache-2.0

package keyrecon

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant held by a [Value].
type Kind uint8

const (
	// KindNull is an explicit null. It is distinct from an absent key, see [Lookup].
	KindNull Kind = iota
	// KindBool is a boolean.
	KindBool
	// KindNumber is an integer or floating point number.
	KindNumber
	// KindString is a string.
	KindString
	// KindList is an ordered sequence.
	KindList
	// KindSet is an unordered collection without duplicates.
	KindSet
	// KindMap is a mapping from string keys to values.
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Map is a document mapping. Key order is irrelevant for comparison.
type Map map[string]Value

// Value is a document value: null, bool, number, string, list, set or map.
//
// The zero Value is null. Values holding a map share the underlying [Map],
// so mutating the map through one copy is visible through the others;
// use [Value.Clone] for an independent copy.
type Value struct {
	kind  Kind
	b     bool
	isInt bool
	i     int64
	f     float64
	s     string
	items []Value
	m     Map
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer number.
func Int(i int64) Value { return Value{kind: KindNumber, isInt: true, i: i} }

// Float returns a floating point number.
func Float(f float64) Value { return Value{kind: KindNumber, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns an ordered list of items.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, items: items}
}

// Set returns an unordered collection of items. Duplicates are dropped,
// keeping the first occurrence.
func Set(items ...Value) Value {
	return Value{kind: KindSet, items: dedupe(items)}
}

// MapOf wraps a mapping. A nil map is replaced by an empty one.
func MapOf(m Map) Value {
	if m == nil {
		m = Map{}
	}
	return Value{kind: KindMap, m: m}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsCollection reports whether v is a list or a set.
func (v Value) IsCollection() bool { return v.kind == KindList || v.kind == KindSet }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsInt returns the integer held by v. Floats without a fractional part convert.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.isInt {
		return v.i, true
	}
	if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
		return int64(v.f), true
	}
	return 0, false
}

// AsFloat returns the number held by v as a float64.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.float(), true
}

// AsMap returns the mapping held by v.
func (v Value) AsMap() (Map, bool) { return v.m, v.kind == KindMap }

// Items returns the elements of a list or set, or nil for other kinds.
func (v Value) Items() []Value {
	if !v.IsCollection() {
		return nil
	}
	return v.items
}

func (v Value) float() float64 {
	if v.isInt {
		return float64(v.i)
	}
	return v.f
}

// Equal reports whether v and o are structurally equal. Lists compare in
// order, sets and maps without regard to order. Integers and floats compare
// exactly by value and NaN equals NaN. Values of different kinds are never
// equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return compareNumbers(v, o) == 0
	case KindString:
		return v.s == o.s
	case KindList:
		return slices.EqualFunc(v.items, o.items, Value.Equal)
	case KindSet:
		return sameElements(v.items, o.items)
	case KindMap:
		return v.m.Equal(o.m)
	}
	return false
}

// Equal reports whether m and o hold equal values under the same keys.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList, KindSet:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = item.Clone()
		}
		v.items = items
	case KindMap:
		v.m = v.m.Clone()
	}
	return v
}

// Clone returns a deep copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// Keys returns the keys of m in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// String renders v for change logs: strings quoted, collections bracketed,
// maps with sorted keys.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if v.isInt {
			sb.WriteString(strconv.FormatInt(v.i, 10))
		} else {
			sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
		}
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindList, KindSet:
		open, closing := "[", "]"
		if v.kind == KindSet {
			open, closing = "{", "}"
		}
		sb.WriteString(open)
		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.write(sb)
		}
		sb.WriteString(closing)
	case KindMap:
		sb.WriteString("{")
		for i, k := range v.m.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			v.m[k].write(sb)
		}
		sb.WriteString("}")
	}
}

// Interface converts v back to plain Go values: nil, bool, int64, float64,
// string, []any (lists and sets) and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.isInt {
			return v.i
		}
		return v.f
	case KindString:
		return v.s
	case KindList, KindSet:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		return v.m.Interface()
	default:
		return nil
	}
}

// Interface converts m to a map[string]any tree.
func (m Map) Interface() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}

// MarshalJSON encodes v through [Value.Interface].
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// FromAny converts a decoded document tree (as produced by YAML, JSON or TOML
// unmarshalers) into a [Value].
func FromAny(x any) (Value, error) {
	return fromAny(x, nil)
}

// MapFromAny converts a decoded document whose root must be a mapping.
func MapFromAny(x any) (Map, error) {
	v, err := FromAny(x)
	if err != nil {
		return nil, err
	}
	m, ok := v.AsMap()
	if !ok {
		return nil, fmt.Errorf("%w: root is %s", ErrNotMapping, v.Kind())
	}
	return m, nil
}

func fromAny(x any, path []string) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case Map:
		return MapOf(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return fromUint(uint64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return fromUint(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, &UnsupportedTypeError{Value: x, Path: slices.Clone(path)}
		}
		return Float(f), nil
	case string:
		return String(t), nil
	case time.Time:
		return String(t.Format(time.RFC3339Nano)), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return List(items...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := fromAny(item, append(path, strconv.Itoa(i)))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	case []map[string]any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := fromAny(item, append(path, strconv.Itoa(i)))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]string:
		m := make(Map, len(t))
		for k, s := range t {
			m[k] = String(s)
		}
		return MapOf(m), nil
	case map[string]any:
		m := make(Map, len(t))
		for k, item := range t {
			v, err := fromAny(item, append(path, k))
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return MapOf(m), nil
	case map[any]any:
		m := make(Map, len(t))
		for k, item := range t {
			key := fmt.Sprint(k)
			v, err := fromAny(item, append(path, key))
			if err != nil {
				return Value{}, err
			}
			m[key] = v
		}
		return MapOf(m), nil
	default:
		return Value{}, &UnsupportedTypeError{Value: x, Path: slices.Clone(path)}
	}
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}

// compareOrdered orders two scalars of the same orderable kind. ok is false
// when the values are not mutually ordered (different kinds, or a kind
// without an order such as maps).
func compareOrdered(a, b Value) (cmp int, ok bool) {
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindBool:
		switch {
		case a.b == b.b:
			return 0, true
		case !a.b:
			return -1, true
		default:
			return 1, true
		}
	case KindNumber:
		return compareNumbers(a, b), true
	case KindString:
		return strings.Compare(a.s, b.s), true
	default:
		return 0, false
	}
}

// compareNumbers orders numbers without rounding integers through float64.
// NaN sorts before every other number and equals itself.
func compareNumbers(a, b Value) int {
	switch {
	case a.isInt && b.isInt:
		return cmp.Compare(a.i, b.i)
	case a.isInt:
		return -compareFloatInt(b.f, a.i)
	case b.isInt:
		return compareFloatInt(a.f, b.i)
	default:
		return cmp.Compare(a.f, b.f)
	}
}

func compareFloatInt(f float64, i int64) int {
	switch {
	case math.IsNaN(f), f < math.MinInt64:
		return -1
	case f >= math.MaxInt64:
		return 1
	}
	t := math.Trunc(f)
	if c := cmp.Compare(int64(t), i); c != 0 {
		return c
	}
	return cmp.Compare(f, t)
}

// mutuallyOrdered reports whether every item can be ordered against every other.
func mutuallyOrdered(items []Value) bool {
	if len(items) == 0 {
		return true
	}
	first := items[0]
	if _, ok := compareOrdered(first, first); !ok {
		return false
	}
	for _, item := range items[1:] {
		if item.kind != first.kind {
			return false
		}
	}
	return true
}

// dedupe drops repeated items, keeping first occurrences in order.
func dedupe(items []Value) []Value {
	out := make([]Value, 0, len(items))
	for _, item := range items {
		if !slices.ContainsFunc(out, item.Equal) {
			out = append(out, item)
		}
	}
	return out
}

// canonical returns the deduplicated items, sorted when they are mutually
// ordered. sorted reports whether sorting happened.
func canonical(items []Value) (out []Value, sorted bool) {
	out = dedupe(items)
	if !mutuallyOrdered(out) {
		return out, false
	}
	slices.SortFunc(out, func(a, b Value) int {
		c, _ := compareOrdered(a, b)
		return c
	})
	return out, true
}

// sameElements reports whether a and b hold the same items ignoring order
// and duplicates.
func sameElements(a, b []Value) bool {
	ca, sortedA := canonical(a)
	cb, sortedB := canonical(b)
	if sortedA && sortedB {
		return slices.EqualFunc(ca, cb, Value.Equal)
	}
	if len(ca) != len(cb) {
		return false
	}
	for _, item := range ca {
		if !slices.ContainsFunc(cb, item.Equal) {
			return false
		}
	}
	return true
}
