// SPDX-License-Identifier: Apache-2.0

package keyrecon

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FixFunc normalizes a value before comparison, for example by case folding.
// It must not mutate its argument.
type FixFunc func(Value) (Value, error)

// applyFixes runs funcs over v in order. The first failure, returned error or
// panic, stops the chain; the value produced so far is returned together with
// a [*TransformError].
func applyFixes(key string, v Value, funcs []FixFunc) (out Value, err error) {
	out = v
	for i, fn := range funcs {
		next, ferr := callFix(fn, out)
		if ferr != nil {
			return out, &TransformError{Key: key, Index: i, Err: ferr}
		}
		out = next
	}
	return out, nil
}

func callFix(fn FixFunc, v Value) (out Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(v)
}

// stringFix lifts a string transform into a [FixFunc]. Nulls pass through;
// other kinds are rejected.
func stringFix(fn func(string) string) FixFunc {
	return func(v Value) (Value, error) {
		if v.IsNull() {
			return v, nil
		}
		s, ok := v.AsString()
		if !ok {
			return v, fmt.Errorf("expected string, got %s", v.Kind())
		}
		return String(fn(s)), nil
	}
}

// Upper converts strings to upper case.
func Upper() FixFunc {
	return stringFix(func(s string) string { return cases.Upper(language.Und).String(s) })
}

// Lower converts strings to lower case.
func Lower() FixFunc {
	return stringFix(func(s string) string { return cases.Lower(language.Und).String(s) })
}

// Title converts strings to title case.
func Title() FixFunc {
	return stringFix(func(s string) string { return cases.Title(language.Und).String(s) })
}

// Trim removes leading and trailing white space from strings.
func Trim() FixFunc {
	return stringFix(strings.TrimSpace)
}

var builtinFixes = map[string]func() FixFunc{
	"upper": Upper,
	"lower": Lower,
	"title": Title,
	"trim":  Trim,
}

// FixFuncNames lists the names accepted by [FixFuncByName].
func FixFuncNames() []string {
	names := make([]string, 0, len(builtinFixes))
	for name := range builtinFixes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FixFuncByName returns the built-in fix function called name.
func FixFuncByName(name string) (FixFunc, bool) {
	mk, ok := builtinFixes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return mk(), true
}

// FixFuncsByName resolves a list of built-in names in order.
func FixFuncsByName(names ...string) ([]FixFunc, error) {
	funcs := make([]FixFunc, 0, len(names))
	for _, name := range names {
		fn, ok := FixFuncByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown fix function %q (want one of %s)",
				ErrInvalidOptions, name, strings.Join(FixFuncNames(), ", "))
		}
		funcs = append(funcs, fn)
	}
	return funcs, nil
}
