// SPDX-License-Identifier: Apache-2.0

// Package keyrecon reconciles a benchmark document with a test document.
//
// The benchmark is the canonical template; the test is a persisted copy that
// users may have modified. [Reconciler.Compare] computes a structural diff
// under a key renaming scheme, [Reconciler.Reconcile] decides per difference
// whether the benchmark or the user value wins, and [Apply] deep-merges the
// outcome into the test document. [Update] runs all three.
//
// Documents are [Map] values. Use [FromAny] and [Value.Interface] to convert
// from and to the map[string]any trees produced by YAML, JSON and TOML
// unmarshalers.
package keyrecon

import (
	"fmt"
	"maps"
	"slices"
)

// Options configures comparison and reconciliation.
//
// The zero value is valid: collections compare without regard to order, no
// keys are renamed or ignored, and every field may diverge from the benchmark
// but only changed fields keep their user value.
type Options struct {
	// StrictOrder makes collection comparison sensitive to element order and
	// duplicates.
	StrictOrder bool

	// IgnoreKeys are top-level keys skipped on both sides.
	// Keys starting with "_" are always skipped, at every level.
	IgnoreKeys []string

	// ColumnMapping renames benchmark keys into the test document.
	ColumnMapping ColumnMapping

	// FixFuncs normalize values before comparison. Benchmark values are
	// looked up by benchmark key, test values by the last component of the
	// mapped key chain.
	FixFuncs map[string][]FixFunc

	// ModificationFields are key names allowed to diverge from the benchmark.
	// When set, a modified key chain touching none of them is restored.
	ModificationFields []string

	// ChangedFields are key chains the user is known to have changed. Their
	// test values are kept when no other rule applies. Chains may be given
	// on the benchmark side or as mapped test chains without the envelope.
	ChangedFields []KeyChain

	// DiffID correlates log events of one reconciliation.
	DiffID string

	// Logger receives change events. Nil discards them.
	Logger Logger
}

// Reconciler compares and reconciles documents with fixed options.
//
// A Reconciler holds no per-call state and can be reused. It never mutates
// its inputs except through [Apply] and [Reconciler.Update].
type Reconciler struct {
	opts Options
	log  Logger
}

// NewReconciler creates a [Reconciler]. The options are copied, so later
// changes by the caller have no effect. Returns an error wrapping
// [ErrInvalidOptions] if the options are malformed.
func NewReconciler(opts Options) (*Reconciler, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	opts = cloneOptions(opts)
	log := opts.Logger
	if log == nil {
		log = NopLogger()
	}
	return &Reconciler{opts: opts, log: log}, nil
}

func validateOptions(opts Options) error {
	for _, key := range opts.IgnoreKeys {
		if key == "" {
			return fmt.Errorf("%w: empty string in IgnoreKeys", ErrInvalidOptions)
		}
	}
	for _, key := range opts.ModificationFields {
		if key == "" {
			return fmt.Errorf("%w: empty string in ModificationFields", ErrInvalidOptions)
		}
	}
	for key, chain := range opts.ColumnMapping.Map {
		if key == "" {
			return fmt.Errorf("%w: empty key in ColumnMapping", ErrInvalidOptions)
		}
		if err := validateChain(chain); err != nil {
			return fmt.Errorf("%w: ColumnMapping[%q]: %v", ErrInvalidOptions, key, err)
		}
	}
	if len(opts.ColumnMapping.GenericKey) > 0 {
		if err := validateChain(opts.ColumnMapping.GenericKey); err != nil {
			return fmt.Errorf("%w: GenericKey: %v", ErrInvalidOptions, err)
		}
	}
	for key, funcs := range opts.FixFuncs {
		for _, fn := range funcs {
			if fn == nil {
				return fmt.Errorf("%w: nil fix function for key %q", ErrInvalidOptions, key)
			}
		}
	}
	for i, chain := range opts.ChangedFields {
		if err := validateChain(chain); err != nil {
			return fmt.Errorf("%w: ChangedFields[%d]: %v", ErrInvalidOptions, i, err)
		}
	}
	return nil
}

func validateChain(chain KeyChain) error {
	if len(chain) == 0 {
		return fmt.Errorf("empty key chain")
	}
	if slices.Contains(chain, "") {
		return fmt.Errorf("empty component in key chain %q", chain.String())
	}
	return nil
}

func cloneOptions(opts Options) Options {
	opts.IgnoreKeys = slices.Clone(opts.IgnoreKeys)
	opts.ModificationFields = slices.Clone(opts.ModificationFields)
	opts.ChangedFields = cloneChains(opts.ChangedFields)
	opts.ColumnMapping.GenericKey = slices.Clone(opts.ColumnMapping.GenericKey)
	if opts.ColumnMapping.Map != nil {
		m := make(map[string]KeyChain, len(opts.ColumnMapping.Map))
		for k, chain := range opts.ColumnMapping.Map {
			m[k] = slices.Clone(chain)
		}
		opts.ColumnMapping.Map = m
	}
	if opts.FixFuncs != nil {
		fixes := maps.Clone(opts.FixFuncs)
		for k, funcs := range fixes {
			fixes[k] = slices.Clone(funcs)
		}
		opts.FixFuncs = fixes
	}
	return opts
}

func cloneChains(chains []KeyChain) []KeyChain {
	if chains == nil {
		return nil
	}
	out := make([]KeyChain, len(chains))
	for i, chain := range chains {
		out[i] = slices.Clone(chain)
	}
	return out
}

// Options returns a copy of the options configured for this [Reconciler].
func (r *Reconciler) Options() Options {
	return cloneOptions(r.opts)
}

// Compare computes the diff between benchmark and test. See [Reconciler.Compare].
func Compare(opts Options, benchmark, test Map) (*Diff, error) {
	r, err := NewReconciler(opts)
	if err != nil {
		return nil, err
	}
	return r.Compare(benchmark, test)
}

// Update reconciles test with benchmark in place. See [Reconciler.Update].
func Update(opts Options, benchmark, test Map) (Map, error) {
	r, err := NewReconciler(opts)
	if err != nil {
		return nil, err
	}
	return r.Update(benchmark, test)
}

// UpdateMarshal reconciles byte documents. See [Reconciler.UpdateMarshal].
func UpdateMarshal(
	opts Options,
	unmarshal func([]byte, any) error,
	marshal func(any) ([]byte, error),
	benchmark, test []byte,
) ([]byte, Map, error) {
	r, err := NewReconciler(opts)
	if err != nil {
		return nil, nil, err
	}
	return r.UpdateMarshal(unmarshal, marshal, benchmark, test)
}

// Update compares, reconciles and applies in one step, mutating test. It
// returns the change summary: every added or resolved key mapped to its new
// value. On error test is left untouched.
//
// Example:
//
//	benchmark := keyrecon.Map{"A": keyrecon.Int(1)}
//	test := keyrecon.Map{"B": keyrecon.Int(2)}
//	summary, _ := keyrecon.Update(keyrecon.Options{}, benchmark, test)
//	// summary and test are now both {"A": 1}
func (r *Reconciler) Update(benchmark, test Map) (Map, error) {
	res, err := r.Result(benchmark, test)
	if err != nil {
		return nil, err
	}
	Apply(test, res)
	return res.Summary, nil
}

// Result compares and reconciles without applying. Both documents must be
// non-nil; an empty [Map] stands for an empty document.
func (r *Reconciler) Result(benchmark, test Map) (*Result, error) {
	if benchmark == nil {
		return nil, fmt.Errorf("benchmark: %w", ErrNilDocument)
	}
	if test == nil {
		return nil, fmt.Errorf("test: %w", ErrNilDocument)
	}
	diff, err := r.Compare(benchmark, test)
	if err != nil {
		return nil, err
	}
	return r.Reconcile(diff, benchmark, test)
}

// UpdateMarshal decodes both documents with unmarshal, reconciles the test
// document and encodes it again with marshal. It returns the encoded test
// document and the change summary.
//
// Example:
//
//	import "github.com/goccy/go-yaml"
//
//	out, summary, err := r.UpdateMarshal(yaml.Unmarshal, yaml.Marshal, benchmark, test)
func (r *Reconciler) UpdateMarshal(
	unmarshal func([]byte, any) error,
	marshal func(any) ([]byte, error),
	benchmark, test []byte,
) ([]byte, Map, error) {
	bench, err := decode(unmarshal, benchmark, "benchmark")
	if err != nil {
		return nil, nil, err
	}
	doc, err := decode(unmarshal, test, "test")
	if err != nil {
		return nil, nil, err
	}
	summary, err := r.Update(bench, doc)
	if err != nil {
		return nil, nil, err
	}
	out, err := marshal(doc.Interface())
	if err != nil {
		return nil, nil, &MarshalError{Err: err, Document: "result"}
	}
	return out, summary, nil
}

func decode(unmarshal func([]byte, any) error, data []byte, name string) (Map, error) {
	var raw any
	if err := unmarshal(data, &raw); err != nil {
		return nil, &MarshalError{Err: err, Document: name}
	}
	if raw == nil {
		return Map{}, nil
	}
	m, err := MapFromAny(raw)
	if err != nil {
		return nil, &MarshalError{Err: err, Document: name}
	}
	return m, nil
}

// MergeInto deep-merges source into target. Mapping values merge into the
// matching sub-map of target, which is created when absent or not a map.
// Other values overwrite with a copy. source is never modified, and merging
// the same source twice has the same effect as merging it once.
func MergeInto(target, source Map) {
	for k, v := range source {
		sub, ok := v.AsMap()
		if !ok {
			target[k] = v.Clone()
			continue
		}
		dst, ok := target[k].AsMap()
		if !ok {
			dst = Map{}
			target[k] = MapOf(dst)
		}
		MergeInto(dst, sub)
	}
}

// ChangedFieldsFrom reads a changed-fields ledger stored in the test document
// at ledger. Items may be key chains (lists of strings) or bare keys; anything
// else is skipped. A missing ledger yields nil.
func ChangedFieldsFrom(test Map, ledger KeyChain) []KeyChain {
	v, ok := test.Lookup(ledger).Get()
	if !ok || !v.IsCollection() {
		return nil
	}
	var out []KeyChain
	for _, item := range v.Items() {
		if s, ok := item.AsString(); ok {
			if s != "" {
				out = append(out, KeyChain{s})
			}
			continue
		}
		if !item.IsCollection() || len(item.Items()) == 0 {
			continue
		}
		chain := make(KeyChain, 0, len(item.Items()))
		for _, part := range item.Items() {
			s, ok := part.AsString()
			if !ok || s == "" {
				chain = nil
				break
			}
			chain = append(chain, s)
		}
		if chain != nil {
			out = append(out, chain)
		}
	}
	return out
}
