// SPDX-License-Identifier: Apache-2.0

package keyrecon

import (
	"slices"
	"strings"
)

// privatePrefix marks keys that are never compared.
const privatePrefix = "_"

// Entry is an added or removed key.
type Entry struct {
	// Chain is the benchmark-side key chain.
	Chain KeyChain
	// Mapped is the key chain in the test document.
	Mapped KeyChain
	// Enveloped is set when Mapped was found below the envelope prefix.
	Enveloped bool
	// Value is the benchmark value for added keys, the test value for removed ones.
	Value Value
}

// Modification is a key present on both sides with differing values. Either
// side may be [NotFound] when a key was added or removed inside a nested
// mapping.
type Modification struct {
	Chain     KeyChain
	Mapped    KeyChain
	Enveloped bool
	Benchmark Lookup
	Test      Lookup
}

// Diff is the structural difference between a benchmark and a test document.
// Each bucket is sorted by benchmark key chain.
type Diff struct {
	Added    []Entry
	Removed  []Entry
	Modified []Modification
}

// IsEmpty reports whether the documents compared equal.
func (d *Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// Validate checks that no key chain appears in more than one bucket.
func (d *Diff) Validate() error {
	seen := make(map[string]string)
	check := func(chain KeyChain, bucket string) error {
		key := strings.Join(chain, "\x00")
		if prev, ok := seen[key]; ok {
			return &OverlapError{Chain: slices.Clone(chain), Buckets: []string{prev, bucket}}
		}
		seen[key] = bucket
		return nil
	}
	for _, e := range d.Added {
		if err := check(e.Chain, "added"); err != nil {
			return err
		}
	}
	for _, e := range d.Removed {
		if err := check(e.Chain, "removed"); err != nil {
			return err
		}
	}
	for _, m := range d.Modified {
		if err := check(m.Chain, "modified"); err != nil {
			return err
		}
	}
	return nil
}

func (d *Diff) sort() {
	slices.SortFunc(d.Added, func(a, b Entry) int { return a.Chain.Compare(b.Chain) })
	slices.SortFunc(d.Removed, func(a, b Entry) int { return a.Chain.Compare(b.Chain) })
	slices.SortFunc(d.Modified, func(a, b Modification) int { return a.Chain.Compare(b.Chain) })
}

// Compare computes the diff between benchmark and test. Neither document is
// modified.
//
// Top-level benchmark keys are renamed through the column mapping and, when
// missing, looked up again below the envelope prefix. Keys listed in
// IgnoreKeys and keys starting with "_" are skipped. Shared keys are
// normalized with their fix functions before comparison; differing mappings
// are compared recursively and their added and removed keys surface as
// modifications against [NotFound].
func (r *Reconciler) Compare(benchmark, test Map) (*Diff, error) {
	d, err := r.compare(benchmark, test, false)
	if err != nil {
		return nil, err
	}
	d.sort()
	return d, nil
}

func (r *Reconciler) valid(key string, nested bool) bool {
	if strings.HasPrefix(key, privatePrefix) {
		return false
	}
	return nested || !slices.Contains(r.opts.IgnoreKeys, key)
}

func (r *Reconciler) compare(benchmark, test Map, nested bool) (*Diff, error) {
	mapping := r.opts.ColumnMapping
	d := &Diff{}
	covered := make(map[string]bool, len(benchmark))

	for _, key := range benchmark.Keys() {
		if !r.valid(key, nested) {
			continue
		}
		mapped := mapping.ToTest(KeyChain{key}, nested)
		if !r.valid(mapped[0], nested) {
			continue
		}
		p := mapping.probe(test, mapped, nested)
		covered[p.mapped[0]] = true

		testValue, found := p.value.Get()
		if !found {
			d.Added = append(d.Added, Entry{
				Chain:  KeyChain{key},
				Mapped: p.mapped,
				Value:  benchmark[key],
			})
			continue
		}

		bv := r.fix(key, benchmark[key])
		tv := r.fix(p.mapped.Last(), testValue)
		if r.equal(bv, tv) {
			continue
		}

		bm, bIsMap := bv.AsMap()
		tm, tIsMap := tv.AsMap()
		if !bIsMap || !tIsMap {
			d.Modified = append(d.Modified, Modification{
				Chain:     KeyChain{key},
				Mapped:    p.mapped,
				Enveloped: p.enveloped,
				Benchmark: Found(bv),
				Test:      Found(tv),
			})
			continue
		}

		sub, err := r.compare(bm, tm, true)
		if err != nil {
			return nil, err
		}
		d.fold(sub, KeyChain{key}, p)
	}

	for _, key := range test.Keys() {
		if !r.valid(key, nested) || covered[key] {
			continue
		}
		chain := KeyChain{key}
		if !nested || mapping.InnerKeyValidity {
			chain = mapping.ToBench(chain)
		}
		if benchmark.Lookup(chain).IsFound() {
			continue
		}
		v, err := test.Require(KeyChain{key})
		if err != nil {
			return nil, err
		}
		d.Removed = append(d.Removed, Entry{Chain: chain, Mapped: KeyChain{key}, Value: v})
	}
	return d, nil
}

// fold merges the diff of a nested mapping into d under prefix. Keys the
// benchmark no longer defines are not reported below renamed keys, whose
// test side may carry fields of its own.
func (d *Diff) fold(sub *Diff, prefix KeyChain, p probe) {
	renamed := !p.mapped.Equal(prefix)
	for _, m := range sub.Modified {
		if renamed && !m.Benchmark.IsFound() {
			continue
		}
		m.Chain = prefix.Join(m.Chain...)
		m.Mapped = p.mapped.Join(m.Mapped...)
		m.Enveloped = p.enveloped
		d.Modified = append(d.Modified, m)
	}
	for _, e := range sub.Added {
		d.Modified = append(d.Modified, Modification{
			Chain:     prefix.Join(e.Chain...),
			Mapped:    p.mapped.Join(e.Mapped...),
			Enveloped: p.enveloped,
			Benchmark: Found(e.Value),
			Test:      NotFound,
		})
	}
	if renamed {
		return
	}
	for _, e := range sub.Removed {
		d.Modified = append(d.Modified, Modification{
			Chain:     prefix.Join(e.Chain...),
			Mapped:    p.mapped.Join(e.Mapped...),
			Enveloped: p.enveloped,
			Benchmark: NotFound,
			Test:      Found(e.Value),
		})
	}
}

// fix applies the fix functions registered for key. Failures are logged and
// leave the partially fixed value.
func (r *Reconciler) fix(key string, v Value) Value {
	funcs := r.opts.FixFuncs[key]
	if len(funcs) == 0 {
		return v
	}
	out, err := applyFixes(key, v, funcs)
	if err != nil {
		r.log.Error("fix function failed",
			F(FieldDiffID, r.opts.DiffID),
			F(FieldKey, key),
			F(FieldError, err))
	}
	return out
}

// equal compares two values, ignoring element order and duplicates of
// collections unless StrictOrder is set.
func (r *Reconciler) equal(a, b Value) bool {
	if !r.opts.StrictOrder && a.IsCollection() && b.IsCollection() {
		return sameElements(a.Items(), b.Items())
	}
	return a.Equal(b)
}
