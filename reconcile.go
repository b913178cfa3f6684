// SPDX-License-Identifier: Apache-2.0

package keyrecon

import (
	"fmt"
	"slices"
)

// Branch names the reconciliation rule that produced a change.
type Branch int

const (
	// BranchAdded copies a key the test document lacks from the benchmark.
	BranchAdded Branch = iota
	// BranchDeleted removes a nested key the benchmark no longer defines.
	BranchDeleted
	// BranchPruned removes a top-level key the benchmark no longer defines.
	// Pruning only happens without a column mapping.
	BranchPruned
	// BranchRestored restores a nested key missing from the test document.
	BranchRestored
	// BranchForced restores the benchmark value of a field that may not diverge.
	BranchForced
	// BranchTypeMismatch restores the benchmark value when the kinds differ.
	BranchTypeMismatch
	// BranchUnion combines the elements of both collections.
	BranchUnion
	// BranchUserKept keeps the test value of a changed field.
	BranchUserKept
	// BranchBenchmarkKept restores the benchmark value of an unchanged field.
	BranchBenchmarkKept
)

func (b Branch) String() string {
	switch b {
	case BranchAdded:
		return "added"
	case BranchDeleted:
		return "deleted"
	case BranchPruned:
		return "pruned"
	case BranchRestored:
		return "restored"
	case BranchForced:
		return "forced"
	case BranchTypeMismatch:
		return "type_mismatch"
	case BranchUnion:
		return "union"
	case BranchUserKept:
		return "user_kept"
	case BranchBenchmarkKept:
		return "benchmark_kept"
	default:
		return fmt.Sprintf("Branch(%d)", b)
	}
}

// Change is one line of the change log.
type Change struct {
	// Chain is the benchmark key chain.
	Chain KeyChain
	// Old is the value the test document held.
	Old Lookup
	// New is the value the test document holds after [Apply].
	New Lookup
	// Branch is the rule that decided New.
	Branch Branch
}

func (c Change) String() string {
	switch {
	case !c.Old.IsFound():
		return fmt.Sprintf("[+] %s = %s (%s)", c.Chain, c.New, c.Branch)
	case !c.New.IsFound():
		return fmt.Sprintf("[-] %s (was %s, %s)", c.Chain, c.Old, c.Branch)
	default:
		return fmt.Sprintf("[!] %s: %s ==> %s (%s)", c.Chain, c.Old, c.New, c.Branch)
	}
}

// Deletion removes Chain from the test document, or Fallback when Chain is
// already gone.
type Deletion struct {
	Chain    KeyChain
	Fallback KeyChain
}

// Result is the outcome of [Reconciler.Reconcile].
type Result struct {
	// Delta is merged into the test document by [Apply].
	Delta Map
	// Deletions are performed on the test document before the merge.
	Deletions []Deletion
	// Changes lists every decision in diff order.
	Changes []Change
	// Summary maps every added or resolved key, without the envelope
	// prefix, to its new value.
	Summary Map
}

// IsEmpty reports whether applying r leaves the test document unchanged.
func (r *Result) IsEmpty() bool {
	return len(r.Delta) == 0 && len(r.Deletions) == 0
}

// Reconcile decides, for every difference in diff, what the test document
// should hold. It does not modify benchmark or test; use [Apply] to carry out
// the result.
//
// Added keys take the benchmark value. Keys the benchmark no longer defines
// inside a mapping are deleted. For modified keys the benchmark value wins
// when the test side is missing, the field may not diverge, or the kinds
// differ. Collections whose elements are all mutually ordered are combined.
// Otherwise the test value is kept only for changed fields. Resolutions the
// test document already holds are recorded in Changes and Summary but left out
// of Delta.
func (r *Reconciler) Reconcile(diff *Diff, benchmark, test Map) (*Result, error) {
	if err := diff.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Delta: Map{}, Summary: Map{}}
	mapping := r.opts.ColumnMapping

	for _, e := range diff.Added {
		v, err := benchmark.Require(e.Chain)
		if err != nil {
			return nil, err
		}
		res.set(e.Mapped, mapping.Strip(e.Mapped, e.Enveloped), v)
		r.record(res, Change{Chain: e.Chain, Old: NotFound, New: Found(v), Branch: BranchAdded})
	}

	for _, m := range diff.Modified {
		bv, ok := m.Benchmark.Get()
		if !ok {
			res.Deletions = append(res.Deletions, Deletion{
				Chain:    m.Mapped,
				Fallback: m.Mapped.Parent().Join(m.Chain.Last()),
			})
			r.record(res, Change{Chain: m.Chain, Old: m.Test, New: NotFound, Branch: BranchDeleted})
			continue
		}
		stripped := mapping.Strip(m.Mapped, m.Enveloped)
		v, branch := r.resolve(m, stripped, bv)
		if cur, ok := test.Lookup(m.Mapped).Get(); ok && cur.Equal(v) {
			// already in place; summarised but not rewritten
			res.Summary.Set(stripped, v.Clone())
		} else {
			res.set(m.Mapped, stripped, v)
		}
		r.record(res, Change{Chain: m.Chain, Old: m.Test, New: Found(v), Branch: branch})
	}

	if mapping.IsZero() {
		for _, e := range diff.Removed {
			old, err := test.Require(e.Mapped)
			if err != nil {
				return nil, err
			}
			res.Deletions = append(res.Deletions, Deletion{Chain: e.Mapped, Fallback: e.Chain})
			r.record(res, Change{Chain: e.Chain, Old: Found(old), New: NotFound, Branch: BranchPruned})
		}
	}
	return res, nil
}

func (res *Result) set(mapped, summary KeyChain, v Value) {
	res.Delta.Set(mapped, v.Clone())
	res.Summary.Set(summary, v.Clone())
}

// resolve picks the value of a key present in the benchmark.
func (r *Reconciler) resolve(m Modification, stripped KeyChain, bv Value) (Value, Branch) {
	tv, found := m.Test.Get()
	switch {
	case !found:
		return bv, BranchRestored
	case r.mustModify(stripped):
		return bv, BranchForced
	case bv.Kind() != tv.Kind():
		return bv, BranchTypeMismatch
	case bv.IsCollection() && mutuallyOrdered(slices.Concat(bv.Items(), tv.Items())):
		return union(bv, tv), BranchUnion
	case r.changed(m.Chain) || r.changed(stripped):
		return tv, BranchUserKept
	default:
		return bv, BranchBenchmarkKept
	}
}

// mustModify reports whether the field at chain has to match the benchmark.
// Every field may diverge when no modification fields are configured.
func (r *Reconciler) mustModify(chain KeyChain) bool {
	fields := r.opts.ModificationFields
	if len(fields) == 0 {
		return false
	}
	for _, key := range chain {
		if slices.Contains(fields, key) {
			return false
		}
	}
	return true
}

func (r *Reconciler) changed(chain KeyChain) bool {
	return containsChain(r.opts.ChangedFields, chain)
}

// union returns the benchmark elements followed by the test elements not
// already present. The benchmark's collection kind is kept.
func union(bv, tv Value) Value {
	items := make([]Value, 0, len(bv.Items())+len(tv.Items()))
	for _, item := range bv.Items() {
		items = append(items, item.Clone())
	}
	for _, item := range tv.Items() {
		if !slices.ContainsFunc(items, item.Equal) {
			items = append(items, item.Clone())
		}
	}
	if bv.Kind() == KindSet {
		return Set(items...)
	}
	return List(items...)
}

func (r *Reconciler) record(res *Result, c Change) {
	res.Changes = append(res.Changes, c)
	fields := []Field{
		F(FieldDiffID, r.opts.DiffID),
		F(FieldKey, c.Chain.String()),
		F(FieldOld, c.Old.String()),
		F(FieldNew, c.New.String()),
		F(FieldBranch, c.Branch.String()),
	}
	switch c.Branch {
	case BranchAdded:
		r.log.Info("key added", fields...)
	case BranchDeleted, BranchPruned:
		r.log.Warn("key deleted", fields...)
	default:
		r.log.Info("value reconciled", fields...)
	}
}

// Apply carries out r on test: deletions first, then the delta is merged with
// [MergeInto]. Deleting a key that is already gone is a no-op. test must not
// be nil.
func Apply(test Map, r *Result) {
	for _, d := range r.Deletions {
		if !test.Delete(d.Chain) {
			test.Delete(d.Fallback)
		}
	}
	MergeInto(test, r.Delta)
}
