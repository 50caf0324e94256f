// Package report turns flat ledger entries into period and category totals.
//
// Every function in this package is pure: inputs are never mutated and each
// call allocates fresh output, so callers may share input slices across
// goroutines.
package report

import (
	"ledgerdash/internal/core"
)

// Filter keeps the entries whose calendar day falls inside r, inclusive on
// both ends, preserving input order. Entries without a valid date are
// dropped and reported. An unbounded range returns a copy of the input.
func Filter(entries []core.LedgerEntry, r core.Range) ([]core.LedgerEntry, []core.Diagnostic) {
	kept, skipped := filterPositions(entries, r)
	out := make([]core.LedgerEntry, len(kept))
	for i, pos := range kept {
		out[i] = entries[pos]
	}
	return out, skipped
}

// filterPositions returns the input positions that pass r.
func filterPositions(entries []core.LedgerEntry, r core.Range) ([]int, []core.Diagnostic) {
	kept := make([]int, 0, len(entries))
	if r.Unbounded() {
		for i := range entries {
			kept = append(kept, i)
		}
		return kept, nil
	}
	var skipped []core.Diagnostic
	for i, e := range entries {
		if !e.Date.Valid() {
			skipped = append(skipped, core.Diagnostic{
				Row:     i,
				EntryID: e.ID,
				Reason:  core.SkipInvalidDate,
			})
			continue
		}
		if r.Contains(e.Date) {
			kept = append(kept, i)
		}
	}
	return kept, skipped
}
