package report

import (
	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"
)

// Insights are headline figures for a range of the actual book measured
// against the budget.
type Insights struct {
	Range core.Range
	// LargestExpense is nil when the range holds no valid expense. Ties go
	// to the earliest entry.
	LargestExpense *core.LedgerEntry
	TotalIncome    decimal.Decimal
	BudgetedIncome decimal.Decimal
	// Deviation is TotalIncome minus BudgetedIncome.
	Deviation decimal.Decimal
	Skipped   []core.Diagnostic
}

// BuildInsights scans the actual and budget entries that fall in r. Rows
// that cannot be aggregated are skipped; diagnostics refer to positions in
// actual.
func BuildInsights(actual, budget []core.LedgerEntry, r core.Range) (Insights, error) {
	if err := r.Validate(); err != nil {
		return Insights{}, err
	}
	out := Insights{Range: r, TotalIncome: decimal.Zero, BudgetedIncome: decimal.Zero}

	kept, skipped := filterPositions(actual, r)
	var largest decimal.Decimal
	for _, pos := range kept {
		e := actual[pos]
		amount, reason, ok := classify(e)
		if !ok {
			skipped = append(skipped, core.Diagnostic{Row: pos, EntryID: e.ID, Reason: reason, Detail: skipDetail(e, reason)})
			continue
		}
		switch e.Kind {
		case core.Income:
			out.TotalIncome = out.TotalIncome.Add(amount)
		case core.Expense:
			if out.LargestExpense == nil || amount.GreaterThan(largest) {
				out.LargestExpense = &e
				largest = amount
			}
		}
	}
	sortDiagnostics(skipped)
	out.Skipped = skipped

	budgetKept, _ := filterPositions(budget, r)
	for _, pos := range budgetKept {
		e := budget[pos]
		amount, _, ok := classify(e)
		if ok && e.Kind == core.Income {
			out.BudgetedIncome = out.BudgetedIncome.Add(amount)
		}
	}
	out.Deviation = out.TotalIncome.Sub(out.BudgetedIncome)
	return out, nil
}
