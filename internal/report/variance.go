package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"
)

var hundred = decimal.NewFromInt(100)

// VarianceRow compares actual and budgeted amounts for one category in one
// period. DifferencePct is only meaningful when HasPct is true.
type VarianceRow struct {
	Kind          core.Kind
	Year          int
	Month         int
	Category      string
	Actual        decimal.Decimal
	Budget        decimal.Decimal
	Difference    decimal.Decimal
	DifferencePct decimal.Decimal
	HasPct        bool
	Flagged       bool
}

// CompareBudget joins actual and budget buckets on (kind, year, month,
// category). A row is flagged when the absolute percentage difference
// reaches thresholdPct, or when there is actual spend against a zero budget.
func CompareBudget(actual, budget []core.PeriodBucket, thresholdPct decimal.Decimal) ([]VarianceRow, error) {
	if thresholdPct.IsNegative() {
		return nil, fmt.Errorf("%w: negative threshold %s", core.ErrInvalidArgument, thresholdPct)
	}

	type cell struct {
		actual decimal.Decimal
		budget decimal.Decimal
	}
	type periodCells struct {
		order []string
		cells map[string]*cell
	}
	periods := make(map[bucketKey]*periodCells)
	add := func(b core.PeriodBucket, isBudget bool) {
		k := bucketKey{kind: b.Kind, year: b.Year, month: b.Month}
		pc, ok := periods[k]
		if !ok {
			pc = &periodCells{cells: make(map[string]*cell)}
			periods[k] = pc
		}
		for _, c := range b.Categories {
			cl, ok := pc.cells[c.Name]
			if !ok {
				cl = &cell{}
				pc.cells[c.Name] = cl
				pc.order = append(pc.order, c.Name)
			}
			if isBudget {
				cl.budget = cl.budget.Add(c.Total)
			} else {
				cl.actual = cl.actual.Add(c.Total)
			}
		}
	}
	for _, b := range actual {
		add(b, false)
	}
	for _, b := range budget {
		add(b, true)
	}

	rank, _ := kindRank(nil)
	keys := make([]bucketKey, 0, len(periods))
	for k := range periods {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		ra, aok := rank[a.kind]
		rb, bok := rank[b.kind]
		if aok != bok {
			return aok
		}
		if ra != rb {
			return ra < rb
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.month < b.month
	})

	var rows []VarianceRow
	for _, k := range keys {
		pc := periods[k]
		for _, name := range pc.order {
			cl := pc.cells[name]
			row := VarianceRow{
				Kind:       k.kind,
				Year:       k.year,
				Month:      k.month,
				Category:   name,
				Actual:     cl.actual,
				Budget:     cl.budget,
				Difference: cl.actual.Sub(cl.budget),
			}
			if !cl.budget.IsZero() {
				row.DifferencePct = row.Difference.Div(cl.budget.Abs()).Mul(hundred).Round(2)
				row.HasPct = true
				row.Flagged = row.DifferencePct.Abs().GreaterThanOrEqual(thresholdPct)
			} else {
				row.Flagged = !cl.actual.IsZero()
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}
