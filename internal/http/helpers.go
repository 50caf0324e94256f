package http

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"
	"ledgerdash/internal/report"
	"ledgerdash/internal/services"
)

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type rangeView struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
}

func newRangeView(r core.Range) rangeView {
	return rangeView{Start: r.Start, End: r.End}
}

type entryView struct {
	ID          string           `json:"id"`
	Date        core.Date        `json:"date"`
	Kind        core.Kind        `json:"kind"`
	Category    string           `json:"category"`
	Subcategory string           `json:"subcategory,omitempty"`
	Item        string           `json:"item,omitempty"`
	Description string           `json:"description,omitempty"`
	Account     string           `json:"account,omitempty"`
	Amount      *decimal.Decimal `json:"amount"`
	CreatedAt   time.Time        `json:"created_at"`
}

func newEntryViews(entries []core.LedgerEntry) []entryView {
	out := make([]entryView, len(entries))
	for i, e := range entries {
		v := entryView{
			ID:          e.ID,
			Date:        e.Date,
			Kind:        e.Kind,
			Category:    e.Category,
			Subcategory: e.Subcategory,
			Item:        e.Item,
			Description: e.Description,
			Account:     e.Account,
			CreatedAt:   e.CreatedAt,
		}
		if d, ok := e.DecimalAmount(); ok {
			v.Amount = &d
		}
		out[i] = v
	}
	return out
}

type diagnosticView struct {
	Row     int             `json:"row"`
	EntryID string          `json:"entry_id,omitempty"`
	Reason  core.SkipReason `json:"reason"`
	Detail  string          `json:"detail,omitempty"`
}

func newDiagnosticViews(ds []core.Diagnostic) []diagnosticView {
	out := make([]diagnosticView, len(ds))
	for i, d := range ds {
		out[i] = diagnosticView{Row: d.Row, EntryID: d.EntryID, Reason: d.Reason, Detail: d.Detail}
	}
	return out
}

type categoryView struct {
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
}

func newCategoryViews(cs []core.CategoryTotal) []categoryView {
	out := make([]categoryView, len(cs))
	for i, c := range cs {
		out[i] = categoryView{Name: c.Name, Total: c.Total}
	}
	return out
}

type bucketView struct {
	Kind              core.Kind        `json:"kind"`
	Period            string           `json:"period"`
	Year              int              `json:"year"`
	Month             int              `json:"month"`
	Total             decimal.Decimal  `json:"total"`
	Categories        []categoryView   `json:"categories"`
	Rate              *decimal.Decimal `json:"rate"`
	IndexedTotal      *decimal.Decimal `json:"indexed_total"`
	IndexedCategories []categoryView   `json:"indexed_categories,omitempty"`
}

type kindSummaryView struct {
	Kind       core.Kind       `json:"kind"`
	Total      decimal.Decimal `json:"total"`
	Categories []categoryView  `json:"categories"`
}

type reportView struct {
	Range   rangeView         `json:"range"`
	Rows    []bucketView      `json:"rows"`
	Totals  []kindSummaryView `json:"totals"`
	Net     decimal.Decimal   `json:"net"`
	Skipped []diagnosticView  `json:"skipped"`
}

func newReportView(rep report.Report) reportView {
	v := reportView{
		Range:   newRangeView(rep.Range),
		Rows:    make([]bucketView, len(rep.Rows)),
		Totals:  make([]kindSummaryView, len(rep.Totals)),
		Net:     rep.Net,
		Skipped: newDiagnosticViews(rep.Skipped),
	}
	for i, row := range rep.Rows {
		b := bucketView{
			Kind:       row.Kind,
			Period:     row.Period(),
			Year:       row.Year,
			Month:      row.Month,
			Total:      row.Total,
			Categories: newCategoryViews(row.Categories),
		}
		if row.HasRate {
			rate, indexed := row.Rate, row.IndexedTotal
			b.Rate = &rate
			b.IndexedTotal = &indexed
			b.IndexedCategories = newCategoryViews(row.IndexedCategories)
		}
		v.Rows[i] = b
	}
	for i, t := range rep.Totals {
		v.Totals[i] = kindSummaryView{Kind: t.Kind, Total: t.Total, Categories: newCategoryViews(t.Categories)}
	}
	return v
}

type varianceRowView struct {
	Kind          core.Kind        `json:"kind"`
	Period        string           `json:"period"`
	Category      string           `json:"category"`
	Actual        decimal.Decimal  `json:"actual"`
	Budget        decimal.Decimal  `json:"budget"`
	Difference    decimal.Decimal  `json:"difference"`
	DifferencePct *decimal.Decimal `json:"difference_pct"`
	Flagged       bool             `json:"flagged"`
}

type varianceView struct {
	Range         rangeView         `json:"range"`
	Threshold     decimal.Decimal   `json:"threshold_pct"`
	Rows          []varianceRowView `json:"rows"`
	Flagged       int               `json:"flagged"`
	ActualSkipped int               `json:"actual_skipped"`
	BudgetSkipped int               `json:"budget_skipped"`
}

func newVarianceView(res services.VarianceResult) varianceView {
	v := varianceView{
		Range:         newRangeView(res.Range),
		Threshold:     res.Threshold,
		Rows:          make([]varianceRowView, len(res.Rows)),
		ActualSkipped: res.ActualSkipped,
		BudgetSkipped: res.BudgetSkipped,
	}
	for i, row := range res.Rows {
		rv := varianceRowView{
			Kind:       row.Kind,
			Period:     core.PeriodBucket{Year: row.Year, Month: row.Month}.Period(),
			Category:   row.Category,
			Actual:     row.Actual,
			Budget:     row.Budget,
			Difference: row.Difference,
			Flagged:    row.Flagged,
		}
		if row.HasPct {
			pct := row.DifferencePct
			rv.DifferencePct = &pct
		}
		if row.Flagged {
			v.Flagged++
		}
		v.Rows[i] = rv
	}
	return v
}

type seriesView struct {
	Name   string            `json:"name"`
	Book   core.Book         `json:"book"`
	Kind   core.Kind         `json:"kind"`
	Values []decimal.Decimal `json:"values"`
}

type chartView struct {
	Range  rangeView    `json:"range"`
	Labels []string     `json:"labels"`
	Series []seriesView `json:"series"`
}

func newChartView(data services.ChartData) chartView {
	v := chartView{
		Range:  newRangeView(data.Range),
		Labels: data.Labels,
		Series: make([]seriesView, len(data.Series)),
	}
	for i, s := range data.Series {
		v.Series[i] = seriesView{
			Name:   string(s.Book) + "." + string(s.Kind),
			Book:   s.Book,
			Kind:   s.Kind,
			Values: s.Values,
		}
	}
	return v
}

type indexValueView struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Value decimal.Decimal `json:"value"`
}

func newIndexValueViews(values []core.IndexValue) []indexValueView {
	out := make([]indexValueView, len(values))
	for i, v := range values {
		out[i] = indexValueView{Year: v.Year, Month: v.Month, Value: v.Value}
	}
	return out
}

type importView struct {
	Target   string           `json:"target"`
	Rows     int              `json:"rows"`
	Imported int              `json:"imported"`
	IDs      []string         `json:"ids,omitempty"`
	Skipped  []diagnosticView `json:"skipped"`
}

func newImportView(res services.ImportResult) importView {
	return importView{
		Target:   res.Target,
		Rows:     res.Rows,
		Imported: res.Imported,
		IDs:      res.IDs,
		Skipped:  newDiagnosticViews(res.Skipped),
	}
}

type categoryGroupView struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

type kindCategoriesView struct {
	Kind       core.Kind           `json:"kind"`
	Categories []categoryGroupView `json:"categories"`
}

type categoriesView struct {
	Book  core.Book            `json:"book"`
	Kinds []kindCategoriesView `json:"kinds"`
}

func newCategoriesView(book core.Book, kinds []report.KindCategories) categoriesView {
	v := categoriesView{Book: book, Kinds: make([]kindCategoriesView, len(kinds))}
	for i, k := range kinds {
		groups := make([]categoryGroupView, len(k.Categories))
		for j, c := range k.Categories {
			groups[j] = categoryGroupView{Name: c.Name, Subcategories: c.Subcategories}
		}
		v.Kinds[i] = kindCategoriesView{Kind: k.Kind, Categories: groups}
	}
	return v
}

type insightsView struct {
	Range          rangeView        `json:"range"`
	LargestExpense *entryView       `json:"largest_expense"`
	TotalIncome    decimal.Decimal  `json:"total_income"`
	BudgetedIncome decimal.Decimal  `json:"budgeted_income"`
	Deviation      decimal.Decimal  `json:"deviation"`
	Skipped        []diagnosticView `json:"skipped"`
}

func newInsightsView(ins report.Insights) insightsView {
	v := insightsView{
		Range:          newRangeView(ins.Range),
		TotalIncome:    ins.TotalIncome,
		BudgetedIncome: ins.BudgetedIncome,
		Deviation:      ins.Deviation,
		Skipped:        newDiagnosticViews(ins.Skipped),
	}
	if ins.LargestExpense != nil {
		v.LargestExpense = &newEntryViews([]core.LedgerEntry{*ins.LargestExpense})[0]
	}
	return v
}
