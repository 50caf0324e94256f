package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"
)

// Input is everything Build needs. Index may be empty.
type Input struct {
	Entries []core.LedgerEntry
	Index   []core.IndexValue
	Range   core.Range
	Kinds   []core.Kind
}

// Row is a period bucket with its indexed figures attached. The indexed
// fields are zero when HasRate is false.
type Row struct {
	core.PeriodBucket
	Rate              decimal.Decimal
	HasRate           bool
	IndexedTotal      decimal.Decimal
	IndexedCategories []core.CategoryTotal
}

// KindSummary totals one kind over the whole range.
type KindSummary struct {
	Kind       core.Kind
	Total      decimal.Decimal
	Categories []core.CategoryTotal
}

type Report struct {
	Range   core.Range
	Rows    []Row
	Totals  []KindSummary
	Net     decimal.Decimal // income minus expense
	Skipped []core.Diagnostic
}

// Build filters entries by range and kind, aggregates them and attaches the
// index value of each period. When in.Kinds is empty every kind is reported;
// otherwise only the listed kinds are, in the listed order. Diagnostic rows
// refer to positions in in.Entries.
func Build(in Input) (Report, error) {
	if err := in.Range.Validate(); err != nil {
		return Report{}, err
	}
	kept, skipped := filterPositions(in.Entries, in.Range)
	kept = filterKinds(in.Entries, kept, in.Kinds)
	filtered := make([]core.LedgerEntry, len(kept))
	for i, pos := range kept {
		filtered[i] = in.Entries[pos]
	}

	var opts []Option
	if len(in.Kinds) > 0 {
		opts = append(opts, WithKindOrder(in.Kinds...))
	}
	agg, err := Aggregate(filtered, opts...)
	if err != nil {
		return Report{}, err
	}
	for _, d := range agg.Skipped {
		d.Row = kept[d.Row]
		skipped = append(skipped, d)
	}
	sortDiagnostics(skipped)

	resolver := NewIndexResolver(in.Index)
	rows := make([]Row, 0, len(agg.Buckets))
	for _, b := range agg.Buckets {
		row := Row{PeriodBucket: b}
		rate, ok, err := resolver.Resolve(b.Year, b.Month)
		if err != nil {
			return Report{}, err
		}
		if ok {
			row.Rate = rate
			row.HasRate = true
			row.IndexedTotal = b.Total.Mul(rate)
			row.IndexedCategories = make([]core.CategoryTotal, len(b.Categories))
			for i, c := range b.Categories {
				row.IndexedCategories[i] = core.CategoryTotal{Name: c.Name, Total: c.Total.Mul(rate)}
			}
		}
		rows = append(rows, row)
	}

	totals := summarize(agg.Buckets)
	net := decimal.Zero
	for _, t := range totals {
		switch t.Kind {
		case core.Income:
			net = net.Add(t.Total)
		case core.Expense:
			net = net.Sub(t.Total)
		}
	}

	return Report{
		Range:   in.Range,
		Rows:    rows,
		Totals:  totals,
		Net:     net,
		Skipped: skipped,
	}, nil
}

// filterKinds drops positions whose entry has a recognised kind that is not
// listed. Unrecognised kinds stay so that aggregation reports them.
func filterKinds(entries []core.LedgerEntry, kept []int, kinds []core.Kind) []int {
	if len(kinds) == 0 {
		return kept
	}
	want := make(map[core.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	out := kept[:0:0]
	for _, pos := range kept {
		k := entries[pos].Kind
		if k.IsValid() && !want[k] {
			continue
		}
		out = append(out, pos)
	}
	return out
}

// summarize folds buckets into one summary per kind, keeping bucket order
// for kinds and first-seen order for categories.
func summarize(buckets []core.PeriodBucket) []KindSummary {
	var out []KindSummary
	pos := make(map[core.Kind]int)
	catPos := make(map[core.Kind]map[string]int)
	for _, b := range buckets {
		i, ok := pos[b.Kind]
		if !ok {
			i = len(out)
			pos[b.Kind] = i
			catPos[b.Kind] = make(map[string]int)
			out = append(out, KindSummary{Kind: b.Kind})
		}
		out[i].Total = out[i].Total.Add(b.Total)
		for _, c := range b.Categories {
			j, seen := catPos[b.Kind][c.Name]
			if !seen {
				j = len(out[i].Categories)
				catPos[b.Kind][c.Name] = j
				out[i].Categories = append(out[i].Categories, core.CategoryTotal{Name: c.Name})
			}
			out[i].Categories[j].Total = out[i].Categories[j].Total.Add(c.Total)
		}
	}
	return out
}

func sortDiagnostics(ds []core.Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].Row < ds[j].Row })
}
