package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"
)

// Aggregation is the result of Aggregate: buckets for the valid rows and a
// diagnostic for each skipped row.
type Aggregation struct {
	Buckets []core.PeriodBucket
	Skipped []core.Diagnostic
}

type options struct {
	kindOrder []core.Kind
}

// Option tunes Aggregate.
type Option func(*options)

// WithKindOrder sets the kind order of the output. Kinds not listed follow
// in the default order.
func WithKindOrder(kinds ...core.Kind) Option {
	return func(o *options) {
		o.kindOrder = append([]core.Kind(nil), kinds...)
	}
}

type bucketKey struct {
	kind  core.Kind
	year  int
	month int
}

type accumulator struct {
	total decimal.Decimal
	order []string
	cats  map[string]decimal.Decimal
}

// Aggregate groups entries by (kind, year, month) and accumulates per
// category subtotals. Rows with an unrecognised kind, an invalid date or a
// non-finite amount are skipped and reported in Aggregation.Skipped.
//
// Buckets come back ordered by kind, then ascending year and month,
// regardless of input order. The only error is an invalid kind order.
func Aggregate(entries []core.LedgerEntry, opts ...Option) (Aggregation, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	rank, err := kindRank(o.kindOrder)
	if err != nil {
		return Aggregation{}, err
	}

	accs := make(map[bucketKey]*accumulator)
	var skipped []core.Diagnostic
	for i, e := range entries {
		amount, reason, ok := classify(e)
		if !ok {
			skipped = append(skipped, core.Diagnostic{Row: i, EntryID: e.ID, Reason: reason, Detail: skipDetail(e, reason)})
			continue
		}
		y, m, _ := e.Date.Time.Date()
		key := bucketKey{kind: e.Kind, year: y, month: int(m)}
		acc, exists := accs[key]
		if !exists {
			acc = &accumulator{cats: make(map[string]decimal.Decimal)}
			accs[key] = acc
		}
		acc.total = acc.total.Add(amount)
		cat := e.NormalizedCategory()
		if _, seen := acc.cats[cat]; !seen {
			acc.order = append(acc.order, cat)
		}
		acc.cats[cat] = acc.cats[cat].Add(amount)
	}

	keys := make([]bucketKey, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if rank[a.kind] != rank[b.kind] {
			return rank[a.kind] < rank[b.kind]
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.month < b.month
	})

	buckets := make([]core.PeriodBucket, 0, len(keys))
	for _, k := range keys {
		acc := accs[k]
		cats := make([]core.CategoryTotal, 0, len(acc.order))
		for _, name := range acc.order {
			cats = append(cats, core.CategoryTotal{Name: name, Total: acc.cats[name]})
		}
		buckets = append(buckets, core.PeriodBucket{
			Kind:       k.kind,
			Year:       k.year,
			Month:      k.month,
			Total:      acc.total,
			Categories: cats,
		})
	}
	return Aggregation{Buckets: buckets, Skipped: skipped}, nil
}

// classify validates a row for aggregation. Checks run in a fixed order so
// a row with several problems always reports the same reason.
func classify(e core.LedgerEntry) (decimal.Decimal, core.SkipReason, bool) {
	if !e.Kind.IsValid() {
		return decimal.Zero, core.SkipUnrecognizedKind, false
	}
	if !e.Date.Valid() {
		return decimal.Zero, core.SkipInvalidDate, false
	}
	amount, ok := e.DecimalAmount()
	if !ok {
		return decimal.Zero, core.SkipInvalidAmount, false
	}
	return amount, "", true
}

func skipDetail(e core.LedgerEntry, reason core.SkipReason) string {
	switch reason {
	case core.SkipUnrecognizedKind:
		return fmt.Sprintf("kind %q", e.Kind)
	case core.SkipInvalidAmount:
		return fmt.Sprintf("amount %v", e.Amount)
	default:
		return ""
	}
}

// kindRank maps each recognised kind to its output position.
func kindRank(order []core.Kind) (map[core.Kind]int, error) {
	rank := make(map[core.Kind]int, len(core.Kinds()))
	for _, k := range order {
		if !k.IsValid() {
			return nil, fmt.Errorf("%w: unknown kind %q in kind order", core.ErrInvalidArgument, k)
		}
		if _, dup := rank[k]; dup {
			return nil, fmt.Errorf("%w: kind %q repeated in kind order", core.ErrInvalidArgument, k)
		}
		rank[k] = len(rank)
	}
	for _, k := range core.Kinds() {
		if _, ok := rank[k]; !ok {
			rank[k] = len(rank)
		}
	}
	return rank, nil
}
