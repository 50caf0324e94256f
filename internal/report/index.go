package report

import (
	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"
)

// Resolve returns the index value for (year, month). found is false when
// the index has no value for that period; that is not an error. A month
// outside 1..12 fails with core.ErrInvalidArgument.
//
// Duplicate periods are tolerated: the first one in iteration order wins.
func Resolve(index []core.IndexValue, year, month int) (value decimal.Decimal, found bool, err error) {
	if err := core.ValidateMonth(month); err != nil {
		return decimal.Zero, false, err
	}
	for _, v := range index {
		if v.Year == year && v.Month == month {
			return v.Value, true, nil
		}
	}
	return decimal.Zero, false, nil
}

type period struct {
	year  int
	month int
}

// IndexResolver answers Resolve lookups in constant time. It snapshots the
// index on construction.
type IndexResolver struct {
	values map[period]decimal.Decimal
}

// NewIndexResolver keys index by period, keeping the first value of any
// duplicated period.
func NewIndexResolver(index []core.IndexValue) *IndexResolver {
	values := make(map[period]decimal.Decimal, len(index))
	for _, v := range index {
		p := period{year: v.Year, month: v.Month}
		if _, dup := values[p]; dup {
			continue
		}
		values[p] = v.Value
	}
	return &IndexResolver{values: values}
}

// Resolve has the same contract as the package level Resolve.
func (r *IndexResolver) Resolve(year, month int) (decimal.Decimal, bool, error) {
	if err := core.ValidateMonth(month); err != nil {
		return decimal.Zero, false, err
	}
	v, ok := r.values[period{year: year, month: month}]
	return v, ok, nil
}

// Len returns the number of distinct periods.
func (r *IndexResolver) Len() int {
	return len(r.values)
}
