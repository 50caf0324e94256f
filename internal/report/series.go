package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"
)

// Series is a zero-filled monthly sequence of totals for one kind.
type Series struct {
	Kind   core.Kind
	Labels []string // YYYY-MM
	Values []decimal.Decimal
}

// MonthlySeries lays the buckets of kind out over every calendar month from
// the month of from to the month of to.
func MonthlySeries(buckets []core.PeriodBucket, kind core.Kind, from, to core.Date) (Series, error) {
	if !from.Valid() || !to.Valid() {
		return Series{}, fmt.Errorf("%w: series bounds must be valid dates", core.ErrInvalidArgument)
	}
	if from.CivilKey() > to.CivilKey() {
		return Series{}, fmt.Errorf("%w: series start %s after end %s", core.ErrInvalidArgument, from, to)
	}
	fy, fm, _ := from.Time.Date()
	ty, tm, _ := to.Time.Date()
	start := fy*12 + int(fm) - 1
	end := ty*12 + int(tm) - 1

	n := end - start + 1
	s := Series{
		Kind:   kind,
		Labels: make([]string, n),
		Values: make([]decimal.Decimal, n),
	}
	for i := 0; i < n; i++ {
		m := start + i
		s.Labels[i] = fmt.Sprintf("%04d-%02d", m/12, m%12+1)
		s.Values[i] = decimal.Zero
	}
	for _, b := range buckets {
		if b.Kind != kind {
			continue
		}
		idx := b.Year*12 + b.Month - 1 - start
		if idx < 0 || idx >= n {
			continue
		}
		s.Values[idx] = s.Values[idx].Add(b.Total)
	}
	return s, nil
}
