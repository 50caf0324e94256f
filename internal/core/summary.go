package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SkipReason explains why a row was left out of a computation.
type SkipReason string

const (
	SkipInvalidDate      SkipReason = "invalid-date"
	SkipInvalidAmount    SkipReason = "invalid-amount"
	SkipUnrecognizedKind SkipReason = "unrecognized-kind"
	SkipMissingField     SkipReason = "missing-field"
)

// CategoryTotal represents an amount aggregated by category name.
type CategoryTotal struct {
	Name  string
	Total decimal.Decimal
}

// PeriodBucket is the aggregated total for one (kind, year, month).
// Categories keep first-seen order.
type PeriodBucket struct {
	Kind       Kind
	Year       int
	Month      int // 1-12
	Total      decimal.Decimal
	Categories []CategoryTotal
}

// Period returns the bucket period formatted as YYYY-MM.
func (b PeriodBucket) Period() string {
	return fmt.Sprintf("%04d-%02d", b.Year, b.Month)
}

// Diagnostic is a non-fatal record of a row excluded from a computation.
// Row is the zero-based position in the input collection.
type Diagnostic struct {
	Row     int
	EntryID string
	Reason  SkipReason
	Detail  string
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("row %d: %s", d.Row, d.Reason)
	if d.EntryID != "" {
		s += " (id " + d.EntryID + ")"
	}
	if d.Detail != "" {
		s += ": " + d.Detail
	}
	return s
}
