package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"
)

func entry(id string, kind core.Kind, date core.Date, category string, amount float64) core.LedgerEntry {
	return core.LedgerEntry{ID: id, Kind: kind, Date: date, Category: category, Amount: amount}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// render flattens buckets into a stable string for equality checks.
func render(buckets []core.PeriodBucket) string {
	var sb strings.Builder
	for _, b := range buckets {
		fmt.Fprintf(&sb, "%s %s %s [", b.Kind, b.Period(), b.Total.String())
		for i, c := range b.Categories {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%s", c.Name, c.Total.String())
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
