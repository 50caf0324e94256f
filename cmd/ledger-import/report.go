package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/message"

	"ledgerdash/internal/core"
	"ledgerdash/internal/report"
	"ledgerdash/internal/services"
)

func writeImport(w io.Writer, res services.ImportResult) error {
	if _, err := fmt.Fprintf(w, "Imported %d of %d rows into %s\n", res.Imported, res.Rows, res.Target); err != nil {
		return err
	}
	for _, d := range res.Skipped {
		if _, err := fmt.Fprintf(w, "  row %d skipped: %s %s\n", d.Row, d.Reason, d.Detail); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// writeReport prints one line per period bucket and a totals footer.
// Amounts are formatted for the printer's locale.
func writeReport(w io.Writer, p *message.Printer, book core.Book, rep report.Report) error {
	amount := func(d decimal.Decimal) string {
		return p.Sprintf("%.2f", d.InexactFloat64())
	}

	fmt.Fprintf(w, "Report %s %s\n", book, describeRange(rep.Range))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "kind\tperiod\ttotal\trate\tindexed\t")
	for _, row := range rep.Rows {
		rate, indexed := "-", "-"
		if row.HasRate {
			rate = amount(row.Rate)
			indexed = amount(row.IndexedTotal)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", row.Kind, row.Period(), amount(row.Total), rate, indexed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, t := range rep.Totals {
		fmt.Fprintf(w, "total %s: %s\n", t.Kind, amount(t.Total))
	}
	fmt.Fprintf(w, "net: %s\n", amount(rep.Net))
	if n := len(rep.Skipped); n > 0 {
		fmt.Fprintf(w, "%d stored rows were skipped\n", n)
	}
	return nil
}

func describeRange(r core.Range) string {
	if r.Unbounded() {
		return "(all dates)"
	}
	return "(" + r.String() + ")"
}
