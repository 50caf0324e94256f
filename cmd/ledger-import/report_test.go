package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ledgerdash/internal/services"
	"ledgerdash/internal/store/memory"
)

func TestImportAndReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.csv")
	csv := "Tipo,Categoría,Subcategoría,Item,Monto,Fecha\n" +
		"Gasto,Materiales,Cemento,Sacos,1500,2024-01-10\n" +
		"Ingreso,Ventas,Depto,Pie,9000,2024-01-15\n" +
		"Gasto,Materiales,Cemento,Sacos,abc,2024-01-10\n"
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}

	st := memory.New()
	reports := services.NewReportService(st, services.ReportServiceConfig{}, nil)
	ledger := services.NewLedgerService(st, reports, nil, time.UTC, nil)

	var out bytes.Buffer
	err := importAndReport(context.Background(), ledger, reports, options{
		file:    path,
		target:  "transactions",
		loc:     time.UTC,
		printer: message.NewPrinter(language.English),
	}, &out)
	if err != nil {
		t.Fatalf("importAndReport: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Imported 2 of 3 rows into transactions",
		"row 4 skipped: invalid-amount",
		"Report transactions (all dates)",
		"2024-01",
		"1,500.00",
		"net: 7,500.00",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestImportAndReportRejectsBadRange(t *testing.T) {
	st := memory.New()
	reports := services.NewReportService(st, services.ReportServiceConfig{}, nil)
	ledger := services.NewLedgerService(st, reports, nil, time.UTC, nil)

	err := importAndReport(context.Background(), ledger, reports, options{
		file:    "unused.csv",
		target:  "transactions",
		start:   "2024-02-01",
		end:     "2024-01-01",
		loc:     time.UTC,
		printer: message.NewPrinter(language.English),
	}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected an inverted range to fail")
	}
}
