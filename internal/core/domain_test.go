package core

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{NewDate(9999, 12, 31), true},
		{NewDate(10113, 9, 19), false},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-05", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2024 || d.Month() != 3 || d.Day() != 5 {
		t.Fatalf("unexpected date: %v", d)
	}
	if _, err := ParseDate("05/03/2024", nil); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCivilKeyIgnoresTimeOfDay(t *testing.T) {
	morning := Date{Time: time.Date(2024, 3, 5, 0, 0, 1, 0, time.UTC)}
	night := Date{Time: time.Date(2024, 3, 5, 23, 59, 59, 0, time.UTC)}
	if morning.CivilKey() != night.CivilKey() || morning.CivilKey() != 20240305 {
		t.Fatalf("civil keys differ: %d vs %d", morning.CivilKey(), night.CivilKey())
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"Gastos":    Expense,
		"GASTOS":    Expense,
		"expense":   Expense,
		" Ingresos": Income,
		"income":    Income,
		"Transfer":  Kind("Transfer"),
		"":          Kind(""),
	}
	for in, want := range cases {
		if got := ParseKind(in); got != want {
			t.Fatalf("ParseKind(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	if NormalizeCategory("") != UncategorizedLabel || NormalizeCategory("  ") != UncategorizedLabel {
		t.Fatalf("blank category not normalized")
	}
	if NormalizeCategory("materials") != "materials" {
		t.Fatalf("category should be kept verbatim")
	}
}

func TestLedgerEntryValidate(t *testing.T) {
	good := LedgerEntry{Date: NewDate(2025, 1, 1), Kind: Expense, Category: "Labor", Amount: -10}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		e   LedgerEntry
		err error
	}{
		{LedgerEntry{Kind: Expense, Amount: 1}, ErrInvalidDate},
		{LedgerEntry{Date: NewDate(2025, 1, 1), Kind: "other", Amount: 1}, ErrInvalidKind},
		{LedgerEntry{Date: NewDate(2025, 1, 1), Kind: Income, Amount: math.NaN()}, ErrInvalidAmount},
		{LedgerEntry{Date: NewDate(2025, 1, 1), Kind: Income, Amount: math.Inf(1)}, ErrInvalidAmount},
	}
	for i, tc := range bads {
		if err := tc.e.Validate(); !errors.Is(err, tc.err) {
			t.Fatalf("case %d expected %v, got %v", i, tc.err, err)
		}
	}
}

func TestDecimalAmountIsExact(t *testing.T) {
	d, ok := LedgerEntry{Amount: 0.1}.DecimalAmount()
	if !ok || d.String() != "0.1" {
		t.Fatalf("unexpected decimal %s ok=%v", d, ok)
	}
	if _, ok := (LedgerEntry{Amount: math.NaN()}).DecimalAmount(); ok {
		t.Fatalf("NaN must not convert")
	}
}

func TestIndexValueValidate(t *testing.T) {
	ok := IndexValue{Year: 2024, Month: 3, Value: decimal.RequireFromString("36789.12")}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (IndexValue{Year: 2024, Month: 13, Value: decimal.NewFromInt(1)}).Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := (IndexValue{Year: 2024, Month: 1}).Validate(); !errors.Is(err, ErrInvalidIndexValue) {
		t.Fatalf("expected ErrInvalidIndexValue, got %v", err)
	}
}

func TestRange(t *testing.T) {
	r := Range{Start: NewDate(2024, 3, 1), End: NewDate(2024, 3, 31)}
	if !r.Contains(NewDate(2024, 3, 1)) || !r.Contains(NewDate(2024, 3, 31)) {
		t.Fatalf("bounds must be inclusive")
	}
	if r.Contains(NewDate(2024, 2, 29)) || r.Contains(NewDate(2024, 4, 1)) {
		t.Fatalf("outside days must be excluded")
	}
	open := Range{Start: NewDate(2024, 3, 1)}
	if !open.Contains(NewDate(2030, 1, 1)) {
		t.Fatalf("open end should include later dates")
	}
	if err := (Range{Start: NewDate(2024, 4, 1), End: NewDate(2024, 3, 1)}).Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestParseBook(t *testing.T) {
	cases := map[string]Book{"": Actual, "transactions": Actual, " Budget ": Budget}
	for in, want := range cases {
		got, err := ParseBook(in)
		if err != nil || got != want {
			t.Fatalf("ParseBook(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := ParseBook("forecast"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
