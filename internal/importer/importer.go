// Package importer turns spreadsheet rows into validated ledger entries.
// Rows that cannot become an entry are reported as diagnostics; only a
// malformed header fails the whole import.
package importer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ledgerdash/internal/core"
)

// ErrMissingColumns is returned when the header lacks a required column.
var ErrMissingColumns = fmt.Errorf("%w: missing required columns", core.ErrInvalidArgument)

var entryColumns = []field{fieldKind, fieldCategory, fieldSubcategory, fieldItem, fieldAmount}

// Excel stores days since 1899-12-30.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxExcelSerial is 9999-12-31, the last day Excel can represent.
const maxExcelSerial = 2958465

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

// Result holds the entries parsed from a sheet. Diagnostic rows are
// 1-based sheet line numbers, the header being line 1.
type Result struct {
	Entries []core.LedgerEntry
	Skipped []core.Diagnostic
	Rows    int
}

type options struct {
	loc         *time.Location
	defaultDate core.Date
}

type Option func(*options)

// WithLocation sets the zone text dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// WithDefaultDate dates rows whose Fecha cell is empty or whose sheet has
// no Fecha column. Without it such rows are skipped.
func WithDefaultDate(d core.Date) Option {
	return func(o *options) { o.defaultDate = d }
}

// ParseRows reads a header row followed by data rows. Blank rows are
// ignored and not counted.
func ParseRows(rows [][]string, opts ...Option) (Result, error) {
	o := options{loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("%w: empty sheet", core.ErrInvalidArgument)
	}
	cols := mapHeader(rows[0])
	if missing := missingColumns(cols, entryColumns); len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var res Result
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		res.Rows++
		line := i + 2
		e, reason, detail := parseEntry(row, cols, o)
		if reason != "" {
			res.Skipped = append(res.Skipped, core.Diagnostic{Row: line, Reason: reason, Detail: detail})
			continue
		}
		res.Entries = append(res.Entries, e)
	}
	return res, nil
}

func parseEntry(row []string, cols map[field]int, o options) (core.LedgerEntry, core.SkipReason, string) {
	for _, f := range entryColumns {
		if cell(row, cols, f) == "" {
			return core.LedgerEntry{}, core.SkipMissingField, fieldLabels[f]
		}
	}

	kind := core.ParseKind(cell(row, cols, fieldKind))
	if !kind.IsValid() {
		return core.LedgerEntry{}, core.SkipUnrecognizedKind, fmt.Sprintf("kind %q", kind)
	}

	raw := cell(row, cols, fieldAmount)
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return core.LedgerEntry{}, core.SkipInvalidAmount, fmt.Sprintf("amount %q", raw)
	}

	date := o.defaultDate
	if rawDate := cell(row, cols, fieldDate); rawDate != "" {
		date, err = ParseCellDate(rawDate, o.loc)
		if err != nil {
			return core.LedgerEntry{}, core.SkipInvalidDate, fmt.Sprintf("date %q", rawDate)
		}
	}
	if !date.Valid() {
		return core.LedgerEntry{}, core.SkipInvalidDate, "no date"
	}

	return core.LedgerEntry{
		Date:        date,
		Kind:        kind,
		Category:    cell(row, cols, fieldCategory),
		Subcategory: cell(row, cols, fieldSubcategory),
		Item:        cell(row, cols, fieldItem),
		Description: cell(row, cols, fieldDescription),
		Account:     cell(row, cols, fieldAccount),
		Amount:      amount.InexactFloat64(),
	}, "", ""
}

// ParseCellDate accepts an Excel serial day number or a text date.
func ParseCellDate(s string, loc *time.Location) (core.Date, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 1 || serial > maxExcelSerial {
			return core.Date{}, fmt.Errorf("%w: serial %q", core.ErrInvalidDate, s)
		}
		t := excelEpoch.AddDate(0, 0, int(serial))
		return core.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return core.Date{Time: t}, nil
		}
	}
	return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

// ParseIndexRows reads Año, Mes, Valor rows into index values.
func ParseIndexRows(rows [][]string) ([]core.IndexValue, []core.Diagnostic, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: empty sheet", core.ErrInvalidArgument)
	}
	cols := mapHeader(rows[0])
	if missing := missingColumns(cols, []field{fieldYear, fieldMonth, fieldValue}); len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	var (
		values  []core.IndexValue
		skipped []core.Diagnostic
	)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := i + 2
		v, err := parseIndexValue(row, cols)
		if err != nil {
			skipped = append(skipped, core.Diagnostic{Row: line, Reason: reasonFor(err), Detail: err.Error()})
			continue
		}
		values = append(values, v)
	}
	return values, skipped, nil
}

func parseIndexValue(row []string, cols map[field]int) (core.IndexValue, error) {
	year, err := strconv.Atoi(cell(row, cols, fieldYear))
	if err != nil {
		return core.IndexValue{}, fmt.Errorf("%w: year %q", core.ErrInvalidDate, cell(row, cols, fieldYear))
	}
	month, err := strconv.Atoi(cell(row, cols, fieldMonth))
	if err != nil {
		return core.IndexValue{}, fmt.Errorf("%w: month %q", core.ErrInvalidDate, cell(row, cols, fieldMonth))
	}
	value, err := core.ParseAmount(cell(row, cols, fieldValue))
	if err != nil {
		return core.IndexValue{}, err
	}
	v := core.IndexValue{Year: year, Month: month, Value: value}
	if err := v.Validate(); err != nil {
		return core.IndexValue{}, err
	}
	return v, nil
}

func reasonFor(err error) core.SkipReason {
	switch {
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidIndexValue):
		return core.SkipInvalidAmount
	default:
		return core.SkipInvalidDate
	}
}

func cell(row []string, cols map[field]int, f field) string {
	i, ok := cols[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
