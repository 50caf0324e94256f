package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ledgerdash/internal/core"
)

// ReadCSV loads every record of a comma or semicolon separated file.
func ReadCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	cr := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff")))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if first, _, _ := strings.Cut(string(data), "\n"); strings.Count(first, ";") > strings.Count(first, ",") {
		cr.Comma = ';'
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv: %v", core.ErrInvalidArgument, err)
	}
	return rows, nil
}

// ReadXLSX loads the first worksheet with raw cell values, so date cells
// come back as serial numbers.
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", core.ErrInvalidArgument, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", core.ErrInvalidArgument)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// ReadFile picks the reader by file extension.
func ReadFile(name string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	case ".csv", ".txt":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", core.ErrInvalidArgument, filepath.Ext(name))
	}
}

// FromValues converts a Google Sheets value grid to string rows.
func FromValues(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, vr := range values {
		row := make([]string, len(vr))
		for j, v := range vr {
			switch x := v.(type) {
			case nil:
			case float64:
				row[j] = strconv.FormatFloat(x, 'f', -1, 64)
			default:
				row[j] = fmt.Sprint(x)
			}
		}
		rows[i] = row
	}
	return rows
}
