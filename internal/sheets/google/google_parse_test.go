package google

import (
	"testing"
	"time"

	"ledgerdash/internal/core"
)

func TestSheetRange(t *testing.T) {
	cases := map[string]string{
		"Transacciones": "Transacciones!A:Z",
		"Libro Diario":  "'Libro Diario'!A:Z",
		"Juan's":        "'Juan''s'!A:Z",
	}
	for in, want := range cases {
		if got := sheetRange(in); got != want {
			t.Fatalf("sheetRange(%q)=%q want %q", in, got, want)
		}
	}
}

func TestParseEntries_UnformattedValues(t *testing.T) {
	values := [][]interface{}{
		{"Tipo", "Categoría", "Subcategoría", "Item", "Monto", "Fecha", "Glosa"},
		{"Gastos", "Materiales", "Cemento", "Sacos", 1500000.0, 45356.0, "compra"},
		{"Ingresos", "Ventas", "Depto", 101.0, 2500.5, "2024-03-10"},
		{"Gastos", "Materiales"},
	}
	entries, skipped, err := parseEntries(values, time.UTC)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries=%+v", entries)
	}
	if entries[0].Amount != 1500000 || entries[0].Date.String() != "2024-03-05" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Item != "101" || entries[1].Kind != core.Income {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
	if len(skipped) != 1 || skipped[0].Row != 4 || skipped[0].Reason != core.SkipMissingField {
		t.Fatalf("unexpected skipped: %+v", skipped)
	}
}

func TestParseEntries_EmptySheet(t *testing.T) {
	entries, skipped, err := parseEntries(nil, time.UTC)
	if err != nil || entries != nil || skipped != nil {
		t.Fatalf("empty sheet should parse to nothing: %v %v %v", entries, skipped, err)
	}
}

func TestParseIndex(t *testing.T) {
	values := [][]interface{}{
		{"Año", "Mes", "Valor"},
		{2024.0, 3.0, 36789.12},
		{2024.0, 13.0, 1.0},
	}
	got, skipped, err := parseIndex(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(got) != 1 || got[0].Value.String() != "36789.12" {
		t.Fatalf("unexpected values: %+v", got)
	}
	if len(skipped) != 1 {
		t.Fatalf("unexpected skipped: %+v", skipped)
	}
}
