package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type field int

const (
	fieldKind field = iota
	fieldCategory
	fieldSubcategory
	fieldItem
	fieldAmount
	fieldDate
	fieldDescription
	fieldAccount
	fieldYear
	fieldMonth
	fieldValue
)

// Labels as they appear in the workbooks, used in diagnostics.
var fieldLabels = map[field]string{
	fieldKind:        "Tipo",
	fieldCategory:    "Categoría",
	fieldSubcategory: "Subcategoría",
	fieldItem:        "Item",
	fieldAmount:      "Monto",
	fieldDate:        "Fecha",
	fieldDescription: "Glosa",
	fieldAccount:     "Numero_cta",
	fieldYear:        "Año",
	fieldMonth:       "Mes",
	fieldValue:       "Valor",
}

var headerAliases = map[string]field{
	"tipo":         fieldKind,
	"kind":         fieldKind,
	"type":         fieldKind,
	"categoria":    fieldCategory,
	"category":     fieldCategory,
	"subcategoria": fieldSubcategory,
	"subcategory":  fieldSubcategory,
	"item":         fieldItem,
	"monto":        fieldAmount,
	"amount":       fieldAmount,
	"fecha":        fieldDate,
	"date":         fieldDate,
	"glosa":        fieldDescription,
	"description":  fieldDescription,
	"numero_cta":   fieldAccount,
	"account":      fieldAccount,
	"ano":          fieldYear,
	"year":         fieldYear,
	"mes":          fieldMonth,
	"month":        fieldMonth,
	"valor":        fieldValue,
	"value":        fieldValue,
	"uf":           fieldValue,
}

// NormalizeHeader folds a column title for matching: diacritics removed,
// lower case, inner whitespace collapsed to underscores.
func NormalizeHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), "_")
}

// mapHeader returns the column position of every recognised field. The
// first column wins when a title repeats.
func mapHeader(header []string) map[field]int {
	cols := make(map[field]int, len(header))
	for i, h := range header {
		f, ok := headerAliases[NormalizeHeader(h)]
		if !ok {
			continue
		}
		if _, dup := cols[f]; !dup {
			cols[f] = i
		}
	}
	return cols
}

func missingColumns(cols map[field]int, required []field) []string {
	var missing []string
	for _, f := range required {
		if _, ok := cols[f]; !ok {
			missing = append(missing, fieldLabels[f])
		}
	}
	return missing
}
