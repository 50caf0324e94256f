package google

import (
	"strings"
	"time"

	"ledgerdash/internal/core"
	"ledgerdash/internal/importer"
)

// sheetRange addresses every used column of a tab, quoting names that
// A1 notation would otherwise misread.
func sheetRange(sheet string) string {
	if strings.ContainsAny(sheet, " !'-") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet + "!A:Z"
}

func parseEntries(values [][]interface{}, loc *time.Location) ([]core.LedgerEntry, []core.Diagnostic, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	res, err := importer.ParseRows(importer.FromValues(values), importer.WithLocation(loc))
	if err != nil {
		return nil, nil, err
	}
	return res.Entries, res.Skipped, nil
}

func parseIndex(values [][]interface{}) ([]core.IndexValue, []core.Diagnostic, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	return importer.ParseIndexRows(importer.FromValues(values))
}
