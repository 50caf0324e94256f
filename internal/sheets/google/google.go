package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledgerdash/internal/core"
	"ledgerdash/internal/ports"
)

// Config names the spreadsheet and the tabs holding each dataset.
type Config struct {
	SpreadsheetID   string
	LedgerSheet     string
	BudgetSheet     string
	IndexSheet      string
	CredentialsJSON string
	CredentialsFile string
	Location        *time.Location
}

// Client reads ledger, budget and index tabs of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheets        map[core.Book]string
	indexSheet    string
	loc           *time.Location
}

var _ ports.LedgerSource = (*Client)(nil)

// New builds a read-only Sheets client authenticated with a service
// account. CredentialsJSON wins over CredentialsFile; when both are empty
// GOOGLE_APPLICATION_CREDENTIALS is tried.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing service, filling default tab names.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheets: map[core.Book]string{
			core.Actual: orDefault(cfg.LedgerSheet, "Transacciones"),
			core.Budget: orDefault(cfg.BudgetSheet, "Presupuesto"),
		},
		indexSheet: orDefault(cfg.IndexSheet, "UF"),
		loc:        loc,
	}
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ReadEntries loads the tab backing book.
func (c *Client) ReadEntries(ctx context.Context, book core.Book) ([]core.LedgerEntry, []core.Diagnostic, error) {
	sheet, ok := c.sheets[book]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no sheet for book %q", core.ErrInvalidArgument, book)
	}
	values, err := c.readValues(ctx, sheet)
	if err != nil {
		return nil, nil, err
	}
	entries, skipped, err := parseEntries(values, c.loc)
	if err != nil {
		return nil, nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	slog.InfoContext(ctx, "Read ledger sheet",
		"sheet", sheet,
		"entries", len(entries),
		"skipped", len(skipped))
	return entries, skipped, nil
}

// ReadIndexValues loads the index tab.
func (c *Client) ReadIndexValues(ctx context.Context) ([]core.IndexValue, []core.Diagnostic, error) {
	values, err := c.readValues(ctx, c.indexSheet)
	if err != nil {
		return nil, nil, err
	}
	out, skipped, err := parseIndex(values)
	if err != nil {
		return nil, nil, fmt.Errorf("sheet %q: %w", c.indexSheet, err)
	}
	return out, skipped, nil
}

func (c *Client) readValues(ctx context.Context, sheet string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheetRange(sheet)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return resp.Values, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
