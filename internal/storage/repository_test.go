package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteEntriesRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ids, err := repo.AppendEntries(ctx, core.Actual,
		core.LedgerEntry{Date: core.NewDate(2024, 3, 5), Kind: core.Expense, Category: "Materiales", Subcategory: "Cemento", Item: "Sacos", Amount: 1500.5, Account: "1101"},
		core.LedgerEntry{ID: "sale-1", Date: core.NewDate(2024, 3, 10), Kind: core.Income, Category: "Ventas", Amount: 200000},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(ids) != 2 || ids[0] == "" || ids[1] != "sale-1" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	got, err := repo.ListEntries(ctx, core.Actual)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	first := got[0]
	if first.ID != ids[0] || first.Date.String() != "2024-03-05" || first.Kind != core.Expense ||
		first.Amount != 1500.5 || first.Subcategory != "Cemento" || first.Account != "1101" || first.CreatedAt.IsZero() {
		t.Fatalf("unexpected first entry: %+v", first)
	}

	if budget, _ := repo.ListEntries(ctx, core.Budget); len(budget) != 0 {
		t.Fatalf("budget should be empty, got %d", len(budget))
	}
}

func TestSQLiteRejectsFarFutureDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.AppendEntries(ctx, core.Actual,
		core.LedgerEntry{Date: core.NewDate(10113, 9, 19), Kind: core.Expense, Category: "Materiales", Amount: 100})
	if !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestSQLiteListSurvivesUnreadableDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.AppendEntries(ctx, core.Actual,
		core.LedgerEntry{Date: core.NewDate(2024, 1, 5), Kind: core.Expense, Category: "Materiales", Amount: 100},
		core.LedgerEntry{ID: "bad", Date: core.NewDate(2024, 1, 6), Kind: core.Expense, Category: "Materiales", Amount: 50},
	); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := repo.db.ExecContext(ctx, `UPDATE entries SET entry_date = '10113-09-19' WHERE id = 'bad'`); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	got, err := repo.ListEntries(ctx, core.Actual)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[1].ID != "bad" || got[1].Date.Valid() {
		t.Fatalf("unreadable date should come back invalid: %+v", got[1])
	}
}

func TestSQLiteAppendIsAtomic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.AppendEntries(ctx, core.Actual,
		core.LedgerEntry{Date: core.NewDate(2024, 1, 1), Kind: core.Expense, Amount: 1},
		core.LedgerEntry{Kind: core.Expense, Amount: 1},
	)
	if !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if got, _ := repo.ListEntries(ctx, core.Actual); len(got) != 0 {
		t.Fatalf("failed batch must not persist rows, got %d", len(got))
	}
}

func TestSQLiteReplaceAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.AppendEntries(ctx, core.Budget, core.LedgerEntry{ID: "old", Date: core.NewDate(2024, 1, 1), Kind: core.Expense, Amount: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := repo.ReplaceEntries(ctx, core.Budget, []core.LedgerEntry{
		{ID: "b1", Date: core.NewDate(2024, 2, 1), Kind: core.Expense, Amount: 2},
		{ID: "b2", Date: core.NewDate(2024, 3, 1), Kind: core.Expense, Amount: 3},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ := repo.ListEntries(ctx, core.Budget)
	if len(got) != 2 || got[0].ID != "b1" || got[1].ID != "b2" {
		t.Fatalf("unexpected budget after replace: %+v", got)
	}

	if err := repo.DeleteEntry(ctx, core.Budget, "b1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteEntry(ctx, core.Budget, "b1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteEntry(ctx, core.Actual, "b2"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete must be scoped to the book, got %v", err)
	}
}

func TestSQLiteUpsertIndexValue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, v := range []core.IndexValue{
		{Year: 2024, Month: 3, Value: decimal.RequireFromString("36789.12")},
		{Year: 2023, Month: 12, Value: decimal.RequireFromString("36000")},
		{Year: 2024, Month: 3, Value: decimal.RequireFromString("36800.01")},
	} {
		if err := repo.UpsertIndexValue(ctx, v); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := repo.UpsertIndexValue(ctx, core.IndexValue{Year: 2024, Month: 0, Value: decimal.NewFromInt(1)}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	got, err := repo.ListIndexValues(ctx)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(got) != 2 || got[0].Year != 2023 || got[1].Value.String() != "36800.01" {
		t.Fatalf("unexpected index: %+v", got)
	}
}

func TestSQLiteGetAndUpdateEntry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ids, err := repo.AppendEntries(ctx, core.Budget,
		core.LedgerEntry{Date: core.NewDate(2024, 4, 1), Kind: core.Expense, Category: "Materiales", Amount: 100},
		core.LedgerEntry{Date: core.NewDate(2024, 4, 2), Kind: core.Expense, Category: "Equipos", Amount: 50},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	before, err := repo.GetEntry(ctx, core.Budget, ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if before.Category != "Materiales" || before.Amount != 100 {
		t.Fatalf("unexpected entry: %+v", before)
	}
	if _, err := repo.GetEntry(ctx, core.Actual, ids[0]); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("entry must not be visible from another book, got %v", err)
	}

	updated := before
	updated.Date = core.NewDate(2024, 5, 3)
	updated.Kind = core.Income
	updated.Category = "Ventas"
	updated.Amount = 250.25
	if err := repo.UpdateEntry(ctx, core.Budget, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.ListEntries(ctx, core.Budget)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != ids[0] || got[0].Date.String() != "2024-05-03" || got[0].Kind != core.Income ||
		got[0].Category != "Ventas" || got[0].Amount != 250.25 || !got[0].CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("unexpected entries after update: %+v", got)
	}

	missing := updated
	missing.ID = "nope"
	if err := repo.UpdateEntry(ctx, core.Budget, missing); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	invalid := updated
	invalid.Kind = "refund"
	if err := repo.UpdateEntry(ctx, core.Budget, invalid); !errors.Is(err, core.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestSQLiteDeleteIndexValue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, m := range []int{1, 2} {
		if err := repo.UpsertIndexValue(ctx, core.IndexValue{Year: 2024, Month: m, Value: decimal.NewFromInt(int64(m))}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := repo.DeleteIndexValue(ctx, 2024, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteIndexValue(ctx, 2024, 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ := repo.ListIndexValues(ctx)
	if len(got) != 1 || got[0].Month != 2 {
		t.Fatalf("unexpected index: %+v", got)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}
