package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

// SQLiteRepository persists books and the index in a single SQLite file.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const entryColumns = `id, entry_date, kind, category, subcategory, item, description, account, amount, created_at`

func (r *SQLiteRepository) ListEntries(ctx context.Context, book core.Book) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries WHERE book = ? ORDER BY seq`, string(book))
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", book, err)
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(ctx, book, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, book core.Book, id string) (core.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries WHERE book = ? AND id = ?`, string(book), id)
	e, err := scanEntry(ctx, book, row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, core.ErrNotFound)
	}
	return e, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(ctx context.Context, book core.Book, row rowScanner) (core.LedgerEntry, error) {
	var (
		e                core.LedgerEntry
		kind, date, made string
	)
	if err := row.Scan(&e.ID, &date, &kind, &e.Category, &e.Subcategory, &e.Item, &e.Description, &e.Account, &e.Amount, &made); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Kind = core.Kind(kind)
	var err error
	// A stored date that no longer parses is kept as a zero date so
	// reports skip the row as invalid-date instead of failing the book.
	if e.Date, err = core.ParseDate(date, time.UTC); err != nil {
		slog.WarnContext(ctx, "Stored entry has an unreadable date", "book", book, "id", e.ID, "error", err)
		e.Date = core.Date{}
	}
	if e.CreatedAt, err = time.Parse(timestampLayout, made); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %s created_at: %w", e.ID, err)
	}
	return e, nil
}

func (r *SQLiteRepository) AppendEntries(ctx context.Context, book core.Book, entries ...core.LedgerEntry) ([]string, error) {
	var ids []string
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		ids, err = r.insert(ctx, tx, book, entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Entries saved to SQLite", "book", book, "count", len(ids))
	return ids, nil
}

func (r *SQLiteRepository) ReplaceEntries(ctx context.Context, book core.Book, entries []core.LedgerEntry) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE book = ?`, string(book)); err != nil {
			return fmt.Errorf("clear %s: %w", book, err)
		}
		_, err := r.insert(ctx, tx, book, entries)
		return err
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Book replaced in SQLite", "book", book, "count", len(entries))
	return nil
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, book core.Book, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE book = ? AND id = ?`, string(book), id)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return affectedOne(res, fmt.Sprintf("entry %s", id))
}

func (r *SQLiteRepository) UpdateEntry(ctx context.Context, book core.Book, e core.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE entries SET entry_date = ?, kind = ?, category = ?, subcategory = ?, item = ?, description = ?, account = ?, amount = ?
		WHERE book = ? AND id = ?`,
		e.Date.String(), string(e.Kind), e.Category, e.Subcategory, e.Item, e.Description, e.Account, e.Amount, string(book), e.ID)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", e.ID, err)
	}
	return affectedOne(res, fmt.Sprintf("entry %s", e.ID))
}

func (r *SQLiteRepository) ListIndexValues(ctx context.Context) ([]core.IndexValue, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT year, month, value FROM index_values ORDER BY year, month`)
	if err != nil {
		return nil, fmt.Errorf("list index values: %w", err)
	}
	defer rows.Close()

	var out []core.IndexValue
	for rows.Next() {
		var (
			v   core.IndexValue
			raw string
		)
		if err := rows.Scan(&v.Year, &v.Month, &raw); err != nil {
			return nil, fmt.Errorf("scan index value: %w", err)
		}
		if v.Value, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("index value %d-%02d: %w", v.Year, v.Month, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index values: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertIndexValue(ctx context.Context, v core.IndexValue) error {
	if err := v.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO index_values (year, month, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (year, month) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		v.Year, v.Month, v.Value.String(), r.now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("upsert index value %d-%02d: %w", v.Year, v.Month, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteIndexValue(ctx context.Context, year, month int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM index_values WHERE year = ? AND month = ?`, year, month)
	if err != nil {
		return fmt.Errorf("delete index value %d-%02d: %w", year, month, err)
	}
	return affectedOne(res, fmt.Sprintf("index value %d-%02d", year, month))
}

func affectedOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) insert(ctx context.Context, tx *sql.Tx, book core.Book, entries []core.LedgerEntry) ([]string, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM entries WHERE book = ?`, string(book)).Scan(&seq); err != nil {
		return nil, fmt.Errorf("next sequence: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, book, entry_date, kind, category, subcategory, item, description, account, amount, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := r.now()
	ids := make([]string, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		seq++
		if _, err := stmt.ExecContext(ctx, e.ID, string(book), e.Date.String(), string(e.Kind), e.Category, e.Subcategory,
			e.Item, e.Description, e.Account, e.Amount, seq, e.CreatedAt.UTC().Format(timestampLayout)); err != nil {
			return nil, fmt.Errorf("insert entry %d: %w", i, err)
		}
		ids[i] = e.ID
	}
	return ids, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
