package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledgerdash/internal/core"
	"ledgerdash/internal/importer"
)

// Store keeps books and the index in process memory.
type Store struct {
	mu    sync.Mutex
	books map[core.Book][]core.LedgerEntry
	index []core.IndexValue
	now   func() time.Time
}

func New() *Store {
	return &Store{books: make(map[core.Book][]core.LedgerEntry), now: time.Now}
}

// NewFromFiles seeds the store from seed_transactions.csv, seed_budget.csv
// and seed_index.csv under base. Missing files are skipped silently; files
// that cannot be read or parsed, and rows that are skipped or rejected, are
// logged as warnings and the rest of the seed still loads.
func NewFromFiles(base string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := New()
	ctx := context.Background()
	for _, seed := range []struct {
		book core.Book
		name string
	}{
		{core.Actual, "seed_transactions.csv"},
		{core.Budget, "seed_budget.csv"},
	} {
		path := filepath.Join(base, seed.name)
		rows, err := readCSV(path)
		if err != nil {
			logger.WarnContext(ctx, "Failed to read seed file", "path", path, "error", err)
			continue
		}
		if rows == nil {
			continue
		}
		res, err := importer.ParseRows(rows)
		if err != nil {
			logger.WarnContext(ctx, "Failed to parse seed file", "path", path, "error", err)
			continue
		}
		for _, d := range res.Skipped {
			logger.WarnContext(ctx, "Skipped seed row", "path", path, "row", d.Row, "reason", d.Reason, "detail", d.Detail)
		}
		if _, err := s.AppendEntries(ctx, seed.book, res.Entries...); err != nil {
			logger.WarnContext(ctx, "Failed to load seed entries", "path", path, "error", err)
		}
	}

	path := filepath.Join(base, "seed_index.csv")
	rows, err := readCSV(path)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "Failed to read seed file", "path", path, "error", err)
	case rows != nil:
		values, skipped, err := importer.ParseIndexRows(rows)
		if err != nil {
			logger.WarnContext(ctx, "Failed to parse seed file", "path", path, "error", err)
			break
		}
		for _, d := range skipped {
			logger.WarnContext(ctx, "Skipped seed row", "path", path, "row", d.Row, "reason", d.Reason, "detail", d.Detail)
		}
		for _, v := range values {
			if err := s.UpsertIndexValue(ctx, v); err != nil {
				logger.WarnContext(ctx, "Failed to load seed index value", "path", path, "year", v.Year, "month", v.Month, "error", err)
			}
		}
	}
	return s
}

func (s *Store) ListEntries(_ context.Context, book core.Book) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LedgerEntry(nil), s.books[book]...), nil
}

// AppendEntries stores all entries or none: one invalid entry rejects the
// batch.
func (s *Store) AppendEntries(_ context.Context, book core.Book, entries ...core.LedgerEntry) ([]string, error) {
	prepared, err := s.prepare(entries)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(prepared))
	for i, e := range prepared {
		ids[i] = e.ID
	}
	s.books[book] = append(s.books[book], prepared...)
	return ids, nil
}

func (s *Store) ReplaceEntries(_ context.Context, book core.Book, entries []core.LedgerEntry) error {
	prepared, err := s.prepare(entries)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[book] = prepared
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, book core.Book, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.books[book]
	for i, e := range entries {
		if e.ID == id {
			s.books[book] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("entry %s: %w", id, core.ErrNotFound)
}

func (s *Store) GetEntry(_ context.Context, book core.Book, id string) (core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.books[book] {
		if e.ID == id {
			return e, nil
		}
	}
	return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, core.ErrNotFound)
}

func (s *Store) UpdateEntry(_ context.Context, book core.Book, e core.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.books[book]
	for i := range entries {
		if entries[i].ID == e.ID {
			e.CreatedAt = entries[i].CreatedAt
			entries[i] = e
			return nil
		}
	}
	return fmt.Errorf("entry %s: %w", e.ID, core.ErrNotFound)
}

func (s *Store) ListIndexValues(_ context.Context) ([]core.IndexValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.IndexValue(nil), s.index...), nil
}

func (s *Store) UpsertIndexValue(_ context.Context, v core.IndexValue) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.index {
		if s.index[i].Year == v.Year && s.index[i].Month == v.Month {
			s.index[i].Value = v.Value
			return nil
		}
	}
	s.index = append(s.index, v)
	sort.Slice(s.index, func(i, j int) bool {
		if s.index[i].Year != s.index[j].Year {
			return s.index[i].Year < s.index[j].Year
		}
		return s.index[i].Month < s.index[j].Month
	})
	return nil
}

func (s *Store) DeleteIndexValue(_ context.Context, year, month int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.index {
		if v.Year == year && v.Month == month {
			s.index = append(s.index[:i:i], s.index[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("index value %04d-%02d: %w", year, month, core.ErrNotFound)
}

func (s *Store) Close() error { return nil }

func (s *Store) prepare(entries []core.LedgerEntry) ([]core.LedgerEntry, error) {
	out := make([]core.LedgerEntry, len(entries))
	now := s.now()
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
		out[i] = e
	}
	return out, nil
}

// readCSV returns nil rows and no error when path does not exist.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importer.ReadCSV(f)
}
