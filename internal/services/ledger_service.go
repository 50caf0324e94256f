package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"ledgerdash/internal/amqp"
	"ledgerdash/internal/core"
	"ledgerdash/internal/importer"
	"ledgerdash/internal/log"
	"ledgerdash/internal/ports"
)

// TargetIndex names the index in import and sync requests. The books use
// their own names.
const TargetIndex = amqp.TargetIndex

// EventPublisher announces finished imports. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, msg amqp.ImportCompletedMessage) error
}

// Invalidator drops derived data after a write.
type Invalidator interface {
	Invalidate()
}

// LedgerService orchestrates writes across the store, the report cache and
// AMQP.
type LedgerService struct {
	store       ports.Store
	invalidator Invalidator
	publisher   EventPublisher
	loc         *time.Location
	now         func() time.Time
	logger      *log.Logger
}

// NewLedgerService wires the write path. invalidator and publisher may be
// nil.
func NewLedgerService(store ports.Store, invalidator Invalidator, publisher EventPublisher, loc *time.Location, logger *log.Logger) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		store:       store,
		invalidator: invalidator,
		publisher:   publisher,
		loc:         loc,
		now:         time.Now,
		logger:      logger.WithComponent(log.ComponentImport),
	}
}

// AddEntries stores entries in book. Either all of them are stored or none.
func (s *LedgerService) AddEntries(ctx context.Context, book core.Book, entries ...core.LedgerEntry) ([]string, error) {
	ids, err := s.store.AppendEntries(ctx, book, entries...)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", book, err)
	}
	s.logger.Fields(ctx, slog.LevelDebug, "Entries stored", log.NewFields().
		WithOperation(log.OpCreate).
		WithBook(book).
		With(log.FieldEntries, len(ids)))
	s.invalidate()
	return ids, nil
}

func (s *LedgerService) GetEntry(ctx context.Context, book core.Book, id string) (core.LedgerEntry, error) {
	e, err := s.store.GetEntry(ctx, book, id)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get %s entry: %w", book, err)
	}
	return e, nil
}

// UpdateEntry overwrites the entry with e.ID and returns the stored version.
func (s *LedgerService) UpdateEntry(ctx context.Context, book core.Book, e core.LedgerEntry) (core.LedgerEntry, error) {
	if err := s.store.UpdateEntry(ctx, book, e); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update %s entry: %w", book, err)
	}
	s.logger.Fields(ctx, slog.LevelDebug, "Entry updated", log.NewFields().
		WithOperation(log.OpUpdate).
		WithBook(book).
		With("id", e.ID))
	s.invalidate()
	return s.GetEntry(ctx, book, e.ID)
}

func (s *LedgerService) DeleteEntry(ctx context.Context, book core.Book, id string) error {
	if err := s.store.DeleteEntry(ctx, book, id); err != nil {
		return fmt.Errorf("delete %s entry: %w", book, err)
	}
	s.logger.Fields(ctx, slog.LevelDebug, "Entry deleted", log.NewFields().
		WithOperation(log.OpDelete).
		WithBook(book).
		With("id", id))
	s.invalidate()
	return nil
}

func (s *LedgerService) ListIndexValues(ctx context.Context) ([]core.IndexValue, error) {
	return s.store.ListIndexValues(ctx)
}

func (s *LedgerService) UpsertIndexValue(ctx context.Context, v core.IndexValue) error {
	if err := s.store.UpsertIndexValue(ctx, v); err != nil {
		return fmt.Errorf("save index value: %w", err)
	}
	s.invalidate()
	return nil
}

func (s *LedgerService) DeleteIndexValue(ctx context.Context, year, month int) error {
	if err := core.ValidateMonth(month); err != nil {
		return err
	}
	if err := s.store.DeleteIndexValue(ctx, year, month); err != nil {
		return fmt.Errorf("delete index value: %w", err)
	}
	s.logger.Fields(ctx, slog.LevelDebug, "Index value deleted", log.NewFields().
		WithOperation(log.OpDelete).
		With("year", year).
		With("month", month))
	s.invalidate()
	return nil
}

// ImportResult summarises one uploaded file.
type ImportResult struct {
	Target   string
	Rows     int
	Imported int
	IDs      []string
	Skipped  []core.Diagnostic
}

// Import reads a CSV or XLSX file and appends its valid rows to target,
// which is a book name or TargetIndex. Invalid rows are reported, not
// fatal; a bad header or an unreadable file is.
func (s *LedgerService) Import(ctx context.Context, target, filename string, r io.Reader, opts ...importer.Option) (ImportResult, error) {
	rows, err := importer.ReadFile(filename, r)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	if target == TargetIndex {
		res, err = s.importIndex(ctx, rows)
	} else {
		res, err = s.importEntries(ctx, target, rows, opts)
	}
	if err != nil {
		return ImportResult{}, err
	}

	fields := log.NewFields().
		WithOperation(log.OpImport).
		With(log.FieldTarget, res.Target).
		With(log.FieldFile, filename).
		With(log.FieldEntries, res.Imported).
		WithDiagnostics(res.Skipped)
	s.logger.Fields(ctx, levelFor(res.Skipped), "Import finished", fields)

	s.invalidate()
	s.publish(ctx, amqp.ImportCompletedMessage{
		Target:    res.Target,
		Imported:  res.Imported,
		Skipped:   len(res.Skipped),
		Timestamp: s.now(),
	})
	return res, nil
}

func (s *LedgerService) importEntries(ctx context.Context, target string, rows [][]string, opts []importer.Option) (ImportResult, error) {
	book, err := core.ParseBook(target)
	if err != nil {
		return ImportResult{}, err
	}
	parsed, err := importer.ParseRows(rows, append([]importer.Option{importer.WithLocation(s.loc)}, opts...)...)
	if err != nil {
		return ImportResult{}, err
	}
	res := ImportResult{Target: string(book), Rows: parsed.Rows, Skipped: parsed.Skipped}
	if len(parsed.Entries) == 0 {
		return res, nil
	}
	ids, err := s.store.AppendEntries(ctx, book, parsed.Entries...)
	if err != nil {
		return ImportResult{}, fmt.Errorf("save %s: %w", book, err)
	}
	res.IDs = ids
	res.Imported = len(ids)
	return res, nil
}

func (s *LedgerService) importIndex(ctx context.Context, rows [][]string) (ImportResult, error) {
	values, skipped, err := importer.ParseIndexRows(rows)
	if err != nil {
		return ImportResult{}, err
	}
	for _, v := range values {
		if err := s.store.UpsertIndexValue(ctx, v); err != nil {
			return ImportResult{}, fmt.Errorf("save index value %04d-%02d: %w", v.Year, v.Month, err)
		}
	}
	return ImportResult{
		Target:   TargetIndex,
		Rows:     len(values) + len(skipped),
		Imported: len(values),
		Skipped:  skipped,
	}, nil
}

func (s *LedgerService) invalidate() {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
}

// publish is best effort: the data is already stored.
func (s *LedgerService) publish(ctx context.Context, msg amqp.ImportCompletedMessage) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP not configured, skipping import event")
		return
	}
	if err := s.publisher.PublishImportCompleted(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish import event", log.FieldTarget, msg.Target, log.FieldError, err)
	}
}

// Close closes the store.
func (s *LedgerService) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

const levelError = slog.LevelError

func levelFor(skipped []core.Diagnostic) slog.Level {
	if len(skipped) > 0 {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
