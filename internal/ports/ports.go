package ports

import (
	"context"

	"ledgerdash/internal/core"
)

// Ports for outbound adapters. Every store implementation must be safe for
// concurrent use.
type (
	EntryLister interface {
		// ListEntries returns every entry of the book in insertion order.
		ListEntries(ctx context.Context, book core.Book) ([]core.LedgerEntry, error)
	}

	EntryReader interface {
		// GetEntry fails with core.ErrNotFound for unknown IDs.
		GetEntry(ctx context.Context, book core.Book, id string) (core.LedgerEntry, error)
	}

	EntryWriter interface {
		// AppendEntries validates and stores entries, assigning IDs to those
		// without one. It returns the stored IDs in input order.
		AppendEntries(ctx context.Context, book core.Book, entries ...core.LedgerEntry) ([]string, error)
		// ReplaceEntries swaps the whole content of the book.
		ReplaceEntries(ctx context.Context, book core.Book, entries []core.LedgerEntry) error
	}

	EntryUpdater interface {
		// UpdateEntry validates e and overwrites the stored entry with the
		// same ID, keeping its position and creation time. Unknown IDs fail
		// with core.ErrNotFound.
		UpdateEntry(ctx context.Context, book core.Book, e core.LedgerEntry) error
	}

	EntryDeleter interface {
		// DeleteEntry fails with core.ErrNotFound for unknown IDs.
		DeleteEntry(ctx context.Context, book core.Book, id string) error
	}

	IndexReader interface {
		// ListIndexValues returns the index ordered by year and month.
		ListIndexValues(ctx context.Context) ([]core.IndexValue, error)
	}

	IndexWriter interface {
		// UpsertIndexValue inserts or replaces the value for (year, month).
		UpsertIndexValue(ctx context.Context, v core.IndexValue) error
	}

	IndexDeleter interface {
		// DeleteIndexValue removes the value for (year, month) or fails with
		// core.ErrNotFound.
		DeleteIndexValue(ctx context.Context, year, month int) error
	}

	// LedgerSource is an external spreadsheet the store can be refreshed
	// from. Rows it cannot read come back as diagnostics.
	LedgerSource interface {
		ReadEntries(ctx context.Context, book core.Book) ([]core.LedgerEntry, []core.Diagnostic, error)
		ReadIndexValues(ctx context.Context) ([]core.IndexValue, []core.Diagnostic, error)
	}

	// Store is the full persistence surface a backend provides.
	Store interface {
		EntryLister
		EntryReader
		EntryWriter
		EntryUpdater
		EntryDeleter
		IndexReader
		IndexWriter
		IndexDeleter
		Close() error
	}
)
