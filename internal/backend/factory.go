package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerdash/internal/amqp"
	"ledgerdash/internal/log"
	"ledgerdash/internal/ports"
	gsheet "ledgerdash/internal/sheets/google"
	"ledgerdash/internal/storage"
	"ledgerdash/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	loc    *time.Location
}

// NewFactory creates a backend factory. loc is the zone sheet dates are
// read in.
func NewFactory(logger *log.Logger, loc *time.Location) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		loc:    loc,
	}
}

// CreateBackend opens the store, then the optional integrations. A broker
// that cannot be reached is logged and skipped; a misconfigured Sheets
// source is an error.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}
	res := &BackendResult{Store: store}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			res.AMQP = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	if config.GoogleSpreadsheetID != "" {
		src, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			LedgerSheet:     config.GoogleLedgerSheet,
			BudgetSheet:     config.GoogleBudgetSheet,
			IndexSheet:      config.GoogleIndexSheet,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
			Location:        f.loc,
		})
		if err != nil {
			res.close()
			return nil, fmt.Errorf("failed to initialize Google Sheets source: %w", err)
		}
		res.Source = src
	}

	res.Cleanup = res.close
	return res, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (ports.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)
		return memory.NewFromFiles(dataDir, f.logger.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (r *BackendResult) close() error {
	var errs []error
	if r.AMQP != nil {
		if err := r.AMQP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}
