package backend

import (
	"context"

	"ledgerdash/internal/amqp"
	"ledgerdash/internal/ports"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// BackendResult bundles the store with the optional integrations. AMQP and
// Source are nil when not configured.
type BackendResult struct {
	Store   ports.Store
	AMQP    *amqp.Client
	Source  ports.LedgerSource
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend seed directory
	DataDirectory string

	// Optional AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Optional Google Sheets source
	GoogleSpreadsheetID      string
	GoogleLedgerSheet        string
	GoogleBudgetSheet        string
	GoogleIndexSheet         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
