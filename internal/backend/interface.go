package backend

import (
	"context"

	"presupuesto/internal/amqp"
	"presupuesto/internal/services"
	"presupuesto/internal/storage"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult bundles the snapshot store and, when configured, the AMQP
// client used for change events.
type BackendResult struct {
	Store   storage.SnapshotStore
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the event publisher for the ledger service, or nil when
// AMQP is disabled.
func (r *BackendResult) Publisher() services.EventPublisher {
	if r == nil || r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// File specific
	SnapshotFile string

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Optional change events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of snapshot store
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	FileBackend     BackendType = "file"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
