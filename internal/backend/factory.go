package backend

import (
	"context"
	"errors"
	"fmt"

	"presupuesto/internal/amqp"
	"presupuesto/internal/log"
	"presupuesto/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the configured snapshot store and, when an AMQP URL is
// set, the event client. A broker that cannot be reached is logged and the
// backend runs without events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store storage.SnapshotStore
		err   error
	)
	switch config.Type {
	case MemoryBackend:
		store = storage.NewMemoryStore()
	case FileBackend:
		store, err = storage.NewFileStore(config.SnapshotFile)
	case SQLiteBackend:
		store, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
	case PostgresBackend:
		store, err = storage.NewPostgresRepository(ctx, config.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", config.Type, err)
	}

	result := &BackendResult{Store: store}
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
				log.FieldError, err)
		} else {
			result.AMQP = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		if result.AMQP != nil {
			errs = append(errs, result.AMQP.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		log.FieldBackend, config.Type.String(),
		"amqp_enabled", result.AMQP != nil)
	return result, nil
}
