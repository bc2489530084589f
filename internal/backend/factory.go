package backend

import (
	"context"
	"fmt"

	"findash/internal/amqp"
	"findash/internal/log"
	"findash/internal/sheets/memory"
	"findash/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(_ context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case AMQPBackend:
		return f.createAMQPBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite upload journal", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Journal: repo,
		Lister:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createAMQPBackend(config Config) (*BackendResult, error) {
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}

	f.logger.Info("Initialized AMQP upload journal",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	// records land in the worker's database, so there is nothing to list here
	return &BackendResult{
		Journal: client,
		Cleanup: client.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	journal := memory.New(config.MemoryCapacity)

	f.logger.Info("Initialized memory upload journal")

	return &BackendResult{
		Journal: journal,
		Lister:  journal,
	}, nil
}
