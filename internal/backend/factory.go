package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/services"
	"ledgerdesk/internal/storage"
	"ledgerdesk/internal/store"
	"ledgerdesk/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, ping, closers, err := f.openStore(config)
	if err != nil {
		return nil, err
	}

	// Initialize AMQP client (optional)
	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without ledger events", "error", err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			publisher = client
			closers = append([]io.Closer{client}, closers...)
		}
	}

	var opts []ledger.Option
	if config.Location != nil {
		opts = append(opts, ledger.WithLocation(config.Location))
	}
	service := services.NewLedgerService(ledger.New(st, opts...), publisher, closers...)

	f.logger.InfoContext(ctx, "Initialized ledger backend",
		"type", config.Type.String(),
		"events_enabled", publisher != nil)

	return &BackendResult{
		Store:   st,
		Service: service,
		Cleanup: service.Close,
		Ping:    ping,
	}, nil
}

func (f *DefaultFactory) openStore(config Config) (store.Backend, PingFunc, []io.Closer, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, repo.Ping, []io.Closer{repo}, nil

	case MemoryBackend:
		var st *memory.Store
		if config.SeedDir == "" {
			st = memory.New(memory.DefaultSeed())
		} else {
			var err error
			if st, err = memory.NewFromDir(config.SeedDir); err != nil {
				return nil, nil, nil, fmt.Errorf("failed to load seed data: %w", err)
			}
		}
		f.logger.Info("Initialized memory store", "seed_dir", config.SeedDir)
		return st, func(context.Context) error { return nil }, nil, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
