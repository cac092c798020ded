package backend

import (
	"context"

	"ledgerdesk/internal/services"
	"ledgerdesk/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// PingFunc reports whether the backing store is reachable.
type PingFunc func(ctx context.Context) error

// BackendResult contains the wired ledger service and its resources.
type BackendResult struct {
	Store   store.Backend
	Service *services.LedgerService
	Cleanup CleanupFunc
	Ping    PingFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
