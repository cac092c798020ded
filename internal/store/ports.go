package store

import (
	"context"

	"ledgerdesk/internal/core"
)

// Ports for the ledger backends. Every returned value must be an independent
// copy: callers may mutate what they receive without affecting the store.
type (
	Retailers interface {
		// ListRetailers returns retailers in collection order (newest first).
		ListRetailers(ctx context.Context) ([]core.Retailer, error)
		GetRetailer(ctx context.Context, id string) (r core.Retailer, found bool, err error)
		// CreateRetailer assigns the next R-sequence ID and prepends r.
		CreateRetailer(ctx context.Context, r core.Retailer) (core.Retailer, error)
		// ReplaceRetailer overwrites the entry with r.ID in place.
		ReplaceRetailer(ctx context.Context, r core.Retailer) (core.Retailer, error)
		DeleteRetailer(ctx context.Context, id string) error
	}

	Transactions interface {
		// ListTransactions returns transactions sorted by time, newest first.
		// An empty retailerID returns all of them.
		ListTransactions(ctx context.Context, retailerID string) ([]core.Transaction, error)
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		ReplaceTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	Collections interface {
		// ListCollections returns collections in source order. An empty
		// retailerID returns all of them.
		ListCollections(ctx context.Context, retailerID string) ([]core.Collection, error)
	}

	Agents interface {
		ListAgents(ctx context.Context) ([]core.Agent, error)
	}

	Users interface {
		GetUser(ctx context.Context) (core.User, error)
		SaveUser(ctx context.Context, u core.User) (core.User, error)
	}

	// Backend is the full persistence surface consumed by the ledger engine.
	Backend interface {
		Retailers
		Transactions
		Collections
		Agents
		Users
	}
)
