package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/cache"
	"ledgerdesk/internal/core"
	"ledgerdesk/internal/ledger"
)

const statsCacheTTL = 30 * time.Second

// Publisher sends ledger events. *amqp.Client satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// LedgerService is the facade used by the HTTP layer: reads go straight to
// the engine, writes additionally publish a ledger event and invalidate
// cached dashboard stats.
type LedgerService struct {
	*ledger.Engine
	publisher Publisher
	stats     *cache.LRUCache[ledger.DashboardStats]
	closers   []io.Closer

	// writeGen counts writes; a stats load that overlaps a write is not cached.
	statsMu  sync.Mutex
	writeGen uint64
}

// NewLedgerService wires the engine to an optional publisher. Closers are
// released by Close in order.
func NewLedgerService(engine *ledger.Engine, publisher Publisher, closers ...io.Closer) *LedgerService {
	return &LedgerService{
		Engine:    engine,
		publisher: publisher,
		stats:     cache.NewLRUCache[ledger.DashboardStats](8, statsCacheTTL).WithClone(ledger.DashboardStats.Clone),
		closers:   closers,
	}
}

// StatsCache exposes the dashboard cache for periodic cleanup.
func (s *LedgerService) StatsCache() cache.Cleaner {
	return s.stats
}

// FetchDashboardStats serves today's stats from cache when fresh.
func (s *LedgerService) FetchDashboardStats(ctx context.Context) (ledger.DashboardStats, error) {
	today := s.Today()
	key := today.String()
	if stats, ok := s.stats.Get(key); ok {
		return stats, nil
	}
	s.statsMu.Lock()
	gen := s.writeGen
	s.statsMu.Unlock()

	stats, err := s.DashboardStatsOn(ctx, today)
	if err != nil {
		return ledger.DashboardStats{}, err
	}

	s.statsMu.Lock()
	if s.writeGen == gen {
		s.stats.Set(key, stats)
	}
	s.statsMu.Unlock()
	return stats, nil
}

func (s *LedgerService) UpdateUser(ctx context.Context, patch core.UserPatch) (core.User, error) {
	u, err := s.Engine.UpdateUser(ctx, patch)
	if err != nil {
		return core.User{}, err
	}
	s.written(ctx, amqp.UserUpdated, u.ID)
	return u, nil
}

func (s *LedgerService) SaveRetailer(ctx context.Context, draft core.RetailerDraft) (core.Retailer, error) {
	if strings.TrimSpace(draft.ID) == "" {
		return s.CreateRetailer(ctx, draft)
	}
	return s.UpdateRetailer(ctx, draft)
}

func (s *LedgerService) CreateRetailer(ctx context.Context, draft core.RetailerDraft) (core.Retailer, error) {
	r, err := s.Engine.CreateRetailer(ctx, draft)
	if err != nil {
		return core.Retailer{}, err
	}
	s.written(ctx, amqp.RetailerCreated, r.ID)
	return r, nil
}

func (s *LedgerService) UpdateRetailer(ctx context.Context, draft core.RetailerDraft) (core.Retailer, error) {
	r, err := s.Engine.UpdateRetailer(ctx, draft)
	if err != nil {
		return core.Retailer{}, err
	}
	s.written(ctx, amqp.RetailerUpdated, r.ID)
	return r, nil
}

func (s *LedgerService) DeleteRetailer(ctx context.Context, id string) (string, error) {
	deleted, err := s.Engine.DeleteRetailer(ctx, id)
	if err != nil {
		return "", err
	}
	s.written(ctx, amqp.RetailerDeleted, deleted)
	return deleted, nil
}

func (s *LedgerService) SaveTransaction(ctx context.Context, draft core.TransactionDraft) (core.Transaction, error) {
	if strings.TrimSpace(draft.ID) == "" {
		return s.CreateTransaction(ctx, draft)
	}
	return s.UpdateTransaction(ctx, draft)
}

func (s *LedgerService) CreateTransaction(ctx context.Context, draft core.TransactionDraft) (core.Transaction, error) {
	t, err := s.Engine.CreateTransaction(ctx, draft)
	if err != nil {
		return core.Transaction{}, err
	}
	s.written(ctx, amqp.TransactionCreated, t.ID)
	return t, nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, draft core.TransactionDraft) (core.Transaction, error) {
	t, err := s.Engine.UpdateTransaction(ctx, draft)
	if err != nil {
		return core.Transaction{}, err
	}
	s.written(ctx, amqp.TransactionUpdated, t.ID)
	return t, nil
}

// written runs after a successful write. Publication failures are logged and
// never fail the write, which has already happened.
func (s *LedgerService) written(ctx context.Context, kind amqp.EventKind, id string) {
	s.statsMu.Lock()
	s.writeGen++
	s.stats.Purge()
	s.statsMu.Unlock()

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping ledger event", "event_kind", kind, "entity_id", id)
		return
	}
	event := amqp.NewLedgerEvent(kind, id)
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event_id", event.ID,
			"event_kind", kind,
			"entity_id", id,
			"error", err)
	}
}

// Close releases the store and the AMQP connection.
func (s *LedgerService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
