// Package ledger implements the aggregation and query engine behind the
// dashboard, the retailer pages and the transaction log.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/store"
)

// Engine answers ledger queries over a store and runs the validated write
// paths. It assumes a single writer; the store serializes individual calls.
type Engine struct {
	store store.Backend
	now   func() time.Time
	loc   *time.Location
}

type Option func(*Engine)

// WithClock overrides the time source used to determine "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the timezone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func New(s store.Backend, opts ...Option) *Engine {
	e := &Engine{store: s, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rollup groups a retailer with its transactions and collections.
type Rollup struct {
	Found        bool               `json:"found"`
	Retailer     core.Retailer      `json:"retailer"`
	Transactions []core.Transaction `json:"transactions"`
	Collections  []core.Collection  `json:"collections"`
}

// TransactionRow is a transaction enriched for display.
type TransactionRow struct {
	core.Transaction
	RetailerName string          `json:"retailerName"`
	NetAmount    decimal.Decimal `json:"netAmount"`
}

// Today is the current calendar day in the engine's timezone.
func (e *Engine) Today() core.Date {
	return core.DateOf(e.now().In(e.loc))
}

func (e *Engine) FetchUser(ctx context.Context) (core.User, error) {
	u, err := e.store.GetUser(ctx)
	if err != nil {
		return core.User{}, fmt.Errorf("fetch user: %w", err)
	}
	return u, nil
}

// UpdateUser merges patch into the current profile.
func (e *Engine) UpdateUser(ctx context.Context, patch core.UserPatch) (core.User, error) {
	if err := patch.Validate(); err != nil {
		return core.User{}, err
	}
	current, err := e.store.GetUser(ctx)
	if err != nil {
		return core.User{}, fmt.Errorf("fetch user: %w", err)
	}
	u, err := e.store.SaveUser(ctx, patch.Apply(current))
	if err != nil {
		return core.User{}, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

// FetchDashboardStats computes the dashboard snapshot for today.
func (e *Engine) FetchDashboardStats(ctx context.Context) (DashboardStats, error) {
	return e.DashboardStatsOn(ctx, e.Today())
}

// DashboardStatsOn computes the dashboard snapshot as of day.
func (e *Engine) DashboardStatsOn(ctx context.Context, day core.Date) (DashboardStats, error) {
	var (
		collections []core.Collection
		retailers   []core.Retailer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		collections, err = e.store.ListCollections(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		retailers, err = e.store.ListRetailers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardStats{}, fmt.Errorf("load dashboard data: %w", err)
	}
	return ComputeDashboardStats(collections, retailers, day), nil
}

func (e *Engine) FetchRetailers(ctx context.Context) ([]core.Retailer, error) {
	rs, err := e.store.ListRetailers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list retailers: %w", err)
	}
	return rs, nil
}

// FetchRetailerByID reports found=false, not an error, for unknown IDs.
func (e *Engine) FetchRetailerByID(ctx context.Context, id string) (core.Retailer, bool, error) {
	r, found, err := e.store.GetRetailer(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Retailer{}, false, fmt.Errorf("get retailer %s: %w", id, err)
	}
	return r, found, nil
}

// FetchRetailerRollup loads a retailer with its transactions and collections
// concurrently.
func (e *Engine) FetchRetailerRollup(ctx context.Context, id string) (Rollup, error) {
	id = strings.TrimSpace(id)
	var roll Rollup
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		roll.Retailer, roll.Found, err = e.store.GetRetailer(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		roll.Transactions, err = e.store.ListTransactions(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		roll.Collections, err = e.store.ListCollections(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Rollup{}, fmt.Errorf("load rollup for %s: %w", id, err)
	}
	if !roll.Found {
		return Rollup{Transactions: []core.Transaction{}, Collections: []core.Collection{}}, nil
	}
	return roll, nil
}

// SaveRetailer creates the retailer when draft.ID is empty, otherwise
// replaces the existing entry.
func (e *Engine) SaveRetailer(ctx context.Context, draft core.RetailerDraft) (core.Retailer, error) {
	if strings.TrimSpace(draft.ID) == "" {
		return e.CreateRetailer(ctx, draft)
	}
	return e.UpdateRetailer(ctx, draft)
}

// CreateRetailer validates draft and stores it under a new ID. Any ID on the
// draft is ignored.
func (e *Engine) CreateRetailer(ctx context.Context, draft core.RetailerDraft) (core.Retailer, error) {
	if err := draft.Validate(); err != nil {
		return core.Retailer{}, err
	}
	r := draft.Retailer()
	r.ID = ""
	created, err := e.store.CreateRetailer(ctx, r)
	if err != nil {
		return core.Retailer{}, fmt.Errorf("create retailer: %w", err)
	}
	return created, nil
}

// UpdateRetailer fully replaces the retailer with draft.ID.
func (e *Engine) UpdateRetailer(ctx context.Context, draft core.RetailerDraft) (core.Retailer, error) {
	if err := draft.Validate(); err != nil {
		return core.Retailer{}, err
	}
	r := draft.Retailer()
	if r.ID == "" {
		return core.Retailer{}, core.ErrNotFound
	}
	updated, err := e.store.ReplaceRetailer(ctx, r)
	if err != nil {
		return core.Retailer{}, fmt.Errorf("update retailer %s: %w", r.ID, err)
	}
	return updated, nil
}

// DeleteRetailer removes the retailer and returns its ID. Transactions and
// collections that reference it are kept.
func (e *Engine) DeleteRetailer(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := e.store.DeleteRetailer(ctx, id); err != nil {
		return "", fmt.Errorf("delete retailer %s: %w", id, err)
	}
	return id, nil
}

// FetchTransactions returns transactions newest first, optionally limited to
// one retailer.
func (e *Engine) FetchTransactions(ctx context.Context, retailerID string) ([]core.Transaction, error) {
	txs, err := e.store.ListTransactions(ctx, strings.TrimSpace(retailerID))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (e *Engine) SaveTransaction(ctx context.Context, draft core.TransactionDraft) (core.Transaction, error) {
	if strings.TrimSpace(draft.ID) == "" {
		return e.CreateTransaction(ctx, draft)
	}
	return e.UpdateTransaction(ctx, draft)
}

func (e *Engine) CreateTransaction(ctx context.Context, draft core.TransactionDraft) (core.Transaction, error) {
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t := draft.Transaction()
	t.ID = ""
	created, err := e.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return created, nil
}

func (e *Engine) UpdateTransaction(ctx context.Context, draft core.TransactionDraft) (core.Transaction, error) {
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t := draft.Transaction()
	if t.ID == "" {
		return core.Transaction{}, core.ErrNotFound
	}
	updated, err := e.store.ReplaceTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return updated, nil
}

// SearchTransactions applies f and enriches each match with the retailer name
// and net amount.
func (e *Engine) SearchTransactions(ctx context.Context, f Filter) ([]TransactionRow, error) {
	var (
		txs       []core.Transaction
		retailers []core.Retailer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		txs, err = e.store.ListTransactions(gctx, strings.TrimSpace(f.RetailerID))
		return err
	})
	g.Go(func() (err error) {
		retailers, err = e.store.ListRetailers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search transactions: %w", err)
	}

	names := NamesOf(retailers)
	matched := FilterTransactions(txs, names, f)
	rows := make([]TransactionRow, len(matched))
	for i, t := range matched {
		rows[i] = TransactionRow{
			Transaction:  t,
			RetailerName: names.Name(t.RetailerID),
			NetAmount:    t.NetAmount(),
		}
	}
	return rows, nil
}

// FetchCollections returns collections for one retailer, or all of them when
// retailerID is empty.
func (e *Engine) FetchCollections(ctx context.Context, retailerID string) ([]core.Collection, error) {
	cs, err := e.store.ListCollections(ctx, strings.TrimSpace(retailerID))
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return cs, nil
}

func (e *Engine) FetchAgents(ctx context.Context) ([]core.Agent, error) {
	as, err := e.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return as, nil
}
