// Package reports builds the daily ledger report and renders it as XLSX.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/ledger"
)

// Source is the read side of the ledger the builder needs.
type Source interface {
	DashboardStatsOn(ctx context.Context, day core.Date) (ledger.DashboardStats, error)
	FetchRetailers(ctx context.Context) ([]core.Retailer, error)
	FetchTransactions(ctx context.Context, retailerID string) ([]core.Transaction, error)
	FetchCollections(ctx context.Context, retailerID string) ([]core.Collection, error)
	FetchAgents(ctx context.Context) ([]core.Agent, error)
}

type TransactionLine struct {
	ID             string               `json:"id"`
	Time           time.Time            `json:"time"`
	RetailerID     string               `json:"retailerId"`
	RetailerName   string               `json:"retailerName"`
	Type           core.TransactionType `json:"type"`
	Gross          decimal.Decimal      `json:"gross"`
	CommissionRate decimal.Decimal      `json:"commissionRate"`
	Commission     decimal.Decimal      `json:"commission"`
	Net            decimal.Decimal      `json:"net"`
}

type CollectionLine struct {
	ID           string                `json:"id"`
	RetailerName string                `json:"retailerName"`
	AgentName    string                `json:"agentName"`
	Amount       decimal.Decimal       `json:"amount"`
	Method       core.CollectionMethod `json:"method"`
	Status       core.CollectionStatus `json:"status"`
	ProofURL     string                `json:"proofUrl,omitempty"`
}

// Totals aggregates the day's transaction lines.
type Totals struct {
	Count      int             `json:"count"`
	Gross      decimal.Decimal `json:"gross"`
	Commission decimal.Decimal `json:"commission"`
	Net        decimal.Decimal `json:"net"`
}

type DailyReport struct {
	Date         core.Date             `json:"date"`
	GeneratedAt  time.Time             `json:"generatedAt"`
	Stats        ledger.DashboardStats `json:"stats"`
	Transactions []TransactionLine     `json:"transactions"`
	Collections  []CollectionLine      `json:"collections"`
	Totals       Totals                `json:"totals"`
}

// Filename is the on-disk name of the report's XLSX export.
func (r DailyReport) Filename() string {
	return fmt.Sprintf("daily-%s.xlsx", r.Date)
}

type Builder struct {
	source Source
	now    func() time.Time
}

func NewBuilder(source Source) *Builder {
	return &Builder{source: source, now: time.Now}
}

// WithClock overrides the generation timestamp source.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build assembles the report for day. Transactions are matched on their UTC
// calendar day, collections on their recorded date.
func (b *Builder) Build(ctx context.Context, day core.Date) (DailyReport, error) {
	var (
		stats       ledger.DashboardStats
		retailers   []core.Retailer
		txs         []core.Transaction
		collections []core.Collection
		agents      []core.Agent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats, err = b.source.DashboardStatsOn(gctx, day)
		return err
	})
	g.Go(func() (err error) {
		retailers, err = b.source.FetchRetailers(gctx)
		return err
	})
	g.Go(func() (err error) {
		txs, err = b.source.FetchTransactions(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		collections, err = b.source.FetchCollections(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		agents, err = b.source.FetchAgents(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return DailyReport{}, fmt.Errorf("failed to load report data for %s: %w", day, err)
	}

	names := ledger.NamesOf(retailers)
	agentNames := make(map[string]string, len(agents))
	for _, a := range agents {
		agentNames[a.ID] = a.Name
	}

	report := DailyReport{
		Date:         day,
		GeneratedAt:  b.now().UTC(),
		Stats:        stats,
		Transactions: []TransactionLine{},
		Collections:  []CollectionLine{},
		Totals:       Totals{Gross: decimal.Zero, Commission: decimal.Zero, Net: decimal.Zero},
	}

	dayTxs := ledger.FilterTransactions(txs, names, ledger.Filter{StartDate: &day, EndDate: &day})
	for _, t := range dayTxs {
		line := transactionLine(t, names)
		report.Transactions = append(report.Transactions, line)
		report.Totals.Count++
		report.Totals.Gross = report.Totals.Gross.Add(line.Gross)
		report.Totals.Commission = report.Totals.Commission.Add(line.Commission)
		report.Totals.Net = report.Totals.Net.Add(line.Net)
	}

	for _, c := range collections {
		if !c.Date.Equal(day) {
			continue
		}
		agent, ok := agentNames[c.AgentID]
		if !ok {
			agent = core.UnknownAgent
		}
		report.Collections = append(report.Collections, CollectionLine{
			ID:           c.ID,
			RetailerName: names.Name(c.RetailerID),
			AgentName:    agent,
			Amount:       c.Amount,
			Method:       c.Method,
			Status:       c.Status,
			ProofURL:     c.ProofURL,
		})
	}

	return report, nil
}

func transactionLine(t core.Transaction, names ledger.NameLookup) TransactionLine {
	net := t.NetAmount()
	return TransactionLine{
		ID:             t.ID,
		Time:           t.Time,
		RetailerID:     t.RetailerID,
		RetailerName:   names.Name(t.RetailerID),
		Type:           t.Type,
		Gross:          t.Amount,
		CommissionRate: t.CommissionRate,
		Commission:     t.Amount.Sub(net),
		Net:            net,
	}
}
