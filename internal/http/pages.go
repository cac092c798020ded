package http

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/log"
)

var templateFuncs = template.FuncMap{
	"inr":      func(d decimal.Decimal) string { return formatINR(d, 2) },
	"inr0":     func(d decimal.Decimal) string { return formatINR(d, 0) },
	"datetime": formatDateTime,
	"date":     formatDate,
	"net":      func(t core.Transaction) decimal.Decimal { return t.NetAmount() },
	"lower":    strings.ToLower,
}

// page is the data shared by every page template.
type page struct {
	Title  string
	Active string
	User   core.User
	Data   any
}

// render executes the named page template into a buffer first so a
// template failure never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, p page) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate)
		HTMLErrorResponse(http.StatusInternalServerError, "templates not loaded").Write(w)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if u, err := s.ledger.FetchUser(ctx); err == nil {
		p.User = u
	} else {
		log.FromContext(r.Context()).WarnContext(r.Context(), "User lookup failed", log.FieldError, err)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, p); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			"template", name)
		HTMLErrorResponse(http.StatusInternalServerError, "failed to render page").Write(w)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) pageError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), msg, log.FieldError, err, log.FieldPath, r.URL.Path)
	}
	HTMLErrorResponse(status, msg).Write(w)
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	stats, err := s.ledger.FetchDashboardStats(ctx)
	if err != nil {
		s.pageError(w, r, http.StatusInternalServerError, "Failed to load dashboard", err)
		return
	}
	s.render(w, r, "dashboard_page", page{Title: "Dashboard", Active: "dashboard", Data: dashboardView(stats)})
}

// chartBar is one bar of the weekly collections chart, scaled to the week's maximum.
type chartBar struct {
	Label string
	Value decimal.Decimal
	Width int
}

type dashboardData struct {
	Stats  ledger.DashboardStats
	Weekly []chartBar
	Cash   int
	UPI    int
}

func dashboardView(stats ledger.DashboardStats) dashboardData {
	d := dashboardData{Stats: stats}

	maxValue := decimal.Zero
	for _, p := range stats.WeeklyOverview {
		maxValue = decimal.Max(maxValue, p.Value)
	}
	for _, p := range stats.WeeklyOverview {
		d.Weekly = append(d.Weekly, chartBar{Label: p.Name, Value: p.Value, Width: percentOf(p.Value, maxValue)})
	}
	d.Cash = percentOf(stats.CashCollectedToday, stats.TotalCollectedToday)
	d.UPI = percentOf(stats.UPICollectedToday, stats.TotalCollectedToday)
	return d
}

// percentOf returns part/whole as a rounded percentage in [0, 100].
func percentOf(part, whole decimal.Decimal) int {
	if !whole.IsPositive() || !part.IsPositive() {
		return 0
	}
	pct := int(part.Mul(decimal.NewFromInt(100)).Div(whole).Round(0).IntPart())
	return min(max(pct, 0), 100)
}

func (s *Server) handleRetailersPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	retailers, err := s.ledger.FetchRetailers(ctx)
	if err != nil {
		s.pageError(w, r, http.StatusInternalServerError, "Failed to load retailers", err)
		return
	}
	s.render(w, r, "retailers_page", page{Title: "Retailers", Active: "retailers", Data: retailers})
}

// collectionRow is a collection with its agent's display name.
type collectionRow struct {
	core.Collection
	AgentName string
}

type retailerData struct {
	Retailer     core.Retailer
	Transactions []core.Transaction
	Collections  []collectionRow
}

func (s *Server) handleRetailerPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var (
		rollup ledger.Rollup
		agents []core.Agent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rollup, err = s.ledger.FetchRetailerRollup(gctx, r.PathValue("id"))
		return err
	})
	g.Go(func() (err error) {
		agents, err = s.ledger.FetchAgents(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.pageError(w, r, http.StatusInternalServerError, "Failed to load retailer", err)
		return
	}
	if !rollup.Found {
		s.pageError(w, r, http.StatusNotFound, "Retailer not found", nil)
		return
	}

	names := make(map[string]string, len(agents))
	for _, a := range agents {
		names[a.ID] = a.Name
	}
	data := retailerData{Retailer: rollup.Retailer, Transactions: rollup.Transactions}
	for _, c := range rollup.Collections {
		name, ok := names[c.AgentID]
		if !ok {
			name = core.UnknownAgent
		}
		data.Collections = append(data.Collections, collectionRow{Collection: c, AgentName: name})
	}
	s.render(w, r, "retailer_page", page{Title: rollup.Retailer.Name, Active: "retailers", Data: data})
}

type transactionsData struct {
	Rows      []ledger.TransactionRow
	Retailers []core.Retailer
	Types     []core.TransactionType
	Query     string
	Type      string
	Start     string
	End       string
	Retailer  string
}

func (s *Server) handleTransactionsPage(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		s.pageError(w, r, http.StatusBadRequest, "Invalid filter", nil)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	var (
		rows      []ledger.TransactionRow
		retailers []core.Retailer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rows, err = s.ledger.SearchTransactions(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		retailers, err = s.ledger.FetchRetailers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.pageError(w, r, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}

	data := transactionsData{
		Rows:      rows,
		Retailers: retailers,
		Types:     []core.TransactionType{core.AutoRefill, core.PushOrder},
		Query:     f.RetailerQuery,
		Type:      f.Type,
		Retailer:  f.RetailerID,
	}
	if f.StartDate != nil {
		data.Start = f.StartDate.String()
	}
	if f.EndDate != nil {
		data.End = f.EndDate.String()
	}
	s.render(w, r, "transactions_page", page{Title: "Transactions", Active: "transactions", Data: data})
}

func (s *Server) handleReportsPage(w http.ResponseWriter, r *http.Request) {
	day, err := s.reportDay(r)
	if err != nil {
		s.pageError(w, r, http.StatusBadRequest, "Invalid date: expected YYYY-MM-DD", nil)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	report, err := s.reports.Build(ctx, day)
	if err != nil {
		s.pageError(w, r, http.StatusInternalServerError, "Failed to build report", err)
		return
	}
	s.render(w, r, "reports_page", page{Title: "Reports", Active: "reports", Data: report})
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "settings_page", page{Title: "Settings", Active: "settings"})
}
