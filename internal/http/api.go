package http

import (
	"bytes"
	"errors"
	"net/http"
	"sync/atomic"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/reports"
)

// fail logs err and writes the mapped response. Validation and not-found
// outcomes are logged at debug, everything else as an error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := log.FromContext(r.Context())
	if _, ok := core.AsValidationError(err); ok {
		logger.DebugContext(r.Context(), "Request rejected by validation", log.FieldOperation, op, log.FieldError, err)
	} else if errors.Is(err, core.ErrNotFound) {
		logger.DebugContext(r.Context(), "Entity not found", log.FieldOperation, op, log.FieldError, err)
	} else {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Ledger operation failed", err, op, nil)
	}
	FromError(err).Write(w)
}

// failWrite is fail for write endpoints; it also counts the failure.
func (s *Server) failWrite(w http.ResponseWriter, r *http.Request, op string, err error) {
	atomic.AddInt64(&s.appMetrics.writeFailures, 1)
	s.fail(w, r, op, err)
}

func (s *Server) written(r *http.Request, op, entity, id string) {
	atomic.AddInt64(&s.appMetrics.ledgerWrites, 1)
	log.NewStructuredLogger(log.FromContext(r.Context())).LogLedgerWrite(r.Context(), op, entity, id)
}

// parseBody reads a JSON or form body, writing a 400 on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Malformed request body: " + err.Error()).Write(w)
		return nil, false
	}
	return p, true
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	u, err := s.ledger.FetchUser(ctx)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(u).Write(w)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	u, err := s.ledger.UpdateUser(ctx, p.userPatch())
	if err != nil {
		s.failWrite(w, r, log.OpUpdate, err)
		return
	}
	s.written(r, log.OpUpdate, "user", u.ID)
	NewResponse().JSON(u).Write(w)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	stats, err := s.ledger.FetchDashboardStats(ctx)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(stats).Write(w)
}

func (s *Server) handleListRetailers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	retailers, err := s.ledger.FetchRetailers(ctx)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(retailers).Write(w)
}

func (s *Server) handleGetRetailer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	retailer, found, err := s.ledger.FetchRetailerByID(ctx, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	if !found {
		NotFoundError("retailer not found").Write(w)
		return
	}
	NewResponse().JSON(retailer).Write(w)
}

func (s *Server) handleRetailerRollup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	rollup, err := s.ledger.FetchRetailerRollup(ctx, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(rollup).Write(w)
}

func (s *Server) handleCreateRetailer(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	draft, err := p.retailerDraft("")
	if err != nil {
		s.failWrite(w, r, log.OpCreate, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	created, err := s.ledger.CreateRetailer(ctx, draft)
	if err != nil {
		s.failWrite(w, r, log.OpCreate, err)
		return
	}
	s.written(r, log.OpCreate, "retailer", created.ID)
	NewResponse().Status(http.StatusCreated).
		Header("Location", "/api/retailers/"+created.ID).
		JSON(created).
		Write(w)
}

func (s *Server) handleUpdateRetailer(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	draft, err := p.retailerDraft(r.PathValue("id"))
	if err != nil {
		s.failWrite(w, r, log.OpUpdate, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	updated, err := s.ledger.UpdateRetailer(ctx, draft)
	if err != nil {
		s.failWrite(w, r, log.OpUpdate, err)
		return
	}
	s.written(r, log.OpUpdate, "retailer", updated.ID)
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteRetailer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	id, err := s.ledger.DeleteRetailer(ctx, r.PathValue("id"))
	if err != nil {
		s.failWrite(w, r, log.OpDelete, err)
		return
	}
	s.written(r, log.OpDelete, "retailer", id)
	NewResponse().JSON(map[string]string{"id": id}).Write(w)
}

func (s *Server) handleRetailerCollections(w http.ResponseWriter, r *http.Request) {
	s.listCollections(w, r, r.PathValue("id"))
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	s.listCollections(w, r, sanitizeInput(r.URL.Query().Get("retailerId")))
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request, retailerID string) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cs, err := s.ledger.FetchCollections(ctx, retailerID)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(cs).Write(w)
}

// handleListTransactions returns enriched rows matching the query filter.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		BadRequestError("Invalid filter: " + err.Error()).Write(w)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	rows, err := s.ledger.SearchTransactions(ctx, f)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(rows).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	draft, err := p.transactionDraft("", s.now())
	if err != nil {
		s.failWrite(w, r, log.OpCreate, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	created, err := s.ledger.CreateTransaction(ctx, draft)
	if err != nil {
		s.failWrite(w, r, log.OpCreate, err)
		return
	}
	s.written(r, log.OpCreate, "transaction", created.ID)
	NewResponse().Status(http.StatusCreated).JSON(created).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	draft, err := p.transactionDraft(r.PathValue("id"), s.now())
	if err != nil {
		s.failWrite(w, r, log.OpUpdate, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	updated, err := s.ledger.UpdateTransaction(ctx, draft)
	if err != nil {
		s.failWrite(w, r, log.OpUpdate, err)
		return
	}
	s.written(r, log.OpUpdate, "transaction", updated.ID)
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	agents, err := s.ledger.FetchAgents(ctx)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(agents).Write(w)
}

// reportDay resolves the ?date= parameter, defaulting to today.
func (s *Server) reportDay(r *http.Request) (core.Date, error) {
	d, err := parseOptionalDate(r.URL.Query().Get("date"))
	if err != nil {
		return core.Date{}, err
	}
	if d == nil {
		return s.ledger.Today(), nil
	}
	return *d, nil
}

func (s *Server) buildReport(w http.ResponseWriter, r *http.Request) (reports.DailyReport, bool) {
	day, err := s.reportDay(r)
	if err != nil {
		BadRequestError("Invalid date: expected YYYY-MM-DD").Write(w)
		return reports.DailyReport{}, false
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	report, err := s.reports.Build(ctx, day)
	if err != nil {
		s.fail(w, r, log.OpGenerate, err)
		return reports.DailyReport{}, false
	}
	atomic.AddInt64(&s.appMetrics.reportsGenerated, 1)
	return report, true
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(report).Write(w)
}

// handleDailyReportXLSX streams the report workbook as a download.
func (s *Server) handleDailyReportXLSX(w http.ResponseWriter, r *http.Request) {
	report, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := reports.WriteXLSX(&buf, report); err != nil {
		s.fail(w, r, log.OpRender, err)
		return
	}
	w.Header().Set("Content-Type", reports.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
