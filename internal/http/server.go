package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/middleware/ratelimit"
	"ledgerdesk/internal/middleware/security"
	"ledgerdesk/internal/middleware/trace"
	"ledgerdesk/internal/reports"
	appweb "ledgerdesk/web"
)

// handlerTimeout bounds every facade call made by a handler.
const handlerTimeout = 7 * time.Second

// Ledger is the facade the server talks to. *services.LedgerService
// satisfies it.
type Ledger interface {
	reports.Source
	Today() core.Date
	FetchUser(ctx context.Context) (core.User, error)
	UpdateUser(ctx context.Context, patch core.UserPatch) (core.User, error)
	FetchDashboardStats(ctx context.Context) (ledger.DashboardStats, error)
	FetchRetailerByID(ctx context.Context, id string) (core.Retailer, bool, error)
	FetchRetailerRollup(ctx context.Context, id string) (ledger.Rollup, error)
	CreateRetailer(ctx context.Context, draft core.RetailerDraft) (core.Retailer, error)
	UpdateRetailer(ctx context.Context, draft core.RetailerDraft) (core.Retailer, error)
	DeleteRetailer(ctx context.Context, id string) (string, error)
	SearchTransactions(ctx context.Context, f ledger.Filter) ([]ledger.TransactionRow, error)
	CreateTransaction(ctx context.Context, draft core.TransactionDraft) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, draft core.TransactionDraft) (core.Transaction, error)
}

// Server serves the JSON API, the HTML pages and the health endpoints.
type Server struct {
	http.Server
	templates *template.Template
	ledger    Ledger
	reports   *reports.Builder
	ping      func(context.Context) error
	logger    *log.Logger
	now       func() time.Time

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type options struct {
	ping      func(context.Context) error
	rateLimit ratelimit.Config
	now       func() time.Time
}

// Option customises a Server.
type Option func(*options)

// WithReadiness sets the dependency check run by /readyz.
func WithReadiness(ping func(context.Context) error) Option {
	return func(o *options) { o.ping = ping }
}

// WithRateLimit overrides the write rate limit.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(o *options) { o.rateLimit = cfg }
}

// WithClock overrides the time source used for default transaction times
// and health timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, l Ledger, logger *log.Logger, opts ...Option) *Server {
	o := options{rateLimit: ratelimit.DefaultConfig(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		ledger:           l,
		reports:          reports.NewBuilder(l).WithClock(o.now),
		ping:             o.ping,
		logger:           logger.WithComponent(log.ComponentHTTP),
		now:              o.now,
		securityDetector: security.NewDetector(),
		rateLimiter:      ratelimit.NewLimiter(o.rateLimit),
		appMetrics:       newAppMetrics(o.now()),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("ledgerdesk").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Error("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	// Pages
	mux.HandleFunc("GET /{$}", s.handleDashboardPage)
	mux.HandleFunc("GET /retailers", s.handleRetailersPage)
	mux.HandleFunc("GET /retailers/{id}", s.handleRetailerPage)
	mux.HandleFunc("GET /transactions", s.handleTransactionsPage)
	mux.HandleFunc("GET /reports", s.handleReportsPage)
	mux.HandleFunc("GET /reports/daily.xlsx", s.handleDailyReportXLSX)
	mux.HandleFunc("GET /settings", s.handleSettingsPage)

	// Health and metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// JSON API
	mux.HandleFunc("GET /api/user", s.handleGetUser)
	mux.HandleFunc("PATCH /api/user", s.handleUpdateUser)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboardStats)
	mux.HandleFunc("GET /api/retailers", s.handleListRetailers)
	mux.HandleFunc("POST /api/retailers", s.handleCreateRetailer)
	mux.HandleFunc("GET /api/retailers/{id}", s.handleGetRetailer)
	mux.HandleFunc("PUT /api/retailers/{id}", s.handleUpdateRetailer)
	mux.HandleFunc("DELETE /api/retailers/{id}", s.handleDeleteRetailer)
	mux.HandleFunc("GET /api/retailers/{id}/rollup", s.handleRetailerRollup)
	mux.HandleFunc("GET /api/retailers/{id}/collections", s.handleRetailerCollections)
	mux.HandleFunc("GET /api/collections", s.handleListCollections)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("GET /api/reports/daily", s.handleDailyReport)
}

// middleware wraps the mux, outermost first: tracing, security headers,
// suspicious request logging, then the write rate limit.
func (s *Server) middleware(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)(next)
	return s.traceMiddleware.Middleware(
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(
			s.detectSuspicious(limited),
		),
	)
}

func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request detected",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// requestContext bounds a facade call made on behalf of r.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), handlerTimeout)
}
