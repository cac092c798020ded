package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// appMetrics counts ledger activity served over HTTP.
type appMetrics struct {
	uptime           time.Time
	ledgerWrites     int64
	writeFailures    int64
	reportsGenerated int64
}

func newAppMetrics(start time.Time) *appMetrics {
	return &appMetrics{uptime: start}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ping == nil:
		checks["store"] = "not_configured"
	default:
		if err := s.ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	writes := atomic.LoadInt64(&s.appMetrics.ledgerWrites)
	failures := atomic.LoadInt64(&s.appMetrics.writeFailures)
	generated := atomic.LoadInt64(&s.appMetrics.reportsGenerated)
	uptime := s.now().Sub(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "Total number of 5xx responses", "counter", traceMetrics.ServerErrors)
	metric("http_response_time_microseconds", "Moving average response time", "gauge", traceMetrics.AverageResponseTime)
	metric("ledger_writes_total", "Total successful ledger writes", "counter", writes)
	metric("ledger_write_failures_total", "Total rejected or failed ledger writes", "counter", failures)
	metric("reports_generated_total", "Total daily reports served", "counter", generated)
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", uptime.Seconds()))
}
