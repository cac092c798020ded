package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledgerdesk/internal/log"
)

func newTestMiddleware(buf *bytes.Buffer) *Middleware {
	cfg := log.DefaultConfig()
	cfg.Output = buf
	return NewMiddleware(log.New(cfg), func(*http.Request) string { return "10.0.0.1" })
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := newTestMiddleware(&buf)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		log.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/retailers", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Errorf("response header = %q, want %q", rec.Header().Get(HeaderRequestID), seen)
	}
	out := buf.String()
	if !strings.Contains(out, "request_id="+seen) || !strings.Contains(out, "status_code=418") {
		t.Errorf("log output missing fields:\n%s", out)
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("metrics = %+v", m.GetMetrics())
	}
}

func TestMiddlewareReusesInboundID(t *testing.T) {
	tests := []struct {
		inbound string
		reuse   bool
	}{
		{"abc12345-upstream", true},
		{"short", false},
		{"has spaces in it!", false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		m := newTestMiddleware(&buf)
		h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, tt.inbound)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		got := rec.Header().Get(HeaderRequestID)
		if (got == tt.inbound) != tt.reuse {
			t.Errorf("inbound %q: got %q, reuse=%v", tt.inbound, got, tt.reuse)
		}
	}
}

func TestServerErrorsCounted(t *testing.T) {
	var buf bytes.Buffer
	m := newTestMiddleware(&buf)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if m.GetMetrics().ServerErrors != 1 {
		t.Errorf("server errors = %d", m.GetMetrics().ServerErrors)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if got := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); got != "" {
		t.Errorf("got %q", got)
	}
}
