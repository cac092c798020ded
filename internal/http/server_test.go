package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/middleware/ratelimit"
	"ledgerdesk/internal/store/memory"
)

var fixedNow = time.Date(2023, 10, 27, 15, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	engine := ledger.New(memory.New(memory.DefaultSeed()), ledger.WithClock(clock))
	logger := log.New(log.Config{Output: io.Discard})
	opts = append([]Option{WithClock(clock)}, opts...)
	srv := NewServer(":0", engine, logger, opts...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

const jsonType = "application/json"

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	var health map[string]any
	decode(t, rr, &health)
	if health["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", health)
	}

	rr = do(t, srv, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestReadinessFailsWhenStoreUnreachable(t *testing.T) {
	srv := newTestServer(t, WithReadiness(func(context.Context) error { return errors.New("db down") }))

	rr := do(t, srv, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	decode(t, rr, &body)
	if body.Status != "not_ready" || !strings.Contains(body.Checks["store"].(string), "db down") {
		t.Fatalf("unexpected readiness body: %+v", body)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/api/agents", "", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing nosniff header")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("missing CSP header")
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("missing request id, got %q", rr.Header().Get("X-Request-ID"))
	}
}

func TestDashboardStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/api/dashboard", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var stats map[string]any
	decode(t, rr, &stats)
	if stats["date"] != "2023-10-27" {
		t.Errorf("date = %v", stats["date"])
	}
	if stats["totalCollectedToday"] != float64(3500) {
		t.Errorf("totalCollectedToday = %v", stats["totalCollectedToday"])
	}
	if top := stats["topPendingRetailers"].([]any); len(top) != 5 {
		t.Errorf("expected 5 top pending retailers, got %d", len(top))
	}
}

func TestRetailerLookup(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/retailers/R002", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var r map[string]any
	decode(t, rr, &r)
	if r["name"] != "SRI VARI COMMUNICATIONS" {
		t.Errorf("unexpected retailer: %v", r)
	}

	if rr := do(t, srv, http.MethodGet, "/api/retailers/R999", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown retailer, got %d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/retailers/R999/rollup", "", "")
	var rollup map[string]any
	decode(t, rr, &rollup)
	if rr.Code != http.StatusOK || rollup["found"] != false {
		t.Errorf("rollup for unknown retailer: status=%d body=%v", rr.Code, rollup)
	}
}

func TestCreateRetailerValidation(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/retailers", jsonType, `{"name":"  ","partnerId":"123","pendingBalance":-1}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	decode(t, rr, &body)
	want := map[string]string{
		"name":           "Retailer name is required.",
		"partnerId":      "Partner ID must be exactly 10 digits.",
		"pendingBalance": "Pending balance cannot be negative.",
	}
	for field, msg := range want {
		if body.Errors[field] != msg {
			t.Errorf("errors[%s] = %q, want %q", field, body.Errors[field], msg)
		}
	}

	rr = do(t, srv, http.MethodPost, "/api/retailers", jsonType, `{"name":"X","partnerId":"1234567890"}`)
	decode(t, rr, &body)
	if rr.Code != http.StatusUnprocessableEntity || body.Errors["pendingBalance"] != "Pending balance is required." {
		t.Errorf("missing balance: status=%d errors=%v", rr.Code, body.Errors)
	}
}

func TestParseAndValidationErrorsReportedTogether(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
		want map[string]string
	}{
		{
			name: "retailer",
			path: "/api/retailers",
			body: `{"name":"  ","partnerId":"12345","pendingBalance":-1,"lastCollectionDate":"27/10/2023"}`,
			want: map[string]string{
				"name":               "Retailer name is required.",
				"partnerId":          "Partner ID must be exactly 10 digits.",
				"pendingBalance":     "Pending balance cannot be negative.",
				"lastCollectionDate": msgDateInvalid,
			},
		},
		{
			name: "transaction",
			path: "/api/transactions",
			body: `{"retailerId":"R001","type":"bogus","amount":0}`,
			want: map[string]string{
				"type":   msgTypeInvalid,
				"amount": "Amount must be a positive number greater than zero.",
			},
		},
		{
			name: "exponent amount",
			path: "/api/transactions",
			body: `{"retailerId":"R001","type":"Auto-refill","amount":"1e20000000"}`,
			want: map[string]string{"amount": "Amount must be a positive number greater than zero."},
		},
		{
			name: "tiny negative balance",
			path: "/api/retailers",
			body: `{"name":"X","partnerId":"1234567890","pendingBalance":"-1e-400"}`,
			want: map[string]string{"pendingBalance": "Pending balance is required."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, tt.path, jsonType, tt.body)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
			}
			var body struct {
				Errors map[string]string `json:"errors"`
			}
			decode(t, rr, &body)
			if len(body.Errors) != len(tt.want) {
				t.Fatalf("errors = %v, want %v", body.Errors, tt.want)
			}
			for field, msg := range tt.want {
				if body.Errors[field] != msg {
					t.Errorf("errors[%s] = %q, want %q", field, body.Errors[field], msg)
				}
			}
		})
	}
}

func TestRetailerLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/retailers", jsonType,
		`{"name":"Metro Mobiles","partnerId":"0661548699","pendingBalance":"1250.50"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created map[string]any
	decode(t, rr, &created)
	if created["id"] != "R007" || created["pendingBalance"] != 1250.5 {
		t.Fatalf("unexpected created retailer: %v", created)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/retailers/R007" {
		t.Errorf("Location = %q", loc)
	}

	var list []map[string]any
	decode(t, do(t, srv, http.MethodGet, "/api/retailers", "", ""), &list)
	if len(list) != 7 || list[0]["id"] != "R007" {
		t.Fatalf("new retailer should be listed first: %v", list)
	}

	rr = do(t, srv, http.MethodPut, "/api/retailers/R007", "application/x-www-form-urlencoded",
		"name=Metro+Mobiles+2&partnerId=0661548699&pendingBalance=99&lastCollectionDate=2023-10-27")
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	var updated map[string]any
	decode(t, rr, &updated)
	if updated["name"] != "Metro Mobiles 2" || updated["lastCollectionDate"] != "2023-10-27" {
		t.Errorf("unexpected update result: %v", updated)
	}

	rr = do(t, srv, http.MethodPut, "/api/retailers/R999", jsonType,
		`{"name":"Ghost","partnerId":"0661548699","pendingBalance":0}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("update unknown: expected 404, got %d", rr.Code)
	}

	rr = do(t, srv, http.MethodDelete, "/api/retailers/R007", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"R007"`) {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodDelete, "/api/retailers/R007", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	for _, body := range []string{"", `{"name":`} {
		rr := do(t, srv, http.MethodPost, "/api/retailers", jsonType, body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"zero amount", `{"retailerId":"R001","type":"Auto-refill","amount":0,"commissionRate":3}`, http.StatusUnprocessableEntity, "amount"},
		{"text amount", `{"retailerId":"R001","type":"Auto-refill","amount":"abc"}`, http.StatusUnprocessableEntity, "amount"},
		{"unknown type", `{"retailerId":"R001","type":"Refund","amount":10}`, http.StatusUnprocessableEntity, "type"},
		{"bad time", `{"retailerId":"R001","type":"Push order","amount":10,"time":"yesterday"}`, http.StatusUnprocessableEntity, "time"},
		{"valid", `{"retailerId":"R001","type":"Push order","amount":"1200,50","commissionRate":2.5,"time":"2023-10-27T13:00:00Z"}`, http.StatusCreated, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/transactions", jsonType, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantField != "" {
				var body struct {
					Errors map[string]string `json:"errors"`
				}
				decode(t, rr, &body)
				if body.Errors[tt.wantField] == "" {
					t.Errorf("expected error for %s, got %v", tt.wantField, body.Errors)
				}
			}
		})
	}

	var rows []map[string]any
	decode(t, do(t, srv, http.MethodGet, "/api/transactions?retailerId=R001", "", ""), &rows)
	if len(rows) != 2 || rows[0]["id"] != "T007" {
		t.Fatalf("expected new transaction first for R001: %v", rows)
	}
	if rows[0]["amount"] != 1200.5 || rows[0]["retailerName"] != "RAJA MOBILES" {
		t.Errorf("unexpected row: %v", rows[0])
	}
}

func TestUpdateTransaction(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPut, "/api/transactions/T001", jsonType,
		`{"retailerId":"R001","type":"Auto-refill","amount":4000,"commissionRate":3,"time":"2023-10-27T10:02:00Z"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPut, "/api/transactions/T999", jsonType,
		`{"retailerId":"R001","type":"Auto-refill","amount":4000,"time":"2023-10-27T10:02:00Z"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown transaction: expected 404, got %d", rr.Code)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		query   string
		wantIDs []string
	}{
		{"", []string{"T003", "T002", "T001", "T006", "T005", "T004"}},
		{"?q=raja", []string{"T001"}},
		{"?type=push%20order", []string{"T002", "T005"}},
		{"?type=All&start=2023-10-26&end=2023-10-26", []string{"T006", "T005", "T004"}},
		{"?startDate=2023-10-27&retailerId=R002", []string{"T002"}},
		{"?q=nobody", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, "/api/transactions"+tt.query, "", "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d", rr.Code)
			}
			var rows []struct {
				ID string `json:"id"`
			}
			decode(t, rr, &rows)
			if len(rows) != len(tt.wantIDs) {
				t.Fatalf("got %d rows, want %v", len(rows), tt.wantIDs)
			}
			for i, id := range tt.wantIDs {
				if rows[i].ID != id {
					t.Errorf("row %d = %s, want %s", i, rows[i].ID, id)
				}
			}
		})
	}

	for _, q := range []string{"?start=27-10-2023", "?type=Refund"} {
		if rr := do(t, srv, http.MethodGet, "/api/transactions"+q, "", ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestCollectionsAndAgents(t *testing.T) {
	srv := newTestServer(t)

	var cs []map[string]any
	decode(t, do(t, srv, http.MethodGet, "/api/retailers/R001/collections", "", ""), &cs)
	if len(cs) != 1 || cs[0]["id"] != "C002" {
		t.Errorf("unexpected R001 collections: %v", cs)
	}

	decode(t, do(t, srv, http.MethodGet, "/api/collections", "", ""), &cs)
	if len(cs) != 4 {
		t.Errorf("expected 4 collections, got %d", len(cs))
	}

	var agents []map[string]any
	decode(t, do(t, srv, http.MethodGet, "/api/agents", "", ""), &agents)
	if len(agents) != 2 {
		t.Errorf("expected 2 agents, got %d", len(agents))
	}
}

func TestUserEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPatch, "/api/user", jsonType, `{"email":"not-an-email"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	rr = do(t, srv, http.MethodPatch, "/api/user", jsonType, `{"name":"Jane Roe"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var u map[string]any
	decode(t, do(t, srv, http.MethodGet, "/api/user", "", ""), &u)
	if u["name"] != "Jane Roe" || u["email"] != "owner@amscorp.com" {
		t.Errorf("patch should merge: %v", u)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/user", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestDailyReportJSON(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/reports/daily?date=2023-10-27", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var report struct {
		Date   string `json:"date"`
		Totals struct {
			Count int     `json:"count"`
			Net   float64 `json:"net"`
		} `json:"totals"`
	}
	decode(t, rr, &report)
	if report.Date != "2023-10-27" || report.Totals.Count != 3 || report.Totals.Net != 10290 {
		t.Errorf("unexpected report: %+v", report)
	}

	rr = do(t, srv, http.MethodGet, "/api/reports/daily", "", "")
	decode(t, rr, &report)
	if report.Date != "2023-10-27" {
		t.Errorf("default report date = %s", report.Date)
	}

	if rr := do(t, srv, http.MethodGet, "/api/reports/daily?date=yesterday", "", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", rr.Code)
	}
}

func TestDailyReportXLSX(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/reports/daily.xlsx?date=2023-10-27", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "daily-2023-10-27.xlsx") {
		t.Errorf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if got, _ := f.GetCellValue("Summary", "B1"); got != "2023-10-27" {
		t.Errorf("Summary!B1 = %q", got)
	}
}

func TestPages(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path       string
		wantStatus int
		contains   []string
		excludes   []string
	}{
		{"/", http.StatusOK, []string{"Total Collected Today", "₹3,500", "VICTORY MOBILES", "John Doe"}, nil},
		{"/retailers", http.StatusOK, []string{"AMMAN CELL POINT", "0661548620", "₹21,000.00"}, nil},
		{"/retailers/R001", http.StatusOK, []string{"RAJA MOBILES", "T001", "Suresh Singh", "₹2,980.00"}, []string{"T002"}},
		{"/retailers/R999", http.StatusNotFound, []string{"Retailer not found"}, nil},
		{"/transactions?q=raja", http.StatusOK, []string{"T001", "RAJA MOBILES"}, []string{"T002"}},
		{"/reports?date=2023-10-27", http.StatusOK, []string{"AMMAN CELL POINT", "Rajesh Kumar", "/reports/daily.xlsx?date=2023-10-27"}, nil},
		{"/settings", http.StatusOK, []string{"owner@amscorp.com"}, nil},
		{"/nowhere", http.StatusNotFound, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.path, "", "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d", rr.Code, tt.wantStatus)
			}
			body := rr.Body.String()
			for _, s := range tt.contains {
				if !strings.Contains(body, s) {
					t.Errorf("body missing %q", s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(body, s) {
					t.Errorf("body should not contain %q", s)
				}
			}
		})
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/static/style.css", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}

func TestWritesAreRateLimited(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(ratelimit.Config{RequestsPerMinute: 1, WritesOnly: true}))

	body := `{"name":"Jane"}`
	if rr := do(t, srv, http.MethodPatch, "/api/user", jsonType, body); rr.Code != http.StatusOK {
		t.Fatalf("first write status=%d", rr.Code)
	}
	rr := do(t, srv, http.MethodPatch, "/api/user", jsonType, body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Errorf("missing Retry-After")
	}
	if !strings.Contains(rr.Body.String(), "Rate limit exceeded") {
		t.Errorf("unexpected body %s", rr.Body.String())
	}

	if rr := do(t, srv, http.MethodGet, "/api/user", "", ""); rr.Code != http.StatusOK {
		t.Errorf("reads must not be limited, got %d", rr.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPatch, "/api/user", jsonType, `{"name":"Jane"}`)
	do(t, srv, http.MethodPatch, "/api/user", jsonType, `{"email":"bad"}`)
	do(t, srv, http.MethodGet, "/api/reports/daily?date=2023-10-27", "", "")

	rr := do(t, srv, http.MethodGet, "/metrics", "", "")
	body := rr.Body.String()
	for _, want := range []string{
		"ledger_writes_total 1",
		"ledger_write_failures_total 1",
		"reports_generated_total 1",
		"http_requests_total 4",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}
