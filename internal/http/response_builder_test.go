package http

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledgerdesk/internal/core"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/retailers/R007").
		JSON(map[string]string{"id": "R007"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != contentTypeJSON {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("Location") != "/api/retailers/R007" {
		t.Errorf("Location header not set")
	}
	if strings.TrimSpace(w.Body.String()) != `{"id":"R007"}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(math.Inf(1)).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *ResponseBuilder
		wantStatus int
	}{
		{"BadRequest", BadRequestError("bad"), http.StatusBadRequest},
		{"NotFound", NotFoundError("missing"), http.StatusNotFound},
		{"Internal", InternalServerError("boom"), http.StatusInternalServerError},
		{"TooMany", TooManyRequestsError(), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Errorf("expected JSON error body, got %q", w.Body.String())
			}
		})
	}
}

func TestHTMLErrorResponseEscapes(t *testing.T) {
	w := httptest.NewRecorder()
	HTMLErrorResponse(http.StatusNotFound, "<script>alert(1)</script>").Write(w)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status code = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "<script>") {
		t.Errorf("message not escaped: %s", w.Body.String())
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation",
			err:        &core.ValidationError{Fields: map[string]string{"amount": core.MsgAmountPositive}},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `{"errors":{"amount":"Amount must be a positive number greater than zero."}}`,
		},
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("update retailer R9: %w", core.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"not found"}`,
		},
		{
			name:       "store failure",
			err:        fmt.Errorf("list retailers: disk full"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"list retailers: disk full"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			FromError(tt.err).Write(w)
			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("Body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}
