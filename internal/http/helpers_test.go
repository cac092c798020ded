package http

import (
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
)

func TestFormatINR(t *testing.T) {
	tests := []struct {
		in     string
		places int32
		want   string
	}{
		{"0", 2, "₹0.00"},
		{"999", 0, "₹999"},
		{"3500", 0, "₹3,500"},
		{"21000", 2, "₹21,000.00"},
		{"123456.5", 2, "₹1,23,456.50"},
		{"12345678", 0, "₹1,23,45,678"},
		{"100000000000", 0, "₹1,00,00,00,00,000"},
		{"-2980", 2, "-₹2,980.00"},
		{"1499.995", 2, "₹1,500.00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatINR(decimal.RequireFromString(tt.in), tt.places); got != tt.want {
				t.Errorf("formatINR(%s, %d) = %q, want %q", tt.in, tt.places, got, tt.want)
			}
		})
	}
}

func TestFormatDates(t *testing.T) {
	if got := formatDateTime(time.Date(2023, 10, 27, 14, 5, 0, 0, time.UTC)); got != "27 Oct 2023, 2:05 pm" {
		t.Errorf("formatDateTime = %q", got)
	}
	if got := formatDate(core.NewDate(2023, 10, 27)); got != "27 Oct 2023" {
		t.Errorf("formatDate = %q", got)
	}
	if formatDateTime(time.Time{}) != "" || formatDate(core.Date{}) != "" {
		t.Error("zero values should render blank")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}

func TestParseFilter(t *testing.T) {
	q := url.Values{
		"retailerId": {" R001 "},
		"q":          {"raja"},
		"startDate":  {"2023-10-26"},
		"end":        {"2023-10-27"},
		"type":       {"push order"},
	}
	f, err := parseFilter(q)
	if err != nil {
		t.Fatalf("parseFilter: %v", err)
	}
	if f.RetailerID != "R001" || f.RetailerQuery != "raja" || f.Type != string(core.PushOrder) {
		t.Errorf("unexpected filter: %+v", f)
	}
	if f.StartDate == nil || f.StartDate.String() != "2023-10-26" || f.EndDate == nil || f.EndDate.String() != "2023-10-27" {
		t.Errorf("unexpected dates: %v %v", f.StartDate, f.EndDate)
	}

	f, err = parseFilter(url.Values{"type": {"All"}})
	if err != nil || f.Type != "All" || f.StartDate != nil {
		t.Errorf("All filter: %+v, %v", f, err)
	}

	for _, bad := range []url.Values{{"start": {"yesterday"}}, {"end": {"2023-13-01"}}, {"type": {"Refund"}}} {
		if _, err := parseFilter(bad); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}

func TestPercentOf(t *testing.T) {
	d := decimal.NewFromInt
	tests := []struct {
		part, whole decimal.Decimal
		want        int
	}{
		{d(1500), d(3500), 43},
		{d(0), d(3500), 0},
		{d(10), d(0), 0},
		{d(5000), d(5000), 100},
	}
	for _, tt := range tests {
		if got := percentOf(tt.part, tt.whole); got != tt.want {
			t.Errorf("percentOf(%s, %s) = %d, want %d", tt.part, tt.whole, got, tt.want)
		}
	}
}
