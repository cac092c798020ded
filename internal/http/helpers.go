package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/ledger"
)

// inPrinter formats integers with CLDR en-IN grouping (lakh/crore).
var inPrinter = message.NewPrinter(language.MustParse("en-IN"))

// formatINR renders an amount with Indian digit grouping, e.g. "₹1,23,456.50".
// places selects the number of fraction digits (0 or 2 in practice). The
// integer part is grouped by the locale printer; the fraction is appended
// from the decimal's own text so no float rounding is involved.
func formatINR(d decimal.Decimal, places int32) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(places)

	intPart, frac, found := strings.Cut(s, ".")
	if found {
		frac = "." + frac
	}
	grouped := intPart
	if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		grouped = inPrinter.Sprintf("%d", n)
	}
	out := "₹" + grouped + frac
	if neg {
		return "-" + out
	}
	return out
}

// formatDateTime mirrors the medium date / short time style used on the pages.
func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2 Jan 2006, 3:04 pm")
}

func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2 Jan 2006")
}

// sanitizeInput removes control characters other than tab/newline and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// parseOptionalDate parses a YYYY-MM-DD value; blank input yields nil.
func parseOptionalDate(s string) (*core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseFilter builds a transaction filter from query parameters. Both the
// short (start/end) and long (startDate/endDate) date names are accepted.
func parseFilter(q url.Values) (ledger.Filter, error) {
	f := ledger.Filter{
		RetailerID:    sanitizeInput(q.Get("retailerId")),
		RetailerQuery: sanitizeInput(q.Get("q")),
		Type:          sanitizeInput(q.Get("type")),
	}
	var err error
	if f.StartDate, err = parseOptionalDate(firstOf(q, "start", "startDate")); err != nil {
		return ledger.Filter{}, err
	}
	if f.EndDate, err = parseOptionalDate(firstOf(q, "end", "endDate")); err != nil {
		return ledger.Filter{}, err
	}
	if f.Type != "" && f.Type != ledger.TypeAll {
		t, err := core.ParseTransactionType(f.Type)
		if err != nil {
			return ledger.Filter{}, err
		}
		f.Type = string(t)
	}
	return f, nil
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}
