package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledgerdesk/internal/reports"
	ports "ledgerdesk/internal/sheets"
)

const valueInput = "USER_ENTERED"

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client writes daily report summaries into "<year> <SheetName>" tabs, one
// row per date.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ ports.ReportWriter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentialsJSON(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets report sink ready", "spreadsheet_id", cfg.SpreadsheetID, "sheet", cfg.SheetName)
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Daily"
	}
	return &Client{svc: svc, spreadsheetID: strings.TrimSpace(spreadsheetID), sheetBase: sheetName}
}

// credentialsJSON resolves inline JSON first, then the file path, then
// GOOGLE_APPLICATION_CREDENTIALS.
func credentialsJSON(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account credentials", "path", file, "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// WriteSummary upserts the report's summary row keyed by date. A missing
// year tab is created and given a header row.
func (c *Client) WriteSummary(ctx context.Context, r reports.DailyReport) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	date := r.Date.String()
	if date == "" {
		return "", errors.New("report has no date")
	}
	sheet := yearPrefixedName(c.sheetBase, r.Date.Year())

	values, err := c.readDates(ctx, sheet)
	if err != nil {
		return "", err
	}

	if len(values) == 0 {
		if err := c.updateRow(ctx, sheet, 1, reports.SummaryHeaders()); err != nil {
			return "", err
		}
		values = [][]interface{}{{"Date"}}
	}

	row := findDateRow(values, date)
	if row == 0 {
		row = len(values) + 1
	}
	if err := c.updateRow(ctx, sheet, row, r.SummaryRow()); err != nil {
		return "", err
	}
	return a1Range(sheet, rowSpan(row)), nil
}

func (c *Client) readDates(ctx context.Context, sheet string) ([][]interface{}, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1Range(sheet, "A:A")).Context(ctx).Do()
	if err == nil {
		return resp.Values, nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusBadRequest {
		return nil, fmt.Errorf("read %s dates: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Creating report sheet", "sheet", sheet)
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return nil, nil
}

func (c *Client) updateRow(ctx context.Context, sheet string, row int, cells []interface{}) error {
	rng := a1Range(sheet, rowSpan(row))
	vr := &gsheet.ValueRange{Values: [][]interface{}{cells}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInput).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

// findDateRow returns the 1-based row whose first cell equals date, or 0.
func findDateRow(values [][]interface{}, date string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == date {
			return i + 1
		}
	}
	return 0
}

func rowSpan(row int) string {
	last := len(reports.SummaryHeaders())
	return fmt.Sprintf("A%d:%s%d", row, columnName(last), row)
}

// columnName converts a 1-based column index to its letter form.
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

func a1Range(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
