package reports

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary      = "Summary"
	SheetTransactions = "Transactions"
	SheetCollections  = "Collections"

	// ContentType is the MIME type of the XLSX export.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	transactionHeaders = []interface{}{"ID", "Time", "Retailer ID", "Retailer", "Type", "Gross", "Commission %", "Commission", "Net"}
	collectionHeaders  = []interface{}{"ID", "Retailer", "Agent", "Amount", "Method", "Status", "Proof URL"}
	summaryHeaders     = []interface{}{"Date", "Generated At", "Collected Today", "Cash", "UPI", "Total Pending", "Transactions", "Gross", "Commission", "Net"}
)

// SummaryHeaders labels the columns of SummaryRow.
func SummaryHeaders() []interface{} {
	return append([]interface{}(nil), summaryHeaders...)
}

// SummaryRow flattens the headline figures into one spreadsheet row.
func (r DailyReport) SummaryRow() []interface{} {
	return []interface{}{
		r.Date.String(),
		r.GeneratedAt.Format(time.RFC3339),
		r.Stats.TotalCollectedToday.String(),
		r.Stats.CashCollectedToday.String(),
		r.Stats.UPICollectedToday.String(),
		r.Stats.TotalPending.String(),
		r.Totals.Count,
		r.Totals.Gross.String(),
		r.Totals.Commission.String(),
		r.Totals.Net.String(),
	}
}

// WriteXLSX renders the report as a workbook with Summary, Transactions and
// Collections sheets.
func WriteXLSX(w io.Writer, r DailyReport) error {
	f, err := buildWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the report into dir under its canonical filename and
// returns the full path. The file is written to a temp name first.
func SaveXLSX(dir string, r DailyReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	path := filepath.Join(dir, r.Filename())

	tmp, err := os.CreateTemp(dir, ".daily-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteXLSX(tmp, r); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move report into place: %w", err)
	}
	return path, nil
}

func buildWorkbook(r DailyReport) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetTransactions, SheetCollections} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	steps := []func() error{
		func() error { return writeSummary(f, r, bold) },
		func() error { return writeTransactions(f, r, bold) },
		func() error { return writeCollections(f, r, bold) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSummary(f *excelize.File, r DailyReport, bold int) error {
	rows := [][]interface{}{
		{"Daily Report", r.Date.String()},
		{"Generated At", r.GeneratedAt.Format(time.RFC3339)},
		{},
		{"Total Collected Today", r.Stats.TotalCollectedToday.InexactFloat64()},
		{"Cash Collected Today", r.Stats.CashCollectedToday.InexactFloat64()},
		{"UPI Collected Today", r.Stats.UPICollectedToday.InexactFloat64()},
		{"Total Pending", r.Stats.TotalPending.InexactFloat64()},
		{},
		{"Transactions", r.Totals.Count},
		{"Gross", r.Totals.Gross.InexactFloat64()},
		{"Commission", r.Totals.Commission.InexactFloat64()},
		{"Net", r.Totals.Net.InexactFloat64()},
		{},
		{"Top Pending Retailers"},
	}
	for _, p := range r.Stats.TopPendingRetailers {
		rows = append(rows, []interface{}{p.Name, p.PendingBalance.InexactFloat64()})
	}
	if err := writeRows(f, SheetSummary, 1, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	return f.SetColWidth(SheetSummary, "A", "A", 28)
}

func writeTransactions(f *excelize.File, r DailyReport, bold int) error {
	rows := make([][]interface{}, 0, len(r.Transactions)+1)
	rows = append(rows, transactionHeaders)
	for _, t := range r.Transactions {
		rows = append(rows, []interface{}{
			t.ID,
			t.Time.Format(time.RFC3339),
			t.RetailerID,
			t.RetailerName,
			string(t.Type),
			t.Gross.InexactFloat64(),
			t.CommissionRate.InexactFloat64(),
			t.Commission.InexactFloat64(),
			t.Net.InexactFloat64(),
		})
	}
	rows = append(rows, []interface{}{
		"Total", "", "", "", "",
		r.Totals.Gross.InexactFloat64(), "",
		r.Totals.Commission.InexactFloat64(),
		r.Totals.Net.InexactFloat64(),
	})
	return writeTable(f, SheetTransactions, rows, len(transactionHeaders), bold)
}

func writeCollections(f *excelize.File, r DailyReport, bold int) error {
	rows := make([][]interface{}, 0, len(r.Collections)+1)
	rows = append(rows, collectionHeaders)
	for _, c := range r.Collections {
		rows = append(rows, []interface{}{
			c.ID,
			c.RetailerName,
			c.AgentName,
			c.Amount.InexactFloat64(),
			string(c.Method),
			string(c.Status),
			c.ProofURL,
		})
	}
	return writeTable(f, SheetCollections, rows, len(collectionHeaders), bold)
}

func writeTable(f *excelize.File, sheet string, rows [][]interface{}, cols, bold int) error {
	if err := writeRows(f, sheet, 1, rows); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 16)
}

func writeRows(f *excelize.File, sheet string, start int, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, start+i)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, start+i, err)
		}
	}
	return nil
}
