// Command ledger-report builds a single daily report, saves it as XLSX and
// optionally pushes its summary row to Google Sheets.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"ledgerdesk/internal/cli"
	"ledgerdesk/internal/core"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/reports"
	gsheet "ledgerdesk/internal/sheets/google"
)

func main() {
	date := flag.String("date", "", "report date as YYYY-MM-DD (default: today in LEDGER_TIMEZONE)")
	dir := flag.String("dir", "", "output directory (default: REPORTS_DIR)")
	pushSheets := flag.Bool("sheets", false, "also write the summary row to Google Sheets")
	flag.Parse()

	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentReports)
	cfg := cli.LoadSharedLedgerConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res := cli.MustOpenBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err)
		}
	}()

	day := res.Service.Today()
	if *date != "" {
		d, err := core.ParseDate(*date)
		if err != nil {
			logger.Error("Invalid -date", log.FieldError, err, "date", *date)
			os.Exit(2)
		}
		day = d
	}
	if *dir == "" {
		*dir = cfg.ReportsDir
	}

	report, err := reports.NewBuilder(res.Service).Build(ctx, day)
	if err != nil {
		logger.Error("Failed to build report", log.FieldError, err, "date", day.String())
		os.Exit(1)
	}

	path, err := reports.SaveXLSX(*dir, report)
	if err != nil {
		logger.Error("Failed to save report", log.FieldError, err, "dir", *dir)
		os.Exit(1)
	}
	logger.Info("Report saved",
		"date", day.String(),
		"path", path,
		"transactions", len(report.Transactions),
		"collections", len(report.Collections))

	if !*pushSheets {
		return
	}
	if !cfg.SheetsEnabled() {
		logger.Error("-sheets requires GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleReportSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	ref, err := client.WriteSummary(ctx, report)
	if err != nil {
		logger.Error("Failed to write summary row", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Summary row written", "row", ref)
}
