package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/cli"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/reports"
	"ledgerdesk/internal/sheets"
	gsheet "ledgerdesk/internal/sheets/google"
	"ledgerdesk/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadSharedLedgerConfig(logger)
	res := cli.MustOpenBackend(context.Background(), logger, cfg)

	// Google Sheets sink is optional
	var sink sheets.ReportWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleReportSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		sink = client
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	w := worker.NewReportWorker(reports.NewBuilder(res.Service), sink, worker.ReportWorkerConfig{
		Dir:      cfg.ReportsDir,
		Interval: cfg.ReportInterval,
		Today:    res.Service.Today,
	})

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - reports regenerate on the interval only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := w.Stop(ctx); err != nil {
			logger.Warn("Report worker stop", log.FieldError, err)
		}
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Warn("AMQP close", log.FieldError, err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("Failed to start report worker", log.FieldError, err)
		os.Exit(1)
	}

	if consumer != nil {
		go func() {
			if err := consumer.ConsumeEvents(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
}
