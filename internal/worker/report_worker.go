package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/core"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/reports"
	"ledgerdesk/internal/sheets"
)

// ReportBuilder assembles the daily report for a date.
type ReportBuilder interface {
	Build(ctx context.Context, day core.Date) (reports.DailyReport, error)
}

// ReportWorkerConfig holds configuration for the report worker
type ReportWorkerConfig struct {
	// Dir receives daily-YYYY-MM-DD.xlsx files.
	Dir string

	// Interval is how often the report is regenerated without events (default: 15m)
	Interval time.Duration

	// Today returns the current business date.
	Today func() core.Date
}

func DefaultReportWorkerConfig() ReportWorkerConfig {
	return ReportWorkerConfig{
		Dir:      "./reports",
		Interval: 15 * time.Minute,
		Today:    func() core.Date { return core.DateOf(time.Now().UTC()) },
	}
}

// Result describes one regeneration.
type Result struct {
	Date   core.Date
	Path   string
	RowRef string
}

// ReportWorker regenerates today's report whenever the ledger changes and
// on a fixed interval as a backstop for lost messages. Regenerations never
// overlap.
type ReportWorker struct {
	builder ReportBuilder
	sink    sheets.ReportWriter
	config  ReportWorkerConfig

	genMu sync.Mutex
	last  Result

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReportWorker creates a worker. sink may be nil when no sheet is configured.
func NewReportWorker(builder ReportBuilder, sink sheets.ReportWriter, config ReportWorkerConfig) *ReportWorker {
	defaults := DefaultReportWorkerConfig()
	if config.Dir == "" {
		config.Dir = defaults.Dir
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Today == nil {
		config.Today = defaults.Today
	}
	return &ReportWorker{builder: builder, sink: sink, config: config}
}

// HandleEvent processes a single ledger event from AMQP. A returned error
// asks the consumer to requeue the message.
func (w *ReportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev == nil {
		return errors.New("nil ledger event")
	}
	slog.InfoContext(ctx, "Processing ledger event",
		log.FieldEventID, ev.ID,
		log.FieldEventKind, ev.Kind,
		log.FieldEntityID, ev.EntityID)

	if _, err := w.Regenerate(ctx); err != nil {
		return fmt.Errorf("regenerate report after %s: %w", ev.Kind, err)
	}
	return nil
}

// Regenerate rebuilds today's report, saves the XLSX and pushes the summary row.
func (w *ReportWorker) Regenerate(ctx context.Context) (Result, error) {
	return w.Generate(ctx, w.config.Today())
}

// Generate builds the report for day.
func (w *ReportWorker) Generate(ctx context.Context, day core.Date) (Result, error) {
	w.genMu.Lock()
	defer w.genMu.Unlock()

	start := time.Now()
	report, err := w.builder.Build(ctx, day)
	if err != nil {
		return Result{}, fmt.Errorf("build report: %w", err)
	}

	path, err := reports.SaveXLSX(w.config.Dir, report)
	if err != nil {
		return Result{}, fmt.Errorf("save report: %w", err)
	}
	res := Result{Date: day, Path: path}

	if w.sink != nil {
		ref, err := w.sink.WriteSummary(ctx, report)
		if err != nil {
			return Result{}, fmt.Errorf("write summary row: %w", err)
		}
		res.RowRef = ref
	}

	w.last = res
	slog.InfoContext(ctx, "Daily report generated",
		log.FieldReportDate, day.String(),
		log.FieldReportPath, path,
		"row_ref", res.RowRef,
		"transactions", report.Totals.Count,
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

// Last returns the most recent successful regeneration.
func (w *ReportWorker) Last() Result {
	w.genMu.Lock()
	defer w.genMu.Unlock()
	return w.last
}

// Start generates once, then begins the interval loop. Returns an error if already running.
func (w *ReportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("report worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	if _, err := w.Regenerate(ctx); err != nil {
		slog.WarnContext(ctx, "Startup report generation failed", "error", err)
	}

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Report worker started",
		"interval", w.config.Interval,
		"dir", w.config.Dir,
		"sheet_sink", w.sink != nil)
	return nil
}

// Stop signals the loop and waits for it to finish or ctx to expire.
func (w *ReportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Report worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// IsRunning returns whether the interval loop is active.
func (w *ReportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ReportWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if _, err := w.Regenerate(ctx); err != nil {
				slog.ErrorContext(ctx, "Scheduled report generation failed", "error", err)
			}
		}
	}
}
