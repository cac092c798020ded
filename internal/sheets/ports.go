package sheets

import (
	"context"

	"ledgerdesk/internal/reports"
)

// Ports for outbound adapters.
type (
	// ReportWriter records a daily report's summary row. Writing the same
	// date twice replaces the earlier row.
	ReportWriter interface {
		WriteSummary(ctx context.Context, r reports.DailyReport) (rowRef string, err error)
	}
)
