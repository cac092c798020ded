package ledger

import (
	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
)

const topPendingLimit = 5

// ChartPoint is a labelled value for the dashboard charts.
type ChartPoint struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// DashboardStats is a read-only snapshot of the dashboard KPIs.
type DashboardStats struct {
	Date                core.Date       `json:"date"`
	TotalCollectedToday decimal.Decimal `json:"totalCollectedToday"`
	CashCollectedToday  decimal.Decimal `json:"cashCollectedToday"`
	UPICollectedToday   decimal.Decimal `json:"upiCollectedToday"`
	TotalPending        decimal.Decimal `json:"totalPending"`
	TopPendingRetailers []core.Retailer `json:"topPendingRetailers"`
	PaymentMethodData   []ChartPoint    `json:"paymentMethodData"`
	WeeklyOverview      []ChartPoint    `json:"weeklyOverview"`
}

// ComputeDashboardStats aggregates collections and retailers as of today.
// Inputs are not modified.
func ComputeDashboardStats(collections []core.Collection, retailers []core.Retailer, today core.Date) DashboardStats {
	stats := DashboardStats{
		Date:                today,
		TotalCollectedToday: decimal.Zero,
		CashCollectedToday:  decimal.Zero,
		UPICollectedToday:   decimal.Zero,
		TotalPending:        decimal.Zero,
	}

	for _, c := range collections {
		if !c.Date.Equal(today) {
			continue
		}
		stats.TotalCollectedToday = stats.TotalCollectedToday.Add(c.Amount)
		switch c.Method {
		case core.Cash:
			stats.CashCollectedToday = stats.CashCollectedToday.Add(c.Amount)
		case core.UPI:
			stats.UPICollectedToday = stats.UPICollectedToday.Add(c.Amount)
		}
	}

	for _, r := range retailers {
		stats.TotalPending = stats.TotalPending.Add(r.PendingBalance)
	}
	stats.TopPendingRetailers = TopPending(retailers, topPendingLimit)

	stats.PaymentMethodData = []ChartPoint{
		{Name: string(core.Cash), Value: stats.CashCollectedToday},
		{Name: string(core.UPI), Value: stats.UPICollectedToday},
	}
	stats.WeeklyOverview = WeeklyOverview(collections, today)
	return stats
}

// WeeklyOverview sums collected amounts for each of the seven days ending
// today, oldest first, labelled with the weekday abbreviation.
func WeeklyOverview(collections []core.Collection, today core.Date) []ChartPoint {
	start := today.AddDays(-6)
	points := make([]ChartPoint, 7)
	for i := range points {
		points[i] = ChartPoint{
			Name:  start.AddDays(i).Weekday().String()[:3],
			Value: decimal.Zero,
		}
	}
	for _, c := range collections {
		if c.Date.Before(start.Time) || c.Date.After(today.Time) {
			continue
		}
		i := int(c.Date.Sub(start.Time).Hours() / 24)
		points[i].Value = points[i].Value.Add(c.Amount)
	}
	return points
}

// Clone returns a copy that shares no slices with s.
func (s DashboardStats) Clone() DashboardStats {
	s.TopPendingRetailers = core.CloneRetailers(s.TopPendingRetailers)
	s.PaymentMethodData = append([]ChartPoint(nil), s.PaymentMethodData...)
	s.WeeklyOverview = append([]ChartPoint(nil), s.WeeklyOverview...)
	return s
}
