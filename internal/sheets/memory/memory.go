package memory

import (
	"context"
	"fmt"
	"sync"

	"ledgerdesk/internal/reports"
)

// Store keeps one summary row per report date, in first-written order.
type Store struct {
	mu     sync.Mutex
	dates  []string
	rows   map[string][]interface{}
	writes int
}

func New() *Store {
	return &Store{rows: map[string][]interface{}{}}
}

// WriteSummary stores the report's summary row and returns a synthetic row reference.
func (s *Store) WriteSummary(_ context.Context, r reports.DailyReport) (string, error) {
	date := r.Date.String()
	if date == "" {
		return "", fmt.Errorf("report has no date")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if _, ok := s.rows[date]; !ok {
		s.dates = append(s.dates, date)
	}
	s.rows[date] = r.SummaryRow()
	for i, d := range s.dates {
		if d == date {
			return fmt.Sprintf("mem:%d", i+2), nil
		}
	}
	return "", nil
}

// Rows returns the stored rows ordered by first write.
func (s *Store) Rows() [][]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]interface{}, 0, len(s.dates))
	for _, d := range s.dates {
		out = append(out, append([]interface{}(nil), s.rows[d]...))
	}
	return out
}

// Writes counts every WriteSummary call, including replacements.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
