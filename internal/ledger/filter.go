package ledger

import (
	"strings"

	"ledgerdesk/internal/core"
)

// TypeAll disables filtering by transaction type.
const TypeAll = "All"

// Filter narrows a transaction list. Zero values match everything.
type Filter struct {
	RetailerID    string
	RetailerQuery string
	StartDate     *core.Date
	EndDate       *core.Date
	Type          string
}

// NameLookup resolves retailer IDs to display names.
type NameLookup map[string]string

// NamesOf builds a lookup from a retailer list.
func NamesOf(retailers []core.Retailer) NameLookup {
	names := make(NameLookup, len(retailers))
	for _, r := range retailers {
		names[r.ID] = r.Name
	}
	return names
}

// Name returns the retailer's name or the placeholder label for unknown IDs.
func (n NameLookup) Name(id string) string {
	if name, ok := n[id]; ok {
		return name
	}
	return core.UnknownRetailer
}

// FilterTransactions returns the transactions matching every predicate in f,
// in input order. The result is never nil.
func FilterTransactions(txs []core.Transaction, names NameLookup, f Filter) []core.Transaction {
	query := strings.ToLower(strings.TrimSpace(f.RetailerQuery))
	typ := strings.TrimSpace(f.Type)

	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if f.RetailerID != "" && t.RetailerID != f.RetailerID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(names.Name(t.RetailerID)), query) {
			continue
		}
		if f.StartDate != nil && !f.StartDate.IsZero() && t.Time.Before(f.StartDate.Time) {
			continue
		}
		if f.EndDate != nil && !f.EndDate.IsZero() && t.Time.After(f.EndDate.EndOfDay()) {
			continue
		}
		if typ != "" && typ != TypeAll && string(t.Type) != typ {
			continue
		}
		out = append(out, t)
	}
	return out
}
