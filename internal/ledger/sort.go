package ledger

import (
	"regexp"
	"sort"
	"strconv"

	"ledgerdesk/internal/core"
)

var seqPattern = regexp.MustCompile(`^[A-Z](\d+)$`)

// Sequence extracts the numeric part of IDs such as T007; other IDs yield 0.
func Sequence(id string) int {
	m := seqPattern.FindStringSubmatch(id)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// SortTransactions orders txs by time, newest first, then by ID sequence,
// highest first. Remaining ties keep their relative order.
func SortTransactions(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Time.Equal(txs[j].Time) {
			return txs[i].Time.After(txs[j].Time)
		}
		return Sequence(txs[i].ID) > Sequence(txs[j].ID)
	})
}

// TopPending returns up to n retailers with the largest pending balance.
// Ties keep input order. The input is not modified.
func TopPending(retailers []core.Retailer, n int) []core.Retailer {
	sorted := core.CloneRetailers(retailers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PendingBalance.GreaterThan(sorted[j].PendingBalance)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
