package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/store/memory"
)

func newEngine() *ledger.Engine {
	clock := func() time.Time { return time.Date(2023, 10, 27, 15, 0, 0, 0, time.UTC) }
	return ledger.New(memory.New(memory.DefaultSeed()), ledger.WithClock(clock))
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

func TestFetchDashboardStatsUsesClock(t *testing.T) {
	e := newEngine()
	stats, err := e.FetchDashboardStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Date.String() != "2023-10-27" {
		t.Fatalf("unexpected date %s", stats.Date)
	}
	if !stats.TotalCollectedToday.Equal(decimal.NewFromInt(3500)) {
		t.Fatalf("total today = %s", stats.TotalCollectedToday)
	}
	if len(stats.TopPendingRetailers) != 5 || stats.TopPendingRetailers[0].ID != "R006" {
		t.Fatalf("unexpected top pending: %+v", stats.TopPendingRetailers)
	}
}

func TestTodayHonoursLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	clock := func() time.Time { return time.Date(2023, 10, 27, 20, 0, 0, 0, time.UTC) }
	e := ledger.New(memory.New(memory.DefaultSeed()), ledger.WithClock(clock), ledger.WithLocation(kolkata))
	if got := e.Today().String(); got != "2023-10-28" {
		t.Fatalf("Today() = %s", got)
	}
}

func TestFetchRetailerRollup(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	roll, err := e.FetchRetailerRollup(ctx, "R002")
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if !roll.Found || roll.Retailer.Name != "SRI VARI COMMUNICATIONS" {
		t.Fatalf("unexpected retailer: %+v", roll.Retailer)
	}
	if len(roll.Transactions) != 2 || roll.Transactions[0].ID != "T002" {
		t.Fatalf("unexpected transactions: %+v", roll.Transactions)
	}
	if len(roll.Collections) != 0 {
		t.Fatalf("R002 has no collections, got %+v", roll.Collections)
	}

	missing, err := e.FetchRetailerRollup(ctx, "R404")
	if err != nil || missing.Found {
		t.Fatalf("expected not found without error, got %+v err=%v", missing, err)
	}
}

func TestSaveRetailer(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.SaveRetailer(ctx, core.RetailerDraft{Name: "", PartnerID: "12345", PendingBalance: ptr(decimal.NewFromInt(-1))})
	ve, ok := core.AsValidationError(err)
	if !ok || len(ve.Fields) != 3 {
		t.Fatalf("expected three field errors, got %v", err)
	}
	list, _ := e.FetchRetailers(ctx)
	if len(list) != 6 {
		t.Fatalf("invalid draft must not mutate, got %d retailers", len(list))
	}

	created, err := e.SaveRetailer(ctx, core.RetailerDraft{Name: " NEW SHOP ", PartnerID: "0661548699", PendingBalance: ptr(decimal.Zero)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "R007" || created.Name != "NEW SHOP" {
		t.Fatalf("unexpected created retailer: %+v", created)
	}

	draft := core.DraftFromRetailer(created)
	draft.PendingBalance = ptr(decimal.NewFromInt(250))
	updated, err := e.SaveRetailer(ctx, draft)
	if err != nil || !updated.PendingBalance.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("update: %+v err=%v", updated, err)
	}

	_, err = e.UpdateRetailer(ctx, core.RetailerDraft{ID: "R404", Name: "x", PartnerID: "0661548699", PendingBalance: ptr(decimal.Zero)})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRetailerKeepsOrphans(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	id, err := e.DeleteRetailer(ctx, "R001")
	if err != nil || id != "R001" {
		t.Fatalf("delete: id=%s err=%v", id, err)
	}
	if _, found, _ := e.FetchRetailerByID(ctx, "R001"); found {
		t.Fatalf("retailer still present")
	}
	rows, err := e.SearchTransactions(ctx, ledger.Filter{RetailerID: "R001"})
	if err != nil || len(rows) != 1 || rows[0].RetailerName != core.UnknownRetailer {
		t.Fatalf("orphaned transaction should resolve to placeholder: %+v err=%v", rows, err)
	}
	if _, err := e.DeleteRetailer(ctx, "R001"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestSaveTransaction(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	for _, amt := range []int64{0, -5} {
		_, err := e.SaveTransaction(ctx, core.TransactionDraft{RetailerID: "R001", Type: core.AutoRefill, Time: time.Now(), Amount: decimal.NewFromInt(amt)})
		ve, ok := core.AsValidationError(err)
		if !ok || ve.Fields["amount"] != core.MsgAmountPositive {
			t.Fatalf("amount %d: expected validation error, got %v", amt, err)
		}
	}
	txs, _ := e.FetchTransactions(ctx, "")
	if len(txs) != 6 {
		t.Fatalf("rejected drafts must not mutate")
	}

	latest := time.Date(2023, 10, 27, 18, 0, 0, 0, time.UTC)
	created, err := e.SaveTransaction(ctx, core.TransactionDraft{
		RetailerID: "R003", Type: core.PushOrder, Time: latest,
		Amount: decimal.RequireFromString("0.01"), CommissionRate: decimal.NewFromInt(3),
	})
	if err != nil || created.ID != "T007" {
		t.Fatalf("create: %+v err=%v", created, err)
	}
	txs, _ = e.FetchTransactions(ctx, "")
	if txs[0].ID != "T007" {
		t.Fatalf("most recent transaction should be first, got %s", txs[0].ID)
	}

	edit := core.TransactionDraft{ID: "T007", RetailerID: "R003", Type: core.PushOrder, Time: latest.AddDate(-1, 0, 0), Amount: decimal.NewFromInt(40)}
	if _, err := e.SaveTransaction(ctx, edit); err != nil {
		t.Fatalf("update: %v", err)
	}
	txs, _ = e.FetchTransactions(ctx, "")
	if txs[len(txs)-1].ID != "T007" {
		t.Fatalf("edited transaction should re-sort to the end")
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].Time.After(txs[i-1].Time) {
			t.Fatalf("transactions not sorted descending at %d", i)
		}
	}
}

func TestSearchTransactionsEnrichesRows(t *testing.T) {
	e := newEngine()
	rows, err := e.SearchTransactions(context.Background(), ledger.Filter{RetailerQuery: "raja", Type: ledger.TypeAll})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "T001" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].RetailerName != "RAJA MOBILES" || !rows[0].NetAmount.Equal(decimal.NewFromInt(2980)) {
		t.Fatalf("row not enriched: %+v", rows[0])
	}
}

func TestUpdateUserMerges(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	name := "Asha"
	u, err := e.UpdateUser(ctx, core.UserPatch{Name: &name})
	if err != nil || u.Name != "Asha" || u.Email != "owner@amscorp.com" {
		t.Fatalf("merge: %+v err=%v", u, err)
	}
	bad := "nope"
	if _, err := e.UpdateUser(ctx, core.UserPatch{Email: &bad}); err == nil {
		t.Fatalf("expected email validation error")
	}
	got, _ := e.FetchUser(ctx)
	if got.Email != "owner@amscorp.com" {
		t.Fatalf("rejected patch mutated user: %+v", got)
	}
}

func TestFetchRetailersIsIdempotent(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	a, _ := e.FetchRetailers(ctx)
	b, _ := e.FetchRetailers(ctx)
	a[0].PendingBalance = decimal.NewFromInt(1)
	if b[0].PendingBalance.Equal(a[0].PendingBalance) {
		t.Fatalf("snapshots share state")
	}
	c, _ := e.FetchRetailers(ctx)
	if !c[0].PendingBalance.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("store mutated through snapshot")
	}
}
