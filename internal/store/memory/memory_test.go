package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
)

func TestNewSortsSeedTransactions(t *testing.T) {
	s := New(DefaultSeed())
	txs, err := s.ListTransactions(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"T003", "T002", "T001", "T006", "T005", "T004"}
	if len(txs) != len(want) {
		t.Fatalf("got %d transactions", len(txs))
	}
	for i, id := range want {
		if txs[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, txs[i].ID, id)
		}
	}
}

func TestListRetailersReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultSeed())
	a, _ := s.ListRetailers(ctx)
	b, _ := s.ListRetailers(ctx)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("snapshots differ without a write")
	}
	a[0].Name = "CHANGED"
	a[0].LastCollectionDate.Time = a[0].LastCollectionDate.AddDate(1, 0, 0)
	c, _ := s.ListRetailers(ctx)
	if c[0].Name == "CHANGED" || b[0].Name == "CHANGED" {
		t.Fatalf("mutation leaked into store")
	}
	if c[0].LastCollectionDate.String() != "2023-10-25" {
		t.Fatalf("date pointer shared with store: %s", c[0].LastCollectionDate)
	}
}

func TestCreateRetailerPrependsWithNextID(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultSeed())
	r, err := s.CreateRetailer(ctx, core.Retailer{Name: "NEW", PartnerID: "1234567890", PendingBalance: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.ID != "R007" {
		t.Fatalf("expected R007, got %s", r.ID)
	}
	list, _ := s.ListRetailers(ctx)
	if list[0].ID != "R007" || len(list) != 7 {
		t.Fatalf("new retailer not prepended: %v", list[0].ID)
	}
}

func TestDeleteDoesNotReuseIDs(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultSeed())
	if err := s.DeleteRetailer(ctx, "R006"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	r, _ := s.CreateRetailer(ctx, core.Retailer{Name: "X"})
	if r.ID != "R007" {
		t.Fatalf("expected R007 after delete, got %s", r.ID)
	}
	if err := s.DeleteRetailer(ctx, "R999"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceRetailerKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultSeed())
	_, err := s.ReplaceRetailer(ctx, core.Retailer{ID: "R003", Name: "RENAMED", PartnerID: "0661548617"})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	list, _ := s.ListRetailers(ctx)
	if list[2].ID != "R003" || list[2].Name != "RENAMED" {
		t.Fatalf("replaced entry moved or unchanged: %+v", list[2])
	}
	if list[2].LastCollectionDate != nil {
		t.Fatalf("full replace should clear omitted fields")
	}
	if _, err := s.ReplaceRetailer(ctx, core.Retailer{ID: "R404"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAndReplaceTransactionKeepOrder(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultSeed())
	latest := time.Date(2023, 10, 28, 8, 0, 0, 0, time.UTC)
	tx, err := s.CreateTransaction(ctx, core.Transaction{RetailerID: "R001", Type: core.PushOrder, Time: latest, Amount: decimal.NewFromInt(100)})
	if err != nil || tx.ID != "T007" {
		t.Fatalf("create: id=%s err=%v", tx.ID, err)
	}
	txs, _ := s.ListTransactions(ctx, "")
	if txs[0].ID != "T007" {
		t.Fatalf("newest transaction should be first, got %s", txs[0].ID)
	}

	moved := txs[0]
	moved.Time = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.ReplaceTransaction(ctx, moved); err != nil {
		t.Fatalf("replace: %v", err)
	}
	txs, _ = s.ListTransactions(ctx, "")
	if txs[len(txs)-1].ID != "T007" {
		t.Fatalf("updated transaction should sort last, got %s", txs[len(txs)-1].ID)
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].Time.After(txs[i-1].Time) {
			t.Fatalf("not sorted at %d", i)
		}
	}
	if _, err := s.ReplaceTransaction(ctx, core.Transaction{ID: "T999"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFiltersByRetailer(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultSeed())
	txs, _ := s.ListTransactions(ctx, "R002")
	if len(txs) != 2 || txs[0].ID != "T002" || txs[1].ID != "T006" {
		t.Fatalf("unexpected R002 transactions: %+v", txs)
	}
	cs, _ := s.ListCollections(ctx, "R004")
	if len(cs) != 1 || cs[0].ID != "C004" {
		t.Fatalf("unexpected R004 collections: %+v", cs)
	}
	none, _ := s.ListTransactions(ctx, "R404")
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}
}

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()
	// No files -> defaults
	s, err := NewFromDir(dir)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	agents, _ := s.ListAgents(context.Background())
	if len(agents) != 2 {
		t.Fatalf("expected default agents, got %v", agents)
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite(AgentsFile, `[{"id":"A009","name":"Priya"}]`)
	mustWrite(RetailersFile, `[{"id":"R010","name":"SEEDED","partnerId":"0000000001","pendingBalance":42,"lastCollectionDate":"2024-01-02"}]`)

	s, err = NewFromDir(dir)
	if err != nil {
		t.Fatalf("seeded: %v", err)
	}
	agents, _ = s.ListAgents(context.Background())
	if len(agents) != 1 || agents[0].Name != "Priya" {
		t.Fatalf("unexpected agents: %v", agents)
	}
	r, _ := s.CreateRetailer(context.Background(), core.Retailer{Name: "NEXT"})
	if r.ID != "R011" {
		t.Fatalf("sequence should continue from seed, got %s", r.ID)
	}

	mustWrite(CollectionsFile, `{not json`)
	if _, err := NewFromDir(dir); err == nil {
		t.Fatalf("expected error for malformed seed file")
	}
}

func TestSaveUser(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultSeed())
	u, _ := s.GetUser(ctx)
	u.Name = "Jane"
	if _, err := s.SaveUser(ctx, u); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := s.GetUser(ctx)
	if got.Name != "Jane" || got.Email != "owner@amscorp.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
}
