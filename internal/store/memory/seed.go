package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
)

// Seed is the initial content of a store.
type Seed struct {
	User         core.User          `json:"user"`
	Agents       []core.Agent       `json:"agents"`
	Retailers    []core.Retailer    `json:"retailers"`
	Transactions []core.Transaction `json:"transactions"`
	Collections  []core.Collection  `json:"collections"`
}

// Seed file names looked up by NewFromDir.
const (
	UserFile         = "user.json"
	AgentsFile       = "agents.json"
	RetailersFile    = "retailers.json"
	TransactionsFile = "transactions.json"
	CollectionsFile  = "collections.json"
)

// DefaultSeed returns the built-in demo ledger.
func DefaultSeed() Seed {
	d := decimal.RequireFromString
	date := func(s string) *core.Date {
		v, _ := core.ParseDate(s)
		return &v
	}
	at := func(s string) time.Time {
		t, _ := core.ParseTime(s)
		return t
	}

	return Seed{
		User: core.User{
			ID:                "U001",
			Name:              "John Doe",
			Email:             "owner@amscorp.com",
			Role:              core.RoleOwner,
			ProfilePictureURL: "https://picsum.photos/100",
		},
		Agents: []core.Agent{
			{ID: "A001", Name: "Rajesh Kumar"},
			{ID: "A002", Name: "Suresh Singh"},
		},
		Retailers: []core.Retailer{
			{ID: "R001", Name: "RAJA MOBILES", PartnerID: "0661548615", PendingBalance: d("5000"), LastCollectionDate: date("2023-10-25")},
			{ID: "R002", Name: "SRI VARI COMMUNICATIONS", PartnerID: "0661548616", PendingBalance: d("12500"), LastCollectionDate: date("2023-10-26")},
			{ID: "R003", Name: "AMMAN CELL POINT", PartnerID: "0661548617", PendingBalance: d("0"), LastCollectionDate: date("2023-10-27")},
			{ID: "R004", Name: "NEW MOBILE WORLD", PartnerID: "0661548618", PendingBalance: d("7800"), LastCollectionDate: date("2023-10-24")},
			{ID: "R005", Name: "FRIENDS TELECOM", PartnerID: "0661548619", PendingBalance: d("3200"), LastCollectionDate: date("2023-10-26")},
			{ID: "R006", Name: "VICTORY MOBILES", PartnerID: "0661548620", PendingBalance: d("21000"), LastCollectionDate: date("2023-10-23")},
		},
		Transactions: []core.Transaction{
			{ID: "T001", RetailerID: "R001", Type: core.AutoRefill, Time: at("2023-10-27T10:02:00"), Amount: d("3075"), CommissionRate: d("3")},
			{ID: "T002", RetailerID: "R002", Type: core.PushOrder, Time: at("2023-10-27T11:30:00"), Amount: d("5000"), CommissionRate: d("2.5")},
			{ID: "T003", RetailerID: "R004", Type: core.AutoRefill, Time: at("2023-10-27T12:15:00"), Amount: d("2500"), CommissionRate: d("3")},
			{ID: "T004", RetailerID: "R005", Type: core.AutoRefill, Time: at("2023-10-26T09:00:00"), Amount: d("1500"), CommissionRate: d("3")},
			{ID: "T005", RetailerID: "R006", Type: core.PushOrder, Time: at("2023-10-26T14:00:00"), Amount: d("10000"), CommissionRate: d("2.5")},
			{ID: "T006", RetailerID: "R002", Type: core.AutoRefill, Time: at("2023-10-26T16:45:00"), Amount: d("7500"), CommissionRate: d("3")},
		},
		Collections: []core.Collection{
			{ID: "C001", RetailerID: "R003", AgentID: "A001", Amount: d("2000"), Method: core.Cash, Status: core.Verified, Date: *date("2023-10-27")},
			{ID: "C002", RetailerID: "R001", AgentID: "A002", Amount: d("1500"), Method: core.UPI, Status: core.Pending, Date: *date("2023-10-27"), ProofURL: "https://picsum.photos/200"},
			{ID: "C003", RetailerID: "R005", AgentID: "A001", Amount: d("3200"), Method: core.Cash, Status: core.Verified, Date: *date("2023-10-26")},
			{ID: "C004", RetailerID: "R004", AgentID: "A002", Amount: d("5000"), Method: core.UPI, Status: core.Verified, Date: *date("2023-10-26"), ProofURL: "https://picsum.photos/200"},
		},
	}
}

// LoadSeed reads seed files from dir. Missing files fall back to the
// built-in data for that entity; malformed files are an error.
func LoadSeed(dir string) (Seed, error) {
	seed := DefaultSeed()
	if dir == "" {
		return seed, nil
	}
	files := []struct {
		name string
		dst  any
	}{
		{UserFile, &seed.User},
		{AgentsFile, &seed.Agents},
		{RetailersFile, &seed.Retailers},
		{TransactionsFile, &seed.Transactions},
		{CollectionsFile, &seed.Collections},
	}
	for _, f := range files {
		if err := readJSON(filepath.Join(dir, f.name), f.dst); err != nil {
			return Seed{}, err
		}
	}
	return seed, nil
}

func readJSON(path string, dst any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read seed %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("parse seed %s: %w", path, err)
	}
	return nil
}
