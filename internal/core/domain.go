package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AutoRefill TransactionType = "Auto-refill"
	PushOrder  TransactionType = "Push order"

	Cash CollectionMethod = "Cash"
	UPI  CollectionMethod = "UPI"

	Verified CollectionStatus = "Verified"
	Pending  CollectionStatus = "Pending"

	RoleOwner Role = "Owner"
	RoleAdmin Role = "Admin"
	RoleAgent Role = "Agent"
)

// Placeholder labels for references that no longer resolve.
const (
	UnknownRetailer = "Unknown Retailer"
	UnknownAgent    = "Unknown Agent"
)

type (
	TransactionType  string
	CollectionMethod string
	CollectionStatus string
	Role             string

	Retailer struct {
		ID                 string          `json:"id"`
		Name               string          `json:"name"`
		PartnerID          string          `json:"partnerId"`
		PendingBalance     decimal.Decimal `json:"pendingBalance"`
		LastCollectionDate *Date           `json:"lastCollectionDate,omitempty"`
	}

	Transaction struct {
		ID             string          `json:"id"`
		RetailerID     string          `json:"retailerId"`
		Type           TransactionType `json:"type"`
		Time           time.Time       `json:"time"`
		Amount         decimal.Decimal `json:"amount"`
		CommissionRate decimal.Decimal `json:"commissionRate"`
	}

	// Collection is a cash or UPI receipt taken by an agent.
	Collection struct {
		ID         string           `json:"id"`
		RetailerID string           `json:"retailerId"`
		AgentID    string           `json:"agentId"`
		Amount     decimal.Decimal  `json:"amount"`
		Method     CollectionMethod `json:"method"`
		Status     CollectionStatus `json:"status"`
		Date       Date             `json:"date"`
		ProofURL   string           `json:"proofUrl,omitempty"`
	}

	Agent struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	User struct {
		ID                string `json:"id"`
		Name              string `json:"name"`
		Email             string `json:"email"`
		Role              Role   `json:"role"`
		ProfilePictureURL string `json:"profilePictureUrl"`
		CompanyLogoURL    string `json:"companyLogoUrl"`
	}
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidTime   = errors.New("invalid time")
	ErrInvalidTxType = errors.New("invalid transaction type")
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == AutoRefill || t == PushOrder
}

// ParseTransactionType accepts the canonical labels case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto-refill":
		return AutoRefill, nil
	case "push order":
		return PushOrder, nil
	}
	return "", ErrInvalidTxType
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleAgent:
		return true
	}
	return false
}

// Clone returns a copy that shares no memory with r.
func (r Retailer) Clone() Retailer {
	if r.LastCollectionDate != nil {
		d := *r.LastCollectionDate
		r.LastCollectionDate = &d
	}
	return r
}

// NetAmount is the amount after commission, rounded to the nearest 10.
func (t Transaction) NetAmount() decimal.Decimal {
	return NetAmount(t.Amount, t.CommissionRate)
}

// TimeLayouts are the accepted wire formats for transaction times, most specific first.
var TimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTime parses an ISO-8601 timestamp. Values without an offset are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidTime
}

// CloneRetailers deep-copies a slice of retailers.
func CloneRetailers(in []Retailer) []Retailer {
	out := make([]Retailer, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// CloneTransactions copies a slice of transactions. Transaction holds no
// shared mutable state so a shallow copy of each element is enough.
func CloneTransactions(in []Transaction) []Transaction {
	return append(make([]Transaction, 0, len(in)), in...)
}

func CloneCollections(in []Collection) []Collection {
	return append(make([]Collection, 0, len(in)), in...)
}

func CloneAgents(in []Agent) []Agent {
	return append(make([]Agent, 0, len(in)), in...)
}
