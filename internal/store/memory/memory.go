// Package memory is the default in-process ledger backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/ledger"
)

// Store keeps the ledger in memory. Every read and write copies, so callers
// never share state with the store.
type Store struct {
	mu           sync.Mutex
	user         core.User
	agents       []core.Agent
	retailers    []core.Retailer
	transactions []core.Transaction
	collections  []core.Collection
	retailerSeq  int
	txSeq        int
}

func New(seed Seed) *Store {
	s := &Store{
		user:         seed.User,
		agents:       core.CloneAgents(seed.Agents),
		retailers:    core.CloneRetailers(seed.Retailers),
		transactions: core.CloneTransactions(seed.Transactions),
		collections:  core.CloneCollections(seed.Collections),
	}
	ledger.SortTransactions(s.transactions)
	for _, r := range s.retailers {
		s.retailerSeq = max(s.retailerSeq, ledger.Sequence(r.ID))
	}
	for _, t := range s.transactions {
		s.txSeq = max(s.txSeq, ledger.Sequence(t.ID))
	}
	return s
}

// NewFromDir seeds the store from JSON files in dir, falling back to the
// built-in data for any file that is missing.
func NewFromDir(dir string) (*Store, error) {
	seed, err := LoadSeed(dir)
	if err != nil {
		return nil, err
	}
	return New(seed), nil
}

func (s *Store) GetUser(_ context.Context) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, nil
}

func (s *Store) SaveUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	return u, nil
}

func (s *Store) ListAgents(_ context.Context) ([]core.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CloneAgents(s.agents), nil
}

func (s *Store) ListRetailers(_ context.Context) ([]core.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CloneRetailers(s.retailers), nil
}

func (s *Store) GetRetailer(_ context.Context, id string) (core.Retailer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.retailerIndex(id); i >= 0 {
		return s.retailers[i].Clone(), true, nil
	}
	return core.Retailer{}, false, nil
}

// CreateRetailer prepends r under the next free R-sequence ID.
func (s *Store) CreateRetailer(_ context.Context, r core.Retailer) (core.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retailerSeq++
	r = r.Clone()
	r.ID = fmt.Sprintf("R%03d", s.retailerSeq)
	s.retailers = append([]core.Retailer{r}, s.retailers...)
	return r.Clone(), nil
}

func (s *Store) ReplaceRetailer(_ context.Context, r core.Retailer) (core.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.retailerIndex(r.ID)
	if i < 0 {
		return core.Retailer{}, core.ErrNotFound
	}
	s.retailers[i] = r.Clone()
	return r.Clone(), nil
}

func (s *Store) DeleteRetailer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.retailerIndex(id)
	if i < 0 {
		return core.ErrNotFound
	}
	s.retailers = append(s.retailers[:i:i], s.retailers[i+1:]...)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, retailerID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if retailerID == "" || t.RetailerID == retailerID {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateTransaction inserts t ahead of existing entries and re-sorts, so a
// new transaction sharing a timestamp with an old one is listed first.
func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txSeq++
	t.ID = fmt.Sprintf("T%03d", s.txSeq)
	s.transactions = append([]core.Transaction{t}, s.transactions...)
	ledger.SortTransactions(s.transactions)
	return t, nil
}

func (s *Store) ReplaceTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == t.ID {
			s.transactions[i] = t
			ledger.SortTransactions(s.transactions)
			return t, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) ListCollections(_ context.Context, retailerID string) ([]core.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		if retailerID == "" || c.RetailerID == retailerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) retailerIndex(id string) int {
	for i := range s.retailers {
		if s.retailers[i].ID == id {
			return i
		}
	}
	return -1
}
