package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names the ledger write that produced an event.
type EventKind string

const (
	RetailerCreated    EventKind = "retailer.created"
	RetailerUpdated    EventKind = "retailer.updated"
	RetailerDeleted    EventKind = "retailer.deleted"
	TransactionCreated EventKind = "transaction.created"
	TransactionUpdated EventKind = "transaction.updated"
	UserUpdated        EventKind = "user.updated"
)

func (k EventKind) Valid() bool {
	switch k {
	case RetailerCreated, RetailerUpdated, RetailerDeleted,
		TransactionCreated, TransactionUpdated, UserUpdated:
		return true
	}
	return false
}

// LedgerEvent announces a successful ledger write. It carries only the
// entity ID; consumers reload what they need from the store.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	EntityID  string    `json:"entityId"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event with a fresh ID and the current time.
func NewLedgerEvent(kind EventKind, entityID string) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown kinds.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return &e, nil
}
