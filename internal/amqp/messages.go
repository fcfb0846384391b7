package amqp

import (
	"encoding/json"
	"time"
)

// Message types set on the AMQP Type property.
const (
	TypeEntryCreated     = "entry.created"
	TypeEntryDeleted     = "entry.deleted"
	TypeReconcileRequest = "ledger.reconcile"
)

// Entry sources.
const (
	SourceUser      = "user"
	SourceReconcile = "reconcile"
)

// EntryCreatedMessage announces a new ledger entry. Consumers needing the
// description or category name fetch the entry by ID.
type EntryCreatedMessage struct {
	EntryID     int64     `json:"entry_id"`
	UserID      int64     `json:"user_id"`
	CategoryID  int64     `json:"category_id"`
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amount_cents"`
	Date        string    `json:"date"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
}

type EntryDeletedMessage struct {
	EntryID   int64     `json:"entry_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ReconcileRequestMessage asks a worker to reconcile one user. An empty
// Cycle means the cycle current at processing time.
type ReconcileRequestMessage struct {
	UserID      int64     `json:"user_id"`
	Cycle       string    `json:"cycle,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewReconcileRequestMessage(userID int64, cycle string) *ReconcileRequestMessage {
	return &ReconcileRequestMessage{
		UserID:      userID,
		Cycle:       cycle,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *EntryCreatedMessage) Type() string     { return TypeEntryCreated }
func (m *EntryDeletedMessage) Type() string     { return TypeEntryDeleted }
func (m *ReconcileRequestMessage) Type() string { return TypeReconcileRequest }

func (m *EntryCreatedMessage) ToJSON() ([]byte, error)     { return json.Marshal(m) }
func (m *EntryDeletedMessage) ToJSON() ([]byte, error)     { return json.Marshal(m) }
func (m *ReconcileRequestMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }

func EntryCreatedMessageFromJSON(data []byte) (*EntryCreatedMessage, error) {
	var msg EntryCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func EntryDeletedMessageFromJSON(data []byte) (*EntryDeletedMessage, error) {
	var msg EntryDeletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func ReconcileRequestMessageFromJSON(data []byte) (*ReconcileRequestMessage, error) {
	var msg ReconcileRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
