package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventStatus tracks delivery progress of an outbox event.
type EventStatus string

const (
	StatusPending   EventStatus = "PENDING"
	StatusProcessed EventStatus = "PROCESSED"
	// StatusFailed marks events that exhausted retries. They are surfaced
	// for manual intervention, never dropped.
	StatusFailed EventStatus = "FAILED"
)

// Event types emitted by the posting path.
const (
	EventJournalPosted = "journal.posted"
	EventJournalVoided = "journal.voided"
)

// Event is the durable record of "this happened", written in the same
// transaction as the journal entry it describes. Delivery is at-least-once;
// consumers must be idempotent.
type Event struct {
	ID          uuid.UUID
	TenantID    int64
	EntryID     int64
	EventType   string
	Payload     json.RawMessage
	Status      EventStatus
	Attempts    int
	LastError   *string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// JournalEventPayload is the wire payload for journal events.
type JournalEventPayload struct {
	EntryID       int64  `json:"entry_id"`
	TenantID      int64  `json:"tenant_id"`
	JournalNumber string `json:"journal_number"`
	JournalDate   string `json:"journal_date"`
	TotalDebit    string `json:"total_debit"`
	TotalCredit   string `json:"total_credit"`
}
