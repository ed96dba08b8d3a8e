package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalStatus enumerates journal lifecycle values. Posted entries are
// immutable; VOID only flags that a compensating reversal exists.
type JournalStatus string

const (
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoid   JournalStatus = "VOID"
)

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID             int64
	TenantID       int64
	Number         string
	PeriodID       int64
	Date           time.Time
	Description    string
	SourceType     string
	SourceID       uuid.UUID
	IdempotencyKey string
	Status         JournalStatus
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal
	ReversalOfID   *int64
	VoidReason     *string
	PostedBy       int64
	PostedAt       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []JournalLine
}

// JournalLine stores a debit or credit amount for an account. Exactly one of
// the two is non-zero.
type JournalLine struct {
	ID         int64
	EntryID    int64
	LineNo     int
	AccountID  int64
	Debit      decimal.Decimal
	Credit     decimal.Decimal
	Memo       string
	CostCenter *string
	Department *string
}

// PostResult is the outcome of Post. WasDuplicate reports an idempotent
// replay: the original entry comes back and nothing new was written.
type PostResult struct {
	Entry        JournalEntry
	WasDuplicate bool
}
