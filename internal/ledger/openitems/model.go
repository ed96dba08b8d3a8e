package openitems

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind distinguishes receivable from payable items.
type ItemKind string

const (
	KindReceivable ItemKind = "RECEIVABLE"
	KindPayable    ItemKind = "PAYABLE"
)

// ItemStatus tracks settlement progress.
type ItemStatus string

const (
	StatusOpen ItemStatus = "OPEN"
	StatusPaid ItemStatus = "PAID"
)

// OpenItem is one unsettled receivable or payable row. Balance always equals
// original amount minus the sum of applications and never goes negative.
type OpenItem struct {
	ID             int64
	TenantID       int64
	Kind           ItemKind
	PartyID        int64
	EntryID        int64
	Reference      string
	OriginalAmount decimal.Decimal
	Balance        decimal.Decimal
	Status         ItemStatus
	DueDate        time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentApplication records one partial or full settlement against an item.
type PaymentApplication struct {
	ID          int64
	OpenItemID  int64
	Amount      decimal.Decimal
	AppliedDate time.Time
	EntryID     *int64
	CreatedAt   time.Time
}

// ApplyResult is the outcome of a payment application.
type ApplyResult struct {
	RemainingBalance decimal.Decimal
	FullyPaid        bool
}
