package periods

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
	PeriodStatusLocked PeriodStatus = "LOCKED"
)

// Period represents a tenant fiscal window. Start and end dates are inclusive.
type Period struct {
	ID            int64
	TenantID      int64
	Label         string
	StartDate     time.Time
	EndDate       time.Time
	Status        PeriodStatus
	ClosedAt      *time.Time
	ClosedBy      *int64
	LockedAt      *time.Time
	LockedBy      *int64
	ClosingDebit  decimal.Decimal
	ClosingCredit decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Contains reports whether date falls inside the period range.
func (p Period) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// AcceptsPostings reports whether the period still takes journal entries.
func (p Period) AcceptsPostings() bool {
	return p.Status == PeriodStatusOpen
}

// ValidateTransition enforces the one-directional Open -> Closed -> Locked
// lifecycle. Reopening is not supported.
func ValidateTransition(current, target PeriodStatus) error {
	switch {
	case current == PeriodStatusOpen && target == PeriodStatusClosed:
		return nil
	case current == PeriodStatusClosed && target == PeriodStatusLocked:
		return nil
	}
	return shared.ErrInvalidTransition
}
