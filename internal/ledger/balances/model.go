package balances

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/accounts"
)

// Delta is one commutative increment against a daily balance row. Deltas from
// concurrent postings may land in any order; the materialized row is a sum of
// deltas, never a last-write-wins value.
type Delta struct {
	TenantID  int64
	AccountID int64
	Date      time.Time
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Snapshot is the materialized view of one (account, date) as of that date.
// Derived cache only; the journal lines remain the system of record.
type Snapshot struct {
	TenantID      int64
	AccountID     int64
	Date          time.Time
	PeriodDebit   decimal.Decimal
	PeriodCredit  decimal.Decimal
	ClosingDebit  decimal.Decimal
	ClosingCredit decimal.Decimal
	Net           decimal.Decimal
}

// Net computes the signed balance for an account's normal side.
func Net(normal accounts.NormalBalance, debit, credit decimal.Decimal) decimal.Decimal {
	if normal == accounts.NormalDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}
