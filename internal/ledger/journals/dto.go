package journals

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
)

// PostingLineInput describes one requested journal line. Amounts are exact
// decimals; debit and credit are mutually exclusive.
type PostingLineInput struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
	CostCenter  *string
	Department  *string
}

// PostingInput groups fields required to post a journal entry.
type PostingInput struct {
	TenantID       int64
	Date           time.Time
	Description    string
	SourceType     string
	SourceID       uuid.UUID
	IdempotencyKey string
	PostedBy       int64
	Lines          []PostingLineInput
}

// Validate ensures posting input meets minimum criteria before any storage
// round trip. Balance comparison is exact; there is no rounding tolerance.
func (in PostingInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("journals: tenant required")
	}
	if in.Date.IsZero() {
		return errors.New("journals: date required")
	}
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return errors.New("journals: idempotency key required")
	}
	if in.SourceType == "" {
		return errors.New("journals: source type required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if strings.TrimSpace(line.AccountCode) == "" {
			return fmt.Errorf("journals: line %d missing account code", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("journals: line %d negative amount", idx)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("journals: line %d must set exactly one of debit or credit", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return shared.ErrUnbalanced
	}
	return nil
}

// Totals returns the summed debit and credit of the input lines.
func (in PostingInput) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// VoidInput wraps parameters for voiding via a compensating reversal.
type VoidInput struct {
	EntryID      int64
	TenantID     int64
	ActorID      int64
	Reason       string
	ReversalDate time.Time
}

// Validate checks void parameters.
func (in VoidInput) Validate() error {
	if in.EntryID == 0 {
		return errors.New("journals: entry id required")
	}
	if in.TenantID == 0 {
		return errors.New("journals: tenant required")
	}
	if in.ReversalDate.IsZero() {
		return errors.New("journals: reversal date required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return errors.New("journals: reason required")
	}
	return nil
}
