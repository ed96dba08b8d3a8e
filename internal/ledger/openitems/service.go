package openitems

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
)

// Service reconciles payments against open receivable and payable items.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput describes a new open item, typically created when a posting
// caller books an invoice or bill.
type CreateInput struct {
	TenantID       int64
	Kind           ItemKind
	PartyID        int64
	EntryID        int64
	Reference      string
	OriginalAmount decimal.Decimal
	DueDate        time.Time
}

// Create registers a new open item with its full balance outstanding.
func (s *Service) Create(ctx context.Context, in CreateInput) (OpenItem, error) {
	if in.TenantID == 0 {
		return OpenItem{}, errors.New("openitems: tenant required")
	}
	if in.Kind != KindReceivable && in.Kind != KindPayable {
		return OpenItem{}, errors.New("openitems: unknown kind")
	}
	if !in.OriginalAmount.IsPositive() {
		return OpenItem{}, errors.New("openitems: original amount must be positive")
	}
	return s.repo.Create(ctx, OpenItem{
		TenantID:       in.TenantID,
		Kind:           in.Kind,
		PartyID:        in.PartyID,
		EntryID:        in.EntryID,
		Reference:      in.Reference,
		OriginalAmount: in.OriginalAmount,
		DueDate:        in.DueDate,
	})
}

// Get loads one item.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (OpenItem, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns items of a kind, optionally only unsettled ones.
func (s *Service) List(ctx context.Context, tenantID int64, kind ItemKind, onlyOpen bool) ([]OpenItem, error) {
	return s.repo.List(ctx, tenantID, kind, onlyOpen)
}

// ApplyPaymentInput describes one settlement attempt.
type ApplyPaymentInput struct {
	TenantID   int64
	OpenItemID int64
	Amount     decimal.Decimal
	Date       time.Time
	EntryID    *int64
}

// ApplyPayment reduces an item's balance under a row lock, so two concurrent
// partial payments can never both succeed past the true remaining balance.
// Reaching zero flips the item to PAID; exceeding the balance fails with
// ErrOverApplication and writes nothing.
func (s *Service) ApplyPayment(ctx context.Context, in ApplyPaymentInput) (ApplyResult, error) {
	if in.TenantID == 0 || in.OpenItemID == 0 {
		return ApplyResult{}, errors.New("openitems: tenant and item required")
	}
	if !in.Amount.IsPositive() {
		return ApplyResult{}, errors.New("openitems: amount must be positive")
	}
	if in.Date.IsZero() {
		return ApplyResult{}, errors.New("openitems: date required")
	}
	var result ApplyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, in.TenantID, in.OpenItemID)
		if err != nil {
			return err
		}
		if in.Amount.GreaterThan(item.Balance) {
			return shared.ErrOverApplication
		}
		remaining := item.Balance.Sub(in.Amount)
		status := StatusOpen
		if remaining.IsZero() {
			status = StatusPaid
		}
		if _, err := tx.InsertApplication(ctx, PaymentApplication{
			OpenItemID:  item.ID,
			Amount:      in.Amount,
			AppliedDate: in.Date,
			EntryID:     in.EntryID,
		}); err != nil {
			return err
		}
		if err := tx.SettleItem(ctx, item.ID, remaining, status); err != nil {
			return err
		}
		result = ApplyResult{RemainingBalance: remaining, FullyPaid: status == StatusPaid}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	return result, nil
}
