package balances

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/accounts"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
)

// AccountSource resolves account metadata for sign computation.
type AccountSource interface {
	GetByCode(ctx context.Context, tenantID int64, code string) (accounts.Account, error)
}

// Service answers balance queries from the daily cache, falling back to the
// raw journal lines when the cache has nothing for an account.
type Service struct {
	repo     Repository
	accounts AccountSource
}

func NewService(repo Repository, accounts AccountSource) *Service {
	return &Service{repo: repo, accounts: accounts}
}

// BalanceAsOf returns the signed balance for an account code. The sign
// follows the account's normal side: debit-normal accounts grow positive on
// debits, credit-normal on credits.
func (s *Service) BalanceAsOf(ctx context.Context, tenantID int64, accountCode string, asOf time.Time) (decimal.Decimal, error) {
	account, err := s.accounts.GetByCode(ctx, tenantID, accountCode)
	if err != nil {
		return decimal.Zero, err
	}
	debit, credit, cached, err := s.repo.SnapshotTotals(ctx, tenantID, account.ID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	if !cached {
		debit, credit, err = s.repo.RawTotals(ctx, tenantID, account.ID, asOf)
		if err != nil {
			return decimal.Zero, err
		}
	}
	return Net(account.NormalBalance, debit, credit), nil
}

// ClosingTotals implements the period close snapshot source.
func (s *Service) ClosingTotals(ctx context.Context, tenantID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return s.repo.ClosingTotals(ctx, tenantID, asOf)
}

// Verify recomputes an account's totals from raw lines and compares them to
// the cache. A divergence is a bug, not an operating condition; it surfaces
// as ErrIntegrity and posting against the account must halt until reconciled.
func (s *Service) Verify(ctx context.Context, tenantID int64, accountCode string, asOf time.Time) error {
	account, err := s.accounts.GetByCode(ctx, tenantID, accountCode)
	if err != nil {
		return err
	}
	cachedDebit, cachedCredit, cached, err := s.repo.SnapshotTotals(ctx, tenantID, account.ID, asOf)
	if err != nil {
		return err
	}
	if !cached {
		return nil
	}
	rawDebit, rawCredit, err := s.repo.RawTotals(ctx, tenantID, account.ID, asOf)
	if err != nil {
		return err
	}
	if !cachedDebit.Equal(rawDebit) || !cachedCredit.Equal(rawCredit) {
		return fmt.Errorf("%w: account %s cache %s/%s raw %s/%s",
			shared.ErrIntegrity, accountCode, cachedDebit, cachedCredit, rawDebit, rawCredit)
	}
	return nil
}
