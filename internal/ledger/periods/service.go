package periods

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceSource supplies aggregate closing balances for the close snapshot.
type BalanceSource interface {
	ClosingTotals(ctx context.Context, tenantID int64, asOf time.Time) (debit, credit decimal.Decimal, err error)
}

// Service orchestrates the fiscal period lifecycle.
type Service struct {
	repo     Repository
	balances BalanceSource
	now      func() time.Time
}

func NewService(repo Repository, balances BalanceSource) *Service {
	return &Service{repo: repo, balances: balances, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ProvisionInput describes a new period request.
type ProvisionInput struct {
	TenantID  int64
	Label     string
	StartDate time.Time
	EndDate   time.Time
}

// Validate ensures the new range is coherent.
func (in ProvisionInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("periods: tenant required")
	}
	if strings.TrimSpace(in.Label) == "" {
		return errors.New("periods: label required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return errors.New("periods: start and end date required")
	}
	if in.StartDate.After(in.EndDate) {
		return errors.New("periods: start date cannot be after end date")
	}
	return nil
}

// Provision creates a new open period. Overlapping ranges are rejected
// atomically with the insert.
func (s *Service) Provision(ctx context.Context, in ProvisionInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	return s.repo.Provision(ctx, in.TenantID, strings.TrimSpace(in.Label), in.StartDate, in.EndDate)
}

// Resolve returns the period covering the date, or ErrNoPeriodDefined.
func (s *Service) Resolve(ctx context.Context, tenantID int64, date time.Time) (Period, error) {
	return s.repo.ResolveByDate(ctx, tenantID, date)
}

// Get loads a period by id.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.Get(ctx, id)
}

// List returns the tenant's periods ordered by start date.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Period, error) {
	return s.repo.List(ctx, tenantID)
}

// Close flips an open period to CLOSED, snapshotting the aggregate closing
// balances as of the period end first.
func (s *Service) Close(ctx context.Context, periodID, actorID int64) (Period, error) {
	period, err := s.repo.Get(ctx, periodID)
	if err != nil {
		return Period{}, err
	}
	if err := ValidateTransition(period.Status, PeriodStatusClosed); err != nil {
		return Period{}, err
	}
	debit, credit := decimal.Zero, decimal.Zero
	if s.balances != nil {
		debit, credit, err = s.balances.ClosingTotals(ctx, period.TenantID, period.EndDate)
		if err != nil {
			return Period{}, err
		}
	}
	if err := s.repo.Close(ctx, periodID, actorID, s.now(), debit, credit); err != nil {
		return Period{}, err
	}
	return s.repo.Get(ctx, periodID)
}

// Lock makes a closed period terminal. Postings dated inside it, reversals
// included, are refused from this point on.
func (s *Service) Lock(ctx context.Context, periodID, actorID int64) (Period, error) {
	period, err := s.repo.Get(ctx, periodID)
	if err != nil {
		return Period{}, err
	}
	if err := ValidateTransition(period.Status, PeriodStatusLocked); err != nil {
		return Period{}, err
	}
	if period.ClosedAt == nil {
		return Period{}, errors.New("periods: locked requires closed_at")
	}
	if err := s.repo.Lock(ctx, periodID, actorID, s.now()); err != nil {
		return Period{}, err
	}
	return s.repo.Get(ctx, periodID)
}
