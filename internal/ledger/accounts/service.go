package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
)

// CreateInput groups fields required to register an account.
type CreateInput struct {
	TenantID      int64
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	ParentID      *int64
	IsHeader      bool
}

// Validate ensures the input is coherent before touching storage.
func (in CreateInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("accounts: tenant required")
	}
	if strings.TrimSpace(in.Code) == "" {
		return errors.New("accounts: code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("accounts: name required")
	}
	if !ValidType(in.Type) {
		return errors.New("accounts: unknown account type")
	}
	if in.NormalBalance != "" && in.NormalBalance != NormalDebit && in.NormalBalance != NormalCredit {
		return errors.New("accounts: unknown normal balance")
	}
	return nil
}

// Service implements the account registry operations.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new account. The normal balance defaults by type and is
// immutable afterwards.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	normal := in.NormalBalance
	if normal == "" {
		normal = DefaultNormalBalance(in.Type)
	}
	return s.repo.Insert(ctx, Account{
		TenantID:      in.TenantID,
		Code:          strings.TrimSpace(in.Code),
		Name:          strings.TrimSpace(in.Name),
		Type:          in.Type,
		NormalBalance: normal,
		ParentID:      in.ParentID,
		IsHeader:      in.IsHeader,
	})
}

// Get returns the account for a tenant-scoped code.
func (s *Service) Get(ctx context.Context, tenantID int64, code string) (Account, error) {
	return s.repo.GetByCode(ctx, tenantID, code)
}

// List returns the tenant's chart of accounts ordered by code.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Account, error) {
	return s.repo.List(ctx, tenantID)
}

// Deactivate soft-disables an account. Posted history stays queryable.
func (s *Service) Deactivate(ctx context.Context, tenantID int64, code string) error {
	return s.repo.Deactivate(ctx, tenantID, code)
}

// Delete removes an account that was never posted against. Accounts referenced
// by journal lines are kept forever and can only be deactivated.
func (s *Service) Delete(ctx context.Context, tenantID int64, code string) error {
	account, err := s.repo.GetByCode(ctx, tenantID, code)
	if err != nil {
		return err
	}
	used, err := s.repo.HasPostedLines(ctx, account.ID)
	if err != nil {
		return err
	}
	if used {
		return shared.ErrAccountInUse
	}
	return s.repo.Delete(ctx, tenantID, code)
}
