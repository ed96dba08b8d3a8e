package balances

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/accounts"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
)

type totals struct {
	debit  decimal.Decimal
	credit decimal.Decimal
}

type fakeBalanceRepo struct {
	cached map[int64]totals
	raw    map[int64]totals
}

func (f *fakeBalanceRepo) SnapshotTotals(ctx context.Context, tenantID, accountID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, bool, error) {
	t, ok := f.cached[accountID]
	if !ok {
		return decimal.Zero, decimal.Zero, false, nil
	}
	return t.debit, t.credit, true, nil
}

func (f *fakeBalanceRepo) RawTotals(ctx context.Context, tenantID, accountID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	t := f.raw[accountID]
	return t.debit, t.credit, nil
}

func (f *fakeBalanceRepo) ClosingTotals(ctx context.Context, tenantID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	for _, t := range f.cached {
		debit = debit.Add(t.debit)
		credit = credit.Add(t.credit)
	}
	return debit, credit, nil
}

func (f *fakeBalanceRepo) DailyRow(ctx context.Context, tenantID, accountID int64, date time.Time) (decimal.Decimal, decimal.Decimal, error) {
	t := f.cached[accountID]
	return t.debit, t.credit, nil
}

type fakeAccountSource struct {
	byCode map[string]accounts.Account
}

func (f *fakeAccountSource) GetByCode(ctx context.Context, tenantID int64, code string) (accounts.Account, error) {
	a, ok := f.byCode[code]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixtureAccounts() *fakeAccountSource {
	return &fakeAccountSource{byCode: map[string]accounts.Account{
		"1000": {ID: 1, Code: "1000", Type: accounts.AccountTypeAsset, NormalBalance: accounts.NormalDebit},
		"4000": {ID: 2, Code: "4000", Type: accounts.AccountTypeIncome, NormalBalance: accounts.NormalCredit},
	}}
}

func TestNetFollowsNormalSide(t *testing.T) {
	// Debit-normal: debits increase the balance.
	assert.True(t, Net(accounts.NormalDebit, dec("150"), dec("50")).Equal(dec("100")))
	// Credit-normal: credits increase the balance.
	assert.True(t, Net(accounts.NormalCredit, dec("50"), dec("150")).Equal(dec("100")))
	// Opposite-side excess goes negative.
	assert.True(t, Net(accounts.NormalDebit, dec("10"), dec("40")).Equal(dec("-30")))
}

func TestBalanceAsOfUsesCache(t *testing.T) {
	repo := &fakeBalanceRepo{
		cached: map[int64]totals{1: {debit: dec("500"), credit: dec("200")}},
		raw:    map[int64]totals{1: {debit: dec("9999"), credit: dec("0")}},
	}
	svc := NewService(repo, fixtureAccounts())

	got, err := svc.BalanceAsOf(context.Background(), 1, "1000", time.Now())
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("300")))
}

func TestBalanceAsOfFallsBackToRawLines(t *testing.T) {
	repo := &fakeBalanceRepo{
		cached: map[int64]totals{},
		raw:    map[int64]totals{2: {debit: dec("0"), credit: dec("750")}},
	}
	svc := NewService(repo, fixtureAccounts())

	got, err := svc.BalanceAsOf(context.Background(), 1, "4000", time.Now())
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("750")))
}

func TestBalanceAsOfUnknownAccount(t *testing.T) {
	svc := NewService(&fakeBalanceRepo{}, fixtureAccounts())
	_, err := svc.BalanceAsOf(context.Background(), 1, "8888", time.Now())
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestVerifyMatchingTotals(t *testing.T) {
	repo := &fakeBalanceRepo{
		cached: map[int64]totals{1: {debit: dec("500"), credit: dec("200")}},
		raw:    map[int64]totals{1: {debit: dec("500"), credit: dec("200")}},
	}
	svc := NewService(repo, fixtureAccounts())
	require.NoError(t, svc.Verify(context.Background(), 1, "1000", time.Now()))
}

func TestVerifyDivergenceIsIntegrityError(t *testing.T) {
	repo := &fakeBalanceRepo{
		cached: map[int64]totals{1: {debit: dec("500"), credit: dec("200")}},
		raw:    map[int64]totals{1: {debit: dec("500"), credit: dec("200.01")}},
	}
	svc := NewService(repo, fixtureAccounts())

	err := svc.Verify(context.Background(), 1, "1000", time.Now())
	require.ErrorIs(t, err, shared.ErrIntegrity)
	assert.Contains(t, err.Error(), "1000")
}

func TestVerifySkipsUncachedAccounts(t *testing.T) {
	repo := &fakeBalanceRepo{
		cached: map[int64]totals{},
		raw:    map[int64]totals{1: {debit: dec("500"), credit: dec("0")}},
	}
	svc := NewService(repo, fixtureAccounts())
	require.NoError(t, svc.Verify(context.Background(), 1, "1000", time.Now()))
}
