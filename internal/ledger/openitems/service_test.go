package openitems

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
)

type fakeItemRepo struct {
	mu           sync.Mutex
	items        map[int64]*OpenItem
	applications map[int64][]PaymentApplication
	nextItemID   int64
	nextAppID    int64
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{
		items:        make(map[int64]*OpenItem),
		applications: make(map[int64][]PaymentApplication),
		nextItemID:   1,
		nextAppID:    1,
	}
}

func (f *fakeItemRepo) Create(ctx context.Context, item OpenItem) (OpenItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = f.nextItemID
	f.nextItemID++
	item.Balance = item.OriginalAmount
	item.Status = StatusOpen
	item.CreatedAt = time.Now()
	stored := item
	f.items[item.ID] = &stored
	return item, nil
}

func (f *fakeItemRepo) Get(ctx context.Context, tenantID, id int64) (OpenItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.TenantID != tenantID {
		return OpenItem{}, shared.ErrItemNotFound
	}
	return *item, nil
}

func (f *fakeItemRepo) List(ctx context.Context, tenantID int64, kind ItemKind, onlyOpen bool) ([]OpenItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []OpenItem
	for _, item := range f.items {
		if item.TenantID != tenantID || item.Kind != kind {
			continue
		}
		if onlyOpen && item.Status != StatusOpen {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (f *fakeItemRepo) ListApplications(ctx context.Context, openItemID int64) ([]PaymentApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PaymentApplication(nil), f.applications[openItemID]...), nil
}

func (f *fakeItemRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx, &fakeItemTx{repo: f})
}

type fakeItemTx struct {
	repo *fakeItemRepo
}

func (t *fakeItemTx) GetItemForUpdate(ctx context.Context, tenantID, id int64) (OpenItem, error) {
	item, ok := t.repo.items[id]
	if !ok || item.TenantID != tenantID {
		return OpenItem{}, shared.ErrItemNotFound
	}
	return *item, nil
}

func (t *fakeItemTx) InsertApplication(ctx context.Context, app PaymentApplication) (PaymentApplication, error) {
	app.ID = t.repo.nextAppID
	t.repo.nextAppID++
	app.CreatedAt = time.Now()
	t.repo.applications[app.OpenItemID] = append(t.repo.applications[app.OpenItemID], app)
	return app, nil
}

func (t *fakeItemTx) SettleItem(ctx context.Context, id int64, balance decimal.Decimal, status ItemStatus) error {
	item, ok := t.repo.items[id]
	if !ok {
		return shared.ErrItemNotFound
	}
	item.Balance = balance
	item.Status = status
	return nil
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createInvoice(t *testing.T, svc *Service, amount string) OpenItem {
	t.Helper()
	item, err := svc.Create(context.Background(), CreateInput{
		TenantID:       3,
		Kind:           KindReceivable,
		PartyID:        77,
		EntryID:        100,
		Reference:      "INV-2026-001",
		OriginalAmount: money(amount),
		DueDate:        time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return item
}

func TestCreateStartsFullyOutstanding(t *testing.T) {
	svc := NewService(newFakeItemRepo())
	item := createInvoice(t, svc, "100000")

	assert.Equal(t, StatusOpen, item.Status)
	assert.True(t, item.Balance.Equal(money("100000")))
	assert.True(t, item.OriginalAmount.Equal(money("100000")))
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(newFakeItemRepo())
	_, err := svc.Create(context.Background(), CreateInput{
		TenantID:       3,
		Kind:           KindReceivable,
		OriginalAmount: money("0"),
	})
	require.Error(t, err)
}

func TestPartialPaymentsSettleInSteps(t *testing.T) {
	repo := newFakeItemRepo()
	svc := NewService(repo)
	item := createInvoice(t, svc, "100000")

	first, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		TenantID:   3,
		OpenItemID: item.ID,
		Amount:     money("60000"),
		Date:       time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, first.RemainingBalance.Equal(money("40000")))
	assert.False(t, first.FullyPaid)

	second, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		TenantID:   3,
		OpenItemID: item.ID,
		Amount:     money("40000"),
		Date:       time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, second.RemainingBalance.IsZero())
	assert.True(t, second.FullyPaid)

	settled, err := svc.Get(context.Background(), 3, item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, settled.Status)

	apps, err := repo.ListApplications(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.True(t, apps[0].Amount.Add(apps[1].Amount).Equal(money("100000")))
}

func TestOverApplicationRejected(t *testing.T) {
	repo := newFakeItemRepo()
	svc := NewService(repo)
	item := createInvoice(t, svc, "100000")

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		TenantID:   3,
		OpenItemID: item.ID,
		Amount:     money("100000.01"),
		Date:       time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, shared.ErrOverApplication)

	// Nothing was written.
	got, err := svc.Get(context.Background(), 3, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(money("100000")))
	apps, err := repo.ListApplications(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestOverApplicationAfterPartialPayment(t *testing.T) {
	svc := NewService(newFakeItemRepo())
	item := createInvoice(t, svc, "100000")

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		TenantID:   3,
		OpenItemID: item.ID,
		Amount:     money("60000"),
		Date:       time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// The remaining balance, not the original amount, is the cap.
	_, err = svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		TenantID:   3,
		OpenItemID: item.ID,
		Amount:     money("40000.01"),
		Date:       time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, shared.ErrOverApplication)
}

func TestConcurrentPaymentsNeverOvershoot(t *testing.T) {
	svc := NewService(newFakeItemRepo())
	item := createInvoice(t, svc, "100000")

	const workers = 4
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApplyPayment(context.Background(), ApplyPaymentInput{
				TenantID:   3,
				OpenItemID: item.ID,
				Amount:     money("60000"),
				Date:       time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, shared.ErrOverApplication)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := svc.Get(context.Background(), 3, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(money("40000")))
}

func TestApplyToUnknownItem(t *testing.T) {
	svc := NewService(newFakeItemRepo())
	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		TenantID:   3,
		OpenItemID: 99,
		Amount:     money("10"),
		Date:       time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, shared.ErrItemNotFound)
}

func TestListOnlyOpenFiltersPaid(t *testing.T) {
	svc := NewService(newFakeItemRepo())
	a := createInvoice(t, svc, "500")
	createInvoice(t, svc, "900")

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		TenantID:   3,
		OpenItemID: a.ID,
		Amount:     money("500"),
		Date:       time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	open, err := svc.List(context.Background(), 3, KindReceivable, true)
	require.NoError(t, err)
	require.Len(t, open, 1)

	all, err := svc.List(context.Background(), 3, KindReceivable, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
