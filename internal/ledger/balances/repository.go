package balances

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads the daily balance cache and the raw line history it is
// derived from.
type Repository interface {
	SnapshotTotals(ctx context.Context, tenantID, accountID int64, asOf time.Time) (debit, credit decimal.Decimal, cached bool, err error)
	RawTotals(ctx context.Context, tenantID, accountID int64, asOf time.Time) (debit, credit decimal.Decimal, err error)
	ClosingTotals(ctx context.Context, tenantID int64, asOf time.Time) (debit, credit decimal.Decimal, err error)
	DailyRow(ctx context.Context, tenantID, accountID int64, date time.Time) (debit, credit decimal.Decimal, err error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// SnapshotTotals sums cached daily rows up to asOf. cached is false when no
// row exists at all for the account, signalling the caller to fall back to
// the raw lines.
func (r *repository) SnapshotTotals(ctx context.Context, tenantID, accountID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, bool, error) {
	var debit, credit decimal.Decimal
	var rows int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0), COUNT(*)
FROM account_balances WHERE tenant_id=$1 AND account_id=$2 AND balance_date <= $3`,
		tenantID, accountID, asOf).Scan(&debit, &credit, &rows)
	if err != nil {
		return decimal.Zero, decimal.Zero, false, err
	}
	return debit, credit, rows > 0, nil
}

// RawTotals recomputes totals from posted journal lines. Void originals stay
// POSTED-compensated, so no status filter beyond POSTED is needed.
func (r *repository) RawTotals(ctx context.Context, tenantID, accountID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id AND e.entry_date = l.entry_date
WHERE e.tenant_id=$1 AND l.account_id=$2 AND e.entry_date <= $3`,
		tenantID, accountID, asOf).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

// ClosingTotals sums the cache across all accounts, used for the period close
// snapshot.
func (r *repository) ClosingTotals(ctx context.Context, tenantID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0)
FROM account_balances WHERE tenant_id=$1 AND balance_date <= $2`,
		tenantID, asOf).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

func (r *repository) DailyRow(ctx context.Context, tenantID, accountID int64, date time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0)
FROM account_balances WHERE tenant_id=$1 AND account_id=$2 AND balance_date=$3`,
		tenantID, accountID, date).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}
