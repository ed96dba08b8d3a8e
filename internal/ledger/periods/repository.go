package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-ledger/meridian-ledger/internal/platform/db"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
)

// Repository encapsulates DB operations for fiscal periods.
type Repository interface {
	Provision(ctx context.Context, tenantID int64, label string, start, end time.Time) (Period, error)
	ResolveByDate(ctx context.Context, tenantID int64, date time.Time) (Period, error)
	Get(ctx context.Context, id int64) (Period, error)
	List(ctx context.Context, tenantID int64) ([]Period, error)
	Close(ctx context.Context, id, actorID int64, at time.Time, closingDebit, closingCredit decimal.Decimal) error
	Lock(ctx context.Context, id, actorID int64, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const periodColumns = `id, tenant_id, label, start_date, end_date, status, closed_at, closed_by, locked_at, locked_by, closing_debit, closing_credit, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.TenantID, &p.Label, &p.StartDate, &p.EndDate, &p.Status,
		&p.ClosedAt, &p.ClosedBy, &p.LockedAt, &p.LockedBy, &p.ClosingDebit, &p.ClosingCredit,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Provision inserts a new period after an overlap check. Check and insert run
// in one Serializable transaction; the daterange exclusion constraint on the
// table is the backstop, so two racing calls can never both commit.
func (r *repository) Provision(ctx context.Context, tenantID int64, label string, start, end time.Time) (Period, error) {
	var period Period
	err := db.WithSerializableTx(ctx, r.db, func(tx pgx.Tx) error {
		var conflict bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM fiscal_periods WHERE tenant_id=$1 AND start_date <= $3 AND end_date >= $2)`,
			tenantID, start, end).Scan(&conflict); err != nil {
			return err
		}
		if conflict {
			return shared.ErrPeriodOverlap
		}
		row := tx.QueryRow(ctx, `INSERT INTO fiscal_periods (tenant_id, label, start_date, end_date, status)
VALUES ($1,$2,$3,$4,'OPEN') RETURNING `+periodColumns, tenantID, label, start, end)
		var e error
		period, e = scanPeriod(row)
		return e
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			return Period{}, shared.ErrPeriodOverlap
		}
		return Period{}, err
	}
	return period, nil
}

// ResolveByDate returns the single period covering the date. Non-overlap makes
// the result unique; no period at all is a hard failure, never a default.
func (r *repository) ResolveByDate(ctx context.Context, tenantID int64, date time.Time) (Period, error) {
	row := r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE tenant_id=$1 AND $2 BETWEEN start_date AND end_date`, tenantID, date)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrNoPeriodDefined
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Period, error) {
	row := r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE id=$1`, id)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrNoPeriodDefined
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, tenantID int64) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE tenant_id=$1 ORDER BY start_date`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Close(ctx context.Context, id, actorID int64, at time.Time, closingDebit, closingCredit decimal.Decimal) error {
	cmd, err := r.db.Exec(ctx, `UPDATE fiscal_periods
SET status='CLOSED', closed_at=$2, closed_by=$3, closing_debit=$4, closing_credit=$5, updated_at=NOW()
WHERE id=$1 AND status='OPEN'`, id, at, actorID, closingDebit, closingCredit)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}

func (r *repository) Lock(ctx context.Context, id, actorID int64, at time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE fiscal_periods
SET status='LOCKED', locked_at=$2, locked_by=$3, updated_at=NOW()
WHERE id=$1 AND status='CLOSED' AND closed_at IS NOT NULL`, id, at, actorID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}
