package partitions

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository manages monthly storage partitions for journal lines.
// Partitions are provisioned ahead of need; a missing partition is an
// operational failure, never a silent fallback bucket.
type Repository interface {
	Has(ctx context.Context, date time.Time) (bool, error)
	EnsureMonth(ctx context.Context, month time.Time) error
	ListMonths(ctx context.Context) ([]time.Time, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// MonthStart truncates a date to the first of its month in UTC.
func MonthStart(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func suffix(month time.Time) string {
	return month.Format("y2006m01")
}

func (r *repository) Has(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_partitions WHERE partition_month = $1)`, MonthStart(date)).Scan(&exists)
	return exists, err
}

// EnsureMonth creates the month's line partition and records the month in the
// registry. The entry header table stays unpartitioned so the idempotency key
// keeps a single table-wide unique index. Safe to call repeatedly.
func (r *repository) EnsureMonth(ctx context.Context, month time.Time) error {
	start := MonthStart(month)
	end := start.AddDate(0, 1, 0)
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS journal_lines_%s PARTITION OF journal_lines FOR VALUES FROM ('%s') TO ('%s')`,
		suffix(start), start.Format("2006-01-02"), end.Format("2006-01-02"))
	if _, err := r.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("partitions: create journal_lines_%s: %w", suffix(start), err)
	}
	_, err := r.db.Exec(ctx, `INSERT INTO journal_partitions (partition_month)
VALUES ($1) ON CONFLICT (partition_month) DO NOTHING`, start)
	return err
}

func (r *repository) ListMonths(ctx context.Context) ([]time.Time, error) {
	rows, err := r.db.Query(ctx, `SELECT partition_month FROM journal_partitions ORDER BY partition_month`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var m time.Time
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
