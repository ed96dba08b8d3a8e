package sequence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository issues monotonically increasing per-key counters.
type Repository interface {
	Next(ctx context.Context, tenantID int64, prefix, bucket string) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Next atomically increments and returns the counter for the key, creating it
// at 1 when absent. A single upsert statement keeps concurrent callers from
// ever observing the same value; gaps after rolled-back postings are fine.
func (r *repository) Next(ctx context.Context, tenantID int64, prefix, bucket string) (int64, error) {
	var value int64
	err := r.db.QueryRow(ctx, `INSERT INTO sequence_counters (tenant_id, prefix, bucket, last_value)
VALUES ($1,$2,$3,1)
ON CONFLICT (tenant_id, prefix, bucket)
DO UPDATE SET last_value = sequence_counters.last_value + 1, updated_at = NOW()
RETURNING last_value`, tenantID, prefix, bucket).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}
