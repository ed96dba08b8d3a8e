package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerEventJob is the queue-side consumer for journal events. It records
// each delivery exactly once; replays caused by redelivery are absorbed by the
// primary key on event id.
type LedgerEventJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewLedgerEventJob(pool *pgxpool.Pool, logger *slog.Logger) *LedgerEventJob {
	return &LedgerEventJob{pool: pool, logger: logger}
}

// Handle consumes one ledger event task.
func (j *LedgerEventJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload LedgerEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		j.logger.Error("decode ledger event", slog.Any("error", err))
		// Malformed payloads never become valid; do not retry.
		return fmt.Errorf("jobs: decode ledger event: %v: %w", err, asynq.SkipRetry)
	}

	const query = `
		INSERT INTO event_deliveries (event_id, tenant_id, entry_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING`
	tag, err := j.pool.Exec(ctx, query,
		payload.EventID, payload.TenantID, payload.EntryID, payload.EventType, payload.Payload)
	if err != nil {
		return fmt.Errorf("jobs: record delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		j.logger.Debug("ledger event already delivered", slog.String("event_id", payload.EventID))
		return nil
	}

	j.logger.Info("ledger event processed",
		slog.String("event_id", payload.EventID),
		slog.String("event_type", payload.EventType),
		slog.Int64("tenant_id", payload.TenantID),
		slog.Int64("entry_id", payload.EntryID))
	return nil
}
