package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEventNotFound indicates an unknown event id.
var ErrEventNotFound = errors.New("outbox: event not found")

// Repository reads and settles outbox events. Insertion happens inside the
// posting transaction, owned by the journals tx repository.
type Repository interface {
	PollPending(ctx context.Context, limit int) ([]Event, error)
	Ack(ctx context.Context, id uuid.UUID) error
	Nack(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error
	ListFailed(ctx context.Context, limit int) ([]Event, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const eventColumns = `id, tenant_id, entry_id, event_type, payload, status, attempts, last_error, created_at, processed_at`

func scanEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EntryID, &e.EventType, &e.Payload,
			&e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PollPending returns undelivered events oldest-first. The read claims
// nothing: concurrent dispatchers, or a poll racing an in-flight ack, can
// surface the same event twice. Delivery is at-least-once and the sink
// dedups on event id.
func (r *repository) PollPending(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM outbox_events
WHERE status='PENDING' ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (r *repository) Ack(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `UPDATE outbox_events
SET status='PROCESSED', processed_at=NOW() WHERE id=$1 AND status <> 'PROCESSED'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Already processed acks are fine: consumers retry.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM outbox_events WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrEventNotFound
		}
	}
	return nil
}

// Nack records a delivery failure. Once attempts reach maxAttempts the event
// flips to FAILED and stays visible for manual intervention.
func (r *repository) Nack(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE outbox_events
SET attempts = attempts + 1,
    last_error = $2,
    status = CASE WHEN attempts + 1 >= $3 THEN 'FAILED' ELSE 'PENDING' END
WHERE id=$1 AND status='PENDING'`, id, cause, maxAttempts)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *repository) ListFailed(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM outbox_events
WHERE status='FAILED' ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}
