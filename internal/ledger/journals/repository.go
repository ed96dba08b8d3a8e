package journals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/accounts"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/balances"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/outbox"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/periods"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
	"github.com/meridian-ledger/meridian-ledger/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error)
	List(ctx context.Context, tenantID int64, limit int) ([]JournalEntry, error)
}

// TxRepository exposes everything the posting path touches inside one
// all-or-nothing unit: entry, lines, outbox event, and balance deltas.
type TxRepository interface {
	FindByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*JournalEntry, error)
	ResolvePeriodForUpdate(ctx context.Context, tenantID int64, date time.Time) (periods.Period, error)
	AccountsByCode(ctx context.Context, tenantID int64, codes []string) (map[string]accounts.Account, error)
	HasPartition(ctx context.Context, date time.Time) (bool, error)
	NextSequence(ctx context.Context, tenantID int64, prefix, bucket string) (int64, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, bool, error)
	InsertLines(ctx context.Context, entryID int64, date time.Time, lines []JournalLine) error
	GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error)
	MarkVoid(ctx context.Context, entryID int64, reason string, reversalID int64) error
	InsertOutboxEvent(ctx context.Context, event outbox.Event) error
	ApplyBalanceDelta(ctx context.Context, delta balances.Delta) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// WithTx runs fn inside one RepeatableRead transaction. Serialization
// failures replay fn against a fresh snapshot, so a concurrent duplicate
// submission resolves to the winner row instead of surfacing SQLSTATE 40001.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const entryColumns = `id, tenant_id, number, period_id, entry_date, description, source_type, source_id, idempotency_key, status, total_debit, total_credit, reversal_of_id, void_reason, posted_by, posted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.Number, &e.PeriodID, &e.Date, &e.Description,
		&e.SourceType, &e.SourceID, &e.IdempotencyKey, &e.Status, &e.TotalDebit, &e.TotalCredit,
		&e.ReversalOfID, &e.VoidReason, &e.PostedBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) GetWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+`
FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	entry.Lines, err = queryLines(ctx, r.db, entry.ID)
	return entry, err
}

func (r *repository) List(ctx context.Context, tenantID int64, limit int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE tenant_id=$1 ORDER BY entry_date DESC, id DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q querier, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, line_no, account_id, debit, credit, memo, cost_center, department
FROM journal_lines WHERE entry_id=$1 ORDER BY line_no`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.LineNo, &l.AccountID, &l.Debit, &l.Credit,
			&l.Memo, &l.CostCenter, &l.Department); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) FindByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+`
FROM journal_entries WHERE tenant_id=$1 AND idempotency_key=$2`, tenantID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	entry.Lines, err = queryLines(ctx, r.tx, entry.ID)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ResolvePeriodForUpdate locks the covering period row so a concurrent close
// or lock cannot slip between the gate check and the insert.
func (r *txRepository) ResolvePeriodForUpdate(ctx context.Context, tenantID int64, date time.Time) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, label, start_date, end_date, status, closed_at, closed_by, locked_at, locked_by, closing_debit, closing_credit, created_at, updated_at
FROM fiscal_periods WHERE tenant_id=$1 AND $2 BETWEEN start_date AND end_date FOR UPDATE`, tenantID, date).
		Scan(&p.ID, &p.TenantID, &p.Label, &p.StartDate, &p.EndDate, &p.Status,
			&p.ClosedAt, &p.ClosedBy, &p.LockedAt, &p.LockedBy, &p.ClosingDebit, &p.ClosingCredit,
			&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, shared.ErrNoPeriodDefined
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepository) AccountsByCode(ctx context.Context, tenantID int64, codes []string) (map[string]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, tenant_id, code, name, type, normal_balance, parent_id, is_header, is_active, created_at, updated_at
FROM accounts WHERE tenant_id=$1 AND code = ANY($2)`, tenantID, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]accounts.Account, len(codes))
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.NormalBalance,
			&a.ParentID, &a.IsHeader, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out[a.Code] = a
	}
	return out, rows.Err()
}

func (r *txRepository) HasPartition(ctx context.Context, date time.Time) (bool, error) {
	month := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_partitions WHERE partition_month = $1)`, month).Scan(&exists)
	return exists, err
}

// NextSequence mirrors the sequence repository upsert inside the posting
// transaction. Sequence rows briefly serialize concurrent postings for the
// same key; gaps after a rollback are acceptable, repeats are not.
func (r *txRepository) NextSequence(ctx context.Context, tenantID int64, prefix, bucket string) (int64, error) {
	var value int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sequence_counters (tenant_id, prefix, bucket, last_value)
VALUES ($1,$2,$3,1)
ON CONFLICT (tenant_id, prefix, bucket)
DO UPDATE SET last_value = sequence_counters.last_value + 1, updated_at = NOW()
RETURNING last_value`, tenantID, prefix, bucket).Scan(&value)
	return value, err
}

// InsertEntry writes the header with insert-or-skip semantics on the
// (tenant, idempotency_key) unique constraint. The bool result reports
// whether a row was actually inserted; false means a concurrent identical
// submission won and the caller must fetch the winner.
func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, bool, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(tenant_id, number, period_id, entry_date, description, source_type, source_id, idempotency_key, status, total_debit, total_credit, reversal_of_id, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'POSTED',$9,$10,$11,$12,NOW())
ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
RETURNING `+entryColumns,
		entry.TenantID, entry.Number, entry.PeriodID, entry.Date, entry.Description,
		entry.SourceType, entry.SourceID, entry.IdempotencyKey,
		entry.TotalDebit, entry.TotalCredit, entry.ReversalOfID, entry.PostedBy)
	inserted, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, false, nil
		}
		return JournalEntry{}, false, mapPartitionError(err)
	}
	return inserted, true, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, date time.Time, lines []JournalLine) error {
	for i, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines
(entry_id, entry_date, line_no, account_id, debit, credit, memo, cost_center, department)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			entryID, date, i+1, line.AccountID, line.Debit, line.Credit,
			line.Memo, line.CostCenter, line.Department); err != nil {
			return mapPartitionError(err)
		}
	}
	return nil
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+`
FROM journal_entries WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	entry.Lines, err = queryLines(ctx, r.tx, entry.ID)
	return entry, err
}

// MarkVoid flips the original entry to VOID and records which reversal
// superseded it. The status guard keeps a double void from matching.
func (r *txRepository) MarkVoid(ctx context.Context, entryID int64, reason string, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries
SET status='VOID', void_reason=$2, reversal_of_id=$3, updated_at=NOW()
WHERE id=$1 AND status='POSTED'`, entryID, reason, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyVoid
	}
	return nil
}

func (r *txRepository) InsertOutboxEvent(ctx context.Context, event outbox.Event) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO outbox_events (id, tenant_id, entry_id, event_type, payload, status)
VALUES ($1,$2,$3,$4,$5,'PENDING')`,
		event.ID, event.TenantID, event.EntryID, event.EventType, event.Payload)
	return err
}

// ApplyBalanceDelta upserts the daily balance row with an additive update, so
// concurrent postings against the same (account, date) commute regardless of
// commit order.
func (r *txRepository) ApplyBalanceDelta(ctx context.Context, delta balances.Delta) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO account_balances (tenant_id, account_id, balance_date, debit, credit)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (tenant_id, account_id, balance_date)
DO UPDATE SET debit = account_balances.debit + EXCLUDED.debit,
              credit = account_balances.credit + EXCLUDED.credit,
              updated_at = NOW()`,
		delta.TenantID, delta.AccountID, delta.Date, delta.Debit, delta.Credit)
	return err
}

// mapPartitionError converts the "no partition of relation found for row"
// failure (SQLSTATE 23514) into the domain error. The explicit registry check
// runs first; this is the backstop for a registry/DDL mismatch.
func mapPartitionError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return shared.ErrPartitionMissing
	}
	return err
}
