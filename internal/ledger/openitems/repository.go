package openitems

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
	"github.com/meridian-ledger/meridian-ledger/internal/platform/db"
)

// Repository encapsulates DB operations for open items.
type Repository interface {
	Create(ctx context.Context, item OpenItem) (OpenItem, error)
	Get(ctx context.Context, tenantID, id int64) (OpenItem, error)
	List(ctx context.Context, tenantID int64, kind ItemKind, onlyOpen bool) ([]OpenItem, error)
	ListApplications(ctx context.Context, openItemID int64) ([]PaymentApplication, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository serializes payment application against one item.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, tenantID, id int64) (OpenItem, error)
	InsertApplication(ctx context.Context, app PaymentApplication) (PaymentApplication, error)
	SettleItem(ctx context.Context, id int64, balance decimal.Decimal, status ItemStatus) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const itemColumns = `id, tenant_id, kind, party_id, entry_id, reference, original_amount, balance, status, due_date, created_at, updated_at`

func scanItem(row pgx.Row) (OpenItem, error) {
	var it OpenItem
	err := row.Scan(&it.ID, &it.TenantID, &it.Kind, &it.PartyID, &it.EntryID, &it.Reference,
		&it.OriginalAmount, &it.Balance, &it.Status, &it.DueDate, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (r *repository) Create(ctx context.Context, item OpenItem) (OpenItem, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO open_items
(tenant_id, kind, party_id, entry_id, reference, original_amount, balance, status, due_date)
VALUES ($1,$2,$3,$4,$5,$6,$6,'OPEN',$7)
RETURNING `+itemColumns,
		item.TenantID, item.Kind, item.PartyID, item.EntryID, item.Reference,
		item.OriginalAmount, item.DueDate)
	return scanItem(row)
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (OpenItem, error) {
	it, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+`
FROM open_items WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OpenItem{}, shared.ErrItemNotFound
		}
		return OpenItem{}, err
	}
	return it, nil
}

func (r *repository) List(ctx context.Context, tenantID int64, kind ItemKind, onlyOpen bool) ([]OpenItem, error) {
	query := `SELECT ` + itemColumns + ` FROM open_items WHERE tenant_id=$1 AND kind=$2`
	if onlyOpen {
		query += ` AND status='OPEN'`
	}
	query += ` ORDER BY due_date, id`
	rows, err := r.db.Query(ctx, query, tenantID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OpenItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *repository) ListApplications(ctx context.Context, openItemID int64) ([]PaymentApplication, error) {
	rows, err := r.db.Query(ctx, `SELECT id, open_item_id, amount, applied_date, entry_id, created_at
FROM payment_applications WHERE open_item_id=$1 ORDER BY id`, openItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PaymentApplication
	for rows.Next() {
		var a PaymentApplication
		if err := rows.Scan(&a.ID, &a.OpenItemID, &a.Amount, &a.AppliedDate, &a.EntryID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// WithTx runs fn inside one RepeatableRead transaction. A payment that loses
// the row lock race aborts with SQLSTATE 40001; the helper replays fn so the
// re-read sees the winner's balance.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// GetItemForUpdate takes the row lock that serializes concurrent applications
// against the same item.
func (r *txRepository) GetItemForUpdate(ctx context.Context, tenantID, id int64) (OpenItem, error) {
	it, err := scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+`
FROM open_items WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OpenItem{}, shared.ErrItemNotFound
		}
		return OpenItem{}, err
	}
	return it, nil
}

func (r *txRepository) InsertApplication(ctx context.Context, app PaymentApplication) (PaymentApplication, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payment_applications (open_item_id, amount, applied_date, entry_id)
VALUES ($1,$2,$3,$4) RETURNING id, open_item_id, amount, applied_date, entry_id, created_at`,
		app.OpenItemID, app.Amount, app.AppliedDate, app.EntryID)
	var out PaymentApplication
	err := row.Scan(&out.ID, &out.OpenItemID, &out.Amount, &out.AppliedDate, &out.EntryID, &out.CreatedAt)
	return out, err
}

func (r *txRepository) SettleItem(ctx context.Context, id int64, balance decimal.Decimal, status ItemStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE open_items SET balance=$2, status=$3, updated_at=NOW() WHERE id=$1`,
		id, balance, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrItemNotFound
	}
	return nil
}
