package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
)

// RunGLIntegrityCheck recomputes per-account totals from the raw journal
// lines and compares them to the balance cache. A mismatch means a bug
// somewhere in the posting path; it is logged loudly and returned so the
// scheduler surfaces the failure instead of retrying it away.
func RunGLIntegrityCheck(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	rows, err := pool.Query(ctx, `
SELECT c.tenant_id, c.account_id, c.debit, c.credit, COALESCE(r.debit,0), COALESCE(r.credit,0)
FROM (
    SELECT tenant_id, account_id, SUM(debit) AS debit, SUM(credit) AS credit
    FROM account_balances GROUP BY tenant_id, account_id
) c
LEFT JOIN (
    SELECT e.tenant_id, l.account_id, SUM(l.debit) AS debit, SUM(l.credit) AS credit
    FROM journal_lines l
    JOIN journal_entries e ON e.id = l.entry_id AND e.entry_date = l.entry_date
    GROUP BY e.tenant_id, l.account_id
) r ON r.tenant_id = c.tenant_id AND r.account_id = c.account_id
WHERE c.debit <> COALESCE(r.debit,0) OR c.credit <> COALESCE(r.credit,0)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var violations int
	for rows.Next() {
		var tenantID, accountID int64
		var cachedDebit, cachedCredit, rawDebit, rawCredit string
		if err := rows.Scan(&tenantID, &accountID, &cachedDebit, &cachedCredit, &rawDebit, &rawCredit); err != nil {
			return err
		}
		violations++
		logger.Error("balance cache diverged from journal lines",
			slog.Int64("tenant_id", tenantID),
			slog.Int64("account_id", accountID),
			slog.String("cached_debit", cachedDebit),
			slog.String("cached_credit", cachedCredit),
			slog.String("raw_debit", rawDebit),
			slog.String("raw_credit", rawCredit))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if violations > 0 {
		return fmt.Errorf("%w: %d account(s) diverged", shared.ErrIntegrity, violations)
	}
	logger.Info("gl integrity check passed")
	return nil
}

// HandleIntegrityCheckError distinguishes integrity failures from transient
// ones so the worker can skip retrying what a retry cannot fix.
func HandleIntegrityCheckError(err error) bool {
	return errors.Is(err, shared.ErrIntegrity)
}
