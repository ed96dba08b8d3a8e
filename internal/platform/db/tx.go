package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxBeginner starts transactions. *pgxpool.Pool satisfies it; tests supply
// stubs.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// txAttempts bounds retries of transactions aborted with a serialization
// failure or deadlock.
const txAttempts = 3

// WithTx executes fn inside a RepeatableRead transaction. The posting path
// relies on this level plus unique constraints for idempotent replay.
// Serialization failures restart fn on a fresh snapshot, so fn must be safe
// to re-run; the caller only ever sees the final outcome.
func WithTx(ctx context.Context, pool TxBeginner, fn func(pgx.Tx) error) error {
	return withTx(ctx, pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// WithSerializableTx executes fn inside a Serializable transaction. Period
// provisioning uses this so the overlap check and insert cannot interleave.
func WithSerializableTx(ctx context.Context, pool TxBeginner, fn func(pgx.Tx) error) error {
	return withTx(ctx, pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
}

func withTx(ctx context.Context, pool TxBeginner, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = runTx(ctx, pool, opts, fn)
		if err == nil || attempt == txAttempts || !retryableTxError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 5 * time.Millisecond):
		}
	}
}

func runTx(ctx context.Context, pool TxBeginner, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// retryableTxError reports SQLSTATE 40001 (serialization_failure) and 40P01
// (deadlock_detected). Postgres aborts the transaction for these; a rerun on
// a fresh snapshot is the prescribed recovery.
func retryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
