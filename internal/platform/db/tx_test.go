package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// STUBS
// ============================================================================

type stubTx struct {
	pgx.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *stubTx) Commit(ctx context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *stubTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type stubBeginner struct {
	begun      []*stubTx
	commitErrs []error
}

func (b *stubBeginner) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	tx := &stubTx{}
	if len(b.commitErrs) > 0 {
		tx.commitErr = b.commitErrs[0]
		b.commitErrs = b.commitErrs[1:]
	}
	b.begun = append(b.begun, tx)
	return tx, nil
}

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
}

// ============================================================================
// RETRY BEHAVIOUR
// ============================================================================

func TestWithTxRetriesSerializationFailure(t *testing.T) {
	pool := &stubBeginner{commitErrs: []error{serializationFailure(), serializationFailure(), nil}}

	runs := 0
	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		runs++
		return nil
	})
	require.NoError(t, err)

	// Each aborted attempt reruns fn on a brand new transaction.
	assert.Equal(t, 3, runs)
	require.Len(t, pool.begun, 3)
	assert.True(t, pool.begun[2].committed)
}

func TestWithTxGivesUpAfterBoundedAttempts(t *testing.T) {
	pool := &stubBeginner{commitErrs: []error{
		serializationFailure(), serializationFailure(), serializationFailure(), serializationFailure(),
	}}

	err := WithTx(context.Background(), pool, func(pgx.Tx) error { return nil })
	require.Error(t, err)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "40001", pgErr.Code)
	assert.Len(t, pool.begun, txAttempts)
}

func TestWithTxDoesNotRetryDomainErrors(t *testing.T) {
	pool := &stubBeginner{}
	sentinel := errors.New("unbalanced")

	err := WithTx(context.Background(), pool, func(pgx.Tx) error { return sentinel })
	require.ErrorIs(t, err, sentinel)

	require.Len(t, pool.begun, 1)
	assert.False(t, pool.begun[0].committed)
	assert.True(t, pool.begun[0].rolledBack)
}

func TestWithTxRetriesDeadlock(t *testing.T) {
	pool := &stubBeginner{commitErrs: []error{
		&pgconn.PgError{Code: "40P01", Message: "deadlock detected"}, nil,
	}}

	err := WithSerializableTx(context.Background(), pool, func(pgx.Tx) error { return nil })
	require.NoError(t, err)
	assert.Len(t, pool.begun, 2)
}
