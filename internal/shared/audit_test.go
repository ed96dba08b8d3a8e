package shared

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	sql  string
	args []any
}

func (e *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = sql
	e.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestRecordStampsZeroTime(t *testing.T) {
	db := &recordingExecer{}
	logger := NewAuditLogger(db)

	before := time.Now().UTC()
	err := logger.Record(context.Background(), AuditLog{
		TenantID: 7,
		ActorID:  42,
		Action:   "journal.post",
		Entity:   "journal_entry",
		EntityID: "11",
	})
	require.NoError(t, err)
	require.Len(t, db.args, 7)

	// The zero time.Time is not SQL NULL, so the default is applied here.
	at, ok := db.args[6].(time.Time)
	require.True(t, ok)
	assert.False(t, at.IsZero())
	assert.False(t, at.Before(before))
	assert.False(t, at.After(time.Now().UTC()))
}

func TestRecordKeepsExplicitTime(t *testing.T) {
	db := &recordingExecer{}
	logger := NewAuditLogger(db)

	when := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	err := logger.Record(context.Background(), AuditLog{
		TenantID: 7,
		ActorID:  42,
		Action:   "period.close",
		Entity:   "fiscal_period",
		EntityID: "3",
		At:       when,
	})
	require.NoError(t, err)
	require.Len(t, db.args, 7)
	assert.Equal(t, when, db.args[6])
}

func TestRecordRequiresIdentity(t *testing.T) {
	db := &recordingExecer{}
	logger := NewAuditLogger(db)

	err := logger.Record(context.Background(), AuditLog{TenantID: 7})
	require.Error(t, err)
	assert.Empty(t, db.sql)
}
