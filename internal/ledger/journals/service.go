package journals

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/balances"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/outbox"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/sequence"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
	internalShared "github.com/meridian-ledger/meridian-ledger/internal/shared"
)

// JournalPrefix is the sequence prefix for journal numbers.
const JournalPrefix = "JE"

// AuditPort records administrative actions.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// WakePort nudges the outbox dispatcher after a commit. Best effort only.
type WakePort interface {
	Wake(ctx context.Context) error
}

// Service implements the double-entry write path.
type Service struct {
	repo  Repository
	audit AuditPort
	wake  WakePort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort, wake WakePort) *Service {
	return &Service{repo: repo, audit: audit, wake: wake, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns an entry with its lines.
func (s *Service) Get(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	return s.repo.GetWithLines(ctx, tenantID, entryID)
}

// List returns recent entries for a tenant.
func (s *Service) List(ctx context.Context, tenantID int64, limit int) ([]JournalEntry, error) {
	return s.repo.List(ctx, tenantID, limit)
}

// Post records a balanced journal entry exactly once. A resubmission with the
// same (tenant, idempotency key) returns the first result with WasDuplicate
// set and writes nothing, whatever its line set says. Header, lines, outbox
// event, and balance deltas commit as one unit or not at all.
func (s *Service) Post(ctx context.Context, input PostingInput) (PostResult, error) {
	if err := input.Validate(); err != nil {
		return PostResult{}, err
	}
	var result PostResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.FindByIdempotencyKey(ctx, input.TenantID, input.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			result = PostResult{Entry: *existing, WasDuplicate: true}
			return nil
		}

		period, err := tx.ResolvePeriodForUpdate(ctx, input.TenantID, input.Date)
		if err != nil {
			return err
		}
		if !period.AcceptsPostings() {
			return shared.ErrPeriodLocked
		}

		lines, err := resolveLines(ctx, tx, input)
		if err != nil {
			return err
		}

		ok, err := tx.HasPartition(ctx, input.Date)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrPartitionMissing
		}

		bucket := sequence.Bucket(input.Date)
		seq, err := tx.NextSequence(ctx, input.TenantID, JournalPrefix, bucket)
		if err != nil {
			return err
		}

		debit, credit := input.Totals()
		entry := JournalEntry{
			TenantID:       input.TenantID,
			Number:         sequence.Format(JournalPrefix, bucket, seq),
			PeriodID:       period.ID,
			Date:           input.Date,
			Description:    input.Description,
			SourceType:     input.SourceType,
			SourceID:       input.SourceID,
			IdempotencyKey: input.IdempotencyKey,
			TotalDebit:     debit,
			TotalCredit:    credit,
			PostedBy:       input.PostedBy,
		}
		inserted, created, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		if !created {
			// A concurrent identical submission committed first; its
			// result is the result. The reserved number gaps out. The
			// winner is visible here: an insert skipped against a row
			// outside the snapshot aborts with a serialization failure,
			// which the transaction helper replays.
			winner, err := tx.FindByIdempotencyKey(ctx, input.TenantID, input.IdempotencyKey)
			if err != nil {
				return err
			}
			if winner == nil {
				return fmt.Errorf("journals: idempotency key %q skipped insert with no visible winner", input.IdempotencyKey)
			}
			result = PostResult{Entry: *winner, WasDuplicate: true}
			return nil
		}

		if err := tx.InsertLines(ctx, inserted.ID, inserted.Date, lines); err != nil {
			return err
		}
		if err := s.enqueueEvent(ctx, tx, outbox.EventJournalPosted, inserted); err != nil {
			return err
		}
		if err := applyDeltas(ctx, tx, inserted, lines); err != nil {
			return err
		}
		for i := range lines {
			lines[i].EntryID = inserted.ID
		}
		inserted.Lines = lines
		result = PostResult{Entry: inserted}
		return nil
	})
	if err != nil {
		return PostResult{}, err
	}
	if !result.WasDuplicate {
		s.recordAudit(ctx, input.TenantID, input.PostedBy, "journal.post", result.Entry, map[string]any{
			"number":      result.Entry.Number,
			"source_type": input.SourceType,
			"source_id":   input.SourceID.String(),
		})
		s.nudge(ctx)
	}
	return result, nil
}

// Void posts a compensating reversal dated in an open period and flags the
// original VOID with a back-reference. The original rows are never touched
// beyond the status flip; the audit trail stays immutable.
func (s *Service) Void(ctx context.Context, input VoidInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryWithLines(ctx, input.TenantID, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusPosted {
			return shared.ErrAlreadyVoid
		}

		period, err := tx.ResolvePeriodForUpdate(ctx, input.TenantID, input.ReversalDate)
		if err != nil {
			return err
		}
		if !period.AcceptsPostings() {
			return shared.ErrPeriodLocked
		}
		ok, err := tx.HasPartition(ctx, input.ReversalDate)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrPartitionMissing
		}

		bucket := sequence.Bucket(input.ReversalDate)
		seq, err := tx.NextSequence(ctx, input.TenantID, JournalPrefix, bucket)
		if err != nil {
			return err
		}

		originalID := original.ID
		entry := JournalEntry{
			TenantID:    input.TenantID,
			Number:      sequence.Format(JournalPrefix, bucket, seq),
			PeriodID:    period.ID,
			Date:        input.ReversalDate,
			Description: fmt.Sprintf("Reversal of %s: %s", original.Number, input.Reason),
			SourceType:  original.SourceType + ":REVERSAL",
			SourceID:    uuid.New(),
			// Deterministic key: a retried void replays instead of
			// double-reversing.
			IdempotencyKey: fmt.Sprintf("void:%d", originalID),
			TotalDebit:     original.TotalCredit,
			TotalCredit:    original.TotalDebit,
			ReversalOfID:   &originalID,
			PostedBy:       input.ActorID,
		}
		lines := swapLines(original.Lines)
		inserted, created, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		if !created {
			return shared.ErrAlreadyVoid
		}
		if err := tx.InsertLines(ctx, inserted.ID, inserted.Date, lines); err != nil {
			return err
		}
		if err := s.enqueueEvent(ctx, tx, outbox.EventJournalVoided, inserted); err != nil {
			return err
		}
		if err := applyDeltas(ctx, tx, inserted, lines); err != nil {
			return err
		}
		if err := tx.MarkVoid(ctx, originalID, input.Reason, inserted.ID); err != nil {
			return err
		}
		for i := range lines {
			lines[i].EntryID = inserted.ID
		}
		inserted.Lines = lines
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, input.TenantID, input.ActorID, "journal.void", reversal, map[string]any{
		"reason":      input.Reason,
		"reversal_of": input.EntryID,
	})
	s.nudge(ctx)
	return reversal, nil
}

func resolveLines(ctx context.Context, tx TxRepository, input PostingInput) ([]JournalLine, error) {
	codes := make([]string, 0, len(input.Lines))
	for _, line := range input.Lines {
		codes = append(codes, line.AccountCode)
	}
	accts, err := tx.AccountsByCode(ctx, input.TenantID, codes)
	if err != nil {
		return nil, err
	}
	lines := make([]JournalLine, 0, len(input.Lines))
	for i, line := range input.Lines {
		account, ok := accts[line.AccountCode]
		if !ok || !account.IsActive || account.IsHeader {
			return nil, fmt.Errorf("%w: %s", shared.ErrInvalidAccount, line.AccountCode)
		}
		lines = append(lines, JournalLine{
			LineNo:     i + 1,
			AccountID:  account.ID,
			Debit:      line.Debit,
			Credit:     line.Credit,
			Memo:       line.Memo,
			CostCenter: line.CostCenter,
			Department: line.Department,
		})
	}
	return lines, nil
}

func applyDeltas(ctx context.Context, tx TxRepository, entry JournalEntry, lines []JournalLine) error {
	for _, line := range lines {
		if err := tx.ApplyBalanceDelta(ctx, balances.Delta{
			TenantID:  entry.TenantID,
			AccountID: line.AccountID,
			Date:      entry.Date,
			Debit:     line.Debit,
			Credit:    line.Credit,
		}); err != nil {
			return err
		}
	}
	return nil
}

func swapLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for i, line := range lines {
		out = append(out, JournalLine{
			LineNo:     i + 1,
			AccountID:  line.AccountID,
			Debit:      line.Credit,
			Credit:     line.Debit,
			Memo:       line.Memo,
			CostCenter: line.CostCenter,
			Department: line.Department,
		})
	}
	return out
}

func (s *Service) enqueueEvent(ctx context.Context, tx TxRepository, eventType string, entry JournalEntry) error {
	payload, err := json.Marshal(outbox.JournalEventPayload{
		EntryID:       entry.ID,
		TenantID:      entry.TenantID,
		JournalNumber: entry.Number,
		JournalDate:   entry.Date.Format("2006-01-02"),
		TotalDebit:    entry.TotalDebit.String(),
		TotalCredit:   entry.TotalCredit.String(),
	})
	if err != nil {
		return err
	}
	return tx.InsertOutboxEvent(ctx, outbox.Event{
		ID:        uuid.New(),
		TenantID:  entry.TenantID,
		EntryID:   entry.ID,
		EventType: eventType,
		Payload:   payload,
	})
}

func (s *Service) recordAudit(ctx context.Context, tenantID, actorID int64, action string, entry JournalEntry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     meta,
		At:       s.now(),
	})
}

func (s *Service) nudge(ctx context.Context) {
	if s.wake == nil {
		return
	}
	_ = s.wake.Wake(ctx)
}
