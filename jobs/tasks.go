package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/outbox"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLedgerEvent carries one outbox event to downstream consumers.
	TaskTypeLedgerEvent = "ledger:event"
	// TaskTypeProvisionPartitions creates future journal partitions.
	TaskTypeProvisionPartitions = "ledger:provision_partitions"
	// TaskTypeIntegrityCheck recomputes balances against the cache.
	TaskTypeIntegrityCheck = "ledger:integrity_check"
)

// LedgerEventPayload wraps an outbox event for queue transport.
type LedgerEventPayload struct {
	EventID   string          `json:"event_id"`
	TenantID  int64           `json:"tenant_id"`
	EntryID   int64           `json:"entry_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// NewLedgerEventTask constructs an Asynq task from an outbox event.
func NewLedgerEventTask(event outbox.Event) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerEventPayload{
		EventID:   event.ID.String(),
		TenantID:  event.TenantID,
		EntryID:   event.EntryID,
		EventType: event.EventType,
		Payload:   event.Payload,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLedgerEvent, data), nil
}

// NewProvisionPartitionsTask constructs the partition maintenance task.
func NewProvisionPartitionsTask() *asynq.Task {
	return asynq.NewTask(TaskTypeProvisionPartitions, nil)
}

// NewIntegrityCheckTask constructs the balance integrity task.
func NewIntegrityCheckTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIntegrityCheck, nil)
}

// AsynqSink delivers outbox events into the task queue. Asynq task ids keyed
// by event id make redelivery after a missed ack a no-op on the queue side.
type AsynqSink struct {
	client *asynq.Client
}

func NewAsynqSink(client *asynq.Client) *AsynqSink {
	return &AsynqSink{client: client}
}

// Deliver enqueues the event. Safe to call more than once per event.
func (s *AsynqSink) Deliver(ctx context.Context, event outbox.Event) error {
	task, err := NewLedgerEventTask(event)
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.TaskID(event.ID.String()))
	if err != nil && err != asynq.ErrTaskIDConflict {
		return err
	}
	return nil
}
