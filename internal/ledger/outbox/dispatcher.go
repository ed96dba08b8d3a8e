package outbox

import (
	"context"
	"log/slog"
	"time"
)

// Sink receives events from the dispatcher. Implementations must tolerate
// seeing an event more than once.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// DispatcherConfig tunes the drain loop.
type DispatcherConfig struct {
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
}

func (c *DispatcherConfig) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
}

// Dispatcher drains pending outbox events into a sink, at least once each.
type Dispatcher struct {
	repo     Repository
	sink     Sink
	notifier Notifier
	logger   *slog.Logger
	cfg      DispatcherConfig
}

func NewDispatcher(repo Repository, sink Sink, notifier Notifier, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{repo: repo, sink: sink, notifier: notifier, logger: logger, cfg: cfg}
}

// Run processes events until the context is cancelled. Between drains it
// blocks on the notifier when one is configured, otherwise on the poll
// interval alone.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Drain(ctx)
		if d.notifier != nil {
			if err := d.notifier.Wait(ctx, d.cfg.PollInterval); err != nil && ctx.Err() == nil {
				d.logger.Warn("outbox wait", slog.Any("error", err))
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain delivers one batch of pending events.
func (d *Dispatcher) Drain(ctx context.Context) {
	events, err := d.repo.PollPending(ctx, d.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error("outbox poll", slog.Any("error", err))
		}
		return
	}
	for _, event := range events {
		if err := d.sink.Deliver(ctx, event); err != nil {
			d.logger.Warn("outbox deliver",
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.EventType),
				slog.Any("error", err))
			if err := d.repo.Nack(ctx, event.ID, err.Error(), d.cfg.MaxAttempts); err != nil {
				d.logger.Error("outbox nack", slog.Any("error", err))
			}
			continue
		}
		if err := d.repo.Ack(ctx, event.ID); err != nil {
			// The sink saw the event; a failed ack just means redelivery.
			d.logger.Error("outbox ack", slog.Any("error", err))
		}
	}
}
