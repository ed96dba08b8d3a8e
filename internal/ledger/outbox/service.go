package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Service exposes the consumer contract: poll, ack, nack.
type Service struct {
	repo        Repository
	maxAttempts int
}

func NewService(repo Repository, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{repo: repo, maxAttempts: maxAttempts}
}

// PollPending returns up to limit undelivered events, oldest first.
func (s *Service) PollPending(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.PollPending(ctx, limit)
}

// Ack marks an event processed after the consumer durably handled it.
func (s *Service) Ack(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errors.New("outbox: event id required")
	}
	return s.repo.Ack(ctx, id)
}

// Nack records a failed consumption attempt with its cause.
func (s *Service) Nack(ctx context.Context, id uuid.UUID, cause string) error {
	if id == uuid.Nil {
		return errors.New("outbox: event id required")
	}
	return s.repo.Nack(ctx, id, cause, s.maxAttempts)
}

// ListFailed returns dead-lettered events awaiting manual intervention.
func (s *Service) ListFailed(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListFailed(ctx, limit)
}
