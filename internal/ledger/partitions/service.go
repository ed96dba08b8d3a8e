package partitions

import (
	"context"
	"log/slog"
	"time"
)

// Service runs forward partition provisioning.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Has reports whether a partition covers the date.
func (s *Service) Has(ctx context.Context, date time.Time) (bool, error) {
	return s.repo.Has(ctx, date)
}

// EnsureFuture provisions partitions from the current month through months
// ahead. The maintenance cron calls this so posting never races partition
// creation.
func (s *Service) EnsureFuture(ctx context.Context, months int) error {
	if months <= 0 {
		months = 3
	}
	start := MonthStart(s.now())
	for i := 0; i <= months; i++ {
		month := start.AddDate(0, i, 0)
		if err := s.repo.EnsureMonth(ctx, month); err != nil {
			return err
		}
		if s.logger != nil {
			s.logger.Debug("partition ensured", slog.String("month", month.Format("2006-01")))
		}
	}
	return nil
}
