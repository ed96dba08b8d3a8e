package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service generates human-facing document numbers.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Bucket derives the year-month counter bucket for a document date.
func Bucket(date time.Time) string {
	return date.Format("2006-01")
}

// Next returns the next raw counter value for the key.
func (s *Service) Next(ctx context.Context, tenantID int64, prefix, bucket string) (int64, error) {
	if tenantID == 0 {
		return 0, errors.New("sequence: tenant required")
	}
	if prefix == "" {
		return 0, errors.New("sequence: prefix required")
	}
	if bucket == "" {
		return 0, errors.New("sequence: bucket required")
	}
	return s.repo.Next(ctx, tenantID, prefix, bucket)
}

// NextNumber reserves and formats a document number such as JE-2026-08-00042.
func (s *Service) NextNumber(ctx context.Context, tenantID int64, prefix string, date time.Time) (string, error) {
	bucket := Bucket(date)
	n, err := s.Next(ctx, tenantID, prefix, bucket)
	if err != nil {
		return "", err
	}
	return Format(prefix, bucket, n), nil
}

// Format renders a document number from its parts.
func Format(prefix, bucket string, n int64) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, bucket, n)
}
