// Package idempotency deduplicates client-submitted operations by
// (user, key). The storage-level uniqueness constraint is the linchpin: two
// concurrent identical requests race on the insert and exactly one wins.
package idempotency

import (
	"context"
	"errors"

	"quicksurf/internal/models"
	"quicksurf/internal/repositories"

	"go.uber.org/zap"
)

// ErrDuplicateRequest signals that the (user, key) pair was already begun,
// whether still pending or already finalized. Callers surface the stored
// result instead of re-executing side effects.
var ErrDuplicateRequest = errors.New("duplicate request")

type Service struct {
	repo   repositories.IdempotencyRepository
	logger *zap.Logger
}

func NewService(repo repositories.IdempotencyRepository, logger *zap.Logger) *Service {
	if repo == nil {
		panic("idempotency repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Begin claims (userID, key) for at-most-once execution. The first caller
// gets a fresh record back; every later caller gets the existing record and
// ErrDuplicateRequest. For finalized keys the returned record carries the
// stored result for replay.
func (s *Service) Begin(ctx context.Context, userID uint, key string) (*models.IdempotencyKey, error) {
	record, created, err := s.repo.GetOrCreate(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	if !created {
		s.logger.Info("duplicate request blocked",
			zap.Uint("user_id", userID),
			zap.String("key", key),
			zap.Bool("finalized", record.Success),
		)
		return record, ErrDuplicateRequest
	}
	return record, nil
}

// Finalize marks the key successful and stores the result for replay.
func (s *Service) Finalize(ctx context.Context, userID uint, key string, result models.JSON) error {
	return s.repo.MarkSuccess(ctx, userID, key, result)
}
