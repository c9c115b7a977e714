// Package rewards awards loyalty points for successful purchases. Awards are
// idempotent per (user, txn type, txn id): the storage-level unique index
// absorbs duplicate hook invocations.
package rewards

import (
	"context"
	"fmt"

	"quicksurf/internal/models"
	"quicksurf/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultPointsPerNaira awards 1 point per 100 naira spent.
var DefaultPointsPerNaira = decimal.RequireFromString("0.01")

type Service struct {
	db             *gorm.DB
	pointsPerNaira decimal.Decimal
	logger         *zap.Logger
}

func NewService(db *gorm.DB, pointsPerNaira decimal.Decimal, logger *zap.Logger) *Service {
	if db == nil {
		panic("db is required")
	}
	if !pointsPerNaira.IsPositive() {
		pointsPerNaira = DefaultPointsPerNaira
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, pointsPerNaira: pointsPerNaira, logger: logger}
}

// PointsFor floors the award so partial points are never granted.
func (s *Service) PointsFor(amount decimal.Decimal) uint {
	points := amount.Mul(s.pointsPerNaira).Floor().IntPart()
	if points < 0 {
		return 0
	}
	return uint(points)
}

// AwardOnce grants points for one transaction at most once. Re-awarding the
// same (user, txnType, txnID) is a silent no-op.
func (s *Service) AwardOnce(ctx context.Context, userID uint, txnType, txnID string, amount decimal.Decimal) error {
	points := s.PointsFor(amount)
	if points == 0 {
		return nil
	}

	entry := &models.LoyaltyEntry{
		UserID:  userID,
		Points:  points,
		Reason:  fmt.Sprintf("%s purchase", txnType),
		TxnType: txnType,
		TxnID:   txnID,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		if repositories.IsDuplicate(err) {
			return nil
		}
		return fmt.Errorf("failed to award points: %w", err)
	}

	s.logger.Info("points awarded",
		zap.Uint("user_id", userID),
		zap.Uint("points", points),
		zap.String("txn_id", txnID),
	)
	return nil
}

// TotalPoints sums a user's lifetime points.
func (s *Service) TotalPoints(ctx context.Context, userID uint) (uint, error) {
	var total *int64
	err := s.db.WithContext(ctx).
		Model(&models.LoyaltyEntry{}).
		Where("user_id = ?", userID).
		Select("SUM(points)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	if total == nil || *total < 0 {
		return 0, nil
	}
	return uint(*total), nil
}

// PurchaseHook adapts AwardOnce into a post-success purchase hook. Failures
// are logged and swallowed; an award can never unwind a settled purchase.
func (s *Service) PurchaseHook() func(ctx context.Context, p *models.PurchaseRequest) {
	return func(ctx context.Context, p *models.PurchaseRequest) {
		if err := s.AwardOnce(ctx, p.UserID, p.Kind, p.ClientReference, p.Amount); err != nil {
			s.logger.Error("points award failed",
				zap.String("client_reference", p.ClientReference),
				zap.Error(err),
			)
		}
	}
}
