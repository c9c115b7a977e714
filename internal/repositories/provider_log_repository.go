package repositories

import (
	"context"
	"fmt"

	"quicksurf/internal/models"

	"gorm.io/gorm"
)

// ProviderLogRepository appends provider I/O audit rows. Callers are expected
// to swallow errors from Create: a failed log write must never break a
// purchase or settlement flow.
type ProviderLogRepository interface {
	Create(ctx context.Context, log *models.ProviderLog) error
	ListByReference(ctx context.Context, clientReference string, limit int) ([]models.ProviderLog, error)
}

type providerLogRepository struct {
	db *gorm.DB
}

func NewProviderLogRepository(db *gorm.DB) ProviderLogRepository {
	return &providerLogRepository{db: db}
}

func (r *providerLogRepository) Create(ctx context.Context, log *models.ProviderLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create provider log: %w", err)
	}
	return nil
}

func (r *providerLogRepository) ListByReference(ctx context.Context, clientReference string, limit int) ([]models.ProviderLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	var logs []models.ProviderLog
	err := r.db.WithContext(ctx).
		Where("client_reference = ?", clientReference).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list provider logs: %w", err)
	}
	return logs, nil
}
