package repositories

import (
	"context"
	"errors"
	"fmt"

	"quicksurf/internal/models"

	"gorm.io/gorm"
)

// IdempotencyRepository stores per-(user, key) deduplication records. The
// unique index on (user_id, key) is the correctness backstop against
// concurrent duplicate submissions.
type IdempotencyRepository interface {
	// GetOrCreate returns the record for (userID, key), creating it when
	// absent. created reports whether this call inserted the row; a lost
	// insert race resolves to the winner's row with created=false.
	GetOrCreate(ctx context.Context, userID uint, key string) (record *models.IdempotencyKey, created bool, err error)
	MarkSuccess(ctx context.Context, userID uint, key string, result models.JSON) error
}

type idempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	return &idempotencyRepository{db: db}
}

func (r *idempotencyRepository) GetOrCreate(ctx context.Context, userID uint, key string) (*models.IdempotencyKey, bool, error) {
	record := &models.IdempotencyKey{UserID: userID, Key: key}
	err := r.db.WithContext(ctx).Create(record).Error
	if err == nil {
		return record, true, nil
	}
	if !IsDuplicate(err) {
		return nil, false, fmt.Errorf("failed to create idempotency record: %w", err)
	}

	var existing models.IdempotencyKey
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND key = ?", userID, key).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("idempotency record vanished for key %s", key)
		}
		return nil, false, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return &existing, false, nil
}

func (r *idempotencyRepository) MarkSuccess(ctx context.Context, userID uint, key string, result models.JSON) error {
	err := r.db.WithContext(ctx).
		Model(&models.IdempotencyKey{}).
		Where("user_id = ? AND key = ?", userID, key).
		Updates(map[string]interface{}{"success": true, "response_json": result}).Error
	if err != nil {
		return fmt.Errorf("failed to finalize idempotency record: %w", err)
	}
	return nil
}
