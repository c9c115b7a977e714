package repositories

import (
	"context"
	"errors"
	"fmt"

	"quicksurf/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentIntentRepository is the data access layer for payment intents.
type PaymentIntentRepository interface {
	WithTx(tx *gorm.DB) PaymentIntentRepository

	Create(ctx context.Context, intent *models.PaymentIntent) error
	GetByReference(ctx context.Context, reference string) (*models.PaymentIntent, error)
	GetByUserAndReference(ctx context.Context, userID uint, reference string) (*models.PaymentIntent, error)
	// GetByReferenceForUpdate locks the intent row for the credit-once check.
	GetByReferenceForUpdate(ctx context.Context, reference string) (*models.PaymentIntent, error)
	Save(ctx context.Context, intent *models.PaymentIntent) error
}

type paymentIntentRepository struct {
	db *gorm.DB
}

func NewPaymentIntentRepository(db *gorm.DB) PaymentIntentRepository {
	return &paymentIntentRepository{db: db}
}

func (r *paymentIntentRepository) WithTx(tx *gorm.DB) PaymentIntentRepository {
	return &paymentIntentRepository{db: tx}
}

func (r *paymentIntentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("%w: reference %s", ErrDuplicateKey, intent.Reference)
		}
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	return nil
}

func (r *paymentIntentRepository) GetByReference(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return &intent, nil
}

func (r *paymentIntentRepository) GetByUserAndReference(ctx context.Context, userID uint, reference string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND reference = ?", userID, reference).
		First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return &intent, nil
}

func (r *paymentIntentRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", reference).
		First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to lock payment intent: %w", err)
	}
	return &intent, nil
}

func (r *paymentIntentRepository) Save(ctx context.Context, intent *models.PaymentIntent) error {
	if err := r.db.WithContext(ctx).Save(intent).Error; err != nil {
		return fmt.Errorf("failed to update payment intent: %w", err)
	}
	return nil
}
