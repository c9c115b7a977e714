package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quicksurf/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseFilter narrows purchase history listings.
type PurchaseFilter struct {
	Status   string
	Network  string
	Search   string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// PurchaseRepository is the data access layer for purchase requests.
type PurchaseRepository interface {
	WithTx(tx *gorm.DB) PurchaseRepository

	Create(ctx context.Context, purchase *models.PurchaseRequest) error
	GetByClientReference(ctx context.Context, ref string) (*models.PurchaseRequest, error)
	// GetByClientReferenceForUpdate locks the purchase row for settlement.
	GetByClientReferenceForUpdate(ctx context.Context, ref string) (*models.PurchaseRequest, error)
	Save(ctx context.Context, purchase *models.PurchaseRequest) error

	// ListOpenBefore returns initiated/pending purchases created at or before
	// cutoff, oldest first, capped at limit. Used by the sweeper.
	ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PurchaseRequest, error)
	ListByUser(ctx context.Context, userID uint, filter PurchaseFilter) ([]models.PurchaseRequest, error)
}

type purchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

func (r *purchaseRepository) WithTx(tx *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: tx}
}

func (r *purchaseRepository) Create(ctx context.Context, purchase *models.PurchaseRequest) error {
	if err := r.db.WithContext(ctx).Create(purchase).Error; err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("%w: client_reference %s", ErrDuplicateKey, purchase.ClientReference)
		}
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

func (r *purchaseRepository) GetByClientReference(ctx context.Context, ref string) (*models.PurchaseRequest, error) {
	var purchase models.PurchaseRequest
	if err := r.db.WithContext(ctx).Where("client_reference = ?", ref).First(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return &purchase, nil
}

func (r *purchaseRepository) GetByClientReferenceForUpdate(ctx context.Context, ref string) (*models.PurchaseRequest, error) {
	var purchase models.PurchaseRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("client_reference = ?", ref).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to lock purchase: %w", err)
	}
	return &purchase, nil
}

func (r *purchaseRepository) Save(ctx context.Context, purchase *models.PurchaseRequest) error {
	if err := r.db.WithContext(ctx).Save(purchase).Error; err != nil {
		return fmt.Errorf("failed to update purchase: %w", err)
	}
	return nil
}

func (r *purchaseRepository) ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PurchaseRequest, error) {
	var purchases []models.PurchaseRequest
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.PurchaseStatusInitiated, models.PurchaseStatusPending}).
		Where("created_at <= ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&purchases).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open purchases: %w", err)
	}
	return purchases, nil
}

func (r *purchaseRepository) ListByUser(ctx context.Context, userID uint, filter PurchaseFilter) ([]models.PurchaseRequest, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Network != "" {
		q = q.Where("network = ?", filter.Network)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("phone LIKE ? OR client_reference LIKE ?", like, like)
	}
	if filter.DateFrom != nil {
		q = q.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		q = q.Where("created_at <= ?", *filter.DateTo)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	var purchases []models.PurchaseRequest
	err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&purchases).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}
