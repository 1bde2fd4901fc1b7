package refunds

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a refunds repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, refund *models.Refund) (*models.Refund, error) {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return nil, err
	}
	return refund, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// FindActiveByOrderID returns the order's non-rejected refund, if any.
func (r *repository) FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status <> ?", orderID, enums.RefundStatusRejected).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.RefundStatus, limit int) ([]models.Refund, error) {
	var refunds []models.Refund
	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ?", id).
		Updates(updates).Error
}
