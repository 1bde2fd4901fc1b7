package commission

import (
	"context"

	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a revenue share scheme repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveByCategory(ctx context.Context, category string) (*models.RevenueShareScheme, error) {
	var scheme models.RevenueShareScheme
	err := r.db.WithContext(ctx).
		Where("category = ? AND is_active = ?", category, true).
		First(&scheme).Error
	if err != nil {
		return nil, err
	}
	return &scheme, nil
}

func (r *repository) List(ctx context.Context) ([]models.RevenueShareScheme, error) {
	var schemes []models.RevenueShareScheme
	err := r.db.WithContext(ctx).
		Order("category ASC").
		Find(&schemes).Error
	if err != nil {
		return nil, err
	}
	return schemes, nil
}

func (r *repository) Create(ctx context.Context, scheme *models.RevenueShareScheme) (*models.RevenueShareScheme, error) {
	if err := r.db.WithContext(ctx).Create(scheme).Error; err != nil {
		return nil, err
	}
	return scheme, nil
}

func (r *repository) Deactivate(ctx context.Context, category string) error {
	return r.db.WithContext(ctx).
		Model(&models.RevenueShareScheme{}).
		Where("category = ?", category).
		Update("is_active", false).Error
}
