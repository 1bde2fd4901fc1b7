package commission

import (
	"context"

	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
)

// Repository defines persistence operations for revenue share schemes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByCategory(ctx context.Context, category string) (*models.RevenueShareScheme, error)
	List(ctx context.Context) ([]models.RevenueShareScheme, error)
	Create(ctx context.Context, scheme *models.RevenueShareScheme) (*models.RevenueShareScheme, error)
	Deactivate(ctx context.Context, category string) error
}
