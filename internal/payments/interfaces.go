package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
)

// Repository defines persistence operations for payment rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}
