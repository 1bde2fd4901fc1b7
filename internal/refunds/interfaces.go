package refunds

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
)

// Repository defines persistence operations for refund rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.Refund) (*models.Refund, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Refund, error)
	ListByStatus(ctx context.Context, status enums.RefundStatus, limit int) ([]models.Refund, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}
