package shipments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
)

// Repository defines persistence operations for shipments and the agent
// earnings counters they feed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CreditAgent(ctx context.Context, agentID uuid.UUID, amountCents int) error
	FindAgentBalance(ctx context.Context, agentID uuid.UUID) (*models.AgentBalance, error)
}
