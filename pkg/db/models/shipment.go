package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
)

// Shipment is created when an order enters the shipped state. Its delivered
// transition is what finalizes the seller's earnings on the parent order.
type Shipment struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_shipments_order"`
	AgentID           *uuid.UUID           `gorm:"column:agent_id;type:uuid"`
	Status            enums.ShipmentStatus `gorm:"column:status;type:shipment_status_enum;not null;default:'assigned'"`
	DeliveryFeeCents  int                  `gorm:"column:delivery_fee_cents;not null;default:0"`
	TrackingNumber    string               `gorm:"column:tracking_number;not null"`
	EstimatedDelivery *time.Time           `gorm:"column:estimated_delivery"`
	PickedUpAt        *time.Time           `gorm:"column:picked_up_at"`
	ActualDelivery    *time.Time           `gorm:"column:actual_delivery"`
	CancelledAt       *time.Time           `gorm:"column:cancelled_at"`
	ProofNote         *string              `gorm:"column:proof_note"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
