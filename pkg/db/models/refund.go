package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
)

// Refund tracks a buyer's request to reverse a completed payment. A partial
// unique index on order_id (status <> 'rejected') enforces at most one active
// refund per order.
type Refund struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	PaymentID   uuid.UUID          `gorm:"column:payment_id;type:uuid;not null"`
	AmountCents int                `gorm:"column:amount_cents;not null"`
	Reason      string             `gorm:"column:reason;not null"`
	Status      enums.RefundStatus `gorm:"column:status;type:refund_status_enum;not null;default:'pending'"`
	RequestedBy uuid.UUID          `gorm:"column:requested_by;type:uuid;not null"`
	ProcessedBy *uuid.UUID         `gorm:"column:processed_by;type:uuid"`
	ProviderRef *string            `gorm:"column:provider_ref"`
	ProcessedAt *time.Time         `gorm:"column:processed_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
