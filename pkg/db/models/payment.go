package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
)

// Payment records the revenue split locked in at order creation.
// PlatformCutCents + SellerNetCents always equals AmountCents; the split is
// never rewritten after creation, only the status projection changes.
// PayoutID marks the payment as claimed by a payout batch so that no two
// non-failed payouts can settle the same payment.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	SellerID         uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	Reference        string              `gorm:"column:reference;not null;uniqueIndex:ux_payments_reference"`
	AmountCents      int                 `gorm:"column:amount_cents;not null"`
	PlatformCutCents int                 `gorm:"column:platform_cut_cents;not null"`
	SellerNetCents   int                 `gorm:"column:seller_net_cents;not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status_enum;not null;default:'pending'"`
	Provider         string              `gorm:"column:provider;not null;default:'manual'"`
	PayoutID         *uuid.UUID          `gorm:"column:payout_id;type:uuid"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
