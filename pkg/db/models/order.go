package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/types"
)

// Order represents a buyer's purchase from a single seller. TotalCents is
// immutable after creation; only status and its timestamps mutate afterward.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     int64             `gorm:"column:order_number;not null"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID        uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	ProductID       uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	Category        string            `gorm:"column:category;not null"`
	Quantity        int               `gorm:"column:quantity;not null"`
	TotalCents      int               `gorm:"column:total_cents;not null"`
	Currency        enums.Currency    `gorm:"column:currency;type:text;not null;default:'NGN'"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'pending'"`
	ShippingAddress *types.Address    `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Notes           *string           `gorm:"column:notes"`
	ConfirmedAt     *time.Time        `gorm:"column:confirmed_at"`
	ShippedAt       *time.Time        `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time        `gorm:"column:delivered_at"`
	CancelledAt     *time.Time        `gorm:"column:cancelled_at"`
	Payment         *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment        *Shipment         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
