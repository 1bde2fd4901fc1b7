package orders

import (
	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/types"
)

// CreateOrderInput carries everything required to open an order and lock in
// its revenue split.
type CreateOrderInput struct {
	BuyerID         uuid.UUID
	SellerID        uuid.UUID
	ProductID       uuid.UUID
	Category        string
	Quantity        int
	TotalCents      int
	Currency        enums.Currency
	ShippingAddress *types.Address
	Notes           *string
}

// TransitionInput captures a requested order state change and who asked for it.
type TransitionInput struct {
	OrderID     uuid.UUID
	Target      enums.OrderStatus
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
	Reason      *string
	// ViaShipment marks transitions replayed from the shipment callback;
	// an already-delivered order is then a no-op instead of a conflict.
	ViaShipment bool
}

// OrderFilters narrows list queries.
type OrderFilters struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   *enums.OrderStatus
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []models.Order
	NextCursor *string
}

// OrderCreatedEvent is the outbox payload for a new order.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID         `json:"order_id"`
	OrderNumber      int64             `json:"order_number"`
	BuyerID          uuid.UUID         `json:"buyer_id"`
	SellerID         uuid.UUID         `json:"seller_id"`
	TotalCents       int               `json:"total_cents"`
	PlatformCutCents int               `json:"platform_cut_cents"`
	SellerNetCents   int               `json:"seller_net_cents"`
	PaymentReference string            `json:"payment_reference"`
	Status           enums.OrderStatus `json:"status"`
}

// OrderStateChangedEvent is the outbox payload for a state transition.
type OrderStateChangedEvent struct {
	OrderID  uuid.UUID         `json:"order_id"`
	SellerID uuid.UUID         `json:"seller_id"`
	From     enums.OrderStatus `json:"from"`
	To       enums.OrderStatus `json:"to"`
	Reason   *string           `json:"reason,omitempty"`
}
