package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/internal/commission"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/payments"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/outbox"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ShipmentCoordinator opens a shipment when an order moves to shipped and
// closes it again when a shipped order is cancelled. CreateForOrder must be
// a no-op when the order already has one; CancelForOrder must be a no-op
// when no live shipment exists.
type ShipmentCoordinator interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error
	CancelForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// Service is the authoritative order state machine.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	commission commission.Service
	payments   payments.Service
	shipments  ShipmentCoordinator
	outbox     outboxPublisher
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, commissionSvc commission.Service, paymentsSvc payments.Service, shipments ShipmentCoordinator, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if commissionSvc == nil {
		return nil, fmt.Errorf("commission service required")
	}
	if paymentsSvc == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if shipments == nil {
		return nil, fmt.Errorf("shipment creator required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		commission: commissionSvc,
		payments:   paymentsSvc,
		shipments:  shipments,
		outbox:     outboxSvc,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	split, err := s.commission.Split(ctx, input.TotalCents, input.Category)
	if err != nil {
		return nil, err
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyNGN
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		number, err := repo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order := &models.Order{
			OrderNumber:     number,
			BuyerID:         input.BuyerID,
			SellerID:        input.SellerID,
			ProductID:       input.ProductID,
			Category:        input.Category,
			Quantity:        input.Quantity,
			TotalCents:      input.TotalCents,
			Currency:        currency,
			Status:          enums.OrderStatusPending,
			ShippingAddress: input.ShippingAddress,
			Notes:           input.Notes,
		}
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		payment, err := s.payments.CreatePending(ctx, tx, order, split, input.BuyerID)
		if err != nil {
			return err
		}
		order.Payment = payment

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.ActorRoleBuyer.String()},
			Data: OrderCreatedEvent{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				BuyerID:          order.BuyerID,
				SellerID:         order.SellerID,
				TotalCents:       order.TotalCents,
				PlatformCutCents: payment.PlatformCutCents,
				SellerNetCents:   payment.SellerNetCents,
				PaymentReference: payment.Reference,
				Status:           order.Status,
			},
			Version: 1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Transition applies one step of the order state machine under a row lock.
// Side effects (shipment creation, payment settlement, cancellation) happen
// inside the same transaction as the status write.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target status %q", input.Target))
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if err := authorizeTransition(input); err != nil {
		return nil, err
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := authorizeActor(order, input); err != nil {
			return err
		}

		// Replayed delivery confirmations are not conflicts.
		if input.ViaShipment && input.Target == enums.OrderStatusDelivered && order.Status == enums.OrderStatusDelivered {
			result = order
			return nil
		}

		from := order.Status
		if !from.CanTransitionTo(input.Target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order transition not allowed").
				WithDetails(map[string]any{"from": from, "to": input.Target})
		}

		now := time.Now()
		updates := map[string]any{"status": input.Target}

		switch input.Target {
		case enums.OrderStatusConfirmed:
			updates["confirmed_at"] = now

		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
			if err := s.shipments.CreateForOrder(ctx, tx, order); err != nil {
				return err
			}

		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			payment, err := s.payments.FindActiveByOrder(ctx, tx, order.ID)
			if err != nil {
				return err
			}
			if payment.Status == enums.PaymentStatusPending {
				if _, err := s.payments.MarkCompleted(ctx, tx, payment.ID, input.ActorUserID); err != nil {
					return err
				}
			}

		case enums.OrderStatusCancelled:
			updates["cancelled_at"] = now
			payment, err := s.payments.FindActiveByOrder(ctx, tx, order.ID)
			if err != nil {
				if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
					return err
				}
				payment = nil
			}
			if payment != nil {
				switch payment.Status {
				case enums.PaymentStatusPending:
					reason := "order cancelled"
					if input.Reason != nil {
						reason = *input.Reason
					}
					if _, err := s.payments.MarkCancelled(ctx, tx, payment.ID, input.ActorUserID, reason); err != nil {
						return err
					}
				default:
					return pkgerrors.New(pkgerrors.CodeBusinessRule, "settled payment requires a refund").
						WithDetails(map[string]any{"rule": "requires_refund", "payment_id": payment.ID})
				}
			}
			// a shipment opened for this order must not stay deliverable
			if err := s.shipments.CancelForOrder(ctx, tx, order); err != nil {
				return err
			}
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = input.Target
		applyTimestamps(order, input.Target, now)

		if err := s.emitTransitionEvents(ctx, tx, order, from, input); err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) emitTransitionEvents(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.OrderStatus, input TransitionInput) error {
	actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: OrderStateChangedEvent{
			OrderID:  order.ID,
			SellerID: order.SellerID,
			From:     from,
			To:       order.Status,
			Reason:   input.Reason,
		},
		Version: 1,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order state changed event")
	}

	var terminalEvent enums.OutboxEventType
	switch order.Status {
	case enums.OrderStatusDelivered:
		terminalEvent = enums.EventOrderDelivered
	case enums.OrderStatusCancelled:
		terminalEvent = enums.EventOrderCancelled
	default:
		return nil
	}

	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     terminalEvent,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: OrderStateChangedEvent{
			OrderID:  order.ID,
			SellerID: order.SellerID,
			From:     from,
			To:       order.Status,
			Reason:   input.Reason,
		},
		Version: 1,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order terminal event")
	}
	return nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindDetail(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func validateCreate(input CreateOrderInput) error {
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.SellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.BuyerID == input.SellerID {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer and seller must differ")
	}
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.TotalCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "total must be positive")
	}
	if input.Currency != "" && !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", input.Currency))
	}
	if input.ShippingAddress != nil && !input.ShippingAddress.Complete() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address incomplete")
	}
	return nil
}

// authorizeTransition enforces the role matrix: buyers cancel, sellers and
// admins drive fulfillment, delivery confirmation arrives from the shipment
// flow (agent or system actors).
func authorizeTransition(input TransitionInput) error {
	switch input.ActorRole {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleBuyer:
		if input.Target != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeForbidden, "buyers may only cancel orders")
		}
		return nil
	case enums.ActorRoleSeller:
		if input.Target == enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeForbidden, "delivery is confirmed by the shipment flow")
		}
		return nil
	case enums.ActorRoleAgent, enums.ActorRoleSystem:
		if input.Target == enums.OrderStatusDelivered && input.ViaShipment {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot transition orders")
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
}

// authorizeActor binds the role to the entity: sellers act on their own
// orders, buyers on orders they placed. Admins and the shipment flow's
// system actor pass.
func authorizeActor(order *models.Order, input TransitionInput) error {
	switch input.ActorRole {
	case enums.ActorRoleSeller:
		if input.ActorUserID != order.SellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another seller")
		}
	case enums.ActorRoleBuyer:
		if input.ActorUserID != order.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
		}
	}
	return nil
}

func applyTimestamps(order *models.Order, target enums.OrderStatus, now time.Time) {
	switch target {
	case enums.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case enums.OrderStatusShipped:
		order.ShippedAt = &now
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}
}
