package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/internal/ledger"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/orders"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderSettlement is the slice of the order state machine shipments need:
// loading the parent order and confirming its delivery.
type orderSettlement interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, input orders.TransitionInput) (*models.Order, error)
}

// AssignInput dispatches a shipment to a delivery agent.
type AssignInput struct {
	ShipmentID        uuid.UUID
	AgentID           uuid.UUID
	DeliveryFeeCents  int
	EstimatedDelivery *time.Time
	ActorUserID       uuid.UUID
}

// UpdateStatusInput captures a requested shipment state change.
type UpdateStatusInput struct {
	ShipmentID     uuid.UUID
	Target         enums.ShipmentStatus
	ActorUserID    uuid.UUID
	ActorRole      enums.ActorRole
	TrackingNumber *string
	ProofNote      *string
}

// ShipmentDeliveredEvent is the outbox payload for a completed delivery.
type ShipmentDeliveredEvent struct {
	ShipmentID       uuid.UUID  `json:"shipment_id"`
	OrderID          uuid.UUID  `json:"order_id"`
	AgentID          *uuid.UUID `json:"agent_id,omitempty"`
	AgentCreditCents int        `json:"agent_credit_cents"`
}

// Service is the shipment state machine. Delivery is its load-bearing
// transition: it credits the agent and finalizes the parent order.
type Service interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error
	CancelForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error
	Assign(ctx context.Context, input AssignInput) (*models.Shipment, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Shipment, error)
	Get(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
	AgentBalance(ctx context.Context, agentID uuid.UUID) (*models.AgentBalance, error)
}

type service struct {
	repo            Repository
	tx              txRunner
	ledger          ledger.Service
	orders          orderSettlement
	outbox          outboxPublisher
	agentCommission decimal.Decimal
}

// NewService builds a shipment service. agentCommissionRate is the fraction
// of the delivery fee credited to the agent on delivery.
func NewService(repo Repository, tx txRunner, ledgerSvc ledger.Service, orderSvc orderSettlement, outboxSvc outboxPublisher, agentCommissionRate float64) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order settlement required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	rate := decimal.NewFromFloat(agentCommissionRate)
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("agent commission rate %s out of range", rate)
	}
	return &service{
		repo:            repo,
		tx:              tx,
		ledger:          ledgerSvc,
		orders:          orderSvc,
		outbox:          outboxSvc,
		agentCommission: rate,
	}, nil
}

// CreateForOrder opens the order's shipment when it enters the shipped state.
// A shipment that already exists is left untouched.
func (s *service) CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	repo := s.repo.WithTx(tx)
	if _, err := repo.FindByOrderID(ctx, order.ID); err == nil {
		return nil
	} else if err != gorm.ErrRecordNotFound {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing shipment")
	}

	shipment := &models.Shipment{
		OrderID:        order.ID,
		Status:         enums.ShipmentStatusAssigned,
		TrackingNumber: trackingNumber(order.OrderNumber),
	}
	if _, err := repo.Create(ctx, shipment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipment")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventShipmentCreated,
		AggregateType: enums.AggregateShipment,
		AggregateID:   shipment.ID,
		Data: map[string]any{
			"shipment_id":     shipment.ID,
			"order_id":        order.ID,
			"tracking_number": shipment.TrackingNumber,
		},
		Version: 1,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shipment created event")
	}
	return nil
}

// CancelForOrder closes the order's shipment when the order is cancelled
// mid-flight, so the agent cannot deliver against a dead order. Missing or
// already terminal shipments are left untouched.
func (s *service) CancelForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	repo := s.repo.WithTx(tx)
	shipment, err := repo.FindByOrderIDForUpdate(ctx, order.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	if shipment.Status.IsTerminal() {
		return nil
	}

	if err := repo.Update(ctx, shipment.ID, map[string]any{
		"status":       enums.ShipmentStatusCancelled,
		"cancelled_at": time.Now(),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel shipment")
	}
	return nil
}

func (s *service) Assign(ctx context.Context, input AssignInput) (*models.Shipment, error) {
	if input.ShipmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}
	if input.AgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	if input.DeliveryFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee must not be negative")
	}

	var result *models.Shipment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shipment, err := s.load(ctx, repo, input.ShipmentID, true)
		if err != nil {
			return err
		}
		if shipment.Status != enums.ShipmentStatusAssigned {
			return pkgerrors.New(pkgerrors.CodeBusinessRule, "shipment already in progress").
				WithDetails(map[string]any{"rule": "shipment_in_progress", "status": shipment.Status})
		}

		updates := map[string]any{
			"agent_id":           input.AgentID,
			"delivery_fee_cents": input.DeliveryFeeCents,
		}
		if input.EstimatedDelivery != nil {
			updates["estimated_delivery"] = *input.EstimatedDelivery
		}
		if err := repo.Update(ctx, shipment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign shipment")
		}
		agentID := input.AgentID
		shipment.AgentID = &agentID
		shipment.DeliveryFeeCents = input.DeliveryFeeCents
		shipment.EstimatedDelivery = input.EstimatedDelivery
		result = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus applies one step of the shipment state machine. The delivered
// step is wrapped in one transaction with the agent credit and its ledger
// entry; the parent order's delivery confirmation runs after commit and is
// idempotent, so replays after a partial failure converge.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Shipment, error) {
	if input.ShipmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid shipment status %q", input.Target))
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var result *models.Shipment
	var orderID uuid.UUID
	delivered := false

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shipment, err := s.load(ctx, repo, input.ShipmentID, true)
		if err != nil {
			return err
		}
		// agents only drive shipments dispatched to them
		if input.ActorRole == enums.ActorRoleAgent {
			if shipment.AgentID == nil || *shipment.AgentID != input.ActorUserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "shipment is assigned to another agent")
			}
		}

		// replayed delivery confirmations are not conflicts
		if input.Target == enums.ShipmentStatusDelivered && shipment.Status == enums.ShipmentStatusDelivered {
			result = shipment
			orderID = shipment.OrderID
			delivered = true
			return nil
		}

		if !shipment.Status.CanTransitionTo(input.Target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "shipment transition not allowed").
				WithDetails(map[string]any{"from": shipment.Status, "to": input.Target})
		}

		now := time.Now()
		updates := map[string]any{"status": input.Target}
		if input.TrackingNumber != nil {
			updates["tracking_number"] = *input.TrackingNumber
		}
		if input.ProofNote != nil {
			updates["proof_note"] = *input.ProofNote
		}

		switch input.Target {
		case enums.ShipmentStatusPickedUp:
			updates["picked_up_at"] = now

		case enums.ShipmentStatusDelivered:
			if shipment.PickedUpAt == nil {
				updates["picked_up_at"] = now
			}
			updates["actual_delivery"] = now
			if err := s.creditAgent(ctx, tx, repo, shipment, input.ActorUserID); err != nil {
				return err
			}
			delivered = true

		case enums.ShipmentStatusCancelled:
			updates["cancelled_at"] = now
		}

		if err := repo.Update(ctx, shipment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment status")
		}
		shipment.Status = input.Target
		orderID = shipment.OrderID
		result = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}

	if delivered {
		if _, err := s.orders.Transition(ctx, orders.TransitionInput{
			OrderID:     orderID,
			Target:      enums.OrderStatusDelivered,
			ActorUserID: input.ActorUserID,
			ActorRole:   enums.ActorRoleSystem,
			ViaShipment: true,
		}); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *service) creditAgent(ctx context.Context, tx *gorm.DB, repo Repository, shipment *models.Shipment, actorUserID uuid.UUID) error {
	if shipment.AgentID == nil || shipment.DeliveryFeeCents <= 0 {
		return nil
	}

	credit := int(decimal.NewFromInt(int64(shipment.DeliveryFeeCents)).Mul(s.agentCommission).Floor().IntPart())
	if credit <= 0 {
		return nil
	}

	if err := repo.CreditAgent(ctx, *shipment.AgentID, credit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit agent balance")
	}

	order, err := s.orders.Get(ctx, shipment.OrderID)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(map[string]any{
		"shipment_id":        shipment.ID,
		"agent_id":           *shipment.AgentID,
		"delivery_fee_cents": shipment.DeliveryFeeCents,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal ledger metadata")
	}
	if _, err := s.ledger.Record(ctx, tx, ledger.RecordEntryInput{
		OrderID:     shipment.OrderID,
		SellerID:    order.SellerID,
		ActorUserID: actorUserID,
		Type:        enums.LedgerEntryTypeAgentCommission,
		AmountCents: credit,
		Metadata:    metadata,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record agent commission")
	}

	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventShipmentDelivered,
		AggregateType: enums.AggregateShipment,
		AggregateID:   shipment.ID,
		Actor:         &outbox.ActorRef{UserID: actorUserID, Role: enums.ActorRoleAgent.String()},
		Data: ShipmentDeliveredEvent{
			ShipmentID:       shipment.ID,
			OrderID:          shipment.OrderID,
			AgentID:          shipment.AgentID,
			AgentCreditCents: credit,
		},
		Version: 1,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shipment delivered event")
	}
	return nil
}

func (s *service) Get(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error) {
	if shipmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}
	return s.load(ctx, s.repo, shipmentID, false)
}

func (s *service) AgentBalance(ctx context.Context, agentID uuid.UUID) (*models.AgentBalance, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	balance, err := s.repo.FindAgentBalance(ctx, agentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &models.AgentBalance{AgentID: agentID}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent balance")
	}
	return balance, nil
}

func (s *service) load(ctx context.Context, repo Repository, shipmentID uuid.UUID, forUpdate bool) (*models.Shipment, error) {
	find := repo.FindByID
	if forUpdate {
		find = repo.FindByIDForUpdate
	}
	shipment, err := find(ctx, shipmentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	return shipment, nil
}

func trackingNumber(orderNumber int64) string {
	return fmt.Sprintf("TRK-%d-%d", orderNumber, time.Now().Unix())
}
