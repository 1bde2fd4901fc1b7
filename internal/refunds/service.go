package refunds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/internal/payments"
	dbpkg "github.com/abubuhammad/georgy-marketplace-backend/pkg/db"
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

// orderReader is the slice of the order state machine refunds need.
type orderReader interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// Decision is the admin's ruling on a pending refund.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// RequestInput opens a refund against a delivered order.
type RequestInput struct {
	OrderID     uuid.UUID
	AmountCents *int
	Reason      string
	RequestedBy uuid.UUID
}

// DecideInput carries the admin decision for a pending refund.
type DecideInput struct {
	RefundID      uuid.UUID
	Decision      Decision
	AdminID       uuid.UUID
	OverrideCents *int
}

// RefundEvent is the outbox payload shared by the refund lifecycle events.
type RefundEvent struct {
	RefundID    uuid.UUID          `json:"refund_id"`
	OrderID     uuid.UUID          `json:"order_id"`
	PaymentID   uuid.UUID          `json:"payment_id"`
	AmountCents int                `json:"amount_cents"`
	Status      enums.RefundStatus `json:"status"`
	Reason      string             `json:"reason,omitempty"`
}

// Service runs the refund workflow: buyer request, admin decision, provider
// confirmation. The ledger effect lands at approval; completion only records
// the provider's confirmation.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Refund, error)
	Decide(ctx context.Context, input DecideInput) (*models.Refund, error)
	Complete(ctx context.Context, refundID uuid.UUID, providerRef string) (*models.Refund, error)
	Cancel(ctx context.Context, refundID, requestedBy uuid.UUID) (*models.Refund, error)
	Get(ctx context.Context, refundID uuid.UUID) (*models.Refund, error)
	ListApproved(ctx context.Context, limit int) ([]models.Refund, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	payments payments.Service
	orders   orderReader
	outbox   outboxPublisher
}

// NewService builds a refund service with the required dependencies.
func NewService(repo Repository, tx txRunner, paymentsSvc payments.Service, orderSvc orderReader, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if paymentsSvc == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		payments: paymentsSvc,
		orders:   orderSvc,
		outbox:   outboxSvc,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.Refund, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.RequestedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}
	if input.AmountCents != nil && *input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	order, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != input.RequestedBy {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "only delivered orders can be refunded").
			WithDetails(map[string]any{"rule": "order_not_delivered", "status": order.Status})
	}

	var created *models.Refund
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if existing, err := repo.FindActiveByOrderID(ctx, order.ID); err == nil && existing != nil {
			return refundExistsError(existing.ID)
		} else if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing refund")
		}

		payment, err := s.payments.FindActiveByOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if payment.Status != enums.PaymentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeBusinessRule, "payment is not settled").
				WithDetails(map[string]any{"rule": "payment_not_settled", "status": payment.Status})
		}

		amount := payment.AmountCents
		if input.AmountCents != nil {
			amount = *input.AmountCents
		}
		if amount > payment.AmountCents {
			return pkgerrors.New(pkgerrors.CodeBusinessRule, "refund exceeds payment amount").
				WithDetails(map[string]any{"rule": "refund_exceeds_payment", "amount_cents": payment.AmountCents})
		}

		refund := &models.Refund{
			OrderID:     order.ID,
			PaymentID:   payment.ID,
			AmountCents: amount,
			Reason:      input.Reason,
			Status:      enums.RefundStatusPending,
			RequestedBy: input.RequestedBy,
		}
		if _, err := repo.Create(ctx, refund); err != nil {
			// the partial unique index closes the race two requests can open
			if dbpkg.IsUniqueViolation(err, "ux_refunds_active_order") {
				return refundExistsError(uuid.Nil)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
		}

		if err := s.emit(ctx, tx, enums.EventRefundRequested, refund, input.RequestedBy, enums.ActorRoleBuyer); err != nil {
			return err
		}
		created = refund
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Decide(ctx context.Context, input DecideInput) (*models.Refund, error) {
	if input.RefundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.Decision != DecisionApprove && input.Decision != DecisionReject {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown decision %q", input.Decision))
	}
	if input.OverrideCents != nil && *input.OverrideCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "override amount must be positive")
	}

	var result *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		refund, err := s.load(ctx, repo, input.RefundID, true)
		if err != nil {
			return err
		}
		if refund.Status != enums.RefundStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "refund already decided").
				WithDetails(map[string]any{"from": refund.Status})
		}

		now := time.Now()

		if input.Decision == DecisionReject {
			if err := repo.Update(ctx, refund.ID, map[string]any{
				"status":       enums.RefundStatusRejected,
				"processed_by": input.AdminID,
				"processed_at": now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject refund")
			}
			refund.Status = enums.RefundStatusRejected
			result = refund
			return nil
		}

		amount := refund.AmountCents
		if input.OverrideCents != nil {
			amount = *input.OverrideCents
		}

		if _, err := s.payments.ApplyRefund(ctx, tx, refund.PaymentID, input.AdminID, amount); err != nil {
			return err
		}

		updates := map[string]any{
			"status":       enums.RefundStatusApproved,
			"processed_by": input.AdminID,
		}
		if amount != refund.AmountCents {
			updates["amount_cents"] = amount
		}
		if err := repo.Update(ctx, refund.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve refund")
		}
		refund.Status = enums.RefundStatusApproved
		refund.AmountCents = amount

		if err := s.emit(ctx, tx, enums.EventRefundApproved, refund, input.AdminID, enums.ActorRoleAdmin); err != nil {
			return err
		}
		result = refund
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Complete records the provider's confirmation of the reversal. Calling it
// again for an already-completed refund is a no-op.
func (s *service) Complete(ctx context.Context, refundID uuid.UUID, providerRef string) (*models.Refund, error) {
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}

	var result *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		refund, err := s.load(ctx, repo, refundID, true)
		if err != nil {
			return err
		}
		if refund.Status == enums.RefundStatusCompleted {
			result = refund
			return nil
		}
		if refund.Status != enums.RefundStatusApproved {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "refund is not approved").
				WithDetails(map[string]any{"from": refund.Status})
		}

		now := time.Now()
		updates := map[string]any{
			"status":       enums.RefundStatusCompleted,
			"processed_at": now,
		}
		if providerRef != "" {
			updates["provider_ref"] = providerRef
		}
		if err := repo.Update(ctx, refund.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete refund")
		}
		refund.Status = enums.RefundStatusCompleted
		refund.ProcessedAt = &now

		if err := s.emitIfNotExists(ctx, tx, enums.EventRefundCompleted, refund, refund.RequestedBy, enums.ActorRoleSystem); err != nil {
			return err
		}
		result = refund
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel lets the requester withdraw a refund that has not been decided yet.
func (s *service) Cancel(ctx context.Context, refundID, requestedBy uuid.UUID) (*models.Refund, error) {
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	if requestedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var result *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		refund, err := s.load(ctx, repo, refundID, true)
		if err != nil {
			return err
		}
		if refund.RequestedBy != requestedBy {
			return pkgerrors.New(pkgerrors.CodeForbidden, "refund belongs to another requester")
		}
		if refund.Status != enums.RefundStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only pending refunds can be withdrawn").
				WithDetails(map[string]any{"from": refund.Status})
		}

		if err := repo.Update(ctx, refund.ID, map[string]any{
			"status":       enums.RefundStatusRejected,
			"processed_by": requestedBy,
			"processed_at": time.Now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "withdraw refund")
		}
		refund.Status = enums.RefundStatusRejected
		result = refund
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, refundID uuid.UUID) (*models.Refund, error) {
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	return s.load(ctx, s.repo, refundID, false)
}

func (s *service) ListApproved(ctx context.Context, limit int) ([]models.Refund, error) {
	refunds, err := s.repo.ListByStatus(ctx, enums.RefundStatusApproved, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list approved refunds")
	}
	return refunds, nil
}

func (s *service) load(ctx context.Context, repo Repository, refundID uuid.UUID, forUpdate bool) (*models.Refund, error) {
	find := repo.FindByID
	if forUpdate {
		find = repo.FindByIDForUpdate
	}
	refund, err := find(ctx, refundID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
	}
	return refund, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, refund *models.Refund, actorID uuid.UUID, role enums.ActorRole) error {
	if err := s.outbox.Emit(ctx, tx, refundEvent(eventType, refund, actorID, role)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit refund event")
	}
	return nil
}

func (s *service) emitIfNotExists(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, refund *models.Refund, actorID uuid.UUID, role enums.ActorRole) error {
	if err := s.outbox.EmitIfNotExists(ctx, tx, refundEvent(eventType, refund, actorID, role)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit refund event")
	}
	return nil
}

func refundEvent(eventType enums.OutboxEventType, refund *models.Refund, actorID uuid.UUID, role enums.ActorRole) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateRefund,
		AggregateID:   refund.ID,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: role.String()},
		Data: RefundEvent{
			RefundID:    refund.ID,
			OrderID:     refund.OrderID,
			PaymentID:   refund.PaymentID,
			AmountCents: refund.AmountCents,
			Status:      refund.Status,
			Reason:      refund.Reason,
		},
		Version: 1,
	}
}

func refundExistsError(existingID uuid.UUID) error {
	details := map[string]any{"rule": "refund_already_exists"}
	if existingID != uuid.Nil {
		details["refund_id"] = existingID
	}
	return pkgerrors.New(pkgerrors.CodeBusinessRule, "order already has an active refund").WithDetails(details)
}
