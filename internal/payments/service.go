package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/internal/commission"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/ledger"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
)

// Service maintains the payment rows and their ledger trail. All mutations
// take the caller's transaction; a payment status never changes outside the
// transaction that justified the change.
type Service interface {
	CreatePending(ctx context.Context, tx *gorm.DB, order *models.Order, split *commission.Split, actorUserID uuid.UUID) (*models.Payment, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, paymentID, actorUserID uuid.UUID) (*models.Payment, error)
	MarkCancelled(ctx context.Context, tx *gorm.DB, paymentID, actorUserID uuid.UUID, reason string) (*models.Payment, error)
	ApplyRefund(ctx context.Context, tx *gorm.DB, paymentID, actorUserID uuid.UUID, refundCents int) (*models.Payment, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindActiveByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Payment, error)
}

type service struct {
	repo   Repository
	ledger ledger.Service
}

// NewService builds a payment service with the required dependencies.
func NewService(repo Repository, ledgerSvc ledger.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{repo: repo, ledger: ledgerSvc}, nil
}

func (s *service) CreatePending(ctx context.Context, tx *gorm.DB, order *models.Order, split *commission.Split, actorUserID uuid.UUID) (*models.Payment, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if split == nil || split.AmountCents != order.TotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission split does not match order total")
	}

	repo := s.repo.WithTx(tx)
	if existing, err := repo.FindActiveByOrderID(ctx, order.ID); err == nil && existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "order already has a payment").
			WithDetails(map[string]any{"rule": "duplicate_payment", "payment_id": existing.ID})
	} else if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payment")
	}

	payment := &models.Payment{
		OrderID:          order.ID,
		SellerID:         order.SellerID,
		Reference:        paymentReference(order.OrderNumber),
		AmountCents:      split.AmountCents,
		PlatformCutCents: split.PlatformCutCents,
		SellerNetCents:   split.SellerNetCents,
		Status:           enums.PaymentStatusPending,
	}
	created, err := repo.Create(ctx, payment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}

	if err := s.record(ctx, tx, created, actorUserID, enums.LedgerEntryTypePaymentCreated, created.AmountCents, map[string]any{
		"reference":          created.Reference,
		"platform_cut_cents": created.PlatformCutCents,
		"seller_net_cents":   created.SellerNetCents,
	}); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) MarkCompleted(ctx context.Context, tx *gorm.DB, paymentID, actorUserID uuid.UUID) (*models.Payment, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	payment, err := s.loadForUpdate(ctx, repo, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, transitionError(payment.Status, enums.PaymentStatusCompleted)
	}

	now := time.Now()
	if err := repo.Update(ctx, payment.ID, map[string]any{
		"status":  enums.PaymentStatusCompleted,
		"paid_at": now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment completed")
	}
	payment.Status = enums.PaymentStatusCompleted
	payment.PaidAt = &now

	if err := s.record(ctx, tx, payment, actorUserID, enums.LedgerEntryTypePaymentCompleted, payment.AmountCents, map[string]any{
		"seller_net_cents": payment.SellerNetCents,
	}); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) MarkCancelled(ctx context.Context, tx *gorm.DB, paymentID, actorUserID uuid.UUID, reason string) (*models.Payment, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	payment, err := s.loadForUpdate(ctx, repo, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, transitionError(payment.Status, enums.PaymentStatusCancelled)
	}

	if err := repo.Update(ctx, payment.ID, map[string]any{
		"status": enums.PaymentStatusCancelled,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment cancelled")
	}
	payment.Status = enums.PaymentStatusCancelled

	if err := s.record(ctx, tx, payment, actorUserID, enums.LedgerEntryTypePaymentCancelled, payment.AmountCents, map[string]any{
		"reason": reason,
	}); err != nil {
		return nil, err
	}
	return payment, nil
}

// ApplyRefund records a refund against a completed payment. A full refund
// flips the status to refunded; a partial refund leaves the payment completed
// and the outstanding balance is derived from the ledger. A payment claimed
// by a payout cannot be refunded until the payout fails or is rejected and
// releases it; the row lock serializes this check against the payout claim.
func (s *service) ApplyRefund(ctx context.Context, tx *gorm.DB, paymentID, actorUserID uuid.UUID, refundCents int) (*models.Payment, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if refundCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	repo := s.repo.WithTx(tx)
	payment, err := s.loadForUpdate(ctx, repo, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusCompleted {
		return nil, transitionError(payment.Status, enums.PaymentStatusRefunded)
	}
	if payment.PayoutID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "payment is claimed by a payout").
			WithDetails(map[string]any{"rule": "payment_claimed", "payout_id": *payment.PayoutID})
	}
	if refundCents > payment.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "refund exceeds payment amount").
			WithDetails(map[string]any{"rule": "refund_exceeds_payment", "amount_cents": payment.AmountCents})
	}

	if refundCents == payment.AmountCents {
		if err := repo.Update(ctx, payment.ID, map[string]any{
			"status": enums.PaymentStatusRefunded,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
		}
		payment.Status = enums.PaymentStatusRefunded
	}

	if err := s.record(ctx, tx, payment, actorUserID, enums.LedgerEntryTypeRefundApplied, refundCents, map[string]any{
		"full_refund": refundCents == payment.AmountCents,
	}); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// FindActiveByOrder returns the order's non-cancelled payment, scoped to the
// caller's transaction when one is given.
func (s *service) FindActiveByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	payment, err := repo.FindActiveByOrderID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// loadForUpdate takes the payment's row lock; every status mutation goes
// through it so concurrent settlement flows serialize on the row.
func (s *service) loadForUpdate(ctx context.Context, repo Repository, paymentID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := repo.FindByIDForUpdate(ctx, paymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, payment *models.Payment, actorUserID uuid.UUID, entryType enums.LedgerEntryType, amountCents int, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal ledger metadata")
	}
	paymentID := payment.ID
	if _, err := s.ledger.Record(ctx, tx, ledger.RecordEntryInput{
		OrderID:     payment.OrderID,
		PaymentID:   &paymentID,
		SellerID:    payment.SellerID,
		ActorUserID: actorUserID,
		Type:        entryType,
		AmountCents: amountCents,
		Metadata:    raw,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger entry")
	}
	return nil
}

func transitionError(from, to enums.PaymentStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "payment transition not allowed").
		WithDetails(map[string]any{"from": from, "to": to})
}

func paymentReference(orderNumber int64) string {
	return fmt.Sprintf("PAY-%d-%d", orderNumber, time.Now().UnixNano())
}
