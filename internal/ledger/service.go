package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
)

// Service defines operations that record and read settlement ledger entries.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.LedgerEntry, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.LedgerEntry, error)
	HasEntry(ctx context.Context, orderID uuid.UUID, entryType enums.LedgerEntryType) (bool, error)
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data a ledger entry requires.
type RecordEntryInput struct {
	OrderID     uuid.UUID             `json:"order_id"`
	PaymentID   *uuid.UUID            `json:"payment_id,omitempty"`
	SellerID    uuid.UUID             `json:"seller_id"`
	ActorUserID uuid.UUID             `json:"actor_user_id"`
	Type        enums.LedgerEntryType `json:"type"`
	AmountCents int                   `json:"amount_cents"`
	Metadata    json.RawMessage       `json:"metadata"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends an entry inside the caller's transaction when one is given.
// Callers doing money mutations must pass their transaction so the entry
// commits or rolls back with the mutation itself.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.LedgerEntry, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.SellerID == uuid.Nil {
		return nil, fmt.Errorf("seller id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, fmt.Errorf("actor user id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger entry type %q", input.Type)
	}

	entry := &models.LedgerEntry{
		OrderID:     input.OrderID,
		PaymentID:   input.PaymentID,
		SellerID:    input.SellerID,
		ActorUserID: input.ActorUserID,
		Type:        input.Type,
		AmountCents: input.AmountCents,
		Metadata:    input.Metadata,
	}

	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}

func (s *service) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.LedgerEntry, error) {
	if paymentID == uuid.Nil {
		return nil, fmt.Errorf("payment id is required")
	}
	return s.repo.ListByPaymentID(ctx, paymentID)
}

func (s *service) HasEntry(ctx context.Context, orderID uuid.UUID, entryType enums.LedgerEntryType) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order id is required")
	}
	if !entryType.IsValid() {
		return false, fmt.Errorf("invalid ledger entry type %q", entryType)
	}

	entries, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Type == entryType {
			return true, nil
		}
	}
	return false, nil
}
