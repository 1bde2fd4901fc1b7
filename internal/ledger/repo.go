package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/internal/repo"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
)

// Repository manages persistence for ledger entries. Entries are append-only;
// there is deliberately no update or delete operation.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.LedgerEntry, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.DB(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
