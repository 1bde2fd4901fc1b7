package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		return nil, err
	}
	return payout, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Payout, error) {
	var payouts []models.Payout
	query := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.Payout, error) {
	var payouts []models.Payout
	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SumSellerNet totals the seller share of the seller's completed payments.
// Fully refunded payments drop out because their status is no longer
// completed.
func (r *repository) SumSellerNet(ctx context.Context, sellerID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("COALESCE(SUM(seller_net_cents), 0)").
		Where("seller_id = ? AND status = ?", sellerID, enums.PaymentStatusCompleted).
		Scan(&total).Error
	return total, err
}

// SumRefundsApplied totals partial refunds recorded against payments that are
// still completed. Refunds on fully refunded payments are excluded together
// with their payment.
func (r *repository) SumRefundsApplied(ctx context.Context, sellerID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(ledger_entries.amount_cents), 0)").
		Joins("JOIN payments ON payments.id = ledger_entries.payment_id").
		Where("ledger_entries.seller_id = ? AND ledger_entries.type = ? AND payments.status = ?",
			sellerID, enums.LedgerEntryTypeRefundApplied, enums.PaymentStatusCompleted).
		Scan(&total).Error
	return total, err
}

func (r *repository) SumPayoutsHolding(ctx context.Context, sellerID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Select("COALESCE(SUM(total_cents), 0)").
		Where("seller_id = ? AND status IN ?", sellerID, []enums.PayoutStatus{
			enums.PayoutStatusScheduled,
			enums.PayoutStatusProcessing,
			enums.PayoutStatusCompleted,
		}).
		Scan(&total).Error
	return total, err
}

func (r *repository) SumRefundsAppliedByPayment(ctx context.Context, paymentIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	totals := make(map[uuid.UUID]int, len(paymentIDs))
	if len(paymentIDs) == 0 {
		return totals, nil
	}

	var rows []struct {
		PaymentID uuid.UUID
		Total     int
	}
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("payment_id, COALESCE(SUM(amount_cents), 0) AS total").
		Where("payment_id IN ? AND type = ?", paymentIDs, enums.LedgerEntryTypeRefundApplied).
		Group("payment_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		totals[row.PaymentID] = row.Total
	}
	return totals, nil
}

// FindClaimablePaymentsForUpdate locks the seller's unallocated completed
// payments, oldest first. The lock serializes concurrent payout requests for
// the same seller.
func (r *repository) FindClaimablePaymentsForUpdate(ctx context.Context, sellerID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seller_id = ? AND status = ? AND payout_id IS NULL", sellerID, enums.PaymentStatusCompleted).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ClaimPayments stamps the payout id on still-unclaimed payments and reports
// how many rows it actually claimed.
func (r *repository) ClaimPayments(ctx context.Context, payoutID uuid.UUID, paymentIDs []uuid.UUID) (int64, error) {
	if len(paymentIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id IN ? AND payout_id IS NULL", paymentIDs).
		Update("payout_id", payoutID)
	return result.RowsAffected, result.Error
}

func (r *repository) ReleasePayments(ctx context.Context, payoutID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("payout_id = ?", payoutID).
		Update("payout_id", nil).Error
}

func (r *repository) FindPaymentsByPayout(ctx context.Context, payoutID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("payout_id = ?", payoutID).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
