package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
)

// Repository defines persistence operations for payout batches and the
// payment allocation marker. The Sum* queries feed the derived seller
// balance; they never read a stored balance column.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, payout *models.Payout) (*models.Payout, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Payout, error)
	ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.Payout, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error

	SumSellerNet(ctx context.Context, sellerID uuid.UUID) (int, error)
	SumRefundsApplied(ctx context.Context, sellerID uuid.UUID) (int, error)
	SumPayoutsHolding(ctx context.Context, sellerID uuid.UUID) (int, error)
	SumRefundsAppliedByPayment(ctx context.Context, paymentIDs []uuid.UUID) (map[uuid.UUID]int, error)

	FindClaimablePaymentsForUpdate(ctx context.Context, sellerID uuid.UUID) ([]models.Payment, error)
	ClaimPayments(ctx context.Context, payoutID uuid.UUID, paymentIDs []uuid.UUID) (int64, error)
	ReleasePayments(ctx context.Context, payoutID uuid.UUID) error
	FindPaymentsByPayout(ctx context.Context, payoutID uuid.UUID) ([]models.Payment, error)
}
