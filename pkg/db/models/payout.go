package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
)

// Payout bundles a seller's settled payments into one outbound transfer.
// The payments it settles carry this payout's id in payments.payout_id;
// failed payouts release their claim so the earnings become payable again.
type Payout struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID          `gorm:"column:seller_id;type:uuid;not null"`
	TotalCents    int                `gorm:"column:total_cents;not null"`
	Status        enums.PayoutStatus `gorm:"column:status;type:payout_status_enum;not null;default:'scheduled'"`
	RetryCount    int                `gorm:"column:retry_count;not null;default:0"`
	FailureReason *string            `gorm:"column:failure_reason"`
	ProviderRef   *string            `gorm:"column:provider_ref"`
	ScheduledAt   time.Time          `gorm:"column:scheduled_at;not null"`
	ProcessedAt   *time.Time         `gorm:"column:processed_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
