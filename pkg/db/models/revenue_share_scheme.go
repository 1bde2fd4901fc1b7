package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultSchemeCategory tags the scheme applied when no category matches.
const DefaultSchemeCategory = "default"

// RevenueShareScheme maps a product category to a platform/seller split.
// PlatformPercentage + SellerPercentage must equal 1 for any active scheme.
type RevenueShareScheme struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string          `gorm:"column:name;not null"`
	Category           string          `gorm:"column:category;not null;uniqueIndex:ux_revenue_share_schemes_category"`
	PlatformPercentage decimal.Decimal `gorm:"column:platform_percentage;type:numeric(5,4);not null"`
	SellerPercentage   decimal.Decimal `gorm:"column:seller_percentage;type:numeric(5,4);not null"`
	MinimumFeeCents    *int            `gorm:"column:minimum_fee_cents"`
	MaximumFeeCents    *int            `gorm:"column:maximum_fee_cents"`
	IsActive           bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Balanced reports whether the two percentages cover the full amount.
func (s RevenueShareScheme) Balanced() bool {
	return s.PlatformPercentage.Add(s.SellerPercentage).Equal(decimal.NewFromInt(1))
}
