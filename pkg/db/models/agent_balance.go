package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentBalance is the delivery agent's running earnings counter. It is only
// ever incremented inside the same transaction as the shipment's delivered
// status write, so retries cannot double-credit.
type AgentBalance struct {
	AgentID          uuid.UUID `gorm:"column:agent_id;type:uuid;primaryKey"`
	TotalEarnedCents int       `gorm:"column:total_earned_cents;not null;default:0"`
	DeliveryCount    int       `gorm:"column:delivery_count;not null;default:0"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
