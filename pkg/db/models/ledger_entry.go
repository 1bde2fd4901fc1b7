package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
)

// LedgerEntry records an immutable money lifecycle event. Rows are appended
// inside the transaction that performs the mutation and never updated or
// deleted; balances are always derived, never destructively overwritten.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	PaymentID   *uuid.UUID            `gorm:"column:payment_id;type:uuid"`
	SellerID    uuid.UUID             `gorm:"column:seller_id;type:uuid;not null"`
	ActorUserID uuid.UUID             `gorm:"column:actor_user_id;type:uuid;not null"`
	Type        enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type_enum;not null"`
	AmountCents int                   `gorm:"column:amount_cents;not null"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
