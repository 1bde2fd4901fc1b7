package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type_enum enum in Postgres.
type LedgerEntryType string

const (
	LedgerEntryTypePaymentCreated   LedgerEntryType = "payment_created"
	LedgerEntryTypePaymentCompleted LedgerEntryType = "payment_completed"
	LedgerEntryTypePaymentCancelled LedgerEntryType = "payment_cancelled"
	LedgerEntryTypeRefundApplied    LedgerEntryType = "refund_applied"
	LedgerEntryTypePayoutAllocated  LedgerEntryType = "payout_allocated"
	LedgerEntryTypePayoutCompleted  LedgerEntryType = "payout_completed"
	LedgerEntryTypePayoutFailed     LedgerEntryType = "payout_failed"
	LedgerEntryTypeAgentCommission  LedgerEntryType = "agent_commission"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypePaymentCreated,
	LedgerEntryTypePaymentCompleted,
	LedgerEntryTypePaymentCancelled,
	LedgerEntryTypeRefundApplied,
	LedgerEntryTypePayoutAllocated,
	LedgerEntryTypePayoutCompleted,
	LedgerEntryTypePayoutFailed,
	LedgerEntryTypeAgentCommission,
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
