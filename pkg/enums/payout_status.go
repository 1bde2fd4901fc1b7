package enums

import "fmt"

// PayoutStatus tracks the lifecycle of a seller payout batch.
type PayoutStatus string

const (
	PayoutStatusScheduled  PayoutStatus = "scheduled"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusScheduled,
	PayoutStatusProcessing,
	PayoutStatusCompleted,
	PayoutStatusFailed,
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the payout can no longer change state.
func (p PayoutStatus) IsTerminal() bool {
	return p == PayoutStatusCompleted || p == PayoutStatusFailed
}

// HoldsBalance reports whether payouts in this state reduce the seller's
// available balance. Failed payouts release their claimed payments.
func (p PayoutStatus) HoldsBalance() bool {
	switch p {
	case PayoutStatusScheduled, PayoutStatusProcessing, PayoutStatusCompleted:
		return true
	default:
		return false
	}
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
