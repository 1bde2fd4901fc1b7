package enums

import "fmt"

// RefundStatus tracks the lifecycle of a refund request.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusApproved  RefundStatus = "approved"
	RefundStatusRejected  RefundStatus = "rejected"
	RefundStatusCompleted RefundStatus = "completed"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusPending,
	RefundStatusApproved,
	RefundStatusRejected,
	RefundStatusCompleted,
}

// String implements fmt.Stringer.
func (r RefundStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundStatus.
func (r RefundStatus) IsValid() bool {
	for _, candidate := range validRefundStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsActive reports whether the refund still blocks another refund request
// for the same order. Only rejected refunds free the slot.
func (r RefundStatus) IsActive() bool {
	return r != RefundStatusRejected && r.IsValid()
}

// ParseRefundStatus converts raw input into a RefundStatus.
func ParseRefundStatus(value string) (RefundStatus, error) {
	for _, candidate := range validRefundStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund status %q", value)
}
