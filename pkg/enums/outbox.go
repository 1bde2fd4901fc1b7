package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregatePayment  OutboxAggregateType = "payment"
	AggregateShipment OutboxAggregateType = "shipment"
	AggregateRefund   OutboxAggregateType = "refund"
	AggregatePayout   OutboxAggregateType = "payout"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
	AggregateShipment,
	AggregateRefund,
	AggregatePayout,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated      OutboxEventType = "order_created"
	EventOrderStateChanged OutboxEventType = "order_state_changed"
	EventOrderDelivered    OutboxEventType = "order_delivered"
	EventOrderCancelled    OutboxEventType = "order_cancelled"
	EventPaymentCompleted  OutboxEventType = "payment_completed"
	EventPaymentCancelled  OutboxEventType = "payment_cancelled"
	EventShipmentCreated   OutboxEventType = "shipment_created"
	EventShipmentDelivered OutboxEventType = "shipment_delivered"
	EventRefundRequested   OutboxEventType = "refund_requested"
	EventRefundApproved    OutboxEventType = "refund_approved"
	EventRefundCompleted   OutboxEventType = "refund_completed"
	EventPayoutScheduled   OutboxEventType = "payout_scheduled"
	EventPayoutCompleted   OutboxEventType = "payout_completed"
	EventPayoutFailed      OutboxEventType = "payout_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStateChanged,
	EventOrderDelivered,
	EventOrderCancelled,
	EventPaymentCompleted,
	EventPaymentCancelled,
	EventShipmentCreated,
	EventShipmentDelivered,
	EventRefundRequested,
	EventRefundApproved,
	EventRefundCompleted,
	EventPayoutScheduled,
	EventPayoutCompleted,
	EventPayoutFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
