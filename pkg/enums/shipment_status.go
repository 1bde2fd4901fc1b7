package enums

import "fmt"

// ShipmentStatus tracks the delivery lifecycle of a shipment.
type ShipmentStatus string

const (
	ShipmentStatusAssigned  ShipmentStatus = "assigned"
	ShipmentStatusPickedUp  ShipmentStatus = "picked_up"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
	ShipmentStatusCancelled ShipmentStatus = "cancelled"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusAssigned,
	ShipmentStatusPickedUp,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
	ShipmentStatusCancelled,
}

// shipmentTransitions mirrors the order table for the delivery leg.
// Cancellation is reachable from any non-terminal state.
var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentStatusAssigned:  {ShipmentStatusPickedUp, ShipmentStatusCancelled},
	ShipmentStatusPickedUp:  {ShipmentStatusInTransit, ShipmentStatusCancelled},
	ShipmentStatusInTransit: {ShipmentStatusDelivered, ShipmentStatusCancelled},
	ShipmentStatusDelivered: {},
	ShipmentStatusCancelled: {},
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s ShipmentStatus) IsTerminal() bool {
	return len(shipmentTransitions[s]) == 0 && s.IsValid()
}

// CanTransitionTo reports whether the target status is reachable in one step.
func (s ShipmentStatus) CanTransitionTo(target ShipmentStatus) bool {
	for _, candidate := range shipmentTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
