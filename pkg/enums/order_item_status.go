package enums

import "fmt"

// OrderItemStatus tracks the kitchen lifecycle of a single order line.
type OrderItemStatus string

const (
	OrderItemStatusPending    OrderItemStatus = "pending"
	OrderItemStatusInProgress OrderItemStatus = "in_progress"
	OrderItemStatusReady      OrderItemStatus = "ready"
	OrderItemStatusServed     OrderItemStatus = "served"
	OrderItemStatusCompleted  OrderItemStatus = "completed"
	OrderItemStatusCancelled  OrderItemStatus = "cancelled"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusPending,
	OrderItemStatusInProgress,
	OrderItemStatusReady,
	OrderItemStatusServed,
	OrderItemStatusCompleted,
	OrderItemStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderItemStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderItemStatus.
func (o OrderItemStatus) IsValid() bool {
	for _, candidate := range validOrderItemStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// Editable reports whether the line may still be repriced or removed.
// Once the kitchen picks a line up its price snapshot is a financial record.
func (o OrderItemStatus) Editable() bool {
	return o == OrderItemStatusPending
}

// CountsTowardTotal reports whether the line participates in the order total.
func (o OrderItemStatus) CountsTowardTotal() bool {
	return o != OrderItemStatusCancelled
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	for _, candidate := range validOrderItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item status %q", value)
}
