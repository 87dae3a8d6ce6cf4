package enums

// OutboxEventType names the domain events persisted for asynchronous delivery.
type OutboxEventType string

const (
	EventOrderChanged             OutboxEventType = "order.changed"
	EventDiscountReplaced         OutboxEventType = "discount.replaced"
	EventComboAvailabilityChanged OutboxEventType = "combo.availability_changed"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateDiscount OutboxAggregateType = "discount"
	AggregateCombo    OutboxAggregateType = "combo"
)
