package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

// OrderItemInput is one requested line: exactly one of DishID or ComboID.
// UnitPriceOverride replaces the menu price when the caller prices the line
// itself. DiscountPercent is a fallback reduction used only when no bound
// discount is in force for the item.
type OrderItemInput struct {
	DishID            *uuid.UUID
	ComboID           *uuid.UUID
	Quantity          int
	UnitPriceOverride *int64
	DiscountPercent   *decimal.Decimal
}

// CreateOrderInput captures the payload required to open an order.
type CreateOrderInput struct {
	BranchID    uuid.UUID
	AccountID   *uuid.UUID
	SessionID   *string
	VoucherCode *string
	Note        *string
	Items       []OrderItemInput
}

// UpdateOrderItemInput re-prices a pending line. The line is resolved again
// against current catalog and discount state, with the same optional caller
// inputs as an add.
type UpdateOrderItemInput struct {
	Quantity          int
	UnitPriceOverride *int64
	DiscountPercent   *decimal.Decimal
}

// ListOrdersInput paginates a branch's orders.
type ListOrdersInput struct {
	BranchID uuid.UUID
	Page     pagination.Params
}
