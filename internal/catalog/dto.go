package catalog

import (
	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

// CreateDishInput captures the payload required to register a dish.
type CreateDishInput struct {
	BranchID    uuid.UUID
	Name        string
	Description *string
	BasePrice   int64
}

// UpdateDishInput carries partial dish updates.
type UpdateDishInput struct {
	Name        *string
	Description *string
	BasePrice   *int64
}

// ComboItemInput is one member line of a combo payload.
type ComboItemInput struct {
	DishID   uuid.UUID
	Quantity int
}

// CreateComboInput captures the payload required to register a combo.
type CreateComboInput struct {
	BranchID    uuid.UUID
	Name        string
	Description *string
	BasePrice   int64
	Items       []ComboItemInput
}

// UpdateComboInput carries partial combo header updates.
type UpdateComboInput struct {
	Name        *string
	Description *string
	BasePrice   *int64
}

// ListInput paginates a branch's catalog items.
type ListInput struct {
	BranchID uuid.UUID
	Page     pagination.Params
}

// RecomputeStats summarizes one availability resync pass.
type RecomputeStats struct {
	Examined int
	Changed  int
	Failed   int
}
