package discounts

import (
	"time"

	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/enums"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

// CreateDiscountInput captures the payload required to register a discount.
type CreateDiscountInput struct {
	BranchID    uuid.UUID
	Code        *string
	Name        string
	Description *string
	NewPrice    int64
	StartDate   time.Time
	EndDate     time.Time
	Type        enums.DiscountType
	DishID      *uuid.UUID
	ComboID     *uuid.UUID
}

// UpdateDiscountInput carries partial field updates. Nil pointers leave the
// stored value untouched.
type UpdateDiscountInput struct {
	Name        *string
	Description *string
	Code        *string
	NewPrice    *int64
	StartDate   *time.Time
	EndDate     *time.Time
}

// ListDiscountsInput filters and paginates a branch's discounts.
type ListDiscountsInput struct {
	BranchID uuid.UUID
	Statuses []enums.DiscountStatus
	Page     pagination.Params
}

// ApplyResult reports what an explicit application changed.
type ApplyResult struct {
	DiscountID  uuid.UUID            `json:"discount_id"`
	Status      enums.DiscountStatus `json:"status"`
	ReplacedIDs []uuid.UUID          `json:"replaced_ids"`
	BoundItems  int64                `json:"bound_items"`
}

// ReconcileStats summarizes one reconciliation pass.
type ReconcileStats struct {
	Examined     int
	Transitioned int
	Expired      int
	Failed       int
}
