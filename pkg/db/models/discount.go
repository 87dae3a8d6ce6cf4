package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// Discount is a time-boxed price override. It targets at most one dish or
// combo; both targets nil means the discount is branch-wide.
type Discount struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID    uuid.UUID            `gorm:"column:branch_id;type:uuid;not null"`
	Code        *string              `gorm:"column:code;uniqueIndex"`
	Name        string               `gorm:"column:name;not null"`
	Description *string              `gorm:"column:description"`
	NewPrice    int64                `gorm:"column:new_price;not null"`
	StartDate   time.Time            `gorm:"column:start_date;not null"`
	EndDate     time.Time            `gorm:"column:end_date;not null"`
	Type        enums.DiscountType   `gorm:"column:type;not null"`
	Status      enums.DiscountStatus `gorm:"column:status;not null;default:'scheduled'"`
	DishID      *uuid.UUID           `gorm:"column:dish_id;type:uuid"`
	ComboID     *uuid.UUID           `gorm:"column:combo_id;type:uuid"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// Scoped reports whether the discount declares an explicit target item.
func (d Discount) Scoped() bool {
	return d.DishID != nil || d.ComboID != nil
}

// Window reports whether now falls inside the discount's date range.
func (d Discount) Window(now time.Time) bool {
	return now.After(d.StartDate) && now.Before(d.EndDate)
}
