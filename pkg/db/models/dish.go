package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// Dish is a sellable menu item. DiscountID is the single optional binding to
// the discount currently in effect for it.
type Dish struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID           uuid.UUID                `gorm:"column:branch_id;type:uuid;not null"`
	Name               string                   `gorm:"column:name;not null"`
	Description        *string                  `gorm:"column:description"`
	BasePrice          int64                    `gorm:"column:base_price;not null"`
	AvailabilityStatus enums.AvailabilityStatus `gorm:"column:availability_status;not null;default:'available'"`
	DiscountID         *uuid.UUID               `gorm:"column:discount_id;type:uuid"`
	Discount           *Discount                `gorm:"foreignKey:DiscountID"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
