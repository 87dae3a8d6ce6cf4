package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// Combo bundles dishes under one price. Its availability derives from its
// member dishes unless ManualAvailability pins it.
type Combo struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID           uuid.UUID                `gorm:"column:branch_id;type:uuid;not null"`
	Name               string                   `gorm:"column:name;not null"`
	Description        *string                  `gorm:"column:description"`
	BasePrice          int64                    `gorm:"column:base_price;not null"`
	AvailabilityStatus enums.AvailabilityStatus `gorm:"column:availability_status;not null;default:'available'"`
	ManualAvailability bool                     `gorm:"column:manual_availability;not null;default:false"`
	DiscountID         *uuid.UUID               `gorm:"column:discount_id;type:uuid"`
	Discount           *Discount                `gorm:"foreignKey:DiscountID"`
	Items              []ComboItem              `gorm:"foreignKey:ComboID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// ComboItem is one (dish, quantity) line of a combo, ordered by position.
type ComboItem struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ComboID  uuid.UUID `gorm:"column:combo_id;type:uuid;not null"`
	DishID   uuid.UUID `gorm:"column:dish_id;type:uuid;not null"`
	Quantity int       `gorm:"column:quantity;not null;default:1"`
	Position int       `gorm:"column:position;not null;default:0"`
}
