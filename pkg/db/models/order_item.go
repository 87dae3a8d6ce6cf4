package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// OrderItem is the frozen price snapshot for one dish or combo on an order.
// Once written, FinalPrice is a point-in-time financial record; later discount
// transitions never touch it.
type OrderItem struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	DishID         *uuid.UUID            `gorm:"column:dish_id;type:uuid"`
	ComboID        *uuid.UUID            `gorm:"column:combo_id;type:uuid"`
	Name           string                `gorm:"column:name;not null"`
	Quantity       int                   `gorm:"column:quantity;not null"`
	UnitPrice      int64                 `gorm:"column:unit_price;not null"`
	TotalPrice     int64                 `gorm:"column:total_price;not null"`
	DiscountID     *uuid.UUID            `gorm:"column:discount_id;type:uuid"`
	DiscountAmount int64                 `gorm:"column:discount_amount;not null;default:0"`
	FinalPrice     *int64                `gorm:"column:final_price"`
	Status         enums.OrderItemStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePrice is what the line contributes to the order total.
func (i OrderItem) EffectivePrice() int64 {
	if i.FinalPrice != nil {
		return *i.FinalPrice
	}
	return i.TotalPrice
}
