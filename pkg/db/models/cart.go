package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// Cart accumulates priced lines ahead of an order. Ownership is exactly one of
// AccountID (signed-in) or SessionID (anonymous). Converted carts are kept for
// the audit trail.
type Cart struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID    uuid.UUID        `gorm:"column:branch_id;type:uuid;not null"`
	AccountID   *uuid.UUID       `gorm:"column:account_id;type:uuid"`
	SessionID   *string          `gorm:"column:session_id"`
	Status      enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	ValidUntil  time.Time        `gorm:"column:valid_until;not null"`
	TotalAmount int64            `gorm:"column:total_amount;not null;default:0"`
	ConvertedAt *time.Time       `gorm:"column:converted_at"`
	Items       []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem carries an already-resolved price snapshot; conversion copies it
// onto an OrderItem 1:1 without re-resolution.
type CartItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID  `gorm:"column:cart_id;type:uuid;not null"`
	DishID         *uuid.UUID `gorm:"column:dish_id;type:uuid"`
	ComboID        *uuid.UUID `gorm:"column:combo_id;type:uuid"`
	Name           string     `gorm:"column:name;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPrice      int64      `gorm:"column:unit_price;not null"`
	TotalPrice     int64      `gorm:"column:total_price;not null"`
	DiscountID     *uuid.UUID `gorm:"column:discount_id;type:uuid"`
	DiscountAmount int64      `gorm:"column:discount_amount;not null;default:0"`
	FinalPrice     *int64     `gorm:"column:final_price"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePrice is what the line contributes to the cart total.
func (i CartItem) EffectivePrice() int64 {
	if i.FinalPrice != nil {
		return *i.FinalPrice
	}
	return i.TotalPrice
}
