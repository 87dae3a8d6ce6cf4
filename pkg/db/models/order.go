package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// Order aggregates priced lines. TotalAmount is always recomputed server-side
// from the persisted lines, never accepted from a client.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID    uuid.UUID         `gorm:"column:branch_id;type:uuid;not null"`
	AccountID   *uuid.UUID        `gorm:"column:account_id;type:uuid"`
	SessionID   *string           `gorm:"column:session_id"`
	Status      enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	TotalAmount int64             `gorm:"column:total_amount;not null;default:0"`
	DiscountID  *uuid.UUID        `gorm:"column:discount_id;type:uuid"`
	Note        *string           `gorm:"column:note"`
	Items       []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
