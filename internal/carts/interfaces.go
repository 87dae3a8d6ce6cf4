package carts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindActiveByOwner(ctx context.Context, branchID uuid.UUID, owner Owner) (*models.Cart, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CartStatus, convertedAt *time.Time) error
	UpdateTotal(ctx context.Context, id uuid.UUID, total int64) error
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	UpdateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	FindItemForUpdate(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
}
