package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

// OrderRepository defines the persistence surface required by the order service.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByBranch(ctx context.Context, branchID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	UpdateTotal(ctx context.Context, id uuid.UUID, total int64) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error

	CreateItem(ctx context.Context, item *models.OrderItem) (*models.OrderItem, error)
	UpdateItem(ctx context.Context, item *models.OrderItem) (*models.OrderItem, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	FindItemForUpdate(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderItem, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
}
