package discounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

// DiscountRepository defines the persistence surface required by the discount service.
type DiscountRepository interface {
	WithTx(tx *gorm.DB) DiscountRepository
	Create(ctx context.Context, discount *models.Discount) (*models.Discount, error)
	Update(ctx context.Context, discount *models.Discount) (*models.Discount, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
	ListByBranch(ctx context.Context, branchID uuid.UUID, statuses []enums.DiscountStatus, limit int, cursor *pagination.Cursor) ([]models.Discount, error)
	ListReconcilable(ctx context.Context) ([]models.Discount, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DiscountStatus) error

	FindDishForUpdate(ctx context.Context, id uuid.UUID) (*models.Dish, error)
	FindComboForUpdate(ctx context.Context, id uuid.UUID) (*models.Combo, error)
	BindDish(ctx context.Context, dishID, discountID uuid.UUID) error
	BindCombo(ctx context.Context, comboID, discountID uuid.UUID) error
	FillBranchBindings(ctx context.Context, branchID, discountID uuid.UUID) (int64, error)
	ClearBindings(ctx context.Context, discountID uuid.UUID) error
}
