package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

// CatalogRepository defines the persistence surface required by the catalog service.
type CatalogRepository interface {
	WithTx(tx *gorm.DB) CatalogRepository

	CreateDish(ctx context.Context, dish *models.Dish) (*models.Dish, error)
	UpdateDish(ctx context.Context, dish *models.Dish) (*models.Dish, error)
	DeleteDish(ctx context.Context, id uuid.UUID) error
	FindDishByID(ctx context.Context, id uuid.UUID) (*models.Dish, error)
	FindDishForUpdate(ctx context.Context, id uuid.UUID) (*models.Dish, error)
	ListDishes(ctx context.Context, branchID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Dish, error)
	UpdateDishAvailability(ctx context.Context, id uuid.UUID, status enums.AvailabilityStatus) error

	CreateCombo(ctx context.Context, combo *models.Combo) (*models.Combo, error)
	UpdateCombo(ctx context.Context, combo *models.Combo) (*models.Combo, error)
	DeleteCombo(ctx context.Context, id uuid.UUID) error
	FindComboByID(ctx context.Context, id uuid.UUID) (*models.Combo, error)
	FindComboForUpdate(ctx context.Context, id uuid.UUID) (*models.Combo, error)
	ListCombos(ctx context.Context, branchID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Combo, error)
	ListCombosContainingDish(ctx context.Context, dishID uuid.UUID) ([]models.Combo, error)
	ListUnpinnedCombos(ctx context.Context) ([]models.Combo, error)
	ReplaceComboItems(ctx context.Context, comboID uuid.UUID, items []models.ComboItem) error
	MemberStatuses(ctx context.Context, comboID uuid.UUID) ([]enums.AvailabilityStatus, error)
	UpdateComboAvailability(ctx context.Context, id uuid.UUID, status enums.AvailabilityStatus, manual bool) error
}
