package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

// Repository exposes persistence operations for dishes and combos.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CatalogRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreateDish inserts a new dish.
func (r *Repository) CreateDish(ctx context.Context, dish *models.Dish) (*models.Dish, error) {
	if dish.AvailabilityStatus == "" {
		dish.AvailabilityStatus = enums.AvailabilityStatusAvailable
	}
	if err := r.db.WithContext(ctx).Create(dish).Error; err != nil {
		return nil, err
	}
	return dish, nil
}

// UpdateDish saves the provided dish.
func (r *Repository) UpdateDish(ctx context.Context, dish *models.Dish) (*models.Dish, error) {
	if err := r.db.WithContext(ctx).Save(dish).Error; err != nil {
		return nil, err
	}
	return dish, nil
}

// DeleteDish removes the dish row.
func (r *Repository) DeleteDish(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Dish{}).Error
}

// FindDishByID loads a dish with its bound discount.
func (r *Repository) FindDishByID(ctx context.Context, id uuid.UUID) (*models.Dish, error) {
	var row models.Dish
	err := r.db.WithContext(ctx).
		Preload("Discount").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindDishForUpdate loads a dish under a row lock.
func (r *Repository) FindDishForUpdate(ctx context.Context, id uuid.UUID) (*models.Dish, error) {
	var row models.Dish
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListDishes returns a cursor page of a branch's dishes, newest first.
func (r *Repository) ListDishes(ctx context.Context, branchID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Dish, error) {
	query := r.db.WithContext(ctx).
		Preload("Discount").
		Where("branch_id = ?", branchID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Dish
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateDishAvailability writes only the availability column.
func (r *Repository) UpdateDishAvailability(ctx context.Context, id uuid.UUID, status enums.AvailabilityStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Dish{}).
		Where("id = ?", id).
		Update("availability_status", status).Error
}

// CreateCombo inserts a combo together with its member rows.
func (r *Repository) CreateCombo(ctx context.Context, combo *models.Combo) (*models.Combo, error) {
	if combo.AvailabilityStatus == "" {
		combo.AvailabilityStatus = enums.AvailabilityStatusAvailable
	}
	if err := r.db.WithContext(ctx).Create(combo).Error; err != nil {
		return nil, err
	}
	return combo, nil
}

// UpdateCombo saves the combo header, leaving member rows untouched.
func (r *Repository) UpdateCombo(ctx context.Context, combo *models.Combo) (*models.Combo, error) {
	if err := r.db.WithContext(ctx).Omit("Items").Save(combo).Error; err != nil {
		return nil, err
	}
	return combo, nil
}

// DeleteCombo removes the combo row; member rows cascade.
func (r *Repository) DeleteCombo(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Combo{}).Error
}

// FindComboByID loads a combo with members and bound discount.
func (r *Repository) FindComboByID(ctx context.Context, id uuid.UUID) (*models.Combo, error) {
	var row models.Combo
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Discount").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindComboForUpdate loads a combo under a row lock.
func (r *Repository) FindComboForUpdate(ctx context.Context, id uuid.UUID) (*models.Combo, error) {
	var row models.Combo
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListCombos returns a cursor page of a branch's combos, newest first.
func (r *Repository) ListCombos(ctx context.Context, branchID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Combo, error) {
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Discount").
		Where("branch_id = ?", branchID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Combo
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCombosContainingDish returns every combo with a member row for the dish.
func (r *Repository) ListCombosContainingDish(ctx context.Context, dishID uuid.UUID) ([]models.Combo, error) {
	var rows []models.Combo
	err := r.db.WithContext(ctx).
		Joins("JOIN combo_items ON combo_items.combo_id = combos.id").
		Where("combo_items.dish_id = ?", dishID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListUnpinnedCombos returns every combo whose availability follows its members.
func (r *Repository) ListUnpinnedCombos(ctx context.Context) ([]models.Combo, error) {
	var rows []models.Combo
	err := r.db.WithContext(ctx).
		Where("manual_availability = ?", false).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceComboItems atomically replaces the member rows of a combo.
func (r *Repository) ReplaceComboItems(ctx context.Context, comboID uuid.UUID, items []models.ComboItem) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("combo_id = ?", comboID).Delete(&models.ComboItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ComboID = comboID
	}
	return tx.Create(&items).Error
}

// MemberStatuses returns the availability of every dish the combo contains.
func (r *Repository) MemberStatuses(ctx context.Context, comboID uuid.UUID) ([]enums.AvailabilityStatus, error) {
	var statuses []enums.AvailabilityStatus
	err := r.db.WithContext(ctx).
		Model(&models.Dish{}).
		Joins("JOIN combo_items ON combo_items.dish_id = dishes.id").
		Where("combo_items.combo_id = ?", comboID).
		Pluck("dishes.availability_status", &statuses).Error
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

// UpdateComboAvailability writes the availability and pin columns.
func (r *Repository) UpdateComboAvailability(ctx context.Context, id uuid.UUID, status enums.AvailabilityStatus, manual bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Combo{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"availability_status": status,
			"manual_availability": manual,
		}).Error
}
