package discounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

// Repository exposes persistence operations for discounts and their item bindings.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a discount repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) DiscountRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new discount.
func (r *Repository) Create(ctx context.Context, discount *models.Discount) (*models.Discount, error) {
	if discount.Status == "" {
		discount.Status = enums.DiscountStatusScheduled
	}
	if err := r.db.WithContext(ctx).Create(discount).Error; err != nil {
		return nil, err
	}
	return discount, nil
}

// Update saves the provided discount.
func (r *Repository) Update(ctx context.Context, discount *models.Discount) (*models.Discount, error) {
	if err := r.db.WithContext(ctx).Save(discount).Error; err != nil {
		return nil, err
	}
	return discount, nil
}

// Delete removes the discount row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Discount{}).Error
}

// FindByID loads a discount by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var row models.Discount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIDForUpdate loads a discount under a row lock. Callers must hold a
// transaction; replacement decisions read the row they are about to displace.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var row models.Discount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByCode loads a discount by its voucher code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	var row models.Discount
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByBranch returns a cursor page of discounts for the branch, newest first.
func (r *Repository) ListByBranch(ctx context.Context, branchID uuid.UUID, statuses []enums.DiscountStatus, limit int, cursor *pagination.Cursor) ([]models.Discount, error) {
	query := r.db.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Discount
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListReconcilable returns every discount still subject to clock-driven
// transitions. Replaced rows are terminal and skipped at the query level.
func (r *Repository) ListReconcilable(ctx context.Context) ([]models.Discount, error) {
	var rows []models.Discount
	err := r.db.WithContext(ctx).
		Where("status <> ?", enums.DiscountStatusReplaced).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus writes only the status column.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DiscountStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("id = ?", id).
		Update("status", status).Error
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

// BindDish points the dish at the discount.
func (r *Repository) BindDish(ctx context.Context, dishID, discountID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Dish{}).
		Where("id = ?", dishID).
		Update("discount_id", discountID).Error
}

// BindCombo points the combo at the discount.
func (r *Repository) BindCombo(ctx context.Context, comboID, discountID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Combo{}).
		Where("id = ?", comboID).
		Update("discount_id", discountID).Error
}

// FillBranchBindings binds every item in the branch whose current binding is
// absent or points at a discount no longer in force. Live bindings are left
// untouched: a branch-wide discount never displaces a targeted one.
func (r *Repository) FillBranchBindings(ctx context.Context, branchID, discountID uuid.UUID) (int64, error) {
	inForce := r.db.
		Model(&models.Discount{}).
		Select("id").
		Where("status IN ?", []enums.DiscountStatus{enums.DiscountStatusActive, enums.DiscountStatusExpiring})

	var total int64
	res := r.db.WithContext(ctx).
		Model(&models.Dish{}).
		Where("branch_id = ?", branchID).
		Where("discount_id IS NULL OR discount_id NOT IN (?)", inForce).
		Update("discount_id", discountID)
	if res.Error != nil {
		return 0, res.Error
	}
	total += res.RowsAffected

	res = r.db.WithContext(ctx).
		Model(&models.Combo{}).
		Where("branch_id = ?", branchID).
		Where("discount_id IS NULL OR discount_id NOT IN (?)", inForce).
		Update("discount_id", discountID)
	if res.Error != nil {
		return 0, res.Error
	}
	total += res.RowsAffected
	return total, nil
}

// ClearBindings detaches every dish and combo still pointing at the discount.
func (r *Repository) ClearBindings(ctx context.Context, discountID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Dish{}).
		Where("discount_id = ?", discountID).
		Update("discount_id", nil).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.Combo{}).
		Where("discount_id = ?", discountID).
		Update("discount_id", nil).Error
}
