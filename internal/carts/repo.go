package carts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.Status == "" {
		cart.Status = enums.CartStatusActive
	}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindActiveByOwner loads the latest active cart for the owner in the branch.
func (r *Repository) FindActiveByOwner(ctx context.Context, branchID uuid.UUID, owner Owner) (*models.Cart, error) {
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("branch_id = ? AND status = ?", branchID, enums.CartStatusActive).
		Order("created_at DESC")
	if owner.AccountID != nil {
		query = query.Where("account_id = ?", *owner.AccountID)
	} else {
		query = query.Where("session_id = ?", *owner.SessionID)
	}
	var row models.Cart
	if err := query.First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIDForUpdate loads the cart header under a row lock.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var row models.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateStatus writes the status and, when provided, the conversion timestamp.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CartStatus, convertedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if convertedAt != nil {
		updates["converted_at"] = *convertedAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateTotal writes only the total column.
func (r *Repository) UpdateTotal(ctx context.Context, id uuid.UUID, total int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Update("total_amount", total).Error
}

// ExpireStale flips every active cart past its validity window to expired and
// reports how many were swept.
func (r *Repository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("status = ? AND valid_until < ?", enums.CartStatusActive, now).
		Update("status", enums.CartStatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// CreateItem inserts a new cart line.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem saves the provided cart line.
func (r *Repository) UpdateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes a cart line.
func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CartItem{}).Error
}

// FindItemForUpdate loads a line scoped to its cart under a row lock.
func (r *Repository) FindItemForUpdate(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var row models.CartItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListItems returns the lines belonging to a cart.
func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
