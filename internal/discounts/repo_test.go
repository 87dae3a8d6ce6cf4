package discounts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

func setupDiscountsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	discounts := `
CREATE TABLE IF NOT EXISTS discounts (
  id TEXT PRIMARY KEY,
  branch_id TEXT NOT NULL,
  code TEXT UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  new_price INTEGER NOT NULL,
  start_date DATETIME NOT NULL,
  end_date DATETIME NOT NULL,
  type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'scheduled',
  dish_id TEXT,
  combo_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	dishes := `
CREATE TABLE IF NOT EXISTS dishes (
  id TEXT PRIMARY KEY,
  branch_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  base_price INTEGER NOT NULL,
  availability_status TEXT NOT NULL DEFAULT 'available',
  discount_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	combos := `
CREATE TABLE IF NOT EXISTS combos (
  id TEXT PRIMARY KEY,
  branch_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  base_price INTEGER NOT NULL,
  availability_status TEXT NOT NULL DEFAULT 'available',
  manual_availability INTEGER NOT NULL DEFAULT 0,
  discount_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(discounts).Error)
	require.NoError(t, db.Exec(dishes).Error)
	require.NoError(t, db.Exec(combos).Error)
	return db
}

func seedDiscount(t *testing.T, db *gorm.DB, branchID uuid.UUID, status enums.DiscountStatus, createdAt time.Time) *models.Discount {
	t.Helper()

	discount := &models.Discount{
		ID:        uuid.New(),
		BranchID:  branchID,
		Name:      "seed " + status.String(),
		NewPrice:  90000,
		StartDate: createdAt,
		EndDate:   createdAt.Add(24 * time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    status,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(discount).Error)
	return discount
}

func TestRepositoryListByBranchFiltersAndPaginates(t *testing.T) {
	db := setupDiscountsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	branchID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seedDiscount(t, db, branchID, enums.DiscountStatusExpired, base)
	older := seedDiscount(t, db, branchID, enums.DiscountStatusActive, base.Add(time.Hour))
	newer := seedDiscount(t, db, branchID, enums.DiscountStatusActive, base.Add(2*time.Hour))
	seedDiscount(t, db, uuid.New(), enums.DiscountStatusActive, base.Add(3*time.Hour))

	rows, err := repo.ListByBranch(ctx, branchID, []enums.DiscountStatus{enums.DiscountStatusActive}, 10, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].ID)
	assert.Equal(t, older.ID, rows[1].ID)

	rows, err = repo.ListByBranch(ctx, branchID, nil, 10, &pagination.Cursor{
		CreatedAt: newer.CreatedAt,
		ID:        newer.ID,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, older.ID, rows[0].ID)
}

func TestRepositoryFillBranchBindingsSkipsLiveOnes(t *testing.T) {
	db := setupDiscountsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	branchID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	live := seedDiscount(t, db, branchID, enums.DiscountStatusActive, base)
	dead := seedDiscount(t, db, branchID, enums.DiscountStatusExpired, base)
	incoming := seedDiscount(t, db, branchID, enums.DiscountStatusActive, base.Add(time.Hour))

	pinned := &models.Dish{ID: uuid.New(), BranchID: branchID, Name: "pho", BasePrice: 100000, DiscountID: &live.ID}
	stale := &models.Dish{ID: uuid.New(), BranchID: branchID, Name: "bun cha", BasePrice: 80000, DiscountID: &dead.ID}
	unbound := &models.Combo{ID: uuid.New(), BranchID: branchID, Name: "lunch set", BasePrice: 150000}
	require.NoError(t, db.Create(pinned).Error)
	require.NoError(t, db.Create(stale).Error)
	require.NoError(t, db.Create(unbound).Error)

	bound, err := repo.FillBranchBindings(ctx, branchID, incoming.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, bound)

	var got models.Dish
	require.NoError(t, db.First(&got, "id = ?", pinned.ID).Error)
	require.NotNil(t, got.DiscountID)
	assert.Equal(t, live.ID, *got.DiscountID)

	got = models.Dish{}
	require.NoError(t, db.First(&got, "id = ?", stale.ID).Error)
	require.NotNil(t, got.DiscountID)
	assert.Equal(t, incoming.ID, *got.DiscountID)

	var gotCombo models.Combo
	require.NoError(t, db.First(&gotCombo, "id = ?", unbound.ID).Error)
	require.NotNil(t, gotCombo.DiscountID)
	assert.Equal(t, incoming.ID, *gotCombo.DiscountID)
}

func TestRepositoryClearBindings(t *testing.T) {
	db := setupDiscountsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	branchID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	discount := seedDiscount(t, db, branchID, enums.DiscountStatusExpired, base)
	other := seedDiscount(t, db, branchID, enums.DiscountStatusActive, base)

	dish := &models.Dish{ID: uuid.New(), BranchID: branchID, Name: "pho", BasePrice: 100000, DiscountID: &discount.ID}
	kept := &models.Dish{ID: uuid.New(), BranchID: branchID, Name: "bun cha", BasePrice: 80000, DiscountID: &other.ID}
	combo := &models.Combo{ID: uuid.New(), BranchID: branchID, Name: "lunch set", BasePrice: 150000, DiscountID: &discount.ID}
	require.NoError(t, db.Create(dish).Error)
	require.NoError(t, db.Create(kept).Error)
	require.NoError(t, db.Create(combo).Error)

	require.NoError(t, repo.ClearBindings(ctx, discount.ID))

	var got models.Dish
	require.NoError(t, db.First(&got, "id = ?", dish.ID).Error)
	assert.Nil(t, got.DiscountID)

	got = models.Dish{}
	require.NoError(t, db.First(&got, "id = ?", kept.ID).Error)
	require.NotNil(t, got.DiscountID)
	assert.Equal(t, other.ID, *got.DiscountID)

	var gotCombo models.Combo
	require.NoError(t, db.First(&gotCombo, "id = ?", combo.ID).Error)
	assert.Nil(t, gotCombo.DiscountID)
}
