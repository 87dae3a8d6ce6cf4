package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	pkgerrors "github.com/minhtran-dev/savora-backend/pkg/errors"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
	"github.com/minhtran-dev/savora-backend/pkg/outbox"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes catalog management and the availability cascade.
type Service interface {
	CreateDish(ctx context.Context, input CreateDishInput) (*models.Dish, error)
	UpdateDish(ctx context.Context, id uuid.UUID, input UpdateDishInput) (*models.Dish, error)
	GetDish(ctx context.Context, id uuid.UUID) (*models.Dish, error)
	ListDishes(ctx context.Context, input ListInput) ([]models.Dish, string, error)
	DeleteDish(ctx context.Context, id uuid.UUID) error
	SetDishAvailability(ctx context.Context, id uuid.UUID, status enums.AvailabilityStatus, actor *outbox.ActorRef) error

	CreateCombo(ctx context.Context, input CreateComboInput) (*models.Combo, error)
	UpdateCombo(ctx context.Context, id uuid.UUID, input UpdateComboInput) (*models.Combo, error)
	GetCombo(ctx context.Context, id uuid.UUID) (*models.Combo, error)
	ListCombos(ctx context.Context, input ListInput) ([]models.Combo, string, error)
	DeleteCombo(ctx context.Context, id uuid.UUID) error
	ReplaceComboItems(ctx context.Context, comboID uuid.UUID, items []ComboItemInput, actor *outbox.ActorRef) (*models.Combo, error)
	SetComboAvailability(ctx context.Context, id uuid.UUID, status enums.AvailabilityStatus, actor *outbox.ActorRef) error
	ResetComboAvailability(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) error
	RecomputeAll(ctx context.Context) (RecomputeStats, error)
}

type service struct {
	repo   CatalogRepository
	tx     txRunner
	events eventEmitter
	logg   *logger.Logger
}

// NewService builds a catalog service backed by the provided stack.
func NewService(repo CatalogRepository, tx txRunner, events eventEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{repo: repo, tx: tx, events: events, logg: logg}, nil
}

// CreateDish registers a dish as available.
func (s *service) CreateDish(ctx context.Context, input CreateDishInput) (*models.Dish, error) {
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dish name is required")
	}
	if input.BasePrice < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dish price must be non-negative")
	}
	dish := &models.Dish{
		BranchID:           input.BranchID,
		Name:               strings.TrimSpace(input.Name),
		Description:        input.Description,
		BasePrice:          input.BasePrice,
		AvailabilityStatus: enums.AvailabilityStatusAvailable,
	}
	created, err := s.repo.CreateDish(ctx, dish)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dish")
	}
	return created, nil
}

// UpdateDish edits dish header fields.
func (s *service) UpdateDish(ctx context.Context, id uuid.UUID, input UpdateDishInput) (*models.Dish, error) {
	var updated *models.Dish
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dish, err := repo.FindDishForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dish not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dish")
		}
		if input.Name != nil {
			if strings.TrimSpace(*input.Name) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "dish name is required")
			}
			dish.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			dish.Description = input.Description
		}
		if input.BasePrice != nil {
			if *input.BasePrice < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "dish price must be non-negative")
			}
			dish.BasePrice = *input.BasePrice
		}
		updated, err = repo.UpdateDish(ctx, dish)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update dish")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetDish loads a dish with its bound discount.
func (s *service) GetDish(ctx context.Context, id uuid.UUID) (*models.Dish, error) {
	dish, err := s.repo.FindDishByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dish not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dish")
	}
	return dish, nil
}

// ListDishes returns a cursor page of a branch's dishes.
func (s *service) ListDishes(ctx context.Context, input ListInput) ([]models.Dish, string, error) {
	if input.BranchID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Page.Limit)
	rows, err := s.repo.ListDishes(ctx, input.BranchID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dishes")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// DeleteDish removes a dish.
func (s *service) DeleteDish(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteDish(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete dish")
	}
	return nil
}

// SetDishAvailability flips a dish's availability and, in the same
// transaction, recomputes every unpinned combo containing it. A menu never
// shows a sellable combo whose member just went dark.
func (s *service) SetDishAvailability(ctx context.Context, id uuid.UUID, status enums.AvailabilityStatus, actor *outbox.ActorRef) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown availability status %q", status))
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dish, err := repo.FindDishForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dish not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dish")
		}
		if dish.AvailabilityStatus == status {
			return nil
		}
		if err := repo.UpdateDishAvailability(ctx, dish.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update dish availability")
		}
		combos, err := repo.ListCombosContainingDish(ctx, dish.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list combos for dish")
		}
		for i := range combos {
			if _, err := s.recomputeCombo(ctx, tx, repo, &combos[i], actor); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) validateComboItems(items []ComboItemInput) error {
	seen := map[uuid.UUID]struct{}{}
	for _, item := range items {
		if item.DishID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "combo item dish id is required")
		}
		if item.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "combo item quantity must be at least 1")
		}
		if _, dup := seen[item.DishID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "combo lists the same dish twice")
		}
		seen[item.DishID] = struct{}{}
	}
	return nil
}

func comboItemRows(items []ComboItemInput) []models.ComboItem {
	rows := make([]models.ComboItem, 0, len(items))
	for i, item := range items {
		rows = append(rows, models.ComboItem{
			DishID:   item.DishID,
			Quantity: item.Quantity,
			Position: i,
		})
	}
	return rows
}

// CreateCombo registers a combo; its initial availability is derived from the
// member dishes.
func (s *service) CreateCombo(ctx context.Context, input CreateComboInput) (*models.Combo, error) {
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "combo name is required")
	}
	if input.BasePrice < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "combo price must be non-negative")
	}
	if err := s.validateComboItems(input.Items); err != nil {
		return nil, err
	}

	var created *models.Combo
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var memberStatuses []enums.AvailabilityStatus
		for _, item := range input.Items {
			dish, err := repo.FindDishForUpdate(ctx, item.DishID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "combo member dish not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member dish")
			}
			if dish.BranchID != input.BranchID {
				return pkgerrors.New(pkgerrors.CodeValidation, "combo member belongs to another branch")
			}
			memberStatuses = append(memberStatuses, dish.AvailabilityStatus)
		}
		combo := &models.Combo{
			BranchID:           input.BranchID,
			Name:               strings.TrimSpace(input.Name),
			Description:        input.Description,
			BasePrice:          input.BasePrice,
			AvailabilityStatus: DeriveComboAvailability(memberStatuses),
			Items:              comboItemRows(input.Items),
		}
		var err error
		created, err = repo.CreateCombo(ctx, combo)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create combo")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateCombo edits combo header fields.
func (s *service) UpdateCombo(ctx context.Context, id uuid.UUID, input UpdateComboInput) (*models.Combo, error) {
	var updated *models.Combo
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		combo, err := repo.FindComboForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "combo not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load combo")
		}
		if input.Name != nil {
			if strings.TrimSpace(*input.Name) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "combo name is required")
			}
			combo.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			combo.Description = input.Description
		}
		if input.BasePrice != nil {
			if *input.BasePrice < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "combo price must be non-negative")
			}
			combo.BasePrice = *input.BasePrice
		}
		updated, err = repo.UpdateCombo(ctx, combo)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update combo")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetCombo loads a combo with members and bound discount.
func (s *service) GetCombo(ctx context.Context, id uuid.UUID) (*models.Combo, error) {
	combo, err := s.repo.FindComboByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "combo not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load combo")
	}
	return combo, nil
}

// ListCombos returns a cursor page of a branch's combos.
func (s *service) ListCombos(ctx context.Context, input ListInput) ([]models.Combo, string, error) {
	if input.BranchID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Page.Limit)
	rows, err := s.repo.ListCombos(ctx, input.BranchID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list combos")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// DeleteCombo removes a combo and its member rows.
func (s *service) DeleteCombo(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteCombo(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete combo")
	}
	return nil
}

// ReplaceComboItems swaps the combo's membership and recomputes availability
// in the same transaction.
func (s *service) ReplaceComboItems(ctx context.Context, comboID uuid.UUID, items []ComboItemInput, actor *outbox.ActorRef) (*models.Combo, error) {
	if err := s.validateComboItems(items); err != nil {
		return nil, err
	}
	var result *models.Combo
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		combo, err := repo.FindComboForUpdate(ctx, comboID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "combo not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load combo")
		}
		for _, item := range items {
			dish, err := repo.FindDishForUpdate(ctx, item.DishID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "combo member dish not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member dish")
			}
			if dish.BranchID != combo.BranchID {
				return pkgerrors.New(pkgerrors.CodeValidation, "combo member belongs to another branch")
			}
		}
		if err := repo.ReplaceComboItems(ctx, comboID, comboItemRows(items)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace combo items")
		}
		if _, err := s.recomputeCombo(ctx, tx, repo, combo, actor); err != nil {
			return err
		}
		result = combo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetComboAvailability pins the combo's availability; the cascade skips it
// until the pin is reset.
func (s *service) SetComboAvailability(ctx context.Context, id uuid.UUID, status enums.AvailabilityStatus, actor *outbox.ActorRef) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown availability status %q", status))
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		combo, err := repo.FindComboForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "combo not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load combo")
		}
		changed := combo.AvailabilityStatus != status
		if err := repo.UpdateComboAvailability(ctx, combo.ID, status, true); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pin combo availability")
		}
		if changed {
			if err := s.emitAvailabilityChanged(ctx, tx, combo, status, actor); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetComboAvailability clears a manual pin and immediately re-derives the
// status from the members.
func (s *service) ResetComboAvailability(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		combo, err := repo.FindComboForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "combo not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load combo")
		}
		statuses, err := repo.MemberStatuses(ctx, combo.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member statuses")
		}
		derived := DeriveComboAvailability(statuses)
		changed := combo.AvailabilityStatus != derived
		if err := repo.UpdateComboAvailability(ctx, combo.ID, derived, false); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update combo availability")
		}
		if changed {
			combo.AvailabilityStatus = derived
			if err := s.emitAvailabilityChanged(ctx, tx, combo, derived, actor); err != nil {
				return err
			}
		}
		return nil
	})
}

// recomputeCombo re-derives availability for an unpinned combo and writes only
// on change, emitting the change event alongside.
func (s *service) recomputeCombo(ctx context.Context, tx *gorm.DB, repo CatalogRepository, combo *models.Combo, actor *outbox.ActorRef) (bool, error) {
	if combo.ManualAvailability {
		return false, nil
	}
	statuses, err := repo.MemberStatuses(ctx, combo.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member statuses")
	}
	derived := DeriveComboAvailability(statuses)
	if derived == combo.AvailabilityStatus {
		return false, nil
	}
	if err := repo.UpdateComboAvailability(ctx, combo.ID, derived, false); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update combo availability")
	}
	combo.AvailabilityStatus = derived
	if err := s.emitAvailabilityChanged(ctx, tx, combo, derived, actor); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) emitAvailabilityChanged(ctx context.Context, tx *gorm.DB, combo *models.Combo, status enums.AvailabilityStatus, actor *outbox.ActorRef) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventComboAvailabilityChanged,
		AggregateType: enums.AggregateCombo,
		AggregateID:   combo.ID,
		Actor:         actor,
		Data: map[string]any{
			"combo_id":  combo.ID,
			"branch_id": combo.BranchID,
			"status":    status,
		},
		Version: 1,
	}
	if err := s.events.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit combo event")
	}
	return nil
}

// RecomputeAll walks every unpinned combo and re-derives availability. Each
// combo runs in its own transaction so one bad row cannot block the sweep.
func (s *service) RecomputeAll(ctx context.Context) (RecomputeStats, error) {
	var stats RecomputeStats
	combos, err := s.repo.ListUnpinnedCombos(ctx)
	if err != nil {
		return stats, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list combos")
	}
	var errs error
	for i := range combos {
		combo := combos[i]
		stats.Examined++
		var changed bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			locked, err := repo.FindComboForUpdate(ctx, combo.ID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			changed, err = s.recomputeCombo(ctx, tx, repo, locked, nil)
			return err
		})
		if err != nil {
			stats.Failed++
			errs = multierr.Append(errs, fmt.Errorf("combo %s: %w", combo.ID, err))
			continue
		}
		if changed {
			stats.Changed++
		}
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"examined": stats.Examined,
			"changed":  stats.Changed,
			"failed":   stats.Failed,
		})
		s.logg.Info(logCtx, "combo availability resync complete")
	}
	return stats, errs
}
