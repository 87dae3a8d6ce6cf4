package discounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db"
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

// Service exposes the discount lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateDiscountInput) (*models.Discount, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateDiscountInput) (*models.Discount, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	List(ctx context.Context, input ListDiscountsInput) ([]models.Discount, string, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Apply(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*ApplyResult, error)
	ResolveVoucher(ctx context.Context, code string, branchID uuid.UUID) (*models.Discount, error)
	Reconcile(ctx context.Context, now time.Time) (ReconcileStats, error)
}

type service struct {
	repo   DiscountRepository
	tx     txRunner
	events eventEmitter
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds a discount service backed by the provided stack.
func NewService(repo DiscountRepository, tx txRunner, events eventEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		events: events,
		logg:   logg,
		now:    time.Now,
	}, nil
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end dates are required")
	}
	if !end.After(start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end date must be after start date")
	}
	return nil
}

func (s *service) validateCreate(input CreateDiscountInput) error {
	if input.BranchID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount name is required")
	}
	if input.NewPrice < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount price must be non-negative")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown discount type %q", input.Type))
	}
	if err := validateWindow(input.StartDate, input.EndDate); err != nil {
		return err
	}
	hasCode := input.Code != nil && strings.TrimSpace(*input.Code) != ""
	if input.Type.RequiresCode() && !hasCode {
		return pkgerrors.New(pkgerrors.CodeValidation, "voucher discounts require a code")
	}
	if !input.Type.RequiresCode() && hasCode {
		return pkgerrors.New(pkgerrors.CodeValidation, "only voucher discounts carry a code")
	}
	if input.DishID != nil && input.ComboID != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount targets at most one item")
	}
	return nil
}

// Create registers a discount. A discount whose window is already open is
// applied inside the same transaction, so its bindings are visible as soon as
// the row is.
func (s *service) Create(ctx context.Context, input CreateDiscountInput) (*models.Discount, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}
	now := s.now()
	discount := &models.Discount{
		BranchID:    input.BranchID,
		Code:        input.Code,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		NewPrice:    input.NewPrice,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Type:        input.Type,
		DishID:      input.DishID,
		ComboID:     input.ComboID,
	}
	discount.Status = DeriveStatus(*discount, now)
	if discount.Status == enums.DiscountStatusExpired {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount window has already passed")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.verifyTarget(ctx, repo, discount); err != nil {
			return err
		}
		created, err := repo.Create(ctx, discount)
		if err != nil {
			if db.IsUniqueViolation(err, "discounts_code_key") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "voucher code already in use")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount")
		}
		discount = created
		if discount.Status.InForce() && discount.Type == enums.DiscountTypeBranch {
			if _, err := s.applyLocked(ctx, tx, repo, discount, nil, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return discount, nil
}

func (s *service) verifyTarget(ctx context.Context, repo DiscountRepository, discount *models.Discount) error {
	if discount.DishID != nil {
		dish, err := repo.FindDishForUpdate(ctx, *discount.DishID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "target dish not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load target dish")
		}
		if dish.BranchID != discount.BranchID {
			return pkgerrors.New(pkgerrors.CodeValidation, "target dish belongs to another branch")
		}
	}
	if discount.ComboID != nil {
		combo, err := repo.FindComboForUpdate(ctx, *discount.ComboID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "target combo not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load target combo")
		}
		if combo.BranchID != discount.BranchID {
			return pkgerrors.New(pkgerrors.CodeValidation, "target combo belongs to another branch")
		}
	}
	return nil
}

// Update edits an existing discount. Replaced discounts are frozen records
// and reject edits.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateDiscountInput) (*models.Discount, error) {
	var updated *models.Discount
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		discount, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount")
		}
		if discount.Status.Terminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "replaced discounts cannot be edited")
		}
		if input.Name != nil {
			if strings.TrimSpace(*input.Name) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "discount name is required")
			}
			discount.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			discount.Description = input.Description
		}
		if input.Code != nil {
			if !discount.Type.RequiresCode() {
				return pkgerrors.New(pkgerrors.CodeValidation, "only voucher discounts carry a code")
			}
			if strings.TrimSpace(*input.Code) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "voucher code cannot be empty")
			}
			discount.Code = input.Code
		}
		if input.NewPrice != nil {
			if *input.NewPrice < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "discount price must be non-negative")
			}
			discount.NewPrice = *input.NewPrice
		}
		if input.StartDate != nil {
			discount.StartDate = *input.StartDate
		}
		if input.EndDate != nil {
			discount.EndDate = *input.EndDate
		}
		if err := validateWindow(discount.StartDate, discount.EndDate); err != nil {
			return err
		}

		now := s.now()
		next := DeriveStatus(*discount, now)
		if next == enums.DiscountStatusExpired && discount.Status != enums.DiscountStatusExpired {
			if err := repo.ClearBindings(ctx, discount.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear discount bindings")
			}
		}
		discount.Status = next

		updated, err = repo.Update(ctx, discount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update discount")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get loads a single discount.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount")
	}
	return discount, nil
}

// List returns a cursor page of discounts for a branch plus the next cursor.
func (s *service) List(ctx context.Context, input ListDiscountsInput) ([]models.Discount, string, error) {
	if input.BranchID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Page.Limit)
	rows, err := s.repo.ListByBranch(ctx, input.BranchID, input.Statuses, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list discounts")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// Delete removes a discount and detaches every item bound to it in one
// transaction.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByIDForUpdate(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount")
		}
		if err := repo.ClearBindings(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear discount bindings")
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete discount")
		}
		return nil
	})
}

// Apply binds the discount to its targets: predecessors on the same targets
// are marked replaced and the targets rebound, all in one transaction. A
// scheduled discount may be applied early to reserve the binding.
func (s *service) Apply(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*ApplyResult, error) {
	var result *ApplyResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		discount, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount")
		}
		result, err = s.applyLocked(ctx, tx, repo, discount, actor, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyLocked performs replace-then-bind for a discount already locked inside
// the caller's transaction. A scheduled discount binds too: the slot is
// claimed ahead of activation and the displaced predecessor stays replaced.
func (s *service) applyLocked(ctx context.Context, tx *gorm.DB, repo DiscountRepository, discount *models.Discount, actor *outbox.ActorRef, now time.Time) (*ApplyResult, error) {
	if discount.Status.Terminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "discount has been replaced")
	}
	derived := DeriveStatus(*discount, now)
	if derived == enums.DiscountStatusExpired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "discount window has passed")
	}

	result := &ApplyResult{DiscountID: discount.ID, Status: derived}

	displace := func(boundID *uuid.UUID) error {
		if boundID == nil || *boundID == discount.ID {
			return nil
		}
		prev, err := repo.FindByIDForUpdate(ctx, *boundID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bound discount")
		}
		if prev.Status.Terminal() || prev.Status == enums.DiscountStatusExpired {
			return nil
		}
		if err := repo.UpdateStatus(ctx, prev.ID, enums.DiscountStatusReplaced); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace discount")
		}
		result.ReplacedIDs = append(result.ReplacedIDs, prev.ID)
		return nil
	}

	switch {
	case discount.DishID != nil:
		dish, err := repo.FindDishForUpdate(ctx, *discount.DishID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "target dish not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load target dish")
		}
		if err := displace(dish.DiscountID); err != nil {
			return nil, err
		}
		if err := repo.BindDish(ctx, dish.ID, discount.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind dish")
		}
		result.BoundItems = 1
	case discount.ComboID != nil:
		combo, err := repo.FindComboForUpdate(ctx, *discount.ComboID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "target combo not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load target combo")
		}
		if err := displace(combo.DiscountID); err != nil {
			return nil, err
		}
		if err := repo.BindCombo(ctx, combo.ID, discount.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind combo")
		}
		result.BoundItems = 1
	default:
		bound, err := repo.FillBranchBindings(ctx, discount.BranchID, discount.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind branch items")
		}
		result.BoundItems = bound
	}

	if discount.Status != derived {
		if err := repo.UpdateStatus(ctx, discount.ID, derived); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update discount status")
		}
		discount.Status = derived
	}

	if len(result.ReplacedIDs) > 0 {
		event := outbox.DomainEvent{
			EventType:     enums.EventDiscountReplaced,
			AggregateType: enums.AggregateDiscount,
			AggregateID:   discount.ID,
			Actor:         actor,
			Data: map[string]any{
				"discount_id":  discount.ID,
				"replaced_ids": result.ReplacedIDs,
				"bound_items":  result.BoundItems,
			},
			Version: 1,
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit discount event")
		}
	}
	return result, nil
}

// ResolveVoucher resolves a customer-entered code to its discount, requiring
// it to be in force for the given branch.
func (s *service) ResolveVoucher(ctx context.Context, code string, branchID uuid.UUID) (*models.Discount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code is required")
	}
	discount, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}
	if discount.Type != enums.DiscountTypeVoucher {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code does not belong to a voucher")
	}
	if branchID != uuid.Nil && discount.BranchID != branchID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
	}
	now := s.now()
	if !discount.Status.InForce() || !discount.Window(now) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "voucher is not active")
	}
	return discount, nil
}

// Reconcile drives every non-terminal discount to the status its dates imply.
// Each discount transitions in its own transaction so one bad row cannot
// block the rest of the pass; the pass is idempotent.
func (s *service) Reconcile(ctx context.Context, now time.Time) (ReconcileStats, error) {
	var stats ReconcileStats
	rows, err := s.repo.ListReconcilable(ctx)
	if err != nil {
		return stats, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list discounts")
	}

	var errs error
	for i := range rows {
		row := rows[i]
		stats.Examined++
		if DeriveStatus(row, now) == row.Status {
			continue
		}
		var transitioned bool
		var expired bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			locked, err := repo.FindByIDForUpdate(ctx, row.ID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			next := DeriveStatus(*locked, now)
			if next == locked.Status {
				return nil
			}
			switch {
			case next == enums.DiscountStatusExpired:
				if err := repo.UpdateStatus(ctx, locked.ID, next); err != nil {
					return err
				}
				if err := repo.ClearBindings(ctx, locked.ID); err != nil {
					return err
				}
				expired = true
			case locked.Status == enums.DiscountStatusScheduled && next.InForce() && locked.Type == enums.DiscountTypeBranch:
				// A short window can open as expiring without ever passing
				// through active; the branch-wide auto-apply still runs.
				if _, err := s.applyLocked(ctx, tx, repo, locked, nil, now); err != nil {
					return err
				}
			default:
				if err := repo.UpdateStatus(ctx, locked.ID, next); err != nil {
					return err
				}
			}
			transitioned = true
			return nil
		})
		if err != nil {
			stats.Failed++
			errs = multierr.Append(errs, fmt.Errorf("discount %s: %w", row.ID, err))
			continue
		}
		if transitioned {
			stats.Transitioned++
		}
		if expired {
			stats.Expired++
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"examined":     stats.Examined,
			"transitioned": stats.Transitioned,
			"expired":      stats.Expired,
			"failed":       stats.Failed,
		})
		s.logg.Info(logCtx, "discount reconciliation pass complete")
	}
	return stats, errs
}
