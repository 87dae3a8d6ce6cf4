package carts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	pkgerrors "github.com/minhtran-dev/savora-backend/pkg/errors"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
	"github.com/minhtran-dev/savora-backend/pkg/outbox"

	"github.com/minhtran-dev/savora-backend/internal/orders"
	"github.com/minhtran-dev/savora-backend/internal/pricing"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type catalogReader interface {
	FindDishByID(ctx context.Context, id uuid.UUID) (*models.Dish, error)
	FindComboByID(ctx context.Context, id uuid.UUID) (*models.Combo, error)
}

// Service exposes cart staging and conversion into orders.
type Service interface {
	Get(ctx context.Context, branchID uuid.UUID, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, input AddItemInput) (*models.Cart, error)
	UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, owner Owner, input UpdateItemInput) (*models.Cart, error)
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID, owner Owner) (*models.Cart, error)
	Convert(ctx context.Context, cartID uuid.UUID, input ConvertInput, actor *outbox.ActorRef) (*models.Order, error)
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

type service struct {
	repo    CartRepository
	orders  orders.OrderRepository
	tx      txRunner
	catalog catalogReader
	events  eventEmitter
	logg    *logger.Logger
	ttl     time.Duration
	now     func() time.Time
}

// NewService builds a cart service backed by the provided stack. ttl bounds
// how long an untouched cart's prices stay valid.
func NewService(repo CartRepository, orderRepo orders.OrderRepository, tx txRunner, catalog catalogReader, events eventEmitter, logg *logger.Logger, ttl time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &service{
		repo:    repo,
		orders:  orderRepo,
		tx:      tx,
		catalog: catalog,
		events:  events,
		logg:    logg,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// Get loads the owner's active cart in the branch.
func (s *service) Get(ctx context.Context, branchID uuid.UUID, owner Owner) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindActiveByOwner(ctx, branchID, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

// resolveLine prices one requested line the same way orders do: base price,
// current in-force binding, frozen into the row.
func (s *service) resolveLine(ctx context.Context, branchID uuid.UUID, input CartItemInput, now time.Time) (*models.CartItem, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if (input.DishID == nil) == (input.ComboID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line targets exactly one dish or combo")
	}

	var (
		name      string
		unitPrice int64
		bound     *models.Discount
	)
	if input.DishID != nil {
		dish, err := s.catalog.FindDishByID(ctx, *input.DishID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dish not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dish")
		}
		if dish.BranchID != branchID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "dish belongs to another branch")
		}
		if dish.AvailabilityStatus != enums.AvailabilityStatusAvailable {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("dish %q is not available", dish.Name))
		}
		name = dish.Name
		unitPrice = dish.BasePrice
		bound = dish.Discount
	} else {
		combo, err := s.catalog.FindComboByID(ctx, *input.ComboID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "combo not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load combo")
		}
		if combo.BranchID != branchID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "combo belongs to another branch")
		}
		if combo.AvailabilityStatus != enums.AvailabilityStatusAvailable {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("combo %q is not available", combo.Name))
		}
		name = combo.Name
		unitPrice = combo.BasePrice
		bound = combo.Discount
	}

	quote := pricing.ResolveLine(unitPrice, input.Quantity, bound, now)
	final := quote.FinalPrice
	return &models.CartItem{
		DishID:         input.DishID,
		ComboID:        input.ComboID,
		Name:           name,
		Quantity:       input.Quantity,
		UnitPrice:      quote.UnitPrice,
		TotalPrice:     quote.TotalPrice,
		DiscountID:     quote.DiscountID,
		DiscountAmount: quote.DiscountAmount,
		FinalPrice:     &final,
	}, nil
}

// AddItem puts an item into the owner's active cart, creating the cart when
// none exists. Adding the same item again merges quantities on the frozen
// snapshot rather than repricing the line.
func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.Cart, error) {
	if err := input.Owner.Validate(); err != nil {
		return nil, err
	}
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}

	now := s.now()
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindActiveByOwner(ctx, input.BranchID, input.Owner)
		switch {
		case err == nil && cart.ValidUntil.Before(now):
			if err := repo.UpdateStatus(ctx, cart.ID, enums.CartStatusExpired, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire stale cart")
			}
			cart = nil
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		case err != nil:
			cart = nil
		}
		if cart == nil {
			cart, err = repo.Create(ctx, &models.Cart{
				BranchID:   input.BranchID,
				AccountID:  input.Owner.AccountID,
				SessionID:  input.Owner.SessionID,
				Status:     enums.CartStatusActive,
				ValidUntil: now.Add(s.ttl),
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
			}
		}

		items, err := repo.ListItems(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}
		merged := false
		for i := range items {
			if !sameTarget(&items[i], input.Item) {
				continue
			}
			line := items[i]
			scaleCartLine(&line, line.Quantity+input.Item.Quantity)
			if _, err := repo.UpdateItem(ctx, &line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
			merged = true
			break
		}
		if !merged {
			line, err := s.resolveLine(ctx, input.BranchID, input.Item, now)
			if err != nil {
				return err
			}
			line.CartID = cart.ID
			if _, err := repo.CreateItem(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		}
		result, err = s.refreshTotal(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func sameTarget(line *models.CartItem, input CartItemInput) bool {
	if input.DishID != nil {
		return line.DishID != nil && *line.DishID == *input.DishID
	}
	return line.ComboID != nil && input.ComboID != nil && *line.ComboID == *input.ComboID
}

// scaleCartLine adjusts a frozen snapshot to a new quantity, preserving the
// per-unit price and reduction it was priced with.
func scaleCartLine(line *models.CartItem, quantity int) {
	perUnitReduction := int64(0)
	if line.Quantity > 0 {
		perUnitReduction = line.DiscountAmount / int64(line.Quantity)
	}
	line.Quantity = quantity
	line.TotalPrice = line.UnitPrice * int64(quantity)
	line.DiscountAmount = perUnitReduction * int64(quantity)
	final := line.TotalPrice - line.DiscountAmount
	if final < 0 {
		final = 0
	}
	line.FinalPrice = &final
}

func (s *service) lockOwnedActiveCart(ctx context.Context, repo CartRepository, cartID uuid.UUID, owner Owner) (*models.Cart, error) {
	cart, err := repo.FindByIDForUpdate(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if !owner.Matches(cart.AccountID, cart.SessionID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another owner")
	}
	if cart.Status != enums.CartStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cart is %s", cart.Status))
	}
	return cart, nil
}

// UpdateItem changes a line's quantity on the frozen snapshot.
func (s *service) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, owner Owner, input UpdateItemInput) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.lockOwnedActiveCart(ctx, repo, cartID, owner)
		if err != nil {
			return err
		}
		item, err := repo.FindItemForUpdate(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		scaleCartLine(item, input.Quantity)
		if _, err := repo.UpdateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		result, err = s.refreshTotal(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem drops a line from the cart.
func (s *service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID, owner Owner) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.lockOwnedActiveCart(ctx, repo, cartID, owner)
		if err != nil {
			return err
		}
		item, err := repo.FindItemForUpdate(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		result, err = s.refreshTotal(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) refreshTotal(ctx context.Context, repo CartRepository, cart *models.Cart) (*models.Cart, error) {
	items, err := repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	var total int64
	for _, item := range items {
		total += item.EffectivePrice()
	}
	if err := repo.UpdateTotal(ctx, cart.ID, total); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart total")
	}
	cart.TotalAmount = total
	cart.Items = items
	return cart, nil
}

// Convert turns the cart into an order in one transaction. Every line is
// copied as priced; the conversion never re-resolves against live discount
// state. The cart is kept, marked converted, for the audit trail.
func (s *service) Convert(ctx context.Context, cartID uuid.UUID, input ConvertInput, actor *outbox.ActorRef) (*models.Order, error) {
	if err := input.Owner.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.lockOwnedActiveCart(ctx, repo, cartID, input.Owner)
		if err != nil {
			return err
		}
		if cart.ValidUntil.Before(now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart has expired")
		}
		items, err := repo.ListItems(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		lines := make([]models.OrderItem, 0, len(items))
		var total int64
		for _, item := range items {
			final := item.EffectivePrice()
			lines = append(lines, models.OrderItem{
				DishID:         item.DishID,
				ComboID:        item.ComboID,
				Name:           item.Name,
				Quantity:       item.Quantity,
				UnitPrice:      item.UnitPrice,
				TotalPrice:     item.TotalPrice,
				DiscountID:     item.DiscountID,
				DiscountAmount: item.DiscountAmount,
				FinalPrice:     &final,
				Status:         enums.OrderItemStatusPending,
			})
			total += final
		}
		order = &models.Order{
			BranchID:    cart.BranchID,
			AccountID:   cart.AccountID,
			SessionID:   cart.SessionID,
			Status:      enums.OrderStatusPending,
			TotalAmount: total,
			Note:        input.Note,
			Items:       lines,
		}
		created, err := s.orders.WithTx(tx).Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		order = created

		convertedAt := now
		if err := repo.UpdateStatus(ctx, cart.ID, enums.CartStatusConverted, &convertedAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart converted")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: map[string]any{
				"order_id":     order.ID,
				"branch_id":    order.BranchID,
				"status":       order.Status,
				"total_amount": order.TotalAmount,
				"cart_id":      cart.ID,
			},
			Version: 1,
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Sweep expires active carts whose validity window has passed.
func (s *service) Sweep(ctx context.Context, now time.Time) (int64, error) {
	swept, err := s.repo.ExpireStale(ctx, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire carts")
	}
	if swept > 0 && s.logg != nil {
		logCtx := s.logg.WithField(ctx, "swept", swept)
		s.logg.Info(logCtx, "expired stale carts")
	}
	return swept, nil
}
