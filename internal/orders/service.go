package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	pkgerrors "github.com/minhtran-dev/savora-backend/pkg/errors"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
	"github.com/minhtran-dev/savora-backend/pkg/outbox"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"

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

type discountReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	ResolveVoucher(ctx context.Context, code string, branchID uuid.UUID) (*models.Discount, error)
}

// Service exposes the order pricing cascade.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput, actor *outbox.ActorRef) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, input ListOrdersInput) ([]models.Order, string, error)
	AddItem(ctx context.Context, orderID uuid.UUID, input OrderItemInput, actor *outbox.ActorRef) (*models.Order, error)
	UpdateItem(ctx context.Context, orderID, itemID uuid.UUID, input UpdateOrderItemInput, actor *outbox.ActorRef) (*models.Order, error)
	RemoveItem(ctx context.Context, orderID, itemID uuid.UUID, actor *outbox.ActorRef) (*models.Order, error)
	SetItemStatus(ctx context.Context, orderID, itemID uuid.UUID, status enums.OrderItemStatus, actor *outbox.ActorRef) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, actor *outbox.ActorRef) (*models.Order, error)
	AuthoritativeTotal(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type service struct {
	repo      OrderRepository
	tx        txRunner
	catalog   catalogReader
	discounts discountReader
	events    eventEmitter
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds an order service backed by the provided stack.
func NewService(repo OrderRepository, tx txRunner, catalog catalogReader, discounts discountReader, events eventEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if discounts == nil {
		return nil, fmt.Errorf("discount reader required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		catalog:   catalog,
		discounts: discounts,
		events:    events,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// resolveLine prices one requested line against the current catalog state.
// The stronger of the item's bound discount and the order voucher wins; a
// caller-supplied percentage only applies when neither is in force.
func (s *service) resolveLine(ctx context.Context, branchID uuid.UUID, input OrderItemInput, voucher *models.Discount, now time.Time) (*models.OrderItem, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if (input.DishID == nil) == (input.ComboID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line targets exactly one dish or combo")
	}
	if input.UnitPriceOverride != nil && *input.UnitPriceOverride < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price override must be non-negative")
	}
	if input.DiscountPercent != nil {
		if input.DiscountPercent.Sign() < 0 || input.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be between 0 and 100")
		}
	}

	var (
		name      string
		unitPrice int64
		bound     *models.Discount
		matches   func(*models.Discount) bool
	)
	switch {
	case input.DishID != nil:
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
		matches = func(d *models.Discount) bool {
			return !d.Scoped() || (d.DishID != nil && *d.DishID == dish.ID)
		}
	default:
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
		matches = func(d *models.Discount) bool {
			return !d.Scoped() || (d.ComboID != nil && *d.ComboID == combo.ID)
		}
	}

	if input.UnitPriceOverride != nil {
		unitPrice = *input.UnitPriceOverride
	}

	quote := pricing.ResolveLine(unitPrice, input.Quantity, bound, now)
	if voucher != nil && matches(voucher) {
		voucherQuote := pricing.ResolveLine(unitPrice, input.Quantity, voucher, now)
		if voucherQuote.DiscountAmount > quote.DiscountAmount {
			quote = voucherQuote
		}
	}
	if quote.DiscountID == nil && input.DiscountPercent != nil {
		quote.DiscountAmount = pricing.PercentageReduction(quote.TotalPrice, *input.DiscountPercent)
		quote.FinalPrice = quote.TotalPrice - quote.DiscountAmount
	}

	final := quote.FinalPrice
	return &models.OrderItem{
		DishID:         input.DishID,
		ComboID:        input.ComboID,
		Name:           name,
		Quantity:       input.Quantity,
		UnitPrice:      quote.UnitPrice,
		TotalPrice:     quote.TotalPrice,
		DiscountID:     quote.DiscountID,
		DiscountAmount: quote.DiscountAmount,
		FinalPrice:     &final,
		Status:         enums.OrderItemStatusPending,
	}, nil
}

// Create opens an order, pricing every requested line at this instant.
func (s *service) Create(ctx context.Context, input CreateOrderInput, actor *outbox.ActorRef) (*models.Order, error) {
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	var voucher *models.Discount
	if input.VoucherCode != nil {
		var err error
		voucher, err = s.discounts.ResolveVoucher(ctx, *input.VoucherCode, input.BranchID)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		items := make([]models.OrderItem, 0, len(input.Items))
		var total int64
		for _, line := range input.Items {
			item, err := s.resolveLine(ctx, input.BranchID, line, voucher, now)
			if err != nil {
				return err
			}
			items = append(items, *item)
			total += item.EffectivePrice()
		}
		order = &models.Order{
			BranchID:    input.BranchID,
			AccountID:   input.AccountID,
			SessionID:   input.SessionID,
			Status:      enums.OrderStatusPending,
			TotalAmount: total,
			Note:        input.Note,
			Items:       items,
		}
		if voucher != nil {
			order.DiscountID = &voucher.ID
		}
		created, err := repo.Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		order = created
		return s.emitOrderChanged(ctx, tx, order, actor)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Get loads an order with its lines.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// List returns a cursor page of a branch's orders.
func (s *service) List(ctx context.Context, input ListOrdersInput) ([]models.Order, string, error) {
	if input.BranchID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Page.Limit)
	rows, err := s.repo.ListByBranch(ctx, input.BranchID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *service) lockEditableOrder(ctx context.Context, repo OrderRepository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be modified")
	}
	return order, nil
}

func (s *service) orderVoucher(ctx context.Context, order *models.Order) (*models.Discount, error) {
	if order.DiscountID == nil {
		return nil, nil
	}
	voucher, err := s.discounts.Get(ctx, *order.DiscountID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return voucher, nil
}

// AddItem prices and appends a line to a pending order, recomputing the total
// in the same transaction.
func (s *service) AddItem(ctx context.Context, orderID uuid.UUID, input OrderItemInput, actor *outbox.ActorRef) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockEditableOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		voucher, err := s.orderVoucher(ctx, order)
		if err != nil {
			return err
		}
		item, err := s.resolveLine(ctx, order.BranchID, input, voucher, s.now())
		if err != nil {
			return err
		}
		item.OrderID = order.ID
		if _, err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order item")
		}
		result, err = s.finishMutation(ctx, tx, repo, order, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateItem re-prices a pending line. This is the one path that replaces a
// frozen snapshot: the line is resolved again exactly like an add, so an
// expired discount drops off here and only here.
func (s *service) UpdateItem(ctx context.Context, orderID, itemID uuid.UUID, input UpdateOrderItemInput, actor *outbox.ActorRef) (*models.Order, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockEditableOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		item, err := repo.FindItemForUpdate(ctx, order.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if !item.Status.Editable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order item is already being prepared")
		}

		voucher, err := s.orderVoucher(ctx, order)
		if err != nil {
			return err
		}
		resolved, err := s.resolveLine(ctx, order.BranchID, OrderItemInput{
			DishID:            item.DishID,
			ComboID:           item.ComboID,
			Quantity:          input.Quantity,
			UnitPriceOverride: input.UnitPriceOverride,
			DiscountPercent:   input.DiscountPercent,
		}, voucher, s.now())
		if err != nil {
			return err
		}
		item.Quantity = resolved.Quantity
		item.UnitPrice = resolved.UnitPrice
		item.TotalPrice = resolved.TotalPrice
		item.DiscountID = resolved.DiscountID
		item.DiscountAmount = resolved.DiscountAmount
		item.FinalPrice = resolved.FinalPrice

		if _, err := repo.UpdateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}
		result, err = s.finishMutation(ctx, tx, repo, order, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem deletes a pending line and recomputes the total.
func (s *service) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID, actor *outbox.ActorRef) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockEditableOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		item, err := repo.FindItemForUpdate(ctx, order.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if !item.Status.Editable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order item is already being prepared")
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order item")
		}
		result, err = s.finishMutation(ctx, tx, repo, order, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetItemStatus moves a line through the kitchen flow. Cancelling a line
// drops it from the total; its snapshot stays on record.
func (s *service) SetItemStatus(ctx context.Context, orderID, itemID uuid.UUID, status enums.OrderItemStatus, actor *outbox.ActorRef) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order item status %q", status))
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		item, err := repo.FindItemForUpdate(ctx, order.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if item.Status == status {
			result = order
			return nil
		}
		if item.Status == enums.OrderItemStatusCancelled || item.Status == enums.OrderItemStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order item is already %s", item.Status))
		}
		item.Status = status
		if _, err := repo.UpdateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}
		result, err = s.finishMutation(ctx, tx, repo, order, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus moves the order header through fulfillment.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, actor *outbox.ActorRef) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", status))
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == status {
			result = order
			return nil
		}
		switch order.Status {
		case enums.OrderStatusCompleted, enums.OrderStatusCanceled, enums.OrderStatusRefunded:
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is already %s", order.Status))
		}
		if err := repo.UpdateStatus(ctx, order.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = status
		if err := s.emitOrderChanged(ctx, tx, order, actor); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// finishMutation recomputes the order total from the persisted lines and
// emits the change event, all inside the caller's transaction.
func (s *service) finishMutation(ctx context.Context, tx *gorm.DB, repo OrderRepository, order *models.Order, actor *outbox.ActorRef) (*models.Order, error) {
	items, err := repo.ListItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order items")
	}
	var total int64
	for _, item := range items {
		if item.Status.CountsTowardTotal() {
			total += item.EffectivePrice()
		}
	}
	if err := repo.UpdateTotal(ctx, order.ID, total); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order total")
	}
	order.TotalAmount = total
	order.Items = items
	if err := s.emitOrderChanged(ctx, tx, order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) emitOrderChanged(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef) error {
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
		},
		Version: 1,
	}
	if err := s.events.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
	}
	return nil
}

// AuthoritativeTotal recomputes the amount to collect from the persisted
// lines. Payment flows call this instead of trusting the stored header or
// any client-provided amount.
func (s *service) AuthoritativeTotal(ctx context.Context, orderID uuid.UUID) (int64, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	var total int64
	for _, item := range order.Items {
		if item.Status.CountsTowardTotal() {
			total += item.EffectivePrice()
		}
	}
	if total != order.TotalAmount && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"stored":   order.TotalAmount,
			"computed": total,
		})
		s.logg.Warn(logCtx, "stored order total drifted from line sum")
	}
	return total, nil
}
