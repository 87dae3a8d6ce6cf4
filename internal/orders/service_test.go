package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	pkgerrors "github.com/minhtran-dev/savora-backend/pkg/errors"
	"github.com/minhtran-dev/savora-backend/pkg/outbox"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func activeDiscount(newPrice int64) *models.Discount {
	return &models.Discount{
		ID:        uuid.New(),
		NewPrice:  newPrice,
		StartDate: testNow.Add(-time.Hour),
		EndDate:   testNow.Add(72 * time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    enums.DiscountStatusActive,
	}
}

type testStack struct {
	repo      *stubOrderRepo
	catalog   *stubCatalog
	discounts *stubDiscounts
	emitter   *stubEmitter
	svc       *service
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	stack := &testStack{
		repo:      newStubOrderRepo(),
		catalog:   &stubCatalog{dishes: map[uuid.UUID]*models.Dish{}, combos: map[uuid.UUID]*models.Combo{}},
		discounts: &stubDiscounts{discounts: map[uuid.UUID]*models.Discount{}},
		emitter:   &stubEmitter{},
	}
	svc, err := NewService(stack.repo, stubTxRunner{}, stack.catalog, stack.discounts, stack.emitter, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	stack.svc = svc.(*service)
	stack.svc.now = func() time.Time { return testNow }
	return stack
}

func TestCreateFreezesLineSnapshots(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	branchID := uuid.New()
	disc := activeDiscount(80000)
	dish := &models.Dish{
		ID:                 uuid.New(),
		BranchID:           branchID,
		Name:               "Pho bo",
		BasePrice:          100000,
		AvailabilityStatus: enums.AvailabilityStatusAvailable,
		DiscountID:         &disc.ID,
		Discount:           disc,
	}
	stack.catalog.dishes[dish.ID] = dish

	order, err := stack.svc.Create(context.Background(), CreateOrderInput{
		BranchID: branchID,
		Items:    []OrderItemInput{{DishID: &dish.ID, Quantity: 2}},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(order.Items))
	}
	line := order.Items[0]
	if line.UnitPrice != 100000 || line.TotalPrice != 200000 {
		t.Fatalf("unexpected gross snapshot: %+v", line)
	}
	if line.DiscountAmount != 40000 {
		t.Fatalf("expected discount amount 40000, got %d", line.DiscountAmount)
	}
	if line.FinalPrice == nil || *line.FinalPrice != 160000 {
		t.Fatalf("expected final 160000, got %v", line.FinalPrice)
	}
	if order.TotalAmount != 160000 {
		t.Fatalf("expected order total 160000, got %d", order.TotalAmount)
	}
	if len(stack.emitter.events) != 1 || stack.emitter.events[0].EventType != enums.EventOrderChanged {
		t.Fatalf("expected one order.changed event, got %+v", stack.emitter.events)
	}
}

func TestCreateRejectsUnavailableItem(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	branchID := uuid.New()
	dish := &models.Dish{
		ID:                 uuid.New(),
		BranchID:           branchID,
		Name:               "Ga nuong",
		BasePrice:          120000,
		AvailabilityStatus: enums.AvailabilityStatusOutOfStock,
	}
	stack.catalog.dishes[dish.ID] = dish

	_, err := stack.svc.Create(context.Background(), CreateOrderInput{
		BranchID: branchID,
		Items:    []OrderItemInput{{DishID: &dish.ID, Quantity: 1}},
	}, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCreateVoucherBeatsWeakerBoundDiscount(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	branchID := uuid.New()
	bound := activeDiscount(90000)
	voucher := activeDiscount(70000)
	voucher.Type = enums.DiscountTypeVoucher
	voucher.BranchID = branchID
	code := "BIGSAVE"
	voucher.Code = &code
	dish := &models.Dish{
		ID:                 uuid.New(),
		BranchID:           branchID,
		Name:               "Bun cha",
		BasePrice:          100000,
		AvailabilityStatus: enums.AvailabilityStatusAvailable,
		DiscountID:         &bound.ID,
		Discount:           bound,
	}
	stack.catalog.dishes[dish.ID] = dish
	stack.discounts.discounts[voucher.ID] = voucher
	stack.discounts.byCode = voucher

	order, err := stack.svc.Create(context.Background(), CreateOrderInput{
		BranchID:    branchID,
		VoucherCode: &code,
		Items:       []OrderItemInput{{DishID: &dish.ID, Quantity: 1}},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := order.Items[0]
	if line.DiscountID == nil || *line.DiscountID != voucher.ID {
		t.Fatalf("expected voucher to win, got %v", line.DiscountID)
	}
	if line.DiscountAmount != 30000 {
		t.Fatalf("expected 30000 off, got %d", line.DiscountAmount)
	}
	if order.DiscountID == nil || *order.DiscountID != voucher.ID {
		t.Fatal("voucher should be recorded on the order header")
	}
}

func TestAddItemRequiresPendingOrder(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	order := &models.Order{ID: uuid.New(), BranchID: uuid.New(), Status: enums.OrderStatusConfirmed}
	stack.repo.orders[order.ID] = order

	dishID := uuid.New()
	_, err := stack.svc.AddItem(context.Background(), order.ID, OrderItemInput{DishID: &dishID, Quantity: 1}, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestUpdateItemReResolvesPricing(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	branchID := uuid.New()
	disc := activeDiscount(80000)
	dish := &models.Dish{
		ID:                 uuid.New(),
		BranchID:           branchID,
		Name:               "Pho bo",
		BasePrice:          100000,
		AvailabilityStatus: enums.AvailabilityStatusAvailable,
		DiscountID:         &disc.ID,
		Discount:           disc,
	}
	stack.catalog.dishes[dish.ID] = dish

	order := &models.Order{ID: uuid.New(), BranchID: branchID, Status: enums.OrderStatusPending}
	final := int64(160000)
	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		DishID:         &dish.ID,
		Name:           "Pho bo",
		Quantity:       2,
		UnitPrice:      100000,
		TotalPrice:     200000,
		DiscountID:     &disc.ID,
		DiscountAmount: 40000,
		FinalPrice:     &final,
		Status:         enums.OrderItemStatusPending,
	}
	stack.repo.orders[order.ID] = order
	stack.repo.addItem(item)

	updated, err := stack.svc.UpdateItem(context.Background(), order.ID, item.ID, UpdateOrderItemInput{Quantity: 3}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.TotalPrice != 300000 || item.DiscountAmount != 60000 {
		t.Fatalf("unexpected re-resolved snapshot: %+v", item)
	}
	if item.FinalPrice == nil || *item.FinalPrice != 240000 {
		t.Fatalf("expected final 240000, got %v", item.FinalPrice)
	}
	if updated.TotalAmount != 240000 {
		t.Fatalf("expected order total 240000, got %d", updated.TotalAmount)
	}
}

func TestUpdateItemDropsLapsedDiscount(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	branchID := uuid.New()
	disc := activeDiscount(80000)
	disc.Status = enums.DiscountStatusExpired
	dish := &models.Dish{
		ID:                 uuid.New(),
		BranchID:           branchID,
		Name:               "Pho bo",
		BasePrice:          100000,
		AvailabilityStatus: enums.AvailabilityStatusAvailable,
		Discount:           disc,
	}
	stack.catalog.dishes[dish.ID] = dish

	order := &models.Order{ID: uuid.New(), BranchID: branchID, Status: enums.OrderStatusPending}
	final := int64(160000)
	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		DishID:         &dish.ID,
		Name:           "Pho bo",
		Quantity:       2,
		UnitPrice:      100000,
		TotalPrice:     200000,
		DiscountID:     &disc.ID,
		DiscountAmount: 40000,
		FinalPrice:     &final,
		Status:         enums.OrderItemStatusPending,
	}
	stack.repo.orders[order.ID] = order
	stack.repo.addItem(item)

	// An explicit update is the one path that replaces the frozen snapshot,
	// so the expired discount falls off here.
	updated, err := stack.svc.UpdateItem(context.Background(), order.ID, item.ID, UpdateOrderItemInput{Quantity: 2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.DiscountID != nil || item.DiscountAmount != 0 {
		t.Fatalf("expected discount dropped on re-resolution, got %+v", item)
	}
	if item.FinalPrice == nil || *item.FinalPrice != 200000 {
		t.Fatalf("expected final 200000, got %v", item.FinalPrice)
	}
	if updated.TotalAmount != 200000 {
		t.Fatalf("expected order total 200000, got %d", updated.TotalAmount)
	}
}

func TestCreateHonorsCallerPricingInputs(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	branchID := uuid.New()
	dish := &models.Dish{
		ID:                 uuid.New(),
		BranchID:           branchID,
		Name:               "Com tam",
		BasePrice:          120000,
		AvailabilityStatus: enums.AvailabilityStatusAvailable,
	}
	stack.catalog.dishes[dish.ID] = dish

	override := int64(100000)
	percent := decimal.NewFromInt(10)
	order, err := stack.svc.Create(context.Background(), CreateOrderInput{
		BranchID: branchID,
		Items: []OrderItemInput{{
			DishID:            &dish.ID,
			Quantity:          2,
			UnitPriceOverride: &override,
			DiscountPercent:   &percent,
		}},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := order.Items[0]
	if line.UnitPrice != 100000 || line.TotalPrice != 200000 {
		t.Fatalf("expected the override price to win, got %+v", line)
	}
	if line.DiscountID != nil {
		t.Fatal("percentage reduction must not fabricate a discount binding")
	}
	if line.DiscountAmount != 20000 {
		t.Fatalf("expected 10%% off 200000, got %d", line.DiscountAmount)
	}
	if line.FinalPrice == nil || *line.FinalPrice != 180000 {
		t.Fatalf("expected final 180000, got %v", line.FinalPrice)
	}
}

func TestCreatePercentIgnoredWhenDiscountInForce(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	branchID := uuid.New()
	disc := activeDiscount(80000)
	dish := &models.Dish{
		ID:                 uuid.New(),
		BranchID:           branchID,
		Name:               "Bun bo",
		BasePrice:          100000,
		AvailabilityStatus: enums.AvailabilityStatusAvailable,
		DiscountID:         &disc.ID,
		Discount:           disc,
	}
	stack.catalog.dishes[dish.ID] = dish

	percent := decimal.NewFromInt(50)
	order, err := stack.svc.Create(context.Background(), CreateOrderInput{
		BranchID: branchID,
		Items:    []OrderItemInput{{DishID: &dish.ID, Quantity: 1, DiscountPercent: &percent}},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := order.Items[0]
	if line.DiscountID == nil || *line.DiscountID != disc.ID {
		t.Fatal("bound discount should win over the caller percentage")
	}
	if line.DiscountAmount != 20000 {
		t.Fatalf("expected the bound reduction, got %d", line.DiscountAmount)
	}
}

func TestUpdateItemRejectsNonPendingLine(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	order := &models.Order{ID: uuid.New(), BranchID: uuid.New(), Status: enums.OrderStatusPending}
	item := &models.OrderItem{
		ID:         uuid.New(),
		OrderID:    order.ID,
		Quantity:   1,
		UnitPrice:  50000,
		TotalPrice: 50000,
		Status:     enums.OrderItemStatusInProgress,
	}
	stack.repo.orders[order.ID] = order
	stack.repo.addItem(item)

	_, err := stack.svc.UpdateItem(context.Background(), order.ID, item.ID, UpdateOrderItemInput{Quantity: 2}, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	_, err = stack.svc.RemoveItem(context.Background(), order.ID, item.ID, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on remove, got %v", err)
	}
}

func TestRemoveItemRecomputesTotal(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	order := &models.Order{ID: uuid.New(), BranchID: uuid.New(), Status: enums.OrderStatusPending, TotalAmount: 150000}
	keepFinal := int64(100000)
	dropFinal := int64(50000)
	keep := &models.OrderItem{
		ID: uuid.New(), OrderID: order.ID, Quantity: 1, UnitPrice: 100000,
		TotalPrice: 100000, FinalPrice: &keepFinal, Status: enums.OrderItemStatusPending,
	}
	drop := &models.OrderItem{
		ID: uuid.New(), OrderID: order.ID, Quantity: 1, UnitPrice: 50000,
		TotalPrice: 50000, FinalPrice: &dropFinal, Status: enums.OrderItemStatusPending,
	}
	stack.repo.orders[order.ID] = order
	stack.repo.addItem(keep)
	stack.repo.addItem(drop)

	updated, err := stack.svc.RemoveItem(context.Background(), order.ID, drop.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.TotalAmount != 100000 {
		t.Fatalf("expected total 100000, got %d", updated.TotalAmount)
	}
}

func TestCancelledLineLeavesTotalButKeepsSnapshot(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	order := &models.Order{ID: uuid.New(), BranchID: uuid.New(), Status: enums.OrderStatusPending}
	aFinal := int64(160000)
	bFinal := int64(50000)
	a := &models.OrderItem{
		ID: uuid.New(), OrderID: order.ID, Quantity: 2, UnitPrice: 100000,
		TotalPrice: 200000, DiscountAmount: 40000, FinalPrice: &aFinal,
		Status: enums.OrderItemStatusInProgress,
	}
	b := &models.OrderItem{
		ID: uuid.New(), OrderID: order.ID, Quantity: 1, UnitPrice: 50000,
		TotalPrice: 50000, FinalPrice: &bFinal, Status: enums.OrderItemStatusPending,
	}
	stack.repo.orders[order.ID] = order
	stack.repo.addItem(a)
	stack.repo.addItem(b)

	updated, err := stack.svc.SetItemStatus(context.Background(), order.ID, a.ID, enums.OrderItemStatusCancelled, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.TotalAmount != 50000 {
		t.Fatalf("expected total 50000 after cancellation, got %d", updated.TotalAmount)
	}
	if a.FinalPrice == nil || *a.FinalPrice != 160000 {
		t.Fatal("cancelled line must keep its frozen snapshot")
	}
}

func TestAuthoritativeTotalIgnoresStoredHeader(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	order := &models.Order{ID: uuid.New(), BranchID: uuid.New(), Status: enums.OrderStatusPending, TotalAmount: 999999}
	finalA := int64(160000)
	finalB := int64(50000)
	stack.repo.orders[order.ID] = order
	stack.repo.addItem(&models.OrderItem{
		ID: uuid.New(), OrderID: order.ID, Quantity: 2, UnitPrice: 100000,
		TotalPrice: 200000, DiscountAmount: 40000, FinalPrice: &finalA,
		Status: enums.OrderItemStatusPending,
	})
	stack.repo.addItem(&models.OrderItem{
		ID: uuid.New(), OrderID: order.ID, Quantity: 1, UnitPrice: 50000,
		TotalPrice: 50000, FinalPrice: &finalB, Status: enums.OrderItemStatusCancelled,
	})

	total, err := stack.svc.AuthoritativeTotal(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 160000 {
		t.Fatalf("expected 160000 from the lines, got %d", total)
	}
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubCatalog struct {
	dishes map[uuid.UUID]*models.Dish
	combos map[uuid.UUID]*models.Combo
}

func (s *stubCatalog) FindDishByID(ctx context.Context, id uuid.UUID) (*models.Dish, error) {
	row, ok := s.dishes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (s *stubCatalog) FindComboByID(ctx context.Context, id uuid.UUID) (*models.Combo, error) {
	row, ok := s.combos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

type stubDiscounts struct {
	discounts map[uuid.UUID]*models.Discount
	byCode    *models.Discount
}

func (s *stubDiscounts) Get(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	row, ok := s.discounts[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
	}
	return row, nil
}

func (s *stubDiscounts) ResolveVoucher(ctx context.Context, code string, branchID uuid.UUID) (*models.Discount, error) {
	if s.byCode == nil || s.byCode.Code == nil || *s.byCode.Code != code {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
	}
	return s.byCode, nil
}

type stubOrderRepo struct {
	orders map[uuid.UUID]*models.Order
	items  map[uuid.UUID][]*models.OrderItem
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		orders: map[uuid.UUID]*models.Order{},
		items:  map[uuid.UUID][]*models.OrderItem{},
	}
}

func (s *stubOrderRepo) addItem(item *models.OrderItem) {
	s.items[item.OrderID] = append(s.items[item.OrderID], item)
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) OrderRepository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OrderID = order.ID
		s.addItem(item)
	}
	return order, nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	copied.Items = nil
	for _, item := range s.items[id] {
		copied.Items = append(copied.Items, *item)
	}
	return &copied, nil
}

func (s *stubOrderRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrderRepo) ListByBranch(ctx context.Context, branchID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	var rows []models.Order
	for _, order := range s.orders {
		if order.BranchID == branchID {
			rows = append(rows, *order)
		}
	}
	return rows, nil
}

func (s *stubOrderRepo) UpdateTotal(ctx context.Context, id uuid.UUID, total int64) error {
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.TotalAmount = total
	return nil
}

func (s *stubOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.Status = status
	return nil
}

func (s *stubOrderRepo) CreateItem(ctx context.Context, item *models.OrderItem) (*models.OrderItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.addItem(item)
	return item, nil
}

func (s *stubOrderRepo) UpdateItem(ctx context.Context, item *models.OrderItem) (*models.OrderItem, error) {
	return item, nil
}

func (s *stubOrderRepo) DeleteItem(ctx context.Context, id uuid.UUID) error {
	for orderID, items := range s.items {
		for i, item := range items {
			if item.ID == id {
				s.items[orderID] = append(items[:i], items[i+1:]...)
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) FindItemForUpdate(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderItem, error) {
	for _, item := range s.items[orderID] {
		if item.ID == itemID {
			return item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var rows []models.OrderItem
	for _, item := range s.items[orderID] {
		rows = append(rows, *item)
	}
	return rows, nil
}
