package discounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	pkgerrors "github.com/minhtran-dev/savora-backend/pkg/errors"
	"github.com/minhtran-dev/savora-backend/pkg/outbox"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo DiscountRepository, emitter *stubEmitter) *service {
	t.Helper()
	if emitter == nil {
		emitter = &stubEmitter{}
	}
	svc, err := NewService(repo, stubTxRunner{}, emitter, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	typed := svc.(*service)
	typed.now = func() time.Time { return testNow }
	return typed
}

func strPtr(v string) *string { return &v }

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	branchID := uuid.New()
	dishID := uuid.New()
	comboID := uuid.New()
	base := CreateDiscountInput{
		BranchID:  branchID,
		Name:      "Lunch special",
		NewPrice:  50000,
		StartDate: testNow.Add(time.Hour),
		EndDate:   testNow.Add(48 * time.Hour),
		Type:      enums.DiscountTypeBranch,
	}

	cases := []struct {
		name   string
		mutate func(*CreateDiscountInput)
	}{
		{"missing branch", func(in *CreateDiscountInput) { in.BranchID = uuid.Nil }},
		{"empty name", func(in *CreateDiscountInput) { in.Name = "  " }},
		{"negative price", func(in *CreateDiscountInput) { in.NewPrice = -1 }},
		{"end before start", func(in *CreateDiscountInput) { in.EndDate = in.StartDate.Add(-time.Hour) }},
		{"window already passed", func(in *CreateDiscountInput) {
			in.StartDate = testNow.Add(-48 * time.Hour)
			in.EndDate = testNow.Add(-time.Hour)
		}},
		{"voucher without code", func(in *CreateDiscountInput) { in.Type = enums.DiscountTypeVoucher }},
		{"branch discount with code", func(in *CreateDiscountInput) { in.Code = strPtr("SAVE10") }},
		{"two targets", func(in *CreateDiscountInput) { in.DishID = &dishID; in.ComboID = &comboID }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := base
			tc.mutate(&input)
			svc := newTestService(t, newStubRepo(), nil)
			_, err := svc.Create(context.Background(), input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateInWindowBranchDiscountBindsImmediately(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	branchID := uuid.New()
	dish := &models.Dish{ID: uuid.New(), BranchID: branchID}
	repo.dishes[dish.ID] = dish

	svc := newTestService(t, repo, nil)
	created, err := svc.Create(context.Background(), CreateDiscountInput{
		BranchID:  branchID,
		Name:      "Happy hour",
		NewPrice:  40000,
		StartDate: testNow.Add(-time.Hour),
		EndDate:   testNow.Add(72 * time.Hour),
		Type:      enums.DiscountTypeBranch,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != enums.DiscountStatusActive {
		t.Fatalf("expected active, got %s", created.Status)
	}
	if repo.filledBranch != branchID {
		t.Fatal("expected branch-wide binding fill to run")
	}
}

func TestCreateScheduledDoesNotBind(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo, nil)
	created, err := svc.Create(context.Background(), CreateDiscountInput{
		BranchID:  uuid.New(),
		Name:      "Next week",
		NewPrice:  40000,
		StartDate: testNow.Add(24 * time.Hour),
		EndDate:   testNow.Add(96 * time.Hour),
		Type:      enums.DiscountTypeBranch,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != enums.DiscountStatusScheduled {
		t.Fatalf("expected scheduled, got %s", created.Status)
	}
	if repo.filledBranch != uuid.Nil {
		t.Fatal("scheduled discount must not bind")
	}
}

func TestApplyReplacesPredecessorAndRebinds(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	emitter := &stubEmitter{}
	branchID := uuid.New()
	prev := &models.Discount{
		ID:        uuid.New(),
		BranchID:  branchID,
		Name:      "Old deal",
		NewPrice:  60000,
		StartDate: testNow.Add(-48 * time.Hour),
		EndDate:   testNow.Add(48 * time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    enums.DiscountStatusActive,
	}
	dish := &models.Dish{ID: uuid.New(), BranchID: branchID, DiscountID: &prev.ID}
	next := &models.Discount{
		ID:        uuid.New(),
		BranchID:  branchID,
		Name:      "New deal",
		NewPrice:  50000,
		StartDate: testNow.Add(-time.Hour),
		EndDate:   testNow.Add(72 * time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    enums.DiscountStatusScheduled,
		DishID:    &dish.ID,
	}
	repo.discounts[prev.ID] = prev
	repo.discounts[next.ID] = next
	repo.dishes[dish.ID] = dish

	svc := newTestService(t, repo, emitter)
	result, err := svc.Apply(context.Background(), next.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ReplacedIDs) != 1 || result.ReplacedIDs[0] != prev.ID {
		t.Fatalf("expected predecessor %s replaced, got %v", prev.ID, result.ReplacedIDs)
	}
	if repo.discounts[prev.ID].Status != enums.DiscountStatusReplaced {
		t.Fatalf("predecessor status = %s, want replaced", repo.discounts[prev.ID].Status)
	}
	if dish.DiscountID == nil || *dish.DiscountID != next.ID {
		t.Fatal("dish should be rebound to the successor")
	}
	if repo.discounts[next.ID].Status != enums.DiscountStatusActive {
		t.Fatalf("successor status = %s, want active", repo.discounts[next.ID].Status)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventDiscountReplaced {
		t.Fatalf("expected one discount.replaced event, got %+v", emitter.events)
	}
}

func TestApplyReplacedDiscountRejected(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	disc := &models.Discount{
		ID:        uuid.New(),
		BranchID:  uuid.New(),
		StartDate: testNow.Add(-time.Hour),
		EndDate:   testNow.Add(72 * time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    enums.DiscountStatusReplaced,
	}
	repo.discounts[disc.ID] = disc

	svc := newTestService(t, repo, nil)
	_, err := svc.Apply(context.Background(), disc.ID, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestApplyScheduledBindsAheadOfActivation(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	branchID := uuid.New()
	prev := &models.Discount{
		ID:        uuid.New(),
		BranchID:  branchID,
		Name:      "Running deal",
		NewPrice:  60000,
		StartDate: testNow.Add(-48 * time.Hour),
		EndDate:   testNow.Add(48 * time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    enums.DiscountStatusActive,
	}
	dish := &models.Dish{ID: uuid.New(), BranchID: branchID, DiscountID: &prev.ID}
	next := &models.Discount{
		ID:        uuid.New(),
		BranchID:  branchID,
		Name:      "Next week's deal",
		NewPrice:  50000,
		StartDate: testNow.Add(24 * time.Hour),
		EndDate:   testNow.Add(96 * time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    enums.DiscountStatusScheduled,
		DishID:    &dish.ID,
	}
	repo.discounts[prev.ID] = prev
	repo.discounts[next.ID] = next
	repo.dishes[dish.ID] = dish

	svc := newTestService(t, repo, nil)
	result, err := svc.Apply(context.Background(), next.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.discounts[prev.ID].Status != enums.DiscountStatusReplaced {
		t.Fatalf("predecessor status = %s, want replaced", repo.discounts[prev.ID].Status)
	}
	if dish.DiscountID == nil || *dish.DiscountID != next.ID {
		t.Fatal("dish should carry the successor binding before its window opens")
	}
	if repo.discounts[next.ID].Status != enums.DiscountStatusScheduled {
		t.Fatalf("successor status = %s, want scheduled until its start date", repo.discounts[next.ID].Status)
	}
	if result.Status != enums.DiscountStatusScheduled {
		t.Fatalf("result status = %s, want scheduled", result.Status)
	}
}

func TestApplyExpiredWindowRejected(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	disc := &models.Discount{
		ID:        uuid.New(),
		BranchID:  uuid.New(),
		StartDate: testNow.Add(-48 * time.Hour),
		EndDate:   testNow.Add(-time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    enums.DiscountStatusScheduled,
	}
	repo.discounts[disc.ID] = disc

	svc := newTestService(t, repo, nil)
	_, err := svc.Apply(context.Background(), disc.ID, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestReconcileTransitions(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	branchID := uuid.New()
	becomesActive := &models.Discount{
		ID:        uuid.New(),
		BranchID:  branchID,
		StartDate: testNow.Add(-time.Hour),
		EndDate:   testNow.Add(72 * time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    enums.DiscountStatusScheduled,
	}
	becomesExpiring := &models.Discount{
		ID:        uuid.New(),
		BranchID:  branchID,
		StartDate: testNow.Add(-48 * time.Hour),
		EndDate:   testNow.Add(12 * time.Hour),
		Type:      enums.DiscountTypeVoucher,
		Code:      strPtr("LAST12"),
		Status:    enums.DiscountStatusActive,
	}
	otherBranchID := uuid.New()
	becomesExpired := &models.Discount{
		ID:        uuid.New(),
		BranchID:  otherBranchID,
		StartDate: testNow.Add(-96 * time.Hour),
		EndDate:   testNow.Add(-time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    enums.DiscountStatusExpiring,
	}
	dish := &models.Dish{ID: uuid.New(), BranchID: otherBranchID, DiscountID: &becomesExpired.ID}
	repo.discounts[becomesActive.ID] = becomesActive
	repo.discounts[becomesExpiring.ID] = becomesExpiring
	repo.discounts[becomesExpired.ID] = becomesExpired
	repo.dishes[dish.ID] = dish

	svc := newTestService(t, repo, nil)
	stats, err := svc.Reconcile(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Examined != 3 || stats.Transitioned != 3 || stats.Expired != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if becomesActive.Status != enums.DiscountStatusActive {
		t.Fatalf("expected active, got %s", becomesActive.Status)
	}
	if repo.filledBranch != branchID {
		t.Fatal("activated branch discount should bind branch-wide")
	}
	if becomesExpiring.Status != enums.DiscountStatusExpiring {
		t.Fatalf("expected expiring, got %s", becomesExpiring.Status)
	}
	if becomesExpired.Status != enums.DiscountStatusExpired {
		t.Fatalf("expected expired, got %s", becomesExpired.Status)
	}
	if dish.DiscountID != nil {
		t.Fatal("expired discount bindings should be cleared")
	}
}

func TestReconcileShortWindowBranchDiscountAutoApplies(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	branchID := uuid.New()
	disc := &models.Discount{
		ID:        uuid.New(),
		BranchID:  branchID,
		StartDate: testNow.Add(-time.Minute),
		EndDate:   testNow.Add(6 * time.Hour),
		Type:      enums.DiscountTypeBranch,
		Status:    enums.DiscountStatusScheduled,
	}
	dish := &models.Dish{ID: uuid.New(), BranchID: branchID}
	repo.discounts[disc.ID] = disc
	repo.dishes[dish.ID] = dish

	svc := newTestService(t, repo, nil)
	if _, err := svc.Reconcile(context.Background(), testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if disc.Status != enums.DiscountStatusExpiring {
		t.Fatalf("expected expiring, got %s", disc.Status)
	}
	if repo.filledBranch != branchID {
		t.Fatal("branch discount entering force must bind branch-wide")
	}
	if dish.DiscountID == nil || *dish.DiscountID != disc.ID {
		t.Fatal("unbound dish should pick up the discount")
	}
}

func TestReconcileIsolatesFailures(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	bad := &models.Discount{
		ID:        uuid.New(),
		BranchID:  uuid.New(),
		StartDate: testNow.Add(-96 * time.Hour),
		EndDate:   testNow.Add(-time.Hour),
		Type:      enums.DiscountTypeVoucher,
		Code:      strPtr("BAD"),
		Status:    enums.DiscountStatusActive,
	}
	good := &models.Discount{
		ID:        uuid.New(),
		BranchID:  uuid.New(),
		StartDate: testNow.Add(-48 * time.Hour),
		EndDate:   testNow.Add(12 * time.Hour),
		Type:      enums.DiscountTypeVoucher,
		Code:      strPtr("GOOD"),
		Status:    enums.DiscountStatusActive,
	}
	repo.discounts[bad.ID] = bad
	repo.discounts[good.ID] = good
	repo.statusErrFor = bad.ID

	svc := newTestService(t, repo, nil)
	stats, err := svc.Reconcile(context.Background(), testNow)
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if stats.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", stats)
	}
	if good.Status != enums.DiscountStatusExpiring {
		t.Fatalf("healthy discount should still transition, got %s", good.Status)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	disc := &models.Discount{
		ID:        uuid.New(),
		BranchID:  uuid.New(),
		StartDate: testNow.Add(-48 * time.Hour),
		EndDate:   testNow.Add(12 * time.Hour),
		Type:      enums.DiscountTypeVoucher,
		Code:      strPtr("SAME"),
		Status:    enums.DiscountStatusActive,
	}
	repo.discounts[disc.ID] = disc

	svc := newTestService(t, repo, nil)
	if _, err := svc.Reconcile(context.Background(), testNow); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	stats, err := svc.Reconcile(context.Background(), testNow)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if stats.Transitioned != 0 {
		t.Fatalf("second pass should be a no-op, got %+v", stats)
	}
}

func TestResolveVoucher(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	branchID := uuid.New()
	voucher := &models.Discount{
		ID:        uuid.New(),
		BranchID:  branchID,
		Code:      strPtr("WELCOME"),
		StartDate: testNow.Add(-time.Hour),
		EndDate:   testNow.Add(72 * time.Hour),
		Type:      enums.DiscountTypeVoucher,
		Status:    enums.DiscountStatusActive,
	}
	repo.discounts[voucher.ID] = voucher

	svc := newTestService(t, repo, nil)

	got, err := svc.ResolveVoucher(context.Background(), "WELCOME", branchID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != voucher.ID {
		t.Fatal("expected the voucher back")
	}

	if _, err := svc.ResolveVoucher(context.Background(), "MISSING", branchID); err == nil {
		t.Fatal("expected not found")
	}

	if _, err := svc.ResolveVoucher(context.Background(), "WELCOME", uuid.New()); err == nil {
		t.Fatal("expected branch mismatch to hide the voucher")
	}

	voucher.Status = enums.DiscountStatusExpired
	_, err = svc.ResolveVoucher(context.Background(), "WELCOME", branchID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for inactive voucher, got %v", err)
	}
}

type stubEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubDiscountRepo struct {
	discounts    map[uuid.UUID]*models.Discount
	dishes       map[uuid.UUID]*models.Dish
	combos       map[uuid.UUID]*models.Combo
	filledBranch uuid.UUID
	statusErrFor uuid.UUID
}

func newStubRepo() *stubDiscountRepo {
	return &stubDiscountRepo{
		discounts: map[uuid.UUID]*models.Discount{},
		dishes:    map[uuid.UUID]*models.Dish{},
		combos:    map[uuid.UUID]*models.Combo{},
	}
}

func (s *stubDiscountRepo) WithTx(tx *gorm.DB) DiscountRepository { return s }

func (s *stubDiscountRepo) Create(ctx context.Context, discount *models.Discount) (*models.Discount, error) {
	if discount.ID == uuid.Nil {
		discount.ID = uuid.New()
	}
	s.discounts[discount.ID] = discount
	return discount, nil
}

func (s *stubDiscountRepo) Update(ctx context.Context, discount *models.Discount) (*models.Discount, error) {
	s.discounts[discount.ID] = discount
	return discount, nil
}

func (s *stubDiscountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.discounts, id)
	return nil
}

func (s *stubDiscountRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	row, ok := s.discounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (s *stubDiscountRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	return s.FindByID(ctx, id)
}

func (s *stubDiscountRepo) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	for _, row := range s.discounts {
		if row.Code != nil && *row.Code == code {
			return row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubDiscountRepo) ListByBranch(ctx context.Context, branchID uuid.UUID, statuses []enums.DiscountStatus, limit int, cursor *pagination.Cursor) ([]models.Discount, error) {
	var rows []models.Discount
	for _, row := range s.discounts {
		if row.BranchID == branchID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *stubDiscountRepo) ListReconcilable(ctx context.Context) ([]models.Discount, error) {
	var rows []models.Discount
	for _, row := range s.discounts {
		if !row.Status.Terminal() {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *stubDiscountRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DiscountStatus) error {
	if s.statusErrFor != uuid.Nil && s.statusErrFor == id {
		return errors.New("status write failed")
	}
	row, ok := s.discounts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.Status = status
	return nil
}

func (s *stubDiscountRepo) FindDishForUpdate(ctx context.Context, id uuid.UUID) (*models.Dish, error) {
	row, ok := s.dishes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (s *stubDiscountRepo) FindComboForUpdate(ctx context.Context, id uuid.UUID) (*models.Combo, error) {
	row, ok := s.combos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (s *stubDiscountRepo) BindDish(ctx context.Context, dishID, discountID uuid.UUID) error {
	row, ok := s.dishes[dishID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	id := discountID
	row.DiscountID = &id
	return nil
}

func (s *stubDiscountRepo) BindCombo(ctx context.Context, comboID, discountID uuid.UUID) error {
	row, ok := s.combos[comboID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	id := discountID
	row.DiscountID = &id
	return nil
}

func (s *stubDiscountRepo) FillBranchBindings(ctx context.Context, branchID, discountID uuid.UUID) (int64, error) {
	s.filledBranch = branchID
	var bound int64
	inForce := func(id *uuid.UUID) bool {
		if id == nil {
			return false
		}
		row, ok := s.discounts[*id]
		return ok && row.Status.InForce()
	}
	for _, dish := range s.dishes {
		if dish.BranchID == branchID && !inForce(dish.DiscountID) {
			id := discountID
			dish.DiscountID = &id
			bound++
		}
	}
	for _, combo := range s.combos {
		if combo.BranchID == branchID && !inForce(combo.DiscountID) {
			id := discountID
			combo.DiscountID = &id
			bound++
		}
	}
	return bound, nil
}

func (s *stubDiscountRepo) ClearBindings(ctx context.Context, discountID uuid.UUID) error {
	for _, dish := range s.dishes {
		if dish.DiscountID != nil && *dish.DiscountID == discountID {
			dish.DiscountID = nil
		}
	}
	for _, combo := range s.combos {
		if combo.DiscountID != nil && *combo.DiscountID == discountID {
			combo.DiscountID = nil
		}
	}
	return nil
}
