package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minhtran-dev/savora-backend/internal/catalog"
	"github.com/minhtran-dev/savora-backend/internal/discounts"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

type fakeReconciler struct {
	stats  discounts.ReconcileStats
	err    error
	lastAt time.Time
	called int
}

func (f *fakeReconciler) Reconcile(ctx context.Context, now time.Time) (discounts.ReconcileStats, error) {
	f.called++
	f.lastAt = now
	return f.stats, f.err
}

func TestDiscountReconcileJobPassesClock(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := &fakeReconciler{stats: discounts.ReconcileStats{Examined: 3, Transitioned: 2}}
	jobIface, err := NewDiscountReconcileJob(DiscountReconcileJobParams{
		Logger:    testLogger(),
		Discounts: svc,
	})
	if err != nil {
		t.Fatalf("NewDiscountReconcileJob: %v", err)
	}
	job := jobIface.(*discountReconcileJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.called != 1 {
		t.Fatalf("expected one reconcile, got %d", svc.called)
	}
	if !svc.lastAt.Equal(now.UTC()) {
		t.Fatalf("expected reconcile at %s, got %s", now.UTC(), svc.lastAt)
	}
}

func TestDiscountReconcileJobPropagatesErrors(t *testing.T) {
	svc := &fakeReconciler{err: errors.New("boom")}
	jobIface, err := NewDiscountReconcileJob(DiscountReconcileJobParams{
		Logger:    testLogger(),
		Discounts: svc,
	})
	if err != nil {
		t.Fatalf("NewDiscountReconcileJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeRecomputer struct {
	stats  catalog.RecomputeStats
	err    error
	called int
}

func (f *fakeRecomputer) RecomputeAll(ctx context.Context) (catalog.RecomputeStats, error) {
	f.called++
	return f.stats, f.err
}

func TestAvailabilityResyncJob(t *testing.T) {
	svc := &fakeRecomputer{stats: catalog.RecomputeStats{Examined: 5, Changed: 1}}
	job, err := NewAvailabilityResyncJob(AvailabilityResyncJobParams{
		Logger:  testLogger(),
		Catalog: svc,
	})
	if err != nil {
		t.Fatalf("NewAvailabilityResyncJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.called != 1 {
		t.Fatalf("expected one recompute, got %d", svc.called)
	}

	svc.err = errors.New("boom")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeSweeper struct {
	calls  int
	swept  int64
	err    error
	lastAt time.Time
}

func (f *fakeSweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	f.calls++
	f.lastAt = now
	return f.swept, f.err
}

func TestCartSweepJob(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := &fakeSweeper{swept: 7}
	jobIface, err := NewCartSweepJob(CartSweepJobParams{
		Logger: testLogger(),
		Carts:  svc,
	})
	if err != nil {
		t.Fatalf("NewCartSweepJob: %v", err)
	}
	job := jobIface.(*cartSweepJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !svc.lastAt.Equal(now.UTC()) {
		t.Fatalf("expected sweep at %s, got %s", now.UTC(), svc.lastAt)
	}

	svc.err = errors.New("boom")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCartSweepJobThrottlesBetweenRuns(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := &fakeSweeper{}
	jobIface, err := NewCartSweepJob(CartSweepJobParams{
		Logger: testLogger(),
		Carts:  svc,
		Every:  30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewCartSweepJob: %v", err)
	}
	job := jobIface.(*cartSweepJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	now = now.Add(time.Minute)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.calls != 1 {
		t.Fatalf("expected throttled second run, got %d sweeps", svc.calls)
	}

	now = now.Add(30 * time.Minute)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.calls != 2 {
		t.Fatalf("expected sweep after interval elapsed, got %d sweeps", svc.calls)
	}
}

type fakeOutboxRepo struct {
	lastCutoff time.Time
	deleted    int64
	err        error
	called     int
}

func (f *fakeOutboxRepo) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

func TestOutboxRetentionJobUsesConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRepo{deleted: 42}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: repo,
		Retention:  7,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expected := now.UTC().Add(-7 * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expected) {
		t.Fatalf("expected cutoff %s, got %s", expected, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestOutboxRetentionJobPropagatesErrors(t *testing.T) {
	repo := &fakeOutboxRepo{err: errors.New("boom")}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
