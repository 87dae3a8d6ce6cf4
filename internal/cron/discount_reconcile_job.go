package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/minhtran-dev/savora-backend/internal/discounts"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
)

// DiscountReconcileJobParams configure the lifecycle reconciliation job.
type DiscountReconcileJobParams struct {
	Logger    *logger.Logger
	Discounts discountReconciler
}

type discountReconciler interface {
	Reconcile(ctx context.Context, now time.Time) (discounts.ReconcileStats, error)
}

// NewDiscountReconcileJob builds the job that drives discount statuses to
// what their date windows imply.
func NewDiscountReconcileJob(params DiscountReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Discounts == nil {
		return nil, fmt.Errorf("discount service required")
	}
	return &discountReconcileJob{
		logg:      params.Logger,
		discounts: params.Discounts,
		now:       time.Now,
	}, nil
}

type discountReconcileJob struct {
	logg      *logger.Logger
	discounts discountReconciler
	now       func() time.Time
}

func (j *discountReconcileJob) Name() string { return "discount-reconcile" }

func (j *discountReconcileJob) Run(ctx context.Context) error {
	stats, err := j.discounts.Reconcile(ctx, j.now().UTC())
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"examined":     stats.Examined,
		"transitioned": stats.Transitioned,
		"expired":      stats.Expired,
		"failed":       stats.Failed,
	})
	if err != nil {
		// Partial progress still counts; the stats carry what landed.
		j.logg.Error(logCtx, "discount reconciliation finished with failures", err)
		return fmt.Errorf("discount reconcile: %w", err)
	}
	j.logg.Info(logCtx, "discount reconciliation complete")
	return nil
}
