package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/minhtran-dev/savora-backend/pkg/logger"
)

// CartSweepJobParams configure the stale cart sweeper. Every throttles how
// often the sweep actually runs; carts expire on an hours-long TTL, so sweeping
// on every worker cycle is wasted work.
type CartSweepJobParams struct {
	Logger *logger.Logger
	Carts  cartSweeper
	Every  time.Duration
}

type cartSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// NewCartSweepJob builds the job that expires carts past their validity
// window.
func NewCartSweepJob(params CartSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	return &cartSweepJob{
		logg:  params.Logger,
		carts: params.Carts,
		every: params.Every,
		now:   time.Now,
	}, nil
}

type cartSweepJob struct {
	logg    *logger.Logger
	carts   cartSweeper
	every   time.Duration
	lastRun time.Time
	now     func() time.Time
}

func (j *cartSweepJob) Name() string { return "cart-sweep" }

func (j *cartSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	if j.every > 0 && !j.lastRun.IsZero() && now.Sub(j.lastRun) < j.every {
		return nil
	}

	swept, err := j.carts.Sweep(ctx, now)
	if err != nil {
		return fmt.Errorf("cart sweep: %w", err)
	}
	j.lastRun = now
	logCtx := j.logg.WithField(ctx, "swept", swept)
	j.logg.Info(logCtx, "cart sweep complete")
	return nil
}
