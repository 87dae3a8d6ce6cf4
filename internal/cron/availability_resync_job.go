package cron

import (
	"context"
	"fmt"

	"github.com/minhtran-dev/savora-backend/internal/catalog"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
)

// AvailabilityResyncJobParams configure the combo availability resync job.
type AvailabilityResyncJobParams struct {
	Logger  *logger.Logger
	Catalog comboRecomputer
}

type comboRecomputer interface {
	RecomputeAll(ctx context.Context) (catalog.RecomputeStats, error)
}

// NewAvailabilityResyncJob builds the job that re-derives combo availability
// from member dishes. It backstops the write-path cascade after manual pins
// are lifted or out-of-band data fixes.
func NewAvailabilityResyncJob(params AvailabilityResyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	return &availabilityResyncJob{
		logg:    params.Logger,
		catalog: params.Catalog,
	}, nil
}

type availabilityResyncJob struct {
	logg    *logger.Logger
	catalog comboRecomputer
}

func (j *availabilityResyncJob) Name() string { return "availability-resync" }

func (j *availabilityResyncJob) Run(ctx context.Context) error {
	stats, err := j.catalog.RecomputeAll(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"examined": stats.Examined,
		"changed":  stats.Changed,
		"failed":   stats.Failed,
	})
	if err != nil {
		j.logg.Error(logCtx, "availability resync finished with failures", err)
		return fmt.Errorf("availability resync: %w", err)
	}
	j.logg.Info(logCtx, "availability resync complete")
	return nil
}
