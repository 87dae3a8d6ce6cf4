package notifications

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/config"
	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 10
	maxBackoff          = time.Minute
	jitterWindow        = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type outboxRepository interface {
	FetchUnpublished(ctx context.Context, limit int, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
}

// WorkerParams configure the notify worker.
type WorkerParams struct {
	Config     config.OutboxConfig
	Logger     *logger.Logger
	Repository outboxRepository
	Pusher     Pusher
}

// Worker drains committed outbox events into the push transport. Rows that
// keep failing stop being fetched once they cross the attempt ceiling; the
// retention job prunes them later.
type Worker struct {
	logg         *logger.Logger
	repo         outboxRepository
	pusher       Pusher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

// NewWorker builds a notify worker.
func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Pusher == nil {
		return nil, errors.New("pusher is required")
	}
	batch := params.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := params.Config.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Worker{
		logg:         params.Logger,
		repo:         params.Repository,
		pusher:       params.Pusher,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
	}, nil
}

// Run polls until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	backoff := w.pollInterval
	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "notify worker context canceled")
			return ctx.Err()
		default:
		}

		processed, err := w.processBatch(ctx)
		if err != nil {
			w.logg.Error(ctx, "notify worker batch error", err)
			backoff = nextBackoff(backoff, w.pollInterval, maxBackoff)
			if err := w.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = w.pollInterval
		if processed {
			continue
		}
		if err := w.sleep(ctx, withJitter(w.pollInterval)); err != nil {
			return err
		}
	}
}

// processBatch pushes one fetch worth of events. Push failures are recorded
// per event and never stall the rest of the batch.
func (w *Worker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.FetchUnpublished(ctx, w.batchSize, w.maxAttempts)
	if err != nil {
		return false, fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(events) == 0 {
		return false, nil
	}

	for _, event := range events {
		logCtx := w.logg.WithFields(ctx, w.eventFields(event))
		if err := w.pusher.Push(ctx, event); err != nil {
			w.logg.Error(logCtx, "push failed", err)
			if markErr := w.repo.MarkFailed(ctx, event.ID, err); markErr != nil {
				return true, fmt.Errorf("mark failed %s: %w", event.ID, markErr)
			}
			continue
		}
		if err := w.repo.MarkPublished(ctx, event.ID); err != nil {
			return true, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		w.logg.Info(logCtx, "event pushed")
	}
	return true, nil
}

func (w *Worker) eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
