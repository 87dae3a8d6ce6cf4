package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/config"
	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
)

type fakeOutboxRepo struct {
	pending   []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (f *fakeOutboxRepo) FetchUnpublished(ctx context.Context, limit int, maxAttempts int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	return f.pending[:limit], nil
}

func (f *fakeOutboxRepo) MarkPublished(ctx context.Context, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePusher struct {
	pushed  []models.OutboxEvent
	failFor map[uuid.UUID]error
}

func (f *fakePusher) Push(ctx context.Context, event models.OutboxEvent) error {
	if err := f.failFor[event.ID]; err != nil {
		return err
	}
	f.pushed = append(f.pushed, event)
	return nil
}

func newTestWorker(t *testing.T, repo *fakeOutboxRepo, pusher Pusher) *Worker {
	t.Helper()
	worker, err := NewWorker(WorkerParams{
		Config:     config.OutboxConfig{BatchSize: 10},
		Logger:     logger.New(logger.Options{ServiceName: "notify-test"}),
		Repository: repo,
		Pusher:     pusher,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	return worker
}

func outboxEvent(eventType enums.OutboxEventType) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
	}
}

func TestWorkerPushesAndMarksPublished(t *testing.T) {
	eventA := outboxEvent(enums.EventOrderChanged)
	eventB := outboxEvent(enums.EventComboAvailabilityChanged)
	repo := &fakeOutboxRepo{pending: []models.OutboxEvent{eventA, eventB}}
	pusher := &fakePusher{}
	worker := newTestWorker(t, repo, pusher)

	processed, err := worker.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report progress")
	}
	if len(pusher.pushed) != 2 {
		t.Fatalf("expected 2 pushes, got %d", len(pusher.pushed))
	}
	if len(repo.published) != 2 || len(repo.failed) != 0 {
		t.Fatalf("expected both marked published, got published=%d failed=%d", len(repo.published), len(repo.failed))
	}
}

func TestWorkerRecordsFailureAndContinues(t *testing.T) {
	bad := outboxEvent(enums.EventOrderChanged)
	good := outboxEvent(enums.EventOrderChanged)
	repo := &fakeOutboxRepo{pending: []models.OutboxEvent{bad, good}}
	pusher := &fakePusher{failFor: map[uuid.UUID]error{bad.ID: errors.New("transport down")}}
	worker := newTestWorker(t, repo, pusher)

	processed, err := worker.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report progress")
	}
	if len(repo.failed) != 1 || repo.failed[0] != bad.ID {
		t.Fatalf("expected failed mark for bad event, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != good.ID {
		t.Fatalf("expected good event published, got %v", repo.published)
	}
}

func TestWorkerEmptyBatchIsIdle(t *testing.T) {
	repo := &fakeOutboxRepo{}
	worker := newTestWorker(t, repo, &fakePusher{})

	processed, err := worker.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if processed {
		t.Fatal("expected idle batch")
	}
}

type fakeChannelPublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeChannelPublisher) Publish(ctx context.Context, channel string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.channel = channel
	f.payload = payload.([]byte)
	return nil
}

func (f *fakeChannelPublisher) EventChannel(eventType string) string {
	return "sv:events:" + eventType
}

func TestRedisPusherPublishesEnvelope(t *testing.T) {
	client := &fakeChannelPublisher{}
	pusher, err := NewRedisPusher(client)
	if err != nil {
		t.Fatalf("NewRedisPusher: %v", err)
	}
	event := outboxEvent(enums.EventOrderChanged)

	if err := pusher.Push(context.Background(), event); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if client.channel != "sv:events:"+string(enums.EventOrderChanged) {
		t.Fatalf("unexpected channel %q", client.channel)
	}
	var msg pushMessage
	if err := json.Unmarshal(client.payload, &msg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if msg.EventID != event.ID.String() || msg.EventType != string(event.EventType) {
		t.Fatalf("unexpected message %+v", msg)
	}
}
