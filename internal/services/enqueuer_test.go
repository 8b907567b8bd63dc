package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
)

type fakeJobRepo struct {
	enqueued []*types.Job
	queued   int64
}

func (f *fakeJobRepo) Enqueue(dbc dbctx.Context, job *types.Job, window time.Duration) (bool, error) {
	if job.DedupKey != "" {
		for _, existing := range f.enqueued {
			if existing.DedupKey == job.DedupKey && existing.Status != types.JobStatusSucceeded {
				return false, nil
			}
		}
	}
	job.Status = types.JobStatusQueued
	f.enqueued = append(f.enqueued, job)
	return true, nil
}

func (f *fakeJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error) { return nil, nil }
func (f *fakeJobRepo) Claim(dbc dbctx.Context, workerID string, classes []string, visibility time.Duration) (*types.Job, error) {
	return nil, nil
}
func (f *fakeJobRepo) Ack(dbc dbctx.Context, id uuid.UUID) error { return nil }
func (f *fakeJobRepo) Nack(dbc dbctx.Context, id uuid.UUID, backoff time.Duration, reason string) error {
	return nil
}
func (f *fakeJobRepo) DeadLetter(dbc dbctx.Context, job *types.Job, reason, errMsg string) error {
	return nil
}
func (f *fakeJobRepo) CountQueued(dbc dbctx.Context) (int64, error) { return f.queued, nil }
func (f *fakeJobRepo) CountQueuedByPriority(dbc dbctx.Context) (map[string]int64, error) {
	return nil, nil
}
func (f *fakeJobRepo) ListDeadLetters(dbc dbctx.Context, guildID int64, limit int) ([]*types.JobDeadLetter, error) {
	return nil, nil
}

func TestEnqueuerPriorities(t *testing.T) {
	repo := &fakeJobRepo{}
	e := NewEnqueuer(testLogger(t), repo, DefaultEnqueuerConfig())
	ctx := context.Background()

	if err := e.PurgeMessageVectors(ctx, 10, []int64{1, 2}); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if err := e.Sessionize(ctx, 10, 100, 1); err != nil {
		t.Fatalf("sessionize: %v", err)
	}
	if err := e.BackfillChannel(ctx, 10, 100, 0); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	wantPriorities := map[string]string{
		types.JobTypePurgeMessageVectors: types.JobPriorityHigh,
		types.JobTypeSessionize:          types.JobPriorityDefault,
		types.JobTypeBackfillChannel:     types.JobPriorityLow,
	}
	for _, job := range repo.enqueued {
		if want := wantPriorities[job.JobType]; job.Priority != want {
			t.Errorf("%s: priority=%s want=%s", job.JobType, job.Priority, want)
		}
	}
}

func TestEnqueuerSessionizeDedupKey(t *testing.T) {
	repo := &fakeJobRepo{}
	e := NewEnqueuer(testLogger(t), repo, DefaultEnqueuerConfig())
	ctx := context.Background()

	// Two triggers in the same channel coalesce into one pending job.
	if err := e.Sessionize(ctx, 10, 100, 1); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := e.Sessionize(ctx, 10, 100, 2); err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(repo.enqueued) != 1 {
		t.Fatalf("expected coalesced enqueue, got %d jobs", len(repo.enqueued))
	}
	if repo.enqueued[0].DedupKey != "sz:100" {
		t.Fatalf("dedup key: %q", repo.enqueued[0].DedupKey)
	}

	// A different channel is a different key.
	if err := e.Sessionize(ctx, 10, 200, 3); err != nil {
		t.Fatalf("third: %v", err)
	}
	if len(repo.enqueued) != 2 {
		t.Fatalf("different channel must not coalesce, got %d jobs", len(repo.enqueued))
	}
}

func TestEnqueuerBackpressureShedsLowOnly(t *testing.T) {
	repo := &fakeJobRepo{queued: 50_000}
	e := NewEnqueuer(testLogger(t), repo, EnqueuerConfig{DedupWindow: time.Minute, BackpressureHi: 10_000})
	ctx := context.Background()

	if err := e.BackfillChannel(ctx, 10, 100, 0); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if len(repo.enqueued) != 0 {
		t.Fatalf("low-priority work must be shed under backpressure")
	}

	if err := e.PurgeMessageVectors(ctx, 10, []int64{1}); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(repo.enqueued) != 1 {
		t.Fatalf("high-priority purge must never be throttled")
	}
}

func TestEnqueuerSnowflakesTravelAsStrings(t *testing.T) {
	repo := &fakeJobRepo{}
	e := NewEnqueuer(testLogger(t), repo, DefaultEnqueuerConfig())

	if err := e.Sessionize(context.Background(), 123456789012345678, 987654321098765432, 1); err != nil {
		t.Fatalf("sessionize: %v", err)
	}
	raw := string(repo.enqueued[0].Payload)
	for _, want := range []string{`"123456789012345678"`, `"987654321098765432"`} {
		if !strings.Contains(raw, want) {
			t.Errorf("payload missing quoted snowflake %s: %s", want, raw)
		}
	}
}
