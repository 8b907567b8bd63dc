package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type recordingRepo struct {
	acked   []uuid.UUID
	nacked  []uuid.UUID
	backoff time.Duration
	dead    []*types.Job
	reasons []string
}

func (f *recordingRepo) Enqueue(dbc dbctx.Context, job *types.Job, window time.Duration) (bool, error) {
	return true, nil
}
func (f *recordingRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error) {
	return nil, nil
}
func (f *recordingRepo) Claim(dbc dbctx.Context, workerID string, classes []string, visibility time.Duration) (*types.Job, error) {
	return nil, nil
}
func (f *recordingRepo) Ack(dbc dbctx.Context, id uuid.UUID) error {
	f.acked = append(f.acked, id)
	return nil
}
func (f *recordingRepo) Nack(dbc dbctx.Context, id uuid.UUID, backoff time.Duration, reason string) error {
	f.nacked = append(f.nacked, id)
	f.backoff = backoff
	return nil
}
func (f *recordingRepo) DeadLetter(dbc dbctx.Context, job *types.Job, reason, errMsg string) error {
	f.dead = append(f.dead, job)
	f.reasons = append(f.reasons, reason)
	return nil
}
func (f *recordingRepo) CountQueued(dbc dbctx.Context) (int64, error) { return 0, nil }
func (f *recordingRepo) CountQueuedByPriority(dbc dbctx.Context) (map[string]int64, error) {
	return nil, nil
}
func (f *recordingRepo) ListDeadLetters(dbc dbctx.Context, guildID int64, limit int) ([]*types.JobDeadLetter, error) {
	return nil, nil
}

func newTestWorker(t *testing.T, repo *recordingRepo) *Worker {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewWorker(nil, log, repo, nil, nil, DefaultConfig())
}

func job(attempts int) *types.Job {
	return &types.Job{ID: uuid.New(), JobType: types.JobTypeEmbedSession, Attempts: attempts}
}

func TestResolveSuccessAcks(t *testing.T) {
	repo := &recordingRepo{}
	w := newTestWorker(t, repo)
	w.resolve(context.Background(), job(1), nil)
	if len(repo.acked) != 1 || len(repo.nacked) != 0 || len(repo.dead) != 0 {
		t.Fatalf("success must ack only: %+v", repo)
	}
}

func TestResolveNotFoundAcks(t *testing.T) {
	repo := &recordingRepo{}
	w := newTestWorker(t, repo)
	w.resolve(context.Background(), job(1), errkind.New(errkind.NotFound, "record gone"))
	if len(repo.acked) != 1 || len(repo.dead) != 0 {
		t.Fatalf("not-found is a no-op success: %+v", repo)
	}
}

func TestResolveTransientNacksWithBackoff(t *testing.T) {
	repo := &recordingRepo{}
	w := newTestWorker(t, repo)
	w.resolve(context.Background(), job(2), errkind.New(errkind.Transient, "qdrant 503"))
	if len(repo.nacked) != 1 {
		t.Fatalf("transient must nack: %+v", repo)
	}
	// attempt=2 -> base*2^2 = 4s, plus jitter < base
	if repo.backoff < 4*time.Second || repo.backoff >= 5*time.Second {
		t.Fatalf("backoff out of range: %v", repo.backoff)
	}
}

func TestResolveTransientPastCapDeadLetters(t *testing.T) {
	repo := &recordingRepo{}
	w := newTestWorker(t, repo)
	w.resolve(context.Background(), job(5), errkind.New(errkind.Transient, "still failing"))
	if len(repo.dead) != 1 || repo.reasons[0] != "max_attempts" {
		t.Fatalf("attempt cap must dead-letter: %+v", repo)
	}
}

func TestResolvePermanentDeadLettersImmediately(t *testing.T) {
	repo := &recordingRepo{}
	w := newTestWorker(t, repo)
	w.resolve(context.Background(), job(1), errkind.New(errkind.Permanent, "dimension mismatch"))
	if len(repo.dead) != 1 || repo.reasons[0] != string(errkind.Permanent) {
		t.Fatalf("permanent must dead-letter on first attempt: %+v", repo)
	}
	if len(repo.nacked) != 0 {
		t.Fatalf("permanent must not retry")
	}
}

func TestResolveTenantViolationDeadLetters(t *testing.T) {
	repo := &recordingRepo{}
	w := newTestWorker(t, repo)
	w.resolve(context.Background(), job(1), errkind.New(errkind.TenantViolation, "missing guild filter"))
	if len(repo.dead) != 1 || repo.reasons[0] != string(errkind.TenantViolation) {
		t.Fatalf("tenant violation must fail closed: %+v", repo)
	}
}

func TestResolveUntaggedErrorRetries(t *testing.T) {
	repo := &recordingRepo{}
	w := newTestWorker(t, repo)
	w.resolve(context.Background(), job(1), context.DeadlineExceeded)
	if len(repo.nacked) != 1 {
		t.Fatalf("untagged errors retry as transient: %+v", repo)
	}
}
