package jobs

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/guildmind-backend/internal/data/repos/testutil"
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
)

func enqueue(t *testing.T, repo JobRepo, dbc dbctx.Context, jobType, priority, dedup string) *types.Job {
	t.Helper()
	job := &types.Job{
		GuildID:  10,
		JobType:  jobType,
		Priority: priority,
		DedupKey: dedup,
		Payload:  datatypes.JSON([]byte(`{}`)),
	}
	created, err := repo.Enqueue(dbc, job, 5*time.Minute)
	if err != nil {
		t.Fatalf("enqueue %s: %v", jobType, err)
	}
	if !created {
		t.Fatalf("enqueue %s coalesced unexpectedly", jobType)
	}
	return job
}

func TestJobRepoPriorityOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRepo(db, testutil.Logger(t))

	enqueue(t, repo, dbc, types.JobTypeBackfillChannel, types.JobPriorityLow, "")
	enqueue(t, repo, dbc, types.JobTypeSessionize, types.JobPriorityDefault, "")
	enqueue(t, repo, dbc, types.JobTypePurgeMessageVectors, types.JobPriorityHigh, "")

	// High drains first even though it enqueued last.
	first, err := repo.Claim(dbc, "w1", nil, time.Minute)
	if err != nil || first == nil {
		t.Fatalf("claim: %v %v", first, err)
	}
	if first.Priority != types.JobPriorityHigh {
		t.Fatalf("first claim priority: %s", first.Priority)
	}
	second, _ := repo.Claim(dbc, "w1", nil, time.Minute)
	if second == nil || second.Priority != types.JobPriorityDefault {
		t.Fatalf("second claim: %#v", second)
	}
	third, _ := repo.Claim(dbc, "w1", nil, time.Minute)
	if third == nil || third.Priority != types.JobPriorityLow {
		t.Fatalf("third claim: %#v", third)
	}
	if fourth, _ := repo.Claim(dbc, "w1", nil, time.Minute); fourth != nil {
		t.Fatalf("queue should be drained, got %#v", fourth)
	}
}

func TestJobRepoDedupCoalesces(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRepo(db, testutil.Logger(t))

	enqueue(t, repo, dbc, types.JobTypeSessionize, types.JobPriorityDefault, "sz:100")

	dup := &types.Job{
		GuildID:  10,
		JobType:  types.JobTypeSessionize,
		Priority: types.JobPriorityDefault,
		DedupKey: "sz:100",
		Payload:  datatypes.JSON([]byte(`{}`)),
	}
	created, err := repo.Enqueue(dbc, dup, 5*time.Minute)
	if err != nil {
		t.Fatalf("dup enqueue: %v", err)
	}
	if created {
		t.Fatalf("same dedup key inside window must coalesce")
	}

	if n, err := repo.CountQueued(dbc); err != nil || n != 1 {
		t.Fatalf("queued count: n=%d err=%v", n, err)
	}
}

func TestJobRepoNackReschedulesWithDelay(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRepo(db, testutil.Logger(t))

	job := enqueue(t, repo, dbc, types.JobTypeEmbedSession, types.JobPriorityDefault, "")

	claimed, err := repo.Claim(dbc, "w1", nil, time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Attempts != 1 {
		t.Fatalf("attempts after claim: %d", claimed.Attempts)
	}

	if err := repo.Nack(dbc, job.ID, time.Hour, "embedder 500"); err != nil {
		t.Fatalf("nack: %v", err)
	}

	// The job is queued again but its not_before sits an hour out, so a
	// claim finds nothing.
	if again, _ := repo.Claim(dbc, "w1", nil, time.Minute); again != nil {
		t.Fatalf("backed-off job must not be claimable yet: %#v", again)
	}
	row, err := repo.GetByID(dbc, job.ID)
	if err != nil || row == nil {
		t.Fatalf("get: %v", err)
	}
	if row.Status != types.JobStatusQueued || row.LastError != "embedder 500" {
		t.Fatalf("nacked row: %#v", row)
	}
}

func TestJobRepoExpiredLeaseIsReclaimable(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRepo(db, testutil.Logger(t))

	job := enqueue(t, repo, dbc, types.JobTypeEmbedSession, types.JobPriorityDefault, "")

	// Claim with an already-expired visibility window: the next claim
	// treats the row as an implicit nack from a dead worker.
	if claimed, err := repo.Claim(dbc, "w1", nil, -time.Second); err != nil || claimed == nil {
		t.Fatalf("first claim: %v", err)
	}
	second, err := repo.Claim(dbc, "w2", nil, time.Minute)
	if err != nil || second == nil {
		t.Fatalf("re-lease after expiry: %v", err)
	}
	if second.ID != job.ID {
		t.Fatalf("expected the same job back")
	}
	if second.Attempts != 2 {
		t.Fatalf("attempts after re-lease: %d", second.Attempts)
	}
}

func TestJobRepoDeadLetter(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRepo(db, testutil.Logger(t))

	job := enqueue(t, repo, dbc, types.JobTypeIngestAttachment, types.JobPriorityDefault, "")
	claimed, err := repo.Claim(dbc, "w1", nil, time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}

	if err := repo.DeadLetter(dbc, claimed, "permanent", "blocked_extension"); err != nil {
		t.Fatalf("dead letter: %v", err)
	}

	if again, _ := repo.Claim(dbc, "w1", nil, time.Minute); again != nil {
		t.Fatalf("dead job must not be claimable")
	}

	letters, err := repo.ListDeadLetters(dbc, 10, 10)
	if err != nil || len(letters) != 1 {
		t.Fatalf("dead letters: err=%v len=%d", err, len(letters))
	}
	if letters[0].JobID != job.ID || letters[0].Reason != "permanent" {
		t.Fatalf("dead letter row: %#v", letters[0])
	}
}
