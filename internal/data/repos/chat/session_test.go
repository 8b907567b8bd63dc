package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/guildmind-backend/internal/data/repos/testutil"
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
)

func seedSession(t *testing.T, repo SessionRepo, dbc dbctx.Context, channelID, startID, endID int64) *types.MessageSession {
	t.Helper()
	s := &types.MessageSession{
		ID:             uuid.New(),
		GuildID:        10,
		ChannelID:      channelID,
		StartMessageID: startID,
		EndMessageID:   endID,
		MessageCount:   int(endID - startID + 1),
		StartTime:      time.Now().UTC(),
		EndTime:        time.Now().UTC(),
	}
	if _, err := repo.Create(dbc, []*types.MessageSession{s}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return s
}

func TestSessionRepoFindContaining(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSessionRepo(db, testutil.Logger(t))

	testutil.SeedGuild(t, ctx, tx, 10)
	testutil.SeedChannel(t, ctx, tx, 100, 10, true)
	s := seedSession(t, repo, dbc, 100, 5, 9)

	got, err := repo.FindContaining(dbc, 100, 7)
	if err != nil || got == nil || got.ID != s.ID {
		t.Fatalf("find containing: %v %v", got, err)
	}
	if got, _ := repo.FindContaining(dbc, 100, 12); got != nil {
		t.Fatalf("out-of-range lookup must miss")
	}
	if got, _ := repo.FindContaining(dbc, 999, 7); got != nil {
		t.Fatalf("other channel must miss")
	}
}

func TestSessionRepoOverlapAndRange(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSessionRepo(db, testutil.Logger(t))

	testutil.SeedGuild(t, ctx, tx, 10)
	testutil.SeedChannel(t, ctx, tx, 100, 10, true)
	seedSession(t, repo, dbc, 100, 1, 4)
	seedSession(t, repo, dbc, 100, 5, 9)

	if got, err := repo.FindByRange(dbc, 100, 5, 9); err != nil || got == nil {
		t.Fatalf("find by range: %v", err)
	}
	if got, _ := repo.FindByRange(dbc, 100, 5, 8); got != nil {
		t.Fatalf("range must match exactly")
	}

	overlapping, err := repo.ListOverlapping(dbc, 100, 3, 6)
	if err != nil || len(overlapping) != 2 {
		t.Fatalf("overlapping: err=%v len=%d", err, len(overlapping))
	}
}

func TestSessionRepoMarkIndexedAndCAS(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSessionRepo(db, testutil.Logger(t))

	testutil.SeedGuild(t, ctx, tx, 10)
	testutil.SeedChannel(t, ctx, tx, 100, 10, true)
	s := seedSession(t, repo, dbc, 100, 1, 4)

	key := s.ID.String()
	if ok, err := repo.MarkIndexed(dbc, s.ID, key); err != nil || !ok {
		t.Fatalf("mark indexed: ok=%v err=%v", ok, err)
	}

	// Marking a deleted session is the CAS miss path.
	if err := repo.Delete(dbc, []uuid.UUID{s.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, err := repo.MarkIndexed(dbc, s.ID, key); err != nil || ok {
		t.Fatalf("mark on deleted session must miss: ok=%v err=%v", ok, err)
	}
}

func TestSessionRepoPendingDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSessionRepo(db, testutil.Logger(t))
	msgRepo := NewMessageRepo(db, testutil.Logger(t))

	testutil.SeedGuild(t, ctx, tx, 10)
	testutil.SeedChannel(t, ctx, tx, 100, 10, true)
	testutil.SeedUser(t, ctx, tx, 1)
	testutil.SeedMessage(t, ctx, tx, 1, 10, 100, 1, "a", time.Now().UTC())
	testutil.SeedMessage(t, ctx, tx, 2, 10, 100, 1, "b", time.Now().UTC())

	s := seedSession(t, repo, dbc, 100, 1, 2)
	if ok, err := repo.MarkIndexed(dbc, s.ID, s.ID.String()); err != nil || !ok {
		t.Fatalf("mark indexed: %v", err)
	}

	// With live messages the session is not pending delete.
	pending, err := repo.ListPendingDelete(dbc, 10, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending before delete: err=%v len=%d", err, len(pending))
	}

	if _, err := msgRepo.SoftDelete(dbc, 10, []int64{1, 2}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	pending, err = repo.ListPendingDelete(dbc, 10, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending after delete: err=%v len=%d", err, len(pending))
	}
	if pending[0].ID != s.ID {
		t.Fatalf("wrong session pending")
	}
}
