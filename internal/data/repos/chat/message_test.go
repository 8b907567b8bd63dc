package chat

import (
	"context"
	"testing"
	"time"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/data/repos/testutil"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
)

func TestMessageRepoUpsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMessageRepo(db, testutil.Logger(t))

	testutil.SeedGuild(t, ctx, tx, 10)
	testutil.SeedChannel(t, ctx, tx, 100, 10, true)
	testutil.SeedUser(t, ctx, tx, 1)

	m := &types.Message{
		ID:        1,
		GuildID:   10,
		ChannelID: 100,
		AuthorID:  1,
		Content:   "the red fox",
		Timestamp: time.Now().UTC(),
	}
	res, err := repo.Upsert(dbc, m)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !res.Created || !res.ContentChanged {
		t.Fatalf("first upsert must create: %#v", res)
	}

	// Replay with identical content: no change reported.
	res, err = repo.Upsert(dbc, m)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Created || res.ContentChanged {
		t.Fatalf("replay must be a no-op: %#v", res)
	}
	if res.PrevContent != "the red fox" {
		t.Fatalf("prev content: %q", res.PrevContent)
	}

	// Edit.
	edited := *m
	edited.Content = "the blue fox"
	res, err = repo.Upsert(dbc, &edited)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !res.ContentChanged || res.PrevContent != "the red fox" {
		t.Fatalf("edit must report change with prior content: %#v", res)
	}
}

func TestMessageRepoSoftDeleteAndCAS(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMessageRepo(db, testutil.Logger(t))

	testutil.SeedGuild(t, ctx, tx, 10)
	testutil.SeedChannel(t, ctx, tx, 100, 10, true)
	testutil.SeedUser(t, ctx, tx, 1)
	testutil.SeedMessage(t, ctx, tx, 1, 10, 100, 1, "secret", time.Now().UTC())
	testutil.SeedMessage(t, ctx, tx, 2, 10, 100, 1, "other", time.Now().UTC())

	if err := repo.SetVectorKey(dbc, []int64{1}, "vk-1"); err != nil {
		t.Fatalf("set vector key: %v", err)
	}

	targets, err := repo.SoftDelete(dbc, 10, []int64{1, 2})
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("targets: %d", len(targets))
	}
	withKey := 0
	for _, target := range targets {
		if target.VectorKey != nil {
			withKey++
			if *target.VectorKey != "vk-1" {
				t.Fatalf("wrong key: %s", *target.VectorKey)
			}
		}
	}
	if withKey != 1 {
		t.Fatalf("exactly one target had a key, got %d", withKey)
	}

	rows, err := repo.GetByIDs(dbc, []int64{1})
	if err != nil || len(rows) != 1 {
		t.Fatalf("get: err=%v len=%d", err, len(rows))
	}
	if !rows[0].IsDeleted || rows[0].Content != types.DeletedContent {
		t.Fatalf("tombstone missing: %#v", rows[0])
	}

	// CAS: wrong expected key leaves the row alone.
	if ok, err := repo.ClearVectorKey(dbc, 1, "wrong"); err != nil || ok {
		t.Fatalf("CAS with wrong key: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.ClearVectorKey(dbc, 1, "vk-1"); err != nil || !ok {
		t.Fatalf("CAS with right key: ok=%v err=%v", ok, err)
	}
	// Replay of the clear is a no-op false, not an error.
	if ok, err := repo.ClearVectorKey(dbc, 1, "vk-1"); err != nil || ok {
		t.Fatalf("CAS replay: ok=%v err=%v", ok, err)
	}
}

func TestMessageRepoDeletedRowsNeverResurrect(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMessageRepo(db, testutil.Logger(t))

	testutil.SeedGuild(t, ctx, tx, 10)
	testutil.SeedChannel(t, ctx, tx, 100, 10, true)
	testutil.SeedUser(t, ctx, tx, 1)
	testutil.SeedMessage(t, ctx, tx, 1, 10, 100, 1, "secret", time.Now().UTC())

	if _, err := repo.SoftDelete(dbc, 10, []int64{1}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	// Late replay of the original create event.
	res, err := repo.Upsert(dbc, &types.Message{
		ID: 1, GuildID: 10, ChannelID: 100, AuthorID: 1,
		Content: "secret", Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.ContentChanged {
		t.Fatalf("tombstone must win over replay")
	}
	rows, _ := repo.GetByIDs(dbc, []int64{1})
	if rows[0].Content != types.DeletedContent {
		t.Fatalf("content resurrected: %q", rows[0].Content)
	}
}

func TestMessageRepoListWindowOrdering(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMessageRepo(db, testutil.Logger(t))

	testutil.SeedGuild(t, ctx, tx, 10)
	testutil.SeedChannel(t, ctx, tx, 100, 10, true)
	testutil.SeedUser(t, ctx, tx, 1)
	base := time.Now().UTC()
	for i := int64(1); i <= 10; i++ {
		testutil.SeedMessage(t, ctx, tx, i, 10, 100, 1, "m", base.Add(time.Duration(i)*time.Second))
	}

	window, err := repo.ListWindow(dbc, 100, 6, 4, 2)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	want := []int64{3, 4, 5, 6, 7, 8}
	if len(window) != len(want) {
		t.Fatalf("window len: %d", len(window))
	}
	for i, m := range window {
		if m.ID != want[i] {
			t.Fatalf("window[%d]=%d want=%d", i, m.ID, want[i])
		}
	}
}
