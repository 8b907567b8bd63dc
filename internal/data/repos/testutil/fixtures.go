package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/guildmind-backend/internal/domain"
)

func SeedGuild(tb testing.TB, ctx context.Context, tx *gorm.DB, id int64) *types.Guild {
	tb.Helper()
	g := &types.Guild{ID: id, Name: "guild", IsActive: true}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed guild: %v", err)
	}
	return g
}

func SeedChannel(tb testing.TB, ctx context.Context, tx *gorm.DB, id, guildID int64, indexed bool) *types.Channel {
	tb.Helper()
	c := &types.Channel{ID: id, GuildID: guildID, Name: "general", IsIndexed: indexed}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed channel: %v", err)
	}
	return c
}

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, id int64) *types.User {
	tb.Helper()
	u := &types.User{ID: id, DisplayName: "someone"}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, id, guildID, channelID, authorID int64, content string, ts time.Time) *types.Message {
	tb.Helper()
	m := &types.Message{
		ID:        id,
		GuildID:   guildID,
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
		Timestamp: ts,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}
