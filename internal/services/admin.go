package services

import (
	"context"
	"fmt"

	"github.com/yungbote/guildmind-backend/internal/data/repos"
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

// SyncHealth is the per-guild consistency report surfaced to admins.
type SyncHealth struct {
	GuildID   int64   `json:"guild_id"`
	Synced    int64   `json:"synced"`
	Unindexed int64   `json:"unindexed"`
	Stale     int64   `json:"stale"`
	Ratio     float64 `json:"ratio"`
	Healthy   bool    `json:"healthy"`
}

// AdminService is the trusted control surface. Authorization happens
// upstream; these operations assume their caller is allowed.
type AdminService interface {
	SetChannelIndexed(ctx context.Context, guildID, channelID int64, indexed bool) error
	SetGuildActive(ctx context.Context, guildID int64, active bool) error
	GuildSyncHealth(ctx context.Context, guildID int64) (*SyncHealth, error)
	ListDeadLetters(ctx context.Context, guildID int64, limit int) ([]*types.JobDeadLetter, error)
}

type adminService struct {
	log      *logger.Logger
	guilds   repos.GuildRepo
	channels repos.ChannelRepo
	sessions repos.SessionRepo
	enqueue  Enqueuer
	jobs     repos.JobRepo
}

func NewAdminService(log *logger.Logger, guilds repos.GuildRepo, channels repos.ChannelRepo, sessions repos.SessionRepo, jobs repos.JobRepo, enqueue Enqueuer) AdminService {
	return &adminService{
		log:      log.With("service", "AdminService"),
		guilds:   guilds,
		channels: channels,
		sessions: sessions,
		jobs:     jobs,
		enqueue:  enqueue,
	}
}

// SetChannelIndexed flips the admin flag. Turning indexing off schedules
// a high-priority purge of every vector in the channel; turning it on
// schedules a low-priority backfill. The RS write commits before the
// enqueue so a crash in between is recoverable by the reconciler.
func (s *adminService) SetChannelIndexed(ctx context.Context, guildID, channelID int64, indexed bool) error {
	dbc := dbctx.Context{Ctx: ctx}
	ch, err := s.channels.GetByID(dbc, channelID)
	if err != nil {
		return err
	}
	if ch == nil || ch.GuildID != guildID {
		return fmt.Errorf("channel %d not found in guild %d", channelID, guildID)
	}

	changed, err := s.channels.SetIndexed(dbc, guildID, channelID, indexed)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if indexed {
		return s.enqueue.BackfillChannel(ctx, guildID, channelID, 0)
	}
	return s.enqueue.PurgeChannelVectors(ctx, guildID, channelID)
}

func (s *adminService) SetGuildActive(ctx context.Context, guildID int64, active bool) error {
	dbc := dbctx.Context{Ctx: ctx}
	g, err := s.guilds.GetByID(dbc, guildID)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("guild %d not found", guildID)
	}
	if err := s.guilds.SetActive(dbc, guildID, active); err != nil {
		return err
	}
	s.log.Info("Guild active flag changed", "guild_id", guildID, "active", active)
	return nil
}

func (s *adminService) GuildSyncHealth(ctx context.Context, guildID int64) (*SyncHealth, error) {
	synced, unindexed, stale, err := s.sessions.CountIndexedState(dbctx.Context{Ctx: ctx}, guildID)
	if err != nil {
		return nil, err
	}
	out := &SyncHealth{
		GuildID:   guildID,
		Synced:    synced,
		Unindexed: unindexed,
		Stale:     stale,
	}
	total := synced + unindexed + stale
	if total == 0 {
		out.Ratio = 1
	} else {
		out.Ratio = float64(synced) / float64(total)
	}
	out.Healthy = out.Ratio > 0.95
	return out, nil
}

func (s *adminService) ListDeadLetters(ctx context.Context, guildID int64, limit int) ([]*types.JobDeadLetter, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.jobs.ListDeadLetters(dbctx.Context{Ctx: ctx}, guildID, limit)
}
