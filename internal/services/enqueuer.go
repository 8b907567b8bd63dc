package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/guildmind-backend/internal/data/repos"
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

// EnqueuerConfig carries the broker-side knobs the enqueue path needs.
type EnqueuerConfig struct {
	// DedupWindow is the sliding window in which same-key enqueues
	// coalesce.
	DedupWindow time.Duration
	// BackpressureHi is the queued-job depth past which low-priority
	// work stops being accepted. Purges are never throttled.
	BackpressureHi int64
}

func DefaultEnqueuerConfig() EnqueuerConfig {
	return EnqueuerConfig{
		DedupWindow:    5 * time.Minute,
		BackpressureHi: 10_000,
	}
}

// Enqueuer is the single gateway to the job queue. All job payloads are
// built here so every producer agrees on field names; snowflake ids are
// serialized as strings to survive JSON number precision.
type Enqueuer interface {
	Sessionize(ctx context.Context, guildID, channelID, aroundMessageID int64) error
	// SessionizePage is the backfill variant: deduped per page instead
	// of per channel, so a channel-wide walk does not coalesce into one
	// job.
	SessionizePage(ctx context.Context, guildID, channelID, aroundMessageID int64) error
	EmbedSession(ctx context.Context, guildID int64, sessionID string) error
	ReindexSessionFor(ctx context.Context, guildID, messageID, channelID int64) error
	PurgeMessageVectors(ctx context.Context, guildID int64, messageIDs []int64) error
	PurgeChannelVectors(ctx context.Context, guildID, channelID int64) error
	BackfillChannel(ctx context.Context, guildID, channelID, afterMessageID int64) error
	IngestAttachment(ctx context.Context, guildID, attachmentID int64) error
}

type enqueuer struct {
	log  *logger.Logger
	jobs repos.JobRepo
	cfg  EnqueuerConfig
}

func NewEnqueuer(log *logger.Logger, jobs repos.JobRepo, cfg EnqueuerConfig) Enqueuer {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultEnqueuerConfig().DedupWindow
	}
	if cfg.BackpressureHi <= 0 {
		cfg.BackpressureHi = DefaultEnqueuerConfig().BackpressureHi
	}
	return &enqueuer{
		log:  log.With("service", "Enqueuer"),
		jobs: jobs,
		cfg:  cfg,
	}
}

func (e *enqueuer) Sessionize(ctx context.Context, guildID, channelID, aroundMessageID int64) error {
	return e.push(ctx, &types.Job{
		GuildID:  guildID,
		JobType:  types.JobTypeSessionize,
		Priority: types.JobPriorityDefault,
		DedupKey: "sz:" + strconv.FormatInt(channelID, 10),
		Payload: mustPayload(map[string]any{
			"guild_id":   strconv.FormatInt(guildID, 10),
			"channel_id": strconv.FormatInt(channelID, 10),
			"around":     strconv.FormatInt(aroundMessageID, 10),
		}),
	})
}

func (e *enqueuer) SessionizePage(ctx context.Context, guildID, channelID, aroundMessageID int64) error {
	return e.push(ctx, &types.Job{
		GuildID:  guildID,
		JobType:  types.JobTypeSessionize,
		Priority: types.JobPriorityLow,
		DedupKey: fmt.Sprintf("sz:%d:%d", channelID, aroundMessageID),
		Payload: mustPayload(map[string]any{
			"guild_id":   strconv.FormatInt(guildID, 10),
			"channel_id": strconv.FormatInt(channelID, 10),
			"around":     strconv.FormatInt(aroundMessageID, 10),
		}),
	})
}

func (e *enqueuer) EmbedSession(ctx context.Context, guildID int64, sessionID string) error {
	return e.push(ctx, &types.Job{
		GuildID:  guildID,
		JobType:  types.JobTypeEmbedSession,
		Priority: types.JobPriorityDefault,
		// One embed per session in flight inside the dedup window; the
		// mark-indexed CAS covers the rest.
		DedupKey: "embed:" + sessionID,
		Payload: mustPayload(map[string]any{
			"guild_id":   strconv.FormatInt(guildID, 10),
			"session_id": sessionID,
		}),
	})
}

func (e *enqueuer) ReindexSessionFor(ctx context.Context, guildID, messageID, channelID int64) error {
	return e.push(ctx, &types.Job{
		GuildID:  guildID,
		JobType:  types.JobTypeReindexSessionFor,
		Priority: types.JobPriorityDefault,
		Payload: mustPayload(map[string]any{
			"guild_id":   strconv.FormatInt(guildID, 10),
			"message_id": strconv.FormatInt(messageID, 10),
			"channel_id": strconv.FormatInt(channelID, 10),
		}),
	})
}

func (e *enqueuer) PurgeMessageVectors(ctx context.Context, guildID int64, messageIDs []int64) error {
	ids := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return e.push(ctx, &types.Job{
		GuildID:  guildID,
		JobType:  types.JobTypePurgeMessageVectors,
		Priority: types.JobPriorityHigh,
		Payload: mustPayload(map[string]any{
			"guild_id":    strconv.FormatInt(guildID, 10),
			"message_ids": ids,
		}),
	})
}

func (e *enqueuer) PurgeChannelVectors(ctx context.Context, guildID, channelID int64) error {
	return e.push(ctx, &types.Job{
		GuildID:  guildID,
		JobType:  types.JobTypePurgeChannelVectors,
		Priority: types.JobPriorityHigh,
		DedupKey: "purgech:" + strconv.FormatInt(channelID, 10),
		Payload: mustPayload(map[string]any{
			"guild_id":   strconv.FormatInt(guildID, 10),
			"channel_id": strconv.FormatInt(channelID, 10),
		}),
	})
}

func (e *enqueuer) BackfillChannel(ctx context.Context, guildID, channelID, afterMessageID int64) error {
	return e.push(ctx, &types.Job{
		GuildID:  guildID,
		JobType:  types.JobTypeBackfillChannel,
		Priority: types.JobPriorityLow,
		DedupKey: fmt.Sprintf("backfill:%d:%d", channelID, afterMessageID),
		Payload: mustPayload(map[string]any{
			"guild_id":   strconv.FormatInt(guildID, 10),
			"channel_id": strconv.FormatInt(channelID, 10),
			"after":      strconv.FormatInt(afterMessageID, 10),
		}),
	})
}

func (e *enqueuer) IngestAttachment(ctx context.Context, guildID, attachmentID int64) error {
	return e.push(ctx, &types.Job{
		GuildID:  guildID,
		JobType:  types.JobTypeIngestAttachment,
		Priority: types.JobPriorityDefault,
		DedupKey: "attach:" + strconv.FormatInt(attachmentID, 10),
		Payload: mustPayload(map[string]any{
			"guild_id":      strconv.FormatInt(guildID, 10),
			"attachment_id": strconv.FormatInt(attachmentID, 10),
		}),
	})
}

func (e *enqueuer) push(ctx context.Context, job *types.Job) error {
	dbc := dbctx.Context{Ctx: ctx}

	// Under load, shed low-priority work first. Deletes (high) always
	// get through.
	if job.Priority == types.JobPriorityLow {
		depth, err := e.jobs.CountQueued(dbc)
		if err != nil {
			return err
		}
		if depth >= e.cfg.BackpressureHi {
			e.log.Warn("Queue above backpressure threshold; dropping low-priority job",
				"job_type", job.JobType,
				"depth", depth,
			)
			return nil
		}
	}

	created, err := e.jobs.Enqueue(dbc, job, e.cfg.DedupWindow)
	if err != nil {
		return err
	}
	if !created {
		e.log.Debug("Enqueue coalesced into pending job",
			"job_type", job.JobType,
			"dedup_key", job.DedupKey,
		)
	}
	return nil
}

func mustPayload(m map[string]any) datatypes.JSON {
	raw, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}
