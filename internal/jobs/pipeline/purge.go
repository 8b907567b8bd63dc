package pipeline

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/jobs/runtime"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/platform/vector"
)

// PurgeMessageVectorsHandler is the right-to-be-forgotten path. For the
// given messages it removes every derived vector: session points whose
// range covers them and chunk points of their attachments. Sessions
// hollowed out entirely are deleted; sessions that still hold live
// messages are re-embedded so the dropped content leaves their preview
// too.
type PurgeMessageVectorsHandler struct {
	Deps
}

func (h *PurgeMessageVectorsHandler) Type() string { return types.JobTypePurgeMessageVectors }

func (h *PurgeMessageVectorsHandler) Run(jc *runtime.Context) error {
	guildID, ok := jc.PayloadInt64("guild_id")
	if !ok {
		return errkind.New(errkind.Permanent, "purge payload missing guild_id")
	}
	messageIDs := jc.PayloadInt64Slice("message_ids")
	if len(messageIDs) == 0 {
		return nil
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}

	if err := h.purgeSessions(jc.Ctx, dbc, guildID, messageIDs); err != nil {
		return err
	}
	if err := h.purgeAttachmentChunks(jc.Ctx, dbc, guildID, messageIDs); err != nil {
		return err
	}
	return h.clearMessageKeys(dbc, messageIDs)
}

func (h *PurgeMessageVectorsHandler) purgeSessions(ctx context.Context, dbc dbctx.Context, guildID int64, messageIDs []int64) error {
	sessions, err := h.Repos.Sessions.ListIntersectingMessages(dbc, guildID, messageIDs)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return nil
	}

	var keys []string
	for _, s := range sessions {
		if s.VectorKey != nil {
			keys = append(keys, *s.VectorKey)
		}
	}
	if len(keys) > 0 {
		vsCtx, cancel := context.WithTimeout(ctx, vsTimeout)
		err := h.Store.Delete(vsCtx, keys)
		cancel()
		if err != nil {
			return err
		}
	}

	for _, s := range sessions {
		if s.VectorKey != nil {
			if _, err := h.Repos.Sessions.ClearVectorKey(dbc, s.ID, *s.VectorKey); err != nil {
				return err
			}
		}
		remaining, err := h.Repos.Messages.ListRange(dbc, s.ChannelID, s.StartMessageID, s.EndMessageID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			if err := h.Repos.Sessions.Delete(dbc, []uuid.UUID{s.ID}); err != nil {
				return err
			}
			continue
		}
		// Live messages remain: rebuild the vector without the purged
		// content.
		if err := h.Repos.Sessions.BumpUpdated(dbc, s.ID); err != nil {
			return err
		}
		if err := h.Enqueue.EmbedSession(ctx, guildID, s.ID.String()); err != nil {
			return err
		}
	}
	return nil
}

func (h *PurgeMessageVectorsHandler) purgeAttachmentChunks(ctx context.Context, dbc dbctx.Context, guildID int64, messageIDs []int64) error {
	attachments, err := h.Repos.Attachments.ListByMessageIDs(dbc, messageIDs)
	if err != nil {
		return err
	}
	if len(attachments) == 0 {
		return nil
	}
	attachmentIDs := make([]int64, 0, len(attachments))
	for _, a := range attachments {
		attachmentIDs = append(attachmentIDs, a.ID)
	}

	chunks, err := h.Repos.Chunks.ListByAttachmentIDs(dbc, attachmentIDs)
	if err != nil {
		return err
	}
	var keys []string
	for _, c := range chunks {
		if c.VectorKey != nil {
			keys = append(keys, *c.VectorKey)
		}
	}
	if len(keys) > 0 {
		vsCtx, cancel := context.WithTimeout(ctx, vsTimeout)
		err := h.Store.Delete(vsCtx, keys)
		cancel()
		if err != nil {
			return err
		}
	}
	return h.Repos.Chunks.DeleteByAttachmentIDs(dbc, attachmentIDs)
}

func (h *PurgeMessageVectorsHandler) clearMessageKeys(dbc dbctx.Context, messageIDs []int64) error {
	rows, err := h.Repos.Messages.GetByIDs(dbc, messageIDs)
	if err != nil {
		return err
	}
	for _, m := range rows {
		if m.VectorKey == nil {
			continue
		}
		if _, err := h.Repos.Messages.ClearVectorKey(dbc, m.ID, *m.VectorKey); err != nil {
			return err
		}
	}
	return nil
}

// PurgeChannelVectorsHandler removes every point for a channel in one
// filtered delete, then sweeps RS so no row keeps claiming a vector.
type PurgeChannelVectorsHandler struct {
	Deps
}

func (h *PurgeChannelVectorsHandler) Type() string { return types.JobTypePurgeChannelVectors }

func (h *PurgeChannelVectorsHandler) Run(jc *runtime.Context) error {
	guildID, ok := jc.PayloadInt64("guild_id")
	if !ok {
		return errkind.New(errkind.Permanent, "purge_channel payload missing guild_id")
	}
	channelID, ok := jc.PayloadInt64("channel_id")
	if !ok {
		return errkind.New(errkind.Permanent, "purge_channel payload missing channel_id")
	}

	vsCtx, cancel := context.WithTimeout(jc.Ctx, vsTimeout)
	err := h.Store.DeleteWhere(vsCtx, vector.Filter{GuildID: guildID, ChannelID: &channelID})
	cancel()
	if err != nil {
		return err
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	if err := h.Repos.Messages.ClearChannelVectorKeys(dbc, guildID, channelID); err != nil {
		return err
	}
	if err := h.Repos.Sessions.ClearChannelVectorKeys(dbc, guildID, channelID); err != nil {
		return err
	}
	return h.Repos.Chunks.ClearChannelVectorKeys(dbc, guildID, channelID)
}
