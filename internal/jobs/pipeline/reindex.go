package pipeline

import (
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/jobs/runtime"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
)

// ReindexSessionForHandler reacts to an edit: the session covering the
// edited message is marked stale and re-embedded. A message not yet
// covered by any session falls back to sessionization.
type ReindexSessionForHandler struct {
	Deps
}

func (h *ReindexSessionForHandler) Type() string { return types.JobTypeReindexSessionFor }

func (h *ReindexSessionForHandler) Run(jc *runtime.Context) error {
	guildID, ok := jc.PayloadInt64("guild_id")
	if !ok {
		return errkind.New(errkind.Permanent, "reindex payload missing guild_id")
	}
	messageID, ok := jc.PayloadInt64("message_id")
	if !ok {
		return errkind.New(errkind.Permanent, "reindex payload missing message_id")
	}
	channelID, ok := jc.PayloadInt64("channel_id")
	if !ok {
		return errkind.New(errkind.Permanent, "reindex payload missing channel_id")
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	session, err := h.Repos.Sessions.FindContaining(dbc, channelID, messageID)
	if err != nil {
		return err
	}
	if session == nil {
		return h.Enqueue.Sessionize(jc.Ctx, guildID, channelID, messageID)
	}

	if err := h.Repos.Sessions.BumpUpdated(dbc, session.ID); err != nil {
		return err
	}
	return h.Enqueue.EmbedSession(jc.Ctx, guildID, session.ID.String())
}
